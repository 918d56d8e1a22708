// Package output renders finished dossiers as CSV files on the local
// filesystem.
package output

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bioforge/trialdossier/internal/domain/dossier"
	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
	"github.com/bioforge/trialdossier/pkg/errors"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// slugify turns a subject like "Asthma, Bronchial" into a filename-safe
// fragment.
func slugify(s string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(s), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		slug = "dossier"
	}
	return slug
}

// Writer writes dossier CSV files into a target directory.
type Writer struct {
	dir    string
	logger logging.Logger
}

// NewWriter builds a Writer rooted at dir, creating the directory if needed.
func NewWriter(dir string, log logging.Logger) (*Writer, error) {
	if dir == "" {
		return nil, errors.New(errors.ErrCodeInvalidParam, "output directory is required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRowWriteFailed, "failed to create output directory")
	}
	return &Writer{dir: dir, logger: log.Named("output")}, nil
}

// WriteDiseaseDossier writes the disease-shape CSV for subject and returns
// the file path.
func (w *Writer) WriteDiseaseDossier(subject string, rows []dossier.DiseaseRow) (string, error) {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.Record())
	}
	return w.write(fmt.Sprintf("disease_%s.csv", slugify(subject)), dossier.DiseaseHeader(), records)
}

// WriteTargetDossier writes the target-shape CSV for subject and returns the
// file path.
func (w *Writer) WriteTargetDossier(subject string, rows []dossier.TargetRow) (string, error) {
	records := make([][]string, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.Record())
	}
	return w.write(fmt.Sprintf("target_%s.csv", slugify(subject)), dossier.TargetHeader(), records)
}

func (w *Writer) write(name string, header []string, records [][]string) (string, error) {
	path := filepath.Join(w.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeRowWriteFailed, "failed to create dossier file")
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(header); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeRowWriteFailed, "failed to write header")
	}
	for _, rec := range records {
		if err := cw.Write(rec); err != nil {
			return "", errors.Wrap(err, errors.ErrCodeRowWriteFailed, "failed to write row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeRowWriteFailed, "failed to flush dossier file")
	}
	if err := f.Close(); err != nil {
		return "", errors.Wrap(err, errors.ErrCodeRowWriteFailed, "failed to close dossier file")
	}

	w.logger.Info("wrote dossier",
		logging.String("path", path),
		logging.Int("rows", len(records)),
	)
	return path, nil
}
