// Package snapshot loads canonical entities from a local JSON dump instead
// of the live annotation source, for deterministic and offline runs.
package snapshot

import (
	"context"
	"encoding/json"
	"os"

	"github.com/bioforge/trialdossier/internal/domain/entity"
	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
	"github.com/bioforge/trialdossier/pkg/errors"
)

// Loader implements relation.EntityLoader from a JSON file holding an array
// of canonical entities.  Terms are ignored; the snapshot defines the whole
// resolution universe for its kinds.
type Loader struct {
	path   string
	logger logging.Logger
}

// NewLoader builds the snapshot loader.
func NewLoader(path string, log logging.Logger) (*Loader, error) {
	if path == "" {
		return nil, errors.New(errors.ErrCodeInvalidParam, "snapshot path is required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Loader{path: path, logger: log.Named("snapshot")}, nil
}

// Load returns every snapshot entity of the requested kind.
func (l *Loader) Load(_ context.Context, _ []string, kind entity.Kind) ([]entity.CanonicalEntity, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeNotFound, "failed to read entity snapshot")
	}

	var all []entity.CanonicalEntity
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to decode entity snapshot")
	}

	var ents []entity.CanonicalEntity
	for i := range all {
		if all[i].Kind != kind {
			continue
		}
		if err := all[i].Validate(); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeValidation, "invalid snapshot entity")
		}
		ents = append(ents, all[i])
	}

	l.logger.Info("loaded entity snapshot",
		logging.String("path", l.path),
		logging.String("kind", string(kind)),
		logging.Int("entities", len(ents)),
	)
	return ents, nil
}
