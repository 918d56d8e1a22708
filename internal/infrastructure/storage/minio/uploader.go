// Package minio uploads finished dossier files to S3-compatible object
// storage so runs can be shared beyond the local filesystem.
package minio

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bioforge/trialdossier/internal/config"
	"github.com/bioforge/trialdossier/internal/infrastructure/monitoring/logging"
	"github.com/bioforge/trialdossier/pkg/errors"
)

// objectAPI is the subset of the minio client the uploader needs.
type objectAPI interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	FPutObject(ctx context.Context, bucket, object, filePath string, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Uploader pushes dossier CSVs into a bucket.
type Uploader struct {
	client objectAPI
	bucket string
	logger logging.Logger
}

// NewUploader connects to object storage and ensures the target bucket
// exists.
func NewUploader(ctx context.Context, cfg config.MinIOConfig, log logging.Logger) (*Uploader, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New(errors.ErrCodeInvalidParam, "object storage endpoint and bucket are required")
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeExternalService, "failed to build object storage client")
	}

	u := &Uploader{client: client, bucket: cfg.Bucket, logger: log.Named("uploader")}
	if err := u.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return u, nil
}

func newUploaderWithClient(client objectAPI, bucket string, log logging.Logger) *Uploader {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Uploader{client: client, bucket: bucket, logger: log.Named("uploader")}
}

func (u *Uploader) ensureBucket(ctx context.Context) error {
	exists, err := u.client.BucketExists(ctx, u.bucket)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to check bucket")
	}
	if exists {
		return nil
	}
	if err := u.client.MakeBucket(ctx, u.bucket, minio.MakeBucketOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeExternalService, "failed to create bucket")
	}
	u.logger.Info("created dossier bucket", logging.String("bucket", u.bucket))
	return nil
}

// UploadDossier stores a finished CSV under runs/<date>/<filename> and
// returns the object key.
func (u *Uploader) UploadDossier(ctx context.Context, localPath string) (string, error) {
	object := fmt.Sprintf("runs/%s/%s", time.Now().UTC().Format("2006-01-02"), filepath.Base(localPath))

	info, err := u.client.FPutObject(ctx, u.bucket, object, localPath, minio.PutObjectOptions{
		ContentType: "text/csv",
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeExternalService, "dossier upload failed")
	}

	u.logger.Info("uploaded dossier",
		logging.String("bucket", u.bucket),
		logging.String("object", object),
		logging.Int64("bytes", info.Size),
	)
	return object, nil
}
