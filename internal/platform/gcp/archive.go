package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/sheetmirror-backend/internal/platform/logger"
)

var ErrObjectNotFound = errors.New("archived object not found")

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Archive keeps a copy of every rendered document so downloads survive local
// disk loss.
type Archive interface {
	Put(ctx context.Context, name string, r io.Reader) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Close() error
}

type gcsArchive struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
	prefix string
}

func NewArchive(log *logger.Logger, cfg ObjectStorageConfig) (Archive, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("missing env var MIRROR_ARCHIVE_BUCKET")
	}
	if err := ValidateObjectStorageConfig(cfg); err != nil {
		return nil, fmt.Errorf("validate object storage config: %w", err)
	}
	client, err := newStorageClientForMode(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	serviceLog := log.With("service", "ArchiveService")
	serviceLog.Info(
		"Object storage initialized",
		"mode", cfg.Mode,
		"inferred_mode", cfg.Inferred,
		"emulator_host", cfg.EmulatorHost,
		"bucket", cfg.Bucket,
		"prefix", cfg.Prefix,
	)
	return &gcsArchive{log: serviceLog, client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

func newStorageClientForMode(ctx context.Context, cfg ObjectStorageConfig) (*storage.Client, error) {
	switch cfg.Mode {
	case ObjectStorageModeGCS:
		opts := ClientOptionsFromEnv()
		opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
		return storage.NewClient(ctx, opts...)
	case ObjectStorageModeGCSEmulator:
		// The storage client reads the emulator endpoint from the environment.
		_ = os.Setenv("STORAGE_EMULATOR_HOST", strings.TrimRight(cfg.EmulatorHost, "/"))
		return storage.NewClient(ctx, option.WithoutAuthentication())
	default:
		return nil, &ObjectStorageConfigError{Field: "OBJECT_STORAGE_MODE", Value: string(cfg.Mode)}
	}
}

func objectKey(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}

func (a *gcsArchive) Put(ctx context.Context, name string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectKey(a.prefix, name)).NewWriter(ctx)
	w.ContentType = xlsxContentType
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return nil
}

func (a *gcsArchive) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	// The reader outlives this call; cancel once it is closed.
	ctx2, cancel := context.WithTimeout(ctx, 2*time.Minute)
	r, err := a.client.Bucket(a.bucket).Object(objectKey(a.prefix, name)).NewReader(ctx2)
	if err != nil {
		cancel()
		if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open GCS reader: %w", err)
	}
	return &readCloserWithCancel{ReadCloser: r, cancel: cancel}, nil
}

func (a *gcsArchive) Close() error {
	if a == nil || a.client == nil {
		return nil
	}
	return a.client.Close()
}

type readCloserWithCancel struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (r *readCloserWithCancel) Close() error {
	err := r.ReadCloser.Close()
	if r.cancel != nil {
		r.cancel()
	}
	return err
}
