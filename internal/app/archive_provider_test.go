package app

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/yungbote/sheetmirror-backend/internal/platform/gcp"
	"github.com/yungbote/sheetmirror-backend/internal/platform/logger"
)

type testArchive struct{}

func (testArchive) Put(context.Context, string, io.Reader) error { return nil }
func (testArchive) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, gcp.ErrObjectNotFound
}
func (testArchive) Close() error { return nil }

func clearStorageEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"MIRROR_ARCHIVE_BUCKET", "MIRROR_ARCHIVE_PREFIX", "OBJECT_STORAGE_MODE", "STORAGE_EMULATOR_HOST"} {
		t.Setenv(k, "")
	}
}

func stubArchive(t *testing.T) *gcp.ObjectStorageConfig {
	t.Helper()
	orig := newArchive
	t.Cleanup(func() { newArchive = orig })
	captured := &gcp.ObjectStorageConfig{}
	newArchive = func(_ *logger.Logger, cfg gcp.ObjectStorageConfig) (gcp.Archive, error) {
		*captured = cfg
		return testArchive{}, nil
	}
	return captured
}

func TestClassifyArchiveBootstrapError(t *testing.T) {
	cases := []struct {
		err  error
		want ArchiveBootstrapErrorCode
	}{
		{&gcp.ObjectStorageConfigError{Field: "OBJECT_STORAGE_MODE", Value: "s3"}, ArchiveBootstrapErrorInvalidMode},
		{&gcp.ObjectStorageConfigError{Field: "STORAGE_EMULATOR_HOST"}, ArchiveBootstrapErrorMissingEmulatorHost},
		{&gcp.ObjectStorageConfigError{Field: "STORAGE_EMULATOR_HOST", Value: "fake-gcs:4443"}, ArchiveBootstrapErrorInvalidEmulatorHost},
		{errors.New("dial tcp: connection refused"), ArchiveBootstrapErrorConnectFailed},
	}
	for _, tc := range cases {
		err := classifyArchiveBootstrapError(gcp.ObjectStorageConfig{Mode: gcp.ObjectStorageModeGCS}, tc.err)
		var got *ArchiveBootstrapError
		if !errors.As(err, &got) {
			t.Fatalf("expected ArchiveBootstrapError, got=%T", err)
		}
		if got.Code != tc.want {
			t.Fatalf("code: want=%q got=%q", tc.want, got.Code)
		}
		if !errors.Is(err, tc.err) {
			t.Fatalf("cause should be preserved")
		}
	}
}

func TestResolveArchiveDisabledWithoutBucket(t *testing.T) {
	clearStorageEnv(t)
	t.Setenv("OBJECT_STORAGE_MODE", "bogus")
	stubArchive(t)

	got, err := resolveArchive(logger.Nop())
	if err != nil {
		t.Fatalf("resolveArchive: %v", err)
	}
	if got != nil {
		t.Fatalf("archive should be disabled without a bucket")
	}
}

func TestResolveArchiveInvalidMode(t *testing.T) {
	clearStorageEnv(t)
	t.Setenv("MIRROR_ARCHIVE_BUCKET", "sheets")
	t.Setenv("OBJECT_STORAGE_MODE", "bogus")
	stubArchive(t)

	_, err := resolveArchive(logger.Nop())
	if got := archiveBootstrapErrorCode(err); got != ArchiveBootstrapErrorInvalidMode {
		t.Fatalf("code: want=%q got=%q", ArchiveBootstrapErrorInvalidMode, got)
	}
}

func TestResolveArchiveEmulatorMode(t *testing.T) {
	clearStorageEnv(t)
	t.Setenv("MIRROR_ARCHIVE_BUCKET", "sheets")
	t.Setenv("STORAGE_EMULATOR_HOST", "http://fake-gcs:4443")
	captured := stubArchive(t)

	got, err := resolveArchive(logger.Nop())
	if err != nil {
		t.Fatalf("resolveArchive: %v", err)
	}
	if got == nil {
		t.Fatalf("expected an archive")
	}
	if captured.Mode != gcp.ObjectStorageModeGCSEmulator || !captured.Inferred {
		t.Fatalf("mode: want inferred %q, got %q inferred=%v", gcp.ObjectStorageModeGCSEmulator, captured.Mode, captured.Inferred)
	}
	if captured.Bucket != "sheets" || captured.Prefix != "rendered" {
		t.Fatalf("bucket/prefix: got %q/%q", captured.Bucket, captured.Prefix)
	}
}
