package app

import (
	"errors"
	"fmt"

	"github.com/yungbote/sheetmirror-backend/internal/platform/gcp"
	"github.com/yungbote/sheetmirror-backend/internal/platform/logger"
)

var newArchive = gcp.NewArchive

type ArchiveBootstrapErrorCode string

const (
	ArchiveBootstrapErrorInvalidMode         ArchiveBootstrapErrorCode = "invalid_mode"
	ArchiveBootstrapErrorMissingEmulatorHost ArchiveBootstrapErrorCode = "missing_emulator_host"
	ArchiveBootstrapErrorInvalidEmulatorHost ArchiveBootstrapErrorCode = "invalid_emulator_host"
	ArchiveBootstrapErrorConnectFailed       ArchiveBootstrapErrorCode = "connect_failed"
)

type ArchiveBootstrapError struct {
	Code         ArchiveBootstrapErrorCode
	Mode         string
	EmulatorHost string
	Cause        error
}

func (e *ArchiveBootstrapError) Error() string {
	if e == nil {
		return "archive bootstrap failed"
	}
	return fmt.Sprintf(
		"archive bootstrap failed (code=%s mode=%q emulator_host=%q): %v",
		e.Code,
		e.Mode,
		e.EmulatorHost,
		e.Cause,
	)
}

func (e *ArchiveBootstrapError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// resolveArchive returns nil, nil when no archive bucket is configured, even
// if the rest of the storage config is invalid.
func resolveArchive(log *logger.Logger) (gcp.Archive, error) {
	cfg, err := gcp.ResolveObjectStorageConfigFromEnv()
	if !cfg.Enabled() {
		log.Info("Archive disabled; rendered files stay local")
		return nil, nil
	}
	if err != nil {
		classified := classifyArchiveBootstrapError(cfg, err)
		log.Error("Archive config invalid", "mode", cfg.Mode, "emulator_host", cfg.EmulatorHost, "error", classified)
		return nil, classified
	}

	log.Info(
		"Selecting archive provider",
		"mode", cfg.Mode,
		"inferred_mode", cfg.Inferred,
		"emulator_host", cfg.EmulatorHost,
		"bucket", cfg.Bucket,
	)
	archive, err := newArchive(log, cfg)
	if err != nil {
		classified := classifyArchiveBootstrapError(cfg, err)
		log.Error("Archive bootstrap failed", "mode", cfg.Mode, "error_code", archiveBootstrapErrorCode(classified), "error", classified)
		return nil, classified
	}
	return archive, nil
}

func classifyArchiveBootstrapError(cfg gcp.ObjectStorageConfig, err error) error {
	code := ArchiveBootstrapErrorConnectFailed
	var cfgErr *gcp.ObjectStorageConfigError
	if errors.As(err, &cfgErr) {
		switch {
		case cfgErr.Field == "OBJECT_STORAGE_MODE":
			code = ArchiveBootstrapErrorInvalidMode
		case cfgErr.Field == "STORAGE_EMULATOR_HOST" && cfgErr.Value == "":
			code = ArchiveBootstrapErrorMissingEmulatorHost
		case cfgErr.Field == "STORAGE_EMULATOR_HOST":
			code = ArchiveBootstrapErrorInvalidEmulatorHost
		}
	}
	return &ArchiveBootstrapError{
		Code:         code,
		Mode:         string(cfg.Mode),
		EmulatorHost: cfg.EmulatorHost,
		Cause:        err,
	}
}

func archiveBootstrapErrorCode(err error) ArchiveBootstrapErrorCode {
	var bootstrapErr *ArchiveBootstrapError
	if errors.As(err, &bootstrapErr) && bootstrapErr.Code != "" {
		return bootstrapErr.Code
	}
	return ArchiveBootstrapErrorConnectFailed
}
