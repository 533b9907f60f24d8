package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/yungbote/sheetmirror-backend/internal/data/db"
	mirrormod "github.com/yungbote/sheetmirror-backend/internal/modules/mirror"
	"github.com/yungbote/sheetmirror-backend/internal/platform/envutil"
	"github.com/yungbote/sheetmirror-backend/internal/realtime/bus"
)

type Config struct {
	Port        string
	LogMode     string
	ServiceName string
	Environment string
	Version     string

	OutputDir       string
	UploadDir       string
	MaxUploadMB     int
	CacheCapacity   int
	MatchThreshold  float64
	MatchCandidates int
	AllowedOrigins  []string

	MetricsAddr string
	// InstanceID tags invalidation events so an instance skips its own.
	InstanceID string

	Store db.Config
	Redis bus.RedisConfig
}

func LoadConfig() (Config, error) {
	cfg := Config{
		Port:        envutil.String("PORT", "8080"),
		LogMode:     envutil.String("LOG_MODE", "development"),
		ServiceName: envutil.String("OTEL_SERVICE_NAME", "sheetmirror"),
		Environment: envutil.String("APP_ENV", "local"),
		Version:     envutil.String("APP_VERSION", "dev"),

		OutputDir:       envutil.String("MIRROR_OUTPUT_DIR", "generated"),
		UploadDir:       envutil.String("MIRROR_UPLOAD_DIR", os.TempDir()),
		MaxUploadMB:     envutil.Int("MIRROR_MAX_UPLOAD_MB", 32),
		CacheCapacity:   envutil.Int("MIRROR_CACHE_CAPACITY", mirrormod.DefaultCacheCapacity),
		MatchThreshold:  envutil.Float("MIRROR_MATCH_THRESHOLD", mirrormod.DefaultMatchThreshold),
		MatchCandidates: envutil.Int("MIRROR_MATCH_CANDIDATES", mirrormod.DefaultMatchCandidates),
		AllowedOrigins:  splitList(envutil.String("CORS_ALLOWED_ORIGINS", "")),

		MetricsAddr: envutil.String("METRICS_ADDR", ""),
		InstanceID:  envutil.String("INSTANCE_ID", ""),

		Store: db.ConfigFromEnv(),
		Redis: bus.RedisConfigFromEnv(),
	}
	if cfg.InstanceID == "" {
		host, _ := os.Hostname()
		cfg.InstanceID = strings.Trim(host+"-"+uuid.NewString()[:8], "-")
	}
	if cfg.MaxUploadMB <= 0 {
		return cfg, fmt.Errorf("MIRROR_MAX_UPLOAD_MB must be positive, got %d", cfg.MaxUploadMB)
	}
	if cfg.MatchThreshold <= 0 || cfg.MatchThreshold > 1 {
		return cfg, fmt.Errorf("MIRROR_MATCH_THRESHOLD must be in (0,1], got %v", cfg.MatchThreshold)
	}
	return cfg, nil
}

func (c Config) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
