package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/sheetmirror-backend/internal/platform/envutil"
	"github.com/yungbote/sheetmirror-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *family
	apiLatency  *family
	apiInflight *family
	apiReqTotal *family
	apiReqError *family

	mirrorOps       *family
	mirrorLatency   *family
	cacheLookups    *family
	cacheEntries    *family
	renderDropped   *family
	learnedCells    *family
	fingerprintHits *family

	dbStats   *family
	redisUp   *family
	redisPing *family
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the process metrics, or nil when metrics are disabled. All
// methods are safe on a nil receiver.
func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	n := envutil.Int("METRICS_SCRAPE_INTERVAL_SECONDS", 10)
	if n <= 0 {
		n = 10
	}
	return time.Duration(n) * time.Second
}

func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("metrics enabled")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	opBuckets := []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}
	return &Metrics{
		apiRequests: newCounter("sm_api_requests_total", "Total API requests by method/route/status.", "method", "route", "status"),
		apiLatency: newHistogram(
			"sm_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			"method", "route", "status",
		),
		apiInflight: newGauge("sm_api_inflight_requests", "In-flight API requests."),
		apiReqTotal: newCounter("sm_api_requests_total_all", "Total API requests (all)."),
		apiReqError: newCounter("sm_api_requests_error_total", "Total API requests answered with a 5xx status."),

		mirrorOps:       newCounter("sm_mirror_operations_total", "Mirror operations by op/status.", "op", "status"),
		mirrorLatency:   newHistogram("sm_mirror_operation_duration_seconds", "Mirror operation latency in seconds by op/status.", opBuckets, "op", "status"),
		cacheLookups:    newCounter("sm_definition_cache_lookups_total", "Definition cache lookups by result.", "result"),
		cacheEntries:    newGauge("sm_definition_cache_entries", "Definitions currently cached."),
		renderDropped:   newCounter("sm_render_dropped_writes_total", "Cell writes skipped because the cell was already occupied."),
		learnedCells:    newHistogram("sm_learned_cells", "Populated cells per learned sheet.", []float64{10, 25, 50, 100, 250, 500, 1000, 5000}),
		fingerprintHits: newCounter("sm_fingerprint_matches_total", "Learn-time fingerprint matches by kind.", "kind"),

		dbStats:   newGauge("sm_db_stats", "database/sql pool statistics.", "stat"),
		redisUp:   newGauge("sm_redis_up", "1 when the last redis ping succeeded."),
		redisPing: newGauge("sm_redis_ping_seconds", "Latency of the last redis ping."),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	all := []*family{
		m.apiRequests, m.apiLatency, m.apiInflight, m.apiReqTotal, m.apiReqError,
		m.mirrorOps, m.mirrorLatency, m.cacheLookups, m.cacheEntries, m.renderDropped,
		m.learnedCells, m.fingerprintHits,
		m.dbStats, m.redisUp, m.redisPing,
	}
	for _, f := range all {
		if err := f.writeTo(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.add(1, method, route, status)
	m.apiLatency.observe(dur.Seconds(), method, route, status)
	m.apiReqTotal.add(1)
	if isServerErrorStatus(status) {
		m.apiReqError.add(1)
	}
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.add(1)
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.add(-1)
}

// ObserveMirrorOp records one learn/confirm/apply/download call. status is
// "ok" or the error code.
func (m *Metrics) ObserveMirrorOp(op, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if status == "" {
		status = "ok"
	}
	m.mirrorOps.add(1, op, status)
	m.mirrorLatency.observe(dur.Seconds(), op, status)
}

// ObserveCacheLookup counts a definition lookup: "hit", "miss" or "not_found".
func (m *Metrics) ObserveCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.add(1, result)
}

func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.cacheEntries.set(float64(n))
}

func (m *Metrics) AddRenderDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.renderDropped.add(float64(n))
}

func (m *Metrics) ObserveLearnedCells(n int) {
	if m == nil {
		return
	}
	m.learnedCells.observe(float64(n))
}

// IncFingerprintMatch counts learn-time matches: "grid_hash", "similar" or "none".
func (m *Metrics) IncFingerprintMatch(kind string) {
	if m == nil {
		return
	}
	m.fingerprintHits.add(1, kind)
}

func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	interval := scrapeInterval()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbStats.set(float64(stats.OpenConnections), "open_connections")
				m.dbStats.set(float64(stats.InUse), "in_use")
				m.dbStats.set(float64(stats.Idle), "idle")
				m.dbStats.set(float64(stats.WaitCount), "wait_count")
				m.dbStats.set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
				m.dbStats.set(float64(stats.MaxOpenConnections), "max_open_connections")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	interval := scrapeInterval()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = rdb.Close()
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.set(1)
				m.redisPing.set(time.Since(start).Seconds())
			}
		}
	}()
}
