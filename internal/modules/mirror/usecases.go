package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
	"github.com/yungbote/sheetmirror-backend/internal/modules/mirror/classify"
	"github.com/yungbote/sheetmirror-backend/internal/modules/mirror/fingerprint"
	"github.com/yungbote/sheetmirror-backend/internal/modules/mirror/layout"
	"github.com/yungbote/sheetmirror-backend/internal/modules/mirror/render"
	"github.com/yungbote/sheetmirror-backend/internal/observability"
	"github.com/yungbote/sheetmirror-backend/internal/platform/apierr"
	"github.com/yungbote/sheetmirror-backend/internal/platform/ctxutil"
	"github.com/yungbote/sheetmirror-backend/internal/platform/gcp"
	"github.com/yungbote/sheetmirror-backend/internal/platform/logger"
)

const (
	DefaultMatchThreshold  = 0.8
	DefaultMatchCandidates = 50

	DownloadRoute = "/api/mirror/download/"
)

type UsecasesDeps struct {
	Log     *logger.Logger
	Store   *DefinitionStore
	Metrics *observability.Metrics

	// Archive is optional; rendered files are copied there and downloads
	// fall back to it.
	Archive gcp.Archive

	OutputDir       string
	MatchThreshold  float64
	MatchCandidates int
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	if deps.MatchThreshold <= 0 {
		deps.MatchThreshold = DefaultMatchThreshold
	}
	if deps.MatchCandidates <= 0 {
		deps.MatchCandidates = DefaultMatchCandidates
	}
	if deps.OutputDir == "" {
		deps.OutputDir = "generated"
	}
	deps.Log = deps.Log.With("service", "MirrorUsecases")
	return Usecases{deps: deps}
}

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

type LearnInput struct {
	// Path is the uploaded temp file. It is removed once learning finishes.
	Path      string
	FileName  string
	ClientKey string
	Sheet     string
	// ID is the suggested id for the draft; generated when empty.
	ID string
}

type MatchResult struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	// Kind is "grid_hash" for a structurally identical layout, else "similar".
	Kind string `json:"kind"`
}

type LearnOutput struct {
	DraftSchema    *types.Schema `json:"draftSchema"`
	DetectedLabels []string      `json:"detectedLabels"`
	Match          *MatchResult  `json:"match,omitempty"`
}

type ConfirmOutput struct {
	OK      bool     `json:"ok"`
	ID      string   `json:"id"`
	Removed []string `json:"removed,omitempty"`
}

type ApplyInput struct {
	ID     string         `json:"id"`
	Values types.ValueMap `json:"values"`
}

type ApplyOutput struct {
	OK           bool          `json:"ok"`
	FileName     string        `json:"fileName"`
	DownloadPath string        `json:"downloadPath"`
	Warnings     []Warning     `json:"warnings,omitempty"`
	Dropped      []render.Drop `json:"dropped,omitempty"`
}

func (u Usecases) start(ctx context.Context, op string) (context.Context, trace.Span, time.Time) {
	ctx, span := observability.Tracer().Start(ctx, "mirror."+op)
	return ctx, span, time.Now()
}

func (u Usecases) finish(ctx context.Context, op string, span trace.Span, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = Kind(err)
		if status == "" {
			status = "error"
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		kv := append([]interface{}{"op", op, "code", status, "error", err}, ctxutil.LogFields(ctx)...)
		if apierr.StatusOf(err) >= 500 {
			u.deps.Log.Error("mirror operation failed", kv...)
		} else {
			u.deps.Log.Warn("mirror operation rejected", kv...)
		}
	}
	span.End()
	u.deps.Metrics.ObserveMirrorOp(op, status, time.Since(started))
}

// Learn reverse-engineers an uploaded sheet into a draft schema. The upload
// at in.Path is deleted in every case.
func (u Usecases) Learn(ctx context.Context, in LearnInput) (out LearnOutput, err error) {
	ctx, span, started := u.start(ctx, "learn")
	defer func() { u.finish(ctx, "learn", span, started, err) }()
	defer u.removeUpload(ctx, in.Path)

	span.SetAttributes(attribute.String("mirror.file_name", in.FileName))

	learned, err := layout.LearnFile(in.Path, layout.Options{Sheet: in.Sheet})
	if err != nil {
		return LearnOutput{}, learnFailed(err)
	}
	u.deps.Metrics.ObserveLearnedCells(len(learned.Cells))

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}

	var (
		fp    types.Fingerprint
		draft *types.Schema
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		fp = fingerprint.Compute(learned)
		return nil
	})
	g.Go(func() error {
		draft = classify.Classify(learned, classify.Options{ID: id, ClientKey: in.ClientKey})
		return nil
	})
	if err := g.Wait(); err != nil {
		return LearnOutput{}, learnFailed(err)
	}
	draft.Fingerprint = fp

	out = LearnOutput{
		DraftSchema:    draft,
		DetectedLabels: learned.Labels,
		Match:          u.bestMatch(ctx, fp, in.ClientKey),
	}
	span.SetAttributes(
		attribute.Int("mirror.cells", len(learned.Cells)),
		attribute.Int("mirror.fields", len(draft.Fields)),
	)
	return out, nil
}

func (u Usecases) removeUpload(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		kv := append([]interface{}{"path", path, "error", err}, ctxutil.LogFields(ctx)...)
		u.deps.Log.Warn("failed to remove upload", kv...)
	}
}

func (u Usecases) bestMatch(ctx context.Context, fp types.Fingerprint, clientKey string) *MatchResult {
	if u.deps.Store == nil {
		return nil
	}
	candidates, err := u.deps.Store.Candidates(ctx, fp.GridHash, clientKey, u.deps.MatchCandidates)
	if err != nil {
		u.deps.Log.Warn("fingerprint match skipped", "error", err)
		return nil
	}
	var best *MatchResult
	for _, c := range candidates {
		ok, score := fingerprint.Match(fp, c.Fingerprint, u.deps.MatchThreshold)
		if !ok {
			continue
		}
		kind := "similar"
		if fp.GridHash != "" && fp.GridHash == c.Fingerprint.GridHash {
			kind = "grid_hash"
		}
		if best == nil || score > best.Score {
			best = &MatchResult{ID: c.ID, Score: score, Kind: kind}
		}
	}
	if best == nil {
		u.deps.Metrics.IncFingerprintMatch("none")
	} else {
		u.deps.Metrics.IncFingerprintMatch(best.Kind)
	}
	return best
}

// Confirm validates a reviewed schema, drops same-row duplicate labels and
// persists it under its id.
func (u Usecases) Confirm(ctx context.Context, schema *types.Schema) (out ConfirmOutput, err error) {
	ctx, span, started := u.start(ctx, "confirm")
	defer func() { u.finish(ctx, "confirm", span, started, err) }()

	s := schema.Clone()
	if err := normalizeAndValidate(s); err != nil {
		return ConfirmOutput{}, validationFailed(err)
	}
	span.SetAttributes(attribute.String("mirror.definition_id", s.ID))
	removed := dedupeSameRowLabels(s)

	if u.deps.Store == nil {
		return ConfirmOutput{}, storeFailed(errors.New("definition store not configured"))
	}
	if err := u.deps.Store.Put(ctx, s); err != nil {
		return ConfirmOutput{}, storeFailed(err)
	}
	return ConfirmOutput{OK: true, ID: s.ID, Removed: removed}, nil
}

// Apply renders a new document from a stored definition and values.
func (u Usecases) Apply(ctx context.Context, in ApplyInput) (out ApplyOutput, err error) {
	ctx, span, started := u.start(ctx, "apply")
	defer func() { u.finish(ctx, "apply", span, started, err) }()

	id := strings.TrimSpace(in.ID)
	if id == "" {
		return ApplyOutput{}, validationFailed(errors.New("missing id"))
	}
	span.SetAttributes(attribute.String("mirror.definition_id", id))
	if u.deps.Store == nil {
		return ApplyOutput{}, storeFailed(errors.New("definition store not configured"))
	}
	schema, err := u.deps.Store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return ApplyOutput{}, notFound(fmt.Errorf("sheet definition %q not found", id))
	}
	if err != nil {
		return ApplyOutput{}, storeFailed(err)
	}

	values, warnings := coerceValues(schema, in.Values)
	res, err := render.Render(schema, values, render.Options{OutputDir: u.deps.OutputDir})
	if err != nil {
		return ApplyOutput{}, renderFailed(err)
	}
	u.deps.Metrics.AddRenderDropped(len(res.Dropped))
	u.archive(ctx, res)

	return ApplyOutput{
		OK:           true,
		FileName:     res.FileName,
		DownloadPath: DownloadRoute + res.FileName,
		Warnings:     warnings,
		Dropped:      res.Dropped,
	}, nil
}

func (u Usecases) archive(ctx context.Context, res *render.Result) {
	if u.deps.Archive == nil {
		return
	}
	fh, err := os.Open(res.Path)
	if err != nil {
		u.deps.Log.Warn("archive skipped", "file", res.FileName, "error", err)
		return
	}
	defer fh.Close()
	if err := u.deps.Archive.Put(ctx, res.FileName, fh); err != nil {
		u.deps.Log.Warn("archive upload failed", "file", res.FileName, "error", err)
	}
}

// Download returns a generated file by bare name, from the output directory
// or else the archive.
func (u Usecases) Download(ctx context.Context, name string) (data []byte, err error) {
	ctx, span, started := u.start(ctx, "download")
	defer func() { u.finish(ctx, "download", span, started, err) }()

	path, err := u.resolveOutput(name)
	if err != nil {
		return nil, validationFailed(err)
	}
	data, err = os.ReadFile(path)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, storeFailed(err)
	}
	if u.deps.Archive == nil {
		return nil, notFound(fmt.Errorf("file %q not found", name))
	}
	rc, err := u.deps.Archive.Open(ctx, name)
	if errors.Is(err, gcp.ErrObjectNotFound) {
		return nil, notFound(fmt.Errorf("file %q not found", name))
	}
	if err != nil {
		return nil, storeFailed(err)
	}
	defer rc.Close()
	data, err = io.ReadAll(rc)
	if err != nil {
		return nil, storeFailed(err)
	}
	return data, nil
}

// resolveOutput maps a bare file name to a path inside the output directory.
func (u Usecases) resolveOutput(name string) (string, error) {
	if name == "" || name != strings.TrimSpace(name) {
		return "", errors.New("invalid file name")
	}
	if name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return "", errors.New("invalid file name")
	}
	if filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return "", errors.New("invalid file name")
	}
	root, err := filepath.Abs(u.deps.OutputDir)
	if err != nil {
		return "", fmt.Errorf("resolve output dir: %w", err)
	}
	path := filepath.Join(root, name)
	if filepath.Dir(path) != root {
		return "", errors.New("invalid file name")
	}
	return path, nil
}
