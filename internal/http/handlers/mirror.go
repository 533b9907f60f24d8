package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/sheetmirror-backend/internal/domain/mirror"
	"github.com/yungbote/sheetmirror-backend/internal/http/response"
	mirrormod "github.com/yungbote/sheetmirror-backend/internal/modules/mirror"
	"github.com/yungbote/sheetmirror-backend/internal/platform/apierr"
	"github.com/yungbote/sheetmirror-backend/internal/platform/ctxutil"
	"github.com/yungbote/sheetmirror-backend/internal/platform/logger"
)

// MirrorUsecases is the slice of mirror.Usecases the handler drives.
type MirrorUsecases interface {
	Learn(ctx context.Context, in mirrormod.LearnInput) (mirrormod.LearnOutput, error)
	Confirm(ctx context.Context, schema *types.Schema) (mirrormod.ConfirmOutput, error)
	Apply(ctx context.Context, in mirrormod.ApplyInput) (mirrormod.ApplyOutput, error)
	Download(ctx context.Context, name string) ([]byte, error)
}

type MirrorHandlerDeps struct {
	Log       *logger.Logger
	Mirror    MirrorUsecases
	UploadDir string
}

type MirrorHandler struct {
	log       *logger.Logger
	mirror    MirrorUsecases
	uploadDir string
}

func NewMirrorHandlerWithDeps(deps MirrorHandlerDeps) *MirrorHandler {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	dir := strings.TrimSpace(deps.UploadDir)
	if dir == "" {
		dir = os.TempDir()
	}
	return &MirrorHandler{
		log:       log.With("handler", "MirrorHandler"),
		mirror:    deps.Mirror,
		uploadDir: dir,
	}
}

// POST /api/mirror/learn
func (h *MirrorHandler) Learn(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.RespondError(c, http.StatusRequestEntityTooLarge, "upload_too_large",
				fmt.Errorf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		response.RespondError(c, http.StatusBadRequest, mirrormod.CodeValidationFailed, errors.New("missing multipart file field \"file\""))
		return
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		h.log.Error("create upload dir failed", "dir", h.uploadDir, "error", err)
		response.RespondError(c, http.StatusInternalServerError, "upload_failed", err)
		return
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext == "" {
		ext = ".xlsx"
	}
	path := filepath.Join(h.uploadDir, uuid.NewString()+ext)
	if err := c.SaveUploadedFile(fh, path); err != nil {
		_ = os.Remove(path)
		kv := append([]interface{}{"file", fh.Filename, "error", err}, ctxutil.LogFields(c.Request.Context())...)
		h.log.Error("save upload failed", kv...)
		response.RespondError(c, http.StatusInternalServerError, "upload_failed", err)
		return
	}

	out, err := h.mirror.Learn(c.Request.Context(), mirrormod.LearnInput{
		Path:      path,
		FileName:  fh.Filename,
		ClientKey: strings.TrimSpace(c.PostForm("client_key")),
		Sheet:     strings.TrimSpace(c.PostForm("sheet")),
	})
	if err != nil {
		respondMirrorError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /api/mirror/confirm
func (h *MirrorHandler) Confirm(c *gin.Context) {
	var schema types.Schema
	if err := c.ShouldBindJSON(&schema); err != nil {
		response.RespondError(c, http.StatusBadRequest, mirrormod.CodeValidationFailed, err)
		return
	}
	out, err := h.mirror.Confirm(c.Request.Context(), &schema)
	if err != nil {
		respondMirrorError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// POST /api/mirror/apply
func (h *MirrorHandler) Apply(c *gin.Context) {
	var in mirrormod.ApplyInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, mirrormod.CodeValidationFailed, err)
		return
	}
	out, err := h.mirror.Apply(c.Request.Context(), in)
	if err != nil {
		respondMirrorError(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/mirror/download/:name
func (h *MirrorHandler) Download(c *gin.Context) {
	name := c.Param("name")
	data, err := h.mirror.Download(c.Request.Context(), name)
	if err != nil {
		respondMirrorError(c, err)
		return
	}
	response.RespondAttachment(c, name, response.XLSXContentType, data)
}

func respondMirrorError(c *gin.Context, err error) {
	var ae *apierr.Error
	if errors.As(err, &ae) {
		response.RespondError(c, ae.Status, ae.Code, ae.Err)
		return
	}
	response.RespondError(c, http.StatusInternalServerError, "internal", err)
}
