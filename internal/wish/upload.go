package wish

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"wishstash/internal/apperr"
	"wishstash/internal/auth"
)

var allowedUploadTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
}

// UploadHandler accepts wish attachments from authenticated users. The file
// type is decided by sniffing the content, not by the declared header.
type UploadHandler struct {
	dir     string
	maxSize int64
}

func NewUploadHandler(dir string, maxSize int64) *UploadHandler {
	if maxSize <= 0 {
		maxSize = 2 << 20
	}
	return &UploadHandler{dir: dir, maxSize: maxSize}
}

func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserFromContext(r.Context()); !ok {
		apperr.Write(w, r, apperr.InvalidToken("missing authenticated user"))
		return
	}

	if err := r.ParseMultipartForm(h.maxSize); err != nil {
		apperr.Write(w, r, apperr.Validation("invalid multipart form"))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		apperr.Write(w, r, apperr.Validation("file is required"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxSize+1))
	if err != nil {
		apperr.Write(w, r, apperr.Validation("failed to read file"))
		return
	}
	if len(data) == 0 {
		apperr.Write(w, r, apperr.Validation("file is empty"))
		return
	}
	if int64(len(data)) > h.maxSize {
		apperr.WriteProblem(w, r, apperr.Problem{
			Title:  "PAYLOAD_TOO_LARGE",
			Status: http.StatusRequestEntityTooLarge,
			Detail: "file exceeds allowed limit",
		})
		return
	}

	contentType := strings.ToLower(http.DetectContentType(data))
	ext, ok := allowedUploadTypes[contentType]
	if !ok {
		apperr.WriteProblem(w, r, apperr.Problem{
			Title:  "UNSUPPORTED_MEDIA_TYPE",
			Status: http.StatusUnsupportedMediaType,
			Detail: "file type is not supported",
		})
		return
	}

	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		sentry.CaptureException(err)
		apperr.Write(w, r, apperr.Internal("prepare upload dir", err))
		return
	}

	name := uuid.NewString() + ext
	if err := os.WriteFile(filepath.Join(h.dir, name), data, 0o644); err != nil {
		sentry.CaptureException(err)
		apperr.Write(w, r, apperr.Internal("store upload", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"filename": name,
		"size":     len(data),
	})
}
