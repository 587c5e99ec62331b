package transport

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"uniform-shop/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxImageSize is the largest accepted product image
const MaxImageSize = 5 << 20

// imageTypes maps accepted sniffed content types to file extensions
var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// UploadResponse points at the stored image
type UploadResponse struct {
	URL string `json:"url"`
}

// UploadHandler stores product images on local disk
type UploadHandler struct {
	dir       string
	urlPrefix string
	logger    *zap.Logger
}

// NewUploadHandler creates an UploadHandler writing into dir. Stored files
// are reachable under urlPrefix.
func NewUploadHandler(dir, urlPrefix string, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{
		dir:       dir,
		urlPrefix: urlPrefix,
		logger:    logger,
	}
}

// RegisterRoutes registers the admin upload route and serves stored files
func (h *UploadHandler) RegisterRoutes(r chi.Router, adminOnly func(http.Handler) http.Handler) {
	r.With(adminOnly).Post("/api/admin/uploads", h.Upload)
	r.Handle(h.urlPrefix+"/*", http.StripPrefix(h.urlPrefix, http.FileServer(http.Dir(h.dir))))
}

// Upload accepts one multipart "image" field
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxImageSize+(1<<20))
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, "image is too large")
			return
		}
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, _, err := r.FormFile("image")
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "image field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, MaxImageSize+1))
	if err != nil {
		middleware.RespondWithError(w, http.StatusBadRequest, "failed to read image")
		return
	}
	if len(data) > MaxImageSize {
		middleware.RespondWithError(w, http.StatusRequestEntityTooLarge, "image is too large")
		return
	}

	contentType := http.DetectContentType(data)
	ext, ok := imageTypes[contentType]
	if !ok {
		middleware.RespondWithErrorDetails(w, http.StatusUnsupportedMediaType, "unsupported image type",
			map[string]interface{}{"content_type": contentType})
		return
	}

	name := uuid.NewString() + ext
	if err := h.store(name, data); err != nil {
		h.logger.Error("Failed to store image", zap.String("file", name), zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to store image")
		return
	}

	h.logger.Info("Image uploaded", zap.String("file", name), zap.Int("bytes", len(data)))
	middleware.RespondWithJSON(w, http.StatusCreated, UploadResponse{URL: h.urlPrefix + "/" + name})
}

func (h *UploadHandler) store(name string, data []byte) error {
	if err := os.MkdirAll(h.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload dir: %w", err)
	}

	tmp, err := os.CreateTemp(h.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close image: %w", err)
	}

	return os.Rename(tmp.Name(), filepath.Join(h.dir, name))
}
