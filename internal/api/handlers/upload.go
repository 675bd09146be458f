package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/dom/wartracker/internal/blob"
	"github.com/dom/wartracker/internal/metrics"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// Accepted upload types and the folder each lands in by default.
var uploadFolders = map[string]string{
	"application/pdf": "lists",
	"image/jpeg":      "photos",
	"image/png":       "photos",
	"image/webp":      "photos",
	"image/heic":      "photos",
}

type UploadHandler struct {
	store    blob.Store
	maxBytes int64
	metrics  *metrics.Metrics
	logger   *zap.Logger
}

func NewUploadHandler(store blob.Store, maxBytes int64, m *metrics.Metrics, logger *zap.Logger) *UploadHandler {
	return &UploadHandler{store: store, maxBytes: maxBytes, metrics: m, logger: logger}
}

type UploadResponse struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Upload stores the multipart "file" field and returns its public link. An
// optional "folder" field overrides the default folder.
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		h.metrics.Upload("unavailable")
		http.Error(w, "File uploads are not configured", http.StatusServiceUnavailable)
		return
	}

	// room for the multipart envelope around the file
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		h.reject(w, "upload.Upload", err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.metrics.Upload("rejected")
		http.Error(w, "A file field is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		h.metrics.Upload("rejected")
		http.Error(w, "File is too large", http.StatusRequestEntityTooLarge)
		return
	}

	mtype, err := mimetype.DetectReader(file)
	if err != nil {
		h.logger.Error("failed to read upload", zap.String("handler", "upload.Upload"), zap.Error(err))
		h.metrics.Upload("error")
		http.Error(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	contentType, folder, ok := acceptedType(mtype)
	if !ok {
		h.logger.Info("rejected upload type",
			zap.String("handler", "upload.Upload"),
			zap.String("filename", header.Filename),
			zap.String("detected", mtype.String()),
		)
		h.metrics.Upload("rejected")
		http.Error(w, "Unsupported file type "+mtype.String()+": upload a PDF or an image", http.StatusUnsupportedMediaType)
		return
	}

	if _, err := file.Seek(0, io.SeekStart); err != nil {
		h.metrics.Upload("error")
		http.Error(w, "Failed to read file", http.StatusInternalServerError)
		return
	}

	if f := r.FormValue("folder"); f != "" {
		folder = f
	}
	key := blob.ObjectKey(folder, header.Filename, mtype.Extension())

	url, err := h.store.Put(r.Context(), blob.Object{
		Key:         key,
		ContentType: contentType,
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		h.logger.Error("failed to store upload", zap.String("handler", "upload.Upload"), zap.String("key", key), zap.Error(err))
		h.metrics.Upload("error")
		http.Error(w, "Failed to upload file: "+err.Error(), http.StatusBadGateway)
		return
	}

	h.metrics.Upload("stored")
	writeJSON(w, http.StatusCreated, UploadResponse{
		URL:         url,
		Key:         key,
		ContentType: contentType,
		Size:        header.Size,
	})
}

func (h *UploadHandler) reject(w http.ResponseWriter, op string, err error) {
	h.metrics.Upload("rejected")

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		http.Error(w, "File is too large", http.StatusRequestEntityTooLarge)
		return
	}
	h.logger.Info("invalid multipart form", zap.String("handler", op), zap.Error(err))
	http.Error(w, "Invalid multipart form", http.StatusBadRequest)
}

func acceptedType(mtype *mimetype.MIME) (contentType, folder string, ok bool) {
	for t, f := range uploadFolders {
		if mtype.Is(t) {
			return t, f, true
		}
	}
	return "", "", false
}
