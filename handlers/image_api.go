package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/camden-git/imagecropper/config"
	"github.com/camden-git/imagecropper/media"
	"github.com/camden-git/imagecropper/models"
	"github.com/camden-git/imagecropper/services"
)

// multipart overhead allowed on top of MaxSourceBytes
const uploadOverhead = 1 << 20

// ImageManager is the part of services.ImageService the admin API needs
type ImageManager interface {
	CreateFromURL(ctx context.Context, rawURL string) (*models.Image, error)
	CreateFromUpload(ctx context.Context, filename string, data []byte) (*models.Image, error)
	Get(id uint) (*models.Image, error)
	UpdateSelection(ctx context.Context, id uint, ratio media.Ratio, rect media.Rect) (*models.Image, error)
	Renditions(id uint) ([]string, error)
}

// ImageAPIHandler serves the admin API under /api/images
type ImageAPIHandler struct {
	Cfg    config.Config
	Images ImageManager
}

type createFromURLRequest struct {
	URL string `json:"url"`
}

type renditionsResponse struct {
	ID         uint     `json:"id"`
	Renditions []string `json:"renditions"`
}

func parseImageID(r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "image_id"), 10, 0)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// writeServiceError maps service errors onto API responses
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		WriteAPIError(w, http.StatusNotFound, "image_not_found", "The requested image does not exist.")
	case errors.Is(err, services.ErrInvalidURL):
		WriteAPIError(w, http.StatusBadRequest, "invalid_url", err.Error())
	case errors.Is(err, services.ErrDecodeFailure):
		WriteAPIError(w, http.StatusBadRequest, "invalid_image", "The uploaded file is not a supported image.")
	case errors.Is(err, media.ErrInvalidRatio):
		WriteAPIError(w, http.StatusBadRequest, "invalid_ratio", err.Error())
	default:
		log.Error().Err(err).Msg("handlers: admin API request failed")
		WriteAPIError(w, http.StatusInternalServerError, "internal_error", "An internal error occurred.")
	}
}

// Upload handles POST /api/images with a multipart "image" file
func (h *ImageAPIHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.Cfg.MaxSourceBytes+uploadOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "Could not parse multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "missing_image", "The multipart field 'image' is required.")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.Cfg.MaxSourceBytes+1))
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_upload", "Could not read uploaded file.")
		return
	}
	if int64(len(data)) > h.Cfg.MaxSourceBytes {
		WriteAPIError(w, http.StatusRequestEntityTooLarge, "image_too_large", "The uploaded file exceeds the size limit.")
		return
	}

	rec, err := h.Images.CreateFromUpload(r.Context(), header.Filename, data)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// CreateFromURL handles POST /api/images/from-url
func (h *ImageAPIHandler) CreateFromURL(w http.ResponseWriter, r *http.Request) {
	var req createFromURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_request_body", "Invalid request body: "+err.Error())
		return
	}

	rec, err := h.Images.CreateFromURL(r.Context(), req.URL)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, rec)
}

// GetImage handles GET /api/images/{image_id}
func (h *ImageAPIHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := parseImageID(r)
	if !ok {
		WriteAPIError(w, http.StatusBadRequest, "invalid_image_id", "Image id must be a positive integer.")
		return
	}
	rec, err := h.Images.Get(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// UpdateSelection handles PUT /api/images/{image_id}/selections/{ratio}
func (h *ImageAPIHandler) UpdateSelection(w http.ResponseWriter, r *http.Request) {
	id, ok := parseImageID(r)
	if !ok {
		WriteAPIError(w, http.StatusBadRequest, "invalid_image_id", "Image id must be a positive integer.")
		return
	}

	ratio, err := media.ParseRatio(chi.URLParam(r, "ratio"))
	if err != nil || ratio.IsOriginal() || !h.Cfg.HasRatio(ratio.Token) {
		WriteAPIError(w, http.StatusBadRequest, "invalid_ratio", "Ratio must be one of the configured ratios.")
		return
	}

	var rect media.Rect
	if err := json.NewDecoder(r.Body).Decode(&rect); err != nil {
		WriteAPIError(w, http.StatusBadRequest, "invalid_request_body", "Invalid request body: "+err.Error())
		return
	}

	rec, err := h.Images.UpdateSelection(r.Context(), id, ratio, rect)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListRenditions handles GET /api/images/{image_id}/renditions
func (h *ImageAPIHandler) ListRenditions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseImageID(r)
	if !ok {
		WriteAPIError(w, http.StatusBadRequest, "invalid_image_id", "Image id must be a positive integer.")
		return
	}
	renditions, err := h.Images.Renditions(id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if renditions == nil {
		renditions = []string{}
	}
	writeJSON(w, http.StatusOK, renditionsResponse{ID: id, Renditions: renditions})
}
