package handlers

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math/rand"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/camden-git/imagecropper/config"
	"github.com/camden-git/imagecropper/media"
	"github.com/camden-git/imagecropper/models"
)

const imagesPrefix = "/images/"

// ImageLookup finds image records by id
type ImageLookup interface {
	GetByID(id uint) (*models.Image, error)
}

// CropRenderer renders derivatives of Done records
type CropRenderer interface {
	Render(ctx context.Context, rec *models.Image, ratio media.Ratio, width int, ext string) ([]byte, error)
}

// CropHandler serves /images/{sharded id}/{ratio}/{width}.{ext} and the
// animated artifacts under /images/{sharded id}/animated/.
type CropHandler struct {
	Cfg      config.Config
	Images   ImageLookup
	Renderer CropRenderer
	Store    media.Store

	placeholderColors []color.RGBA
}

func NewCropHandler(cfg config.Config, images ImageLookup, renderer CropRenderer, store media.Store) (*CropHandler, error) {
	colors := make([]color.RGBA, 0, len(cfg.PlaceholderColors))
	for _, c := range cfg.PlaceholderColors {
		parsed, err := media.ParseHexColor(c)
		if err != nil {
			return nil, fmt.Errorf("invalid placeholder color: %w", err)
		}
		colors = append(colors, parsed)
	}
	if len(colors) == 0 {
		colors = append(colors, media.PendingColor)
	}
	if len(cfg.Ratios) == 0 {
		return nil, fmt.Errorf("no ratios configured")
	}
	return &CropHandler{
		Cfg:               cfg,
		Images:            images,
		Renderer:          renderer,
		Store:             store,
		placeholderColors: colors,
	}, nil
}

// cropRequest is a parsed crop or animated asset url
type cropRequest struct {
	idSegments []string
	id         uint
	ratioToken string
	width      int
	ext        string
	animated   bool
}

// parseCropPath splits the part of the url after /images/. ok is false for
// anything that is not a well formed crop or animated asset path.
func parseCropPath(rest string) (cropRequest, bool) {
	segments := strings.Split(strings.Trim(rest, "/"), "/")
	if len(segments) < 3 {
		return cropRequest{}, false
	}

	req := cropRequest{
		idSegments: segments[:len(segments)-2],
		ratioToken: segments[len(segments)-2],
	}
	for _, seg := range req.idSegments {
		if !isDigits(seg) {
			return cropRequest{}, false
		}
	}
	id, err := strconv.ParseUint(strings.Join(req.idSegments, ""), 10, 0)
	if err != nil || id == 0 {
		return cropRequest{}, false
	}
	req.id = uint(id)

	name, ext, found := strings.Cut(segments[len(segments)-1], ".")
	if !found || strings.Contains(ext, ".") {
		return cropRequest{}, false
	}
	req.ext = ext

	if req.ratioToken == string(media.AssetTypeAnimated) {
		if name != "original" || (ext != "gif" && ext != "jpg") {
			return cropRequest{}, false
		}
		req.animated = true
		return req, true
	}

	if _, ok := media.LookupExtension(ext); !ok || ext != strings.ToLower(ext) {
		return cropRequest{}, false
	}
	if !isDigits(name) || (len(name) > 1 && name[0] == '0') {
		return cropRequest{}, false
	}
	width, err := strconv.Atoi(name)
	if err != nil || width < 1 {
		return cropRequest{}, false
	}
	req.width = width
	return req, true
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// ServeHTTP handles GET /images/*
func (ch *CropHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	req, ok := parseCropPath(strings.TrimPrefix(r.URL.Path, imagesPrefix))
	if !ok {
		http.NotFound(w, r)
		return
	}

	// unsharded long ids are redirected to their canonical sharded form
	canonical := media.ShardID(req.id)
	if strings.Join(req.idSegments, "/") != strings.Join(canonical, "/") {
		if len(req.idSegments) == 1 && len(canonical) > 1 {
			target := imagesPrefix + path.Join(media.ShardPath(req.id), req.ratioToken, path.Base(r.URL.Path))
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		http.NotFound(w, r)
		return
	}

	if req.animated {
		ch.serveAnimated(w, r, req)
		return
	}
	ch.serveCrop(w, r, req)
}

func (ch *CropHandler) serveCrop(w http.ResponseWriter, r *http.Request, req cropRequest) {
	if req.width > ch.Cfg.MaxWidth {
		log.Warn().Int("width", req.width).Int("max_width", ch.Cfg.MaxWidth).Str("path", r.URL.Path).Msg("handlers: oversize crop request")
		http.Error(w, "requested width exceeds maximum", http.StatusInternalServerError)
		return
	}

	ratio, err := media.ParseRatio(req.ratioToken)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if !ratio.IsOriginal() && !ch.Cfg.HasRatio(ratio.Token) {
		http.NotFound(w, r)
		return
	}
	ext, _ := media.LookupExtension(req.ext)

	rec, err := ch.Images.GetByID(req.id)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error().Err(err).Uint("image_id", req.id).Msg("handlers: failed to load image")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if ch.Cfg.Placeholder {
			ch.writePlaceholder(w, http.StatusOK, ch.randomColor(), ch.placeholderRatio(ratio, true), req.width, ext)
			return
		}
		http.NotFound(w, r)
		return
	}

	switch rec.Status {
	case models.StatusPending:
		ch.writePlaceholder(w, http.StatusAccepted, media.PendingColor, ch.placeholderRatio(ratio, false), req.width, ext)
		return
	case models.StatusFailed:
		ch.writePlaceholder(w, http.StatusGone, media.FailureColor, ch.placeholderRatio(ratio, false), req.width, ext)
		return
	}

	data, err := ch.Renderer.Render(r.Context(), rec, ratio, req.width, ext.Name)
	if err != nil {
		log.Error().Err(err).Uint("image_id", rec.ID).Str("ratio", ratio.Token).Int("width", req.width).Msg("handlers: render failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	setCacheHeaders(w, 24*time.Hour)
	w.Header().Set("Content-Type", ext.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// placeholderRatio picks the ratio drawn on a placeholder. "original" has no
// fixed aspect, so a configured ratio stands in for it.
func (ch *CropHandler) placeholderRatio(requested media.Ratio, random bool) media.Ratio {
	if !requested.IsOriginal() {
		return requested
	}
	token := ch.Cfg.Ratios[0]
	if random {
		token = ch.Cfg.Ratios[rand.Intn(len(ch.Cfg.Ratios))]
	}
	ratio, err := media.ParseRatio(token)
	if err != nil {
		return media.Ratio{Token: "1x1", Width: 1, Height: 1}
	}
	return ratio
}

func (ch *CropHandler) randomColor() color.RGBA {
	return ch.placeholderColors[rand.Intn(len(ch.placeholderColors))]
}

func (ch *CropHandler) writePlaceholder(w http.ResponseWriter, status int, fill color.RGBA, ratio media.Ratio, width int, ext media.Extension) {
	img := media.SolidImage(width, ratio.HeightFor(width), fill, ratio.Token)
	data, err := media.Encode(img, ext, ch.Cfg.DefaultJPEGQuality)
	if err != nil {
		log.Error().Err(err).Msg("handlers: failed to encode placeholder")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
	w.Header().Set("Content-Type", ext.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(status)
	w.Write(data)
}

// serveAnimated serves the stored GIF or its still for animated records
func (ch *CropHandler) serveAnimated(w http.ResponseWriter, r *http.Request, req cropRequest) {
	rec, err := ch.Images.GetByID(req.id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			http.NotFound(w, r)
			return
		}
		log.Error().Err(err).Uint("image_id", req.id).Msg("handlers: failed to load image")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	if rec.Status != models.StatusDone || !rec.Animated {
		http.NotFound(w, r)
		return
	}

	name := media.AnimatedGIFName
	if req.ext == "jpg" {
		name = media.AnimatedStillName
	}
	fullPath, err := ch.Store.GetFullPath(ch.Store.AssetPath(rec.ID, media.AssetTypeAnimated, name))
	if err != nil {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	ServeAsset(w, r, fullPath, 24*time.Hour)
}
