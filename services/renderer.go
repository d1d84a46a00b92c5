package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/rs/zerolog/log"

	"github.com/camden-git/imagecropper/media"
	"github.com/camden-git/imagecropper/models"
)

// RendererOptions configure derivative rendering
type RendererOptions struct {
	MaxWidth       int
	DefaultQuality int
	CacheWidths    []int // widths written to the cache; empty caches every width
}

// Renderer produces cropped and scaled derivatives and caches them on disk
type Renderer struct {
	store media.Store
	opts  RendererOptions
}

func NewRenderer(store media.Store, opts RendererOptions) *Renderer {
	return &Renderer{store: store, opts: opts}
}

// Render returns the encoded derivative of rec for ratio at width in the
// requested extension ("jpg" or "png"). Cached bytes are returned unchanged.
func (r *Renderer) Render(ctx context.Context, rec *models.Image, ratio media.Ratio, width int, ext string) ([]byte, error) {
	if width > r.opts.MaxWidth {
		return nil, fmt.Errorf("%w: %d > %d", media.ErrOversizeRequest, width, r.opts.MaxWidth)
	}
	extension, ok := media.LookupExtension(ext)
	if !ok {
		return nil, fmt.Errorf("%w: '%s'", ErrUnsupportedExtension, ext)
	}
	if rec.Status != models.StatusDone {
		return nil, fmt.Errorf("%w: image %d is %s", ErrNotReady, rec.ID, rec.Status)
	}

	cachePath, err := r.store.DerivativePath(rec.ID, ratio, width, extension.Name)
	if err != nil {
		return nil, err
	}

	cached, err := r.store.ReadFile(cachePath)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("path", cachePath).Msg("renderer: unreadable cache entry, re-rendering")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	master, err := loadMaster(r.store, rec)
	if err != nil {
		return nil, err
	}

	out, err := media.CropAndScale(master, rec.Width, rec.Height, rec.Selection(ratio), ratio, width)
	if err != nil {
		return nil, fmt.Errorf("failed to crop image %d: %w", rec.ID, err)
	}

	data, err := media.Encode(out, extension, r.quality(rec))
	if err != nil {
		return nil, err
	}

	if r.cacheable(width) {
		if _, err := r.store.Save(cachePath, bytes.NewReader(data)); err != nil {
			// the response is still good even if caching failed
			log.Warn().Err(err).Str("path", cachePath).Msg("renderer: failed to cache derivative")
		}
	}
	return data, nil
}

func (r *Renderer) quality(rec *models.Image) int {
	if rec.JPEGQuality != nil {
		return *rec.JPEGQuality
	}
	return r.opts.DefaultQuality
}

func (r *Renderer) cacheable(width int) bool {
	return len(r.opts.CacheWidths) == 0 || slices.Contains(r.opts.CacheWidths, width)
}
