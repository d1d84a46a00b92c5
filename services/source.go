package services

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"

	"github.com/camden-git/imagecropper/media"
	"github.com/camden-git/imagecropper/models"
)

// SourceOptions control how an ingested payload is turned into stored assets
type SourceOptions struct {
	MaxWidth       int // optimized master width cap
	DefaultQuality int // JPEG quality for the master and the animated still
}

// formatExtension maps a decoder name onto the file extension used on disk
func formatExtension(format string) string {
	switch format {
	case media.FormatJPEG:
		return "jpg"
	default:
		return format
	}
}

// sourceFilename picks the stored name for a payload, falling back to
// "source.<ext>" when nothing usable was supplied. Names without a raster
// extension, such as "download" or "image.php", get the decoded format's
// extension appended.
func sourceFilename(name, format string) string {
	name = path.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == "/" || name == ".." {
		return "source." + formatExtension(format)
	}
	if !media.IsRasterImage(name) {
		return name + "." + formatExtension(format)
	}
	return name
}

// writeAssets stores the raw source, the optimized master and, for GIFs, the
// animated artifacts, then fills in the record's paths and dimensions. The
// record must already have an id. Its status is left alone.
func writeAssets(store media.Store, rec *models.Image, name string, data []byte, opts SourceOptions) error {
	cfg, format, err := media.DetectFormat(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	// for GIFs this is the first frame
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	rec.Name = sourceFilename(name, format)
	rec.Width = cfg.Width
	rec.Height = cfg.Height
	rec.Animated = format == media.FormatGIF

	sourcePath, err := store.Save(store.AssetPath(rec.ID, media.AssetTypeSource, rec.Name), bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to store source: %w", err)
	}
	rec.SourcePath = sourcePath

	if rec.Animated {
		if err := writeAnimated(store, rec.ID, data, img, opts.DefaultQuality); err != nil {
			return err
		}
	}

	ext := media.ExtensionPNG
	if format == media.FormatJPEG {
		ext = media.ExtensionJPEG
	}
	master, err := media.Encode(media.FitWidth(img, opts.MaxWidth), ext, opts.DefaultQuality)
	if err != nil {
		return fmt.Errorf("failed to encode optimized master: %w", err)
	}
	optimizedPath, err := store.Save(store.AssetPath(rec.ID, media.AssetTypeOptimized, "optimized."+ext.Name), bytes.NewReader(master))
	if err != nil {
		return fmt.Errorf("failed to store optimized master: %w", err)
	}
	rec.OptimizedPath = optimizedPath

	if format == media.FormatJPEG {
		rec.ApplyMetadata(media.ExtractMetadata(data))
	}

	log.Debug().Uint("image_id", rec.ID).Str("format", format).
		Int("width", rec.Width).Int("height", rec.Height).
		Msg("services: stored source assets")
	return nil
}

// removeAssets deletes everything writeAssets may have stored for rec and
// clears its paths. Missing files are not an error.
func removeAssets(store media.Store, rec *models.Image) {
	paths := []string{
		rec.SourcePath,
		rec.OptimizedPath,
		store.AssetPath(rec.ID, media.AssetTypeAnimated, media.AnimatedGIFName),
		store.AssetPath(rec.ID, media.AssetTypeAnimated, media.AnimatedStillName),
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := store.Delete(p); err != nil {
			log.Warn().Err(err).Uint("image_id", rec.ID).Str("path", p).Msg("services: failed to remove partial asset")
		}
	}
	rec.SourcePath = ""
	rec.OptimizedPath = ""
}

// writeAnimated keeps the GIF bytes untouched and adds an opaque JPEG still of
// the first frame.
func writeAnimated(store media.Store, id uint, data []byte, firstFrame image.Image, quality int) error {
	if _, err := store.Save(store.AssetPath(id, media.AssetTypeAnimated, media.AnimatedGIFName), bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to store animated gif: %w", err)
	}
	still, err := media.Encode(media.ToRGB(firstFrame), media.ExtensionJPEG, quality)
	if err != nil {
		return fmt.Errorf("failed to encode animated still: %w", err)
	}
	if _, err := store.Save(store.AssetPath(id, media.AssetTypeAnimated, media.AnimatedStillName), bytes.NewReader(still)); err != nil {
		return fmt.Errorf("failed to store animated still: %w", err)
	}
	return nil
}

// masterPath returns where crops are cut from: the animated still for
// animated records, the optimized master when present, otherwise the source.
func masterPath(store media.Store, rec *models.Image) string {
	if rec.Animated {
		return store.AssetPath(rec.ID, media.AssetTypeAnimated, media.AnimatedStillName)
	}
	if rec.OptimizedPath != "" {
		return rec.OptimizedPath
	}
	return rec.SourcePath
}

// loadMaster reads and decodes the crop master of a record
func loadMaster(store media.Store, rec *models.Image) (image.Image, error) {
	p := masterPath(store, rec)
	if p == "" {
		return nil, fmt.Errorf("%w: image %d has no stored payload", ErrMissingSource, rec.ID)
	}
	data, err := store.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingSource, p)
		}
		return nil, fmt.Errorf("failed to read master '%s': %w", p, err)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	return img, nil
}
