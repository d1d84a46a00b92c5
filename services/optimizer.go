package services

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/camden-git/imagecropper/media"
	"github.com/camden-git/imagecropper/models"
	"github.com/camden-git/imagecropper/repository"
)

// Optimizer picks the lowest acceptable JPEG quality for a finished record
type Optimizer struct {
	repo     repository.ImageRepositoryInterface
	store    media.Store
	settings media.QualitySettings
}

func NewOptimizer(repo repository.ImageRepositoryInterface, store media.Store, settings media.QualitySettings) *Optimizer {
	return &Optimizer{repo: repo, store: store, settings: settings}
}

// Optimize runs the quality search for a Done record and stores the result.
// JPEG sources that are already smaller than a default-quality re-encode keep
// a nil quality. Both outcomes mark the record optimized so startup recovery
// leaves it alone. Records that are not Done are skipped.
func (o *Optimizer) Optimize(ctx context.Context, id uint) error {
	rec, err := o.repo.GetByID(id)
	if err != nil {
		return fmt.Errorf("failed to load image %d: %w", id, err)
	}
	if rec.Status != models.StatusDone {
		log.Debug().Uint("image_id", id).Str("status", rec.Status.String()).Msg("optimizer: record not done, skipping")
		return nil
	}

	if rec.SourcePath == "" {
		return fmt.Errorf("%w: image %d", ErrMissingSource, id)
	}
	source, err := o.store.ReadFile(rec.SourcePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingSource, rec.SourcePath)
		}
		return fmt.Errorf("failed to read source of image %d: %w", id, err)
	}

	_, format, err := media.DetectFormat(source)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	if format == media.FormatJPEG {
		optimized, err := media.AlreadyOptimized(source, o.settings.Default)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDecodeFailure, err)
		}
		if optimized {
			if err := o.repo.MarkOptimized(id, nil); err != nil {
				return err
			}
			log.Info().Uint("image_id", id).Msg("optimizer: source already optimized, keeping default quality")
			return nil
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	master, err := loadMaster(o.store, rec)
	if err != nil {
		return err
	}
	quality, err := media.SearchQuality(master, o.settings)
	if err != nil {
		return fmt.Errorf("quality search failed for image %d: %w", id, err)
	}

	if err := o.repo.MarkOptimized(id, &quality); err != nil {
		return err
	}
	log.Info().Uint("image_id", id).Int("jpeg_quality", quality).Msg("optimizer: stored jpeg quality")
	return nil
}
