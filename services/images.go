package services

import (
	"context"
	"fmt"
	"net/url"
	"path"

	"github.com/rs/zerolog/log"

	"github.com/camden-git/imagecropper/media"
	"github.com/camden-git/imagecropper/models"
	"github.com/camden-git/imagecropper/repository"
)

// ImageService creates image records and edits their selections
type ImageService struct {
	repo  repository.ImageRepositoryInterface
	store media.Store
	queue TaskQueue
	opts  SourceOptions
}

func NewImageService(repo repository.ImageRepositoryInterface, store media.Store, queue TaskQueue, opts SourceOptions) *ImageService {
	return &ImageService{repo: repo, store: store, queue: queue, opts: opts}
}

// CreateFromURL creates a Pending record for a remote source and queues its
// ingestion. Only absolute http and https urls are accepted.
func (s *ImageService) CreateFromURL(ctx context.Context, rawURL string) (*models.Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: '%s' is not an absolute http(s) url", ErrInvalidURL, rawURL)
	}

	source := u.String()
	name := path.Base(u.Path)
	if name == "." || name == "/" {
		name = "source"
	}
	rec := &models.Image{
		Name:   name,
		Status: models.StatusPending,
		URL:    &source,
	}
	if err := s.repo.Create(rec); err != nil {
		return nil, err
	}
	log.Info().Uint("image_id", rec.ID).Str("url", source).Msg("images: created pending image")

	if err := s.queue.Submit(ctx, Task{Type: TaskIngest, ImageID: rec.ID}); err != nil {
		// the record stays Pending and is picked up again on restart
		log.Warn().Err(err).Uint("image_id", rec.ID).Msg("images: failed to submit ingest task")
	}
	return rec, nil
}

// CreateFromUpload stores an uploaded payload and returns a Done record
func (s *ImageService) CreateFromUpload(ctx context.Context, filename string, data []byte) (*models.Image, error) {
	if _, _, err := media.DetectFormat(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	rec := &models.Image{Name: filename, Status: models.StatusPending}
	if err := s.repo.Create(rec); err != nil {
		return nil, err
	}

	if err := writeAssets(s.store, rec, filename, data, s.opts); err != nil {
		removeAssets(s.store, rec)
		reason := err.Error()
		rec.Status = models.StatusFailed
		rec.FailureReason = &reason
		if saveErr := s.repo.Save(rec); saveErr != nil {
			log.Error().Err(saveErr).Uint("image_id", rec.ID).Msg("images: failed to mark upload failed")
		}
		return nil, err
	}

	rec.Status = models.StatusDone
	if err := s.repo.Save(rec); err != nil {
		return nil, err
	}
	log.Info().Uint("image_id", rec.ID).Str("name", rec.Name).Msg("images: stored uploaded image")

	if err := s.queue.Submit(ctx, Task{Type: TaskOptimize, ImageID: rec.ID}); err != nil {
		log.Warn().Err(err).Uint("image_id", rec.ID).Msg("images: failed to submit optimize task")
	}
	return rec, nil
}

// Get returns a record by id
func (s *ImageService) Get(id uint) (*models.Image, error) {
	return s.repo.GetByID(id)
}

// UpdateSelection stores rect for ratio and drops the cached crops of that
// ratio. The rectangle is kept as given and validated whenever it is used.
func (s *ImageService) UpdateSelection(ctx context.Context, id uint, ratio media.Ratio, rect media.Rect) (*models.Image, error) {
	if ratio.IsOriginal() {
		return nil, fmt.Errorf("%w: '%s' has no selection", media.ErrInvalidRatio, ratio.Token)
	}
	rec, err := s.repo.GetByID(id)
	if err != nil {
		return nil, err
	}

	rec.SetSelection(ratio, rect)
	if err := s.repo.UpdateSelections(rec); err != nil {
		return nil, err
	}
	if err := s.store.ClearCrops(id, ratio.Token); err != nil {
		return nil, fmt.Errorf("failed to clear crops for image %d: %w", id, err)
	}
	if !rect.Valid(rec.Width, rec.Height) {
		log.Info().Uint("image_id", id).Str("ratio", ratio.Token).Msg("images: stored selection is out of bounds, default crop will be used")
	}
	return rec, nil
}

// Renditions lists the cached derivatives of a record
func (s *ImageService) Renditions(id uint) ([]string, error) {
	if _, err := s.repo.GetByID(id); err != nil {
		return nil, err
	}
	return s.store.Renditions(id)
}
