package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/rs/zerolog/log"

	"github.com/camden-git/imagecropper/media"
	"github.com/camden-git/imagecropper/models"
	"github.com/camden-git/imagecropper/repository"
)

// IngestOptions configure remote fetches
type IngestOptions struct {
	UserAgent      string
	MaxSourceBytes int64
	Source         SourceOptions
}

// UserAgent builds the User-Agent sent with remote fetches
func UserAgent(publicURL string) string {
	return fmt.Sprintf("ImageCropper (%s)", publicURL)
}

// Ingestor downloads remote sources for Pending records and moves them to
// Done or Failed.
type Ingestor struct {
	repo   repository.ImageRepositoryInterface
	store  media.Store
	queue  TaskQueue
	client *http.Client
	opts   IngestOptions
}

func NewIngestor(repo repository.ImageRepositoryInterface, store media.Store, queue TaskQueue, client *http.Client, opts IngestOptions) *Ingestor {
	if client == nil {
		client = http.DefaultClient
	}
	return &Ingestor{
		repo:   repo,
		store:  store,
		queue:  queue,
		client: client,
		opts:   opts,
	}
}

// Ingest fetches and stores the source of a Pending record. Records in any
// other state are left untouched, so redelivered tasks are harmless. A fetch
// or decode failure is persisted as Failed and also returned.
func (in *Ingestor) Ingest(ctx context.Context, id uint) error {
	rec, err := in.repo.GetByID(id)
	if err != nil {
		return fmt.Errorf("failed to load image %d: %w", id, err)
	}
	if rec.Status != models.StatusPending {
		log.Debug().Uint("image_id", id).Str("status", rec.Status.String()).Msg("ingest: record not pending, skipping")
		return nil
	}
	if rec.URL == nil || *rec.URL == "" {
		return in.fail(rec, fmt.Errorf("%w: record has no source url", ErrFetchFailure))
	}

	data, name, err := in.fetch(ctx, *rec.URL)
	if err != nil {
		if ctx.Err() != nil {
			// shutting down; leave it Pending for recovery
			return err
		}
		return in.fail(rec, err)
	}

	if err := writeAssets(in.store, rec, name, data, in.opts.Source); err != nil {
		return in.fail(rec, err)
	}

	rec.Status = models.StatusDone
	rec.FailureReason = nil
	if err := in.repo.Save(rec); err != nil {
		return fmt.Errorf("failed to save ingested image %d: %w", id, err)
	}
	log.Info().Uint("image_id", id).Int("width", rec.Width).Int("height", rec.Height).
		Bool("animated", rec.Animated).Msg("ingest: image ready")

	if in.queue != nil {
		if err := in.queue.Submit(ctx, Task{Type: TaskOptimize, ImageID: id}); err != nil {
			log.Warn().Err(err).Uint("image_id", id).Msg("ingest: failed to submit optimize task")
		}
	}
	return nil
}

// fetch downloads url and returns its body together with the filename taken
// from the final (post-redirect) url.
func (in *Ingestor) fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	req.Header.Set("User-Agent", in.opts.UserAgent)

	resp, err := in.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrFetchFailure, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: %s returned status %d", ErrFetchFailure, url, resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if in.opts.MaxSourceBytes > 0 {
		body = io.LimitReader(resp.Body, in.opts.MaxSourceBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, "", fmt.Errorf("%w: reading body: %v", ErrFetchFailure, err)
	}
	if in.opts.MaxSourceBytes > 0 && int64(len(data)) > in.opts.MaxSourceBytes {
		return nil, "", fmt.Errorf("%w: body exceeds %d bytes", ErrFetchFailure, in.opts.MaxSourceBytes)
	}

	name := ""
	if resp.Request != nil && resp.Request.URL != nil {
		name = path.Base(resp.Request.URL.Path)
	}
	return data, name, nil
}

// fail records cause on the record and moves it to Failed. Assets written
// before the failure are removed.
func (in *Ingestor) fail(rec *models.Image, cause error) error {
	removeAssets(in.store, rec)
	reason := cause.Error()
	rec.Status = models.StatusFailed
	rec.FailureReason = &reason

	log.Warn().Err(cause).Uint("image_id", rec.ID).Msg("ingest: image failed")
	if err := in.repo.Save(rec); err != nil {
		return errors.Join(cause, fmt.Errorf("failed to save failed image %d: %w", rec.ID, err))
	}
	return cause
}
