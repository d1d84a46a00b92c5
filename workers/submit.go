package workers

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/camden-git/imagecropper/services"
)

// submitRetryDelay is how long to wait before offering a task to a full local
// queue again
const submitRetryDelay = 200 * time.Millisecond

// SubmitWithRetry hands task to queue, waiting while the queue reports
// ErrQueueFull. It gives up only when ctx is done or on any other error.
func SubmitWithRetry(ctx context.Context, queue services.TaskQueue, task services.Task) error {
	for {
		err := queue.Submit(ctx, task)
		if !errors.Is(err, ErrQueueFull) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(submitRetryDelay):
		}
	}
}

// Resubmit queues taskType for every id, typically the work a previous process
// left unfinished. It returns how many tasks were accepted.
func Resubmit(ctx context.Context, queue services.TaskQueue, ids []uint, taskType services.TaskType) int {
	submitted := 0
	for _, id := range ids {
		if err := SubmitWithRetry(ctx, queue, services.Task{Type: taskType, ImageID: id}); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warn().Err(err).Uint("image_id", id).Str("type", string(taskType)).Msg("workers: failed to resubmit task")
			continue
		}
		submitted++
	}
	if len(ids) > 0 {
		log.Info().Int("count", submitted).Int("found", len(ids)).Str("type", string(taskType)).Msg("workers: resubmitted unfinished tasks")
	}
	return submitted
}
