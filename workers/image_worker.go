package workers

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/camden-git/imagecropper/services"
)

var (
	ErrQueueFull = errors.New("task queue full")
	ErrStopped   = errors.New("task processor stopped")
)

// Handler executes one task
type Handler func(ctx context.Context, task services.Task) error

// TaskProcessor is an in-memory services.TaskQueue backed by a fixed pool of
// workers. A task whose "id:type" key is already queued or running is not
// queued again. Handlers get a context that Stop cancels.
type TaskProcessor struct {
	JobQueue chan services.Task
	Wg       sync.WaitGroup
	StopChan chan struct{}
	Pending  map[string]bool
	Mutex    sync.Mutex

	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
}

func NewTaskProcessor(queueSize int) *TaskProcessor {
	if queueSize <= 0 {
		queueSize = 100
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &TaskProcessor{
		JobQueue: make(chan services.Task, queueSize),
		StopChan: make(chan struct{}),
		Pending:  make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches numWorkers goroutines feeding queued tasks to handler
func (tp *TaskProcessor) Start(numWorkers int, handler Handler) {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	tp.Wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go tp.worker(i, handler)
	}
	log.Info().Int("workers", numWorkers).Int("queue_size", cap(tp.JobQueue)).Msg("workers: started task processor")
}

func (tp *TaskProcessor) worker(id int, handler Handler) {
	defer tp.Wg.Done()

	log.Debug().Int("worker", id).Msg("workers: worker started")
	for {
		select {
		case task, ok := <-tp.JobQueue:
			if !ok {
				log.Debug().Int("worker", id).Msg("workers: job queue closed, stopping")
				return
			}
			tp.run(id, task, handler)

		case <-tp.StopChan:
			log.Debug().Int("worker", id).Msg("workers: stop signal received")
			return
		}
	}
}

func (tp *TaskProcessor) run(id int, task services.Task, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Int("worker", id).Interface("panic", r).Str("task", task.Key()).Msg("workers: task panicked")
		}
		tp.Mutex.Lock()
		delete(tp.Pending, task.Key())
		tp.Mutex.Unlock()
	}()

	log.Debug().Int("worker", id).Str("type", string(task.Type)).Uint("image_id", task.ImageID).Msg("workers: received task")
	if err := handler(tp.ctx, task); err != nil {
		log.Error().Err(err).Int("worker", id).Str("type", string(task.Type)).Uint("image_id", task.ImageID).Msg("workers: task failed")
	}
}

// Submit queues a task unless an identical one is already pending
func (tp *TaskProcessor) Submit(ctx context.Context, task services.Task) error {
	if err := task.Valid(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	pendingKey := task.Key()

	tp.Mutex.Lock()
	defer tp.Mutex.Unlock()
	if tp.stopped {
		return ErrStopped
	}
	if tp.Pending[pendingKey] {
		log.Debug().Str("task", pendingKey).Msg("workers: task already pending")
		return nil
	}

	select {
	case tp.JobQueue <- task:
		tp.Pending[pendingKey] = true
		log.Debug().Str("task", pendingKey).Msg("workers: queued task")
		return nil
	default:
		log.Warn().Str("task", pendingKey).Msg("workers: job queue full")
		return ErrQueueFull
	}
}

// Stop signals the workers, cancels the context of in-flight tasks and waits
// for them to return. Tasks still queued are dropped; Pending records are
// recovered on the next start.
func (tp *TaskProcessor) Stop() {
	tp.Mutex.Lock()
	if tp.stopped {
		tp.Mutex.Unlock()
		return
	}
	tp.stopped = true
	tp.Mutex.Unlock()

	log.Info().Msg("workers: stopping task processor")
	close(tp.StopChan)
	tp.cancel()
	tp.Wg.Wait()
	log.Info().Msg("workers: all workers stopped")
}
