package workers

import (
	"context"
	"fmt"

	"github.com/camden-git/imagecropper/services"
)

type Ingester interface {
	Ingest(ctx context.Context, id uint) error
}

type Optimizer interface {
	Optimize(ctx context.Context, id uint) error
}

// Dispatcher routes tasks to the service that handles their type
type Dispatcher struct {
	ingester  Ingester
	optimizer Optimizer
}

func NewDispatcher(ingester Ingester, optimizer Optimizer) *Dispatcher {
	return &Dispatcher{ingester: ingester, optimizer: optimizer}
}

// Handle satisfies Handler
func (d *Dispatcher) Handle(ctx context.Context, task services.Task) error {
	switch task.Type {
	case services.TaskIngest:
		return d.ingester.Ingest(ctx, task.ImageID)
	case services.TaskOptimize:
		return d.optimizer.Optimize(ctx, task.ImageID)
	default:
		return fmt.Errorf("unknown task type '%s' for image %d", task.Type, task.ImageID)
	}
}
