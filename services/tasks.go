package services

import (
	"context"
	"fmt"
)

type TaskType string

const (
	TaskIngest   TaskType = "ingest"
	TaskOptimize TaskType = "optimize"
)

// Task is a unit of background work on one image record
type Task struct {
	Type    TaskType `json:"type"`
	ImageID uint     `json:"image_id"`
}

// Key identifies a task for deduplication: "id:type"
func (t Task) Key() string {
	return fmt.Sprintf("%d:%s", t.ImageID, t.Type)
}

func (t Task) Valid() error {
	switch t.Type {
	case TaskIngest, TaskOptimize:
	default:
		return fmt.Errorf("unknown task type '%s'", t.Type)
	}
	if t.ImageID == 0 {
		return fmt.Errorf("task '%s' has no image id", t.Type)
	}
	return nil
}

// TaskQueue accepts tasks for asynchronous execution. Delivery is at least
// once; handlers must tolerate duplicates.
type TaskQueue interface {
	Submit(ctx context.Context, task Task) error
}
