package store

import (
	"context"
	"errors"

	"github.com/seantiz/parxe/internal/model"
)

// ErrInvalidTransition is returned when a task status transition is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// TaskStats holds aggregate execution statistics.
type TaskStats struct {
	Total         int            `json:"total"`
	CountByStatus map[string]int `json:"count_by_status"`
	CountByEngine map[string]int `json:"count_by_engine"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// Store defines the persistence operations for task records.
type Store interface {
	CreateTask(ctx context.Context, r *model.TaskRecord) error
	GetTask(ctx context.Context, id string) (*model.TaskRecord, error)
	ListTasks(ctx context.Context, limit, offset int) ([]*model.TaskRecord, int, error)
	UpdateTaskStatus(ctx context.Context, id, status string) error
	UpdateTask(ctx context.Context, r *model.TaskRecord) error
	GetTaskStats(ctx context.Context) (*TaskStats, error)
	Close() error
}
