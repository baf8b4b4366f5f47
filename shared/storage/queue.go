package storage

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"memberflow/shared/models"
)

type FileQueue struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

func NewFileQueue(path string, logger *zap.Logger) *FileQueue {
	return &FileQueue{path: path, logger: logger.Named("queue")}
}

func (q *FileQueue) load() []models.Job {
	var jobs []models.Job
	_ = readJSON(q.path, &jobs, q.logger)
	return jobs
}

func (q *FileQueue) Push(_ context.Context, job models.Job) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := append(q.load(), job)
	if err := writeJSON(q.path, jobs); err != nil {
		return 0, err
	}
	return len(jobs), nil
}

// Pop writes the shortened queue back before returning; from then on the job
// is owned by the caller only.
func (q *FileQueue) Pop(_ context.Context) (*models.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	jobs := q.load()
	if len(jobs) == 0 {
		return nil, nil
	}
	head := jobs[0]
	if err := writeJSON(q.path, jobs[1:]); err != nil {
		return nil, err
	}
	return &head, nil
}

func (q *FileQueue) Len(_ context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.load()), nil
}
