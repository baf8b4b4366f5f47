package storage

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"memberflow/shared/models"
)

// FileToggle defaults to active when the file is missing or unreadable.
type FileToggle struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

func NewFileToggle(path string, logger *zap.Logger) *FileToggle {
	return &FileToggle{path: path, logger: logger.Named("settings")}
}

func (t *FileToggle) IsActive(_ context.Context) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	settings := models.Settings{IsActive: true}
	_ = readJSON(t.path, &settings, t.logger)
	return settings.IsActive, nil
}

func (t *FileToggle) SetActive(_ context.Context, active bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return writeJSON(t.path, models.Settings{IsActive: active})
}
