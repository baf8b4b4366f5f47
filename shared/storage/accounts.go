package storage

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"memberflow/shared/models"
)

type FileAccounts struct {
	mu     sync.Mutex
	path   string
	logger *zap.Logger
}

func NewFileAccounts(path string, logger *zap.Logger) *FileAccounts {
	return &FileAccounts{path: path, logger: logger.Named("accounts")}
}

func (s *FileAccounts) load() []models.Account {
	var accounts []models.Account
	_ = readJSON(s.path, &accounts, s.logger)
	return accounts
}

func (s *FileAccounts) LoadAll(_ context.Context) ([]models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

func (s *FileAccounts) Save(_ context.Context, account models.Account) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := s.load()
	if slices.ContainsFunc(accounts, func(a models.Account) bool { return a.APIID == account.APIID }) {
		return false, nil
	}
	if account.Status == "" {
		account.Status = models.AccountActive
	}
	if err := writeJSON(s.path, append(accounts, account)); err != nil {
		return false, err
	}
	return true, nil
}

func (s *FileAccounts) ReplaceAll(_ context.Context, accounts []models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if accounts == nil {
		accounts = []models.Account{}
	}
	return writeJSON(s.path, accounts)
}

func (s *FileAccounts) Remove(_ context.Context, apiIDs ...int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	accounts := s.load()
	kept := slices.DeleteFunc(slices.Clone(accounts), func(a models.Account) bool {
		return slices.Contains(apiIDs, a.APIID)
	})
	removed := len(accounts) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := writeJSON(s.path, kept); err != nil {
		return 0, err
	}
	return removed, nil
}
