package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// FileLedger keeps the ledger in memory and appends one ID per line to disk.
type FileLedger struct {
	mu   sync.Mutex
	seen map[int64]struct{}
	file *os.File
}

func OpenFileLedger(path string, logger *zap.Logger) (*FileLedger, error) {
	l := &FileLedger{seen: make(map[int64]struct{})}

	f, err := os.Open(path)
	switch {
	case err == nil:
		scanner := bufio.NewScanner(f)
		skipped := 0
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			id, err := strconv.ParseInt(line, 10, 64)
			if err != nil {
				skipped++
				continue
			}
			l.seen[id] = struct{}{}
		}
		scanErr := scanner.Err()
		f.Close()
		if scanErr != nil {
			return nil, fmt.Errorf("read ledger: %w", scanErr)
		}
		if skipped > 0 {
			logger.Named("ledger").Warn("skipped malformed ledger lines", zap.Int("count", skipped))
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	l.file, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger for append: %w", err)
	}
	return l, nil
}

func (l *FileLedger) Contains(_ context.Context, memberID int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[memberID]
	return ok, nil
}

// Add records the ID in memory first so a failed disk write still keeps it
// excluded for the life of the process.
func (l *FileLedger) Add(_ context.Context, memberID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.seen[memberID]; ok {
		return nil
	}
	l.seen[memberID] = struct{}{}
	if _, err := l.file.WriteString(strconv.FormatInt(memberID, 10) + "\n"); err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	return nil
}

func (l *FileLedger) Len(_ context.Context) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen), nil
}

func (l *FileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}
