package transfer

import (
	"context"
	"fmt"
	"io"
	"sync"

	"memberflow/shared/models"
)

// Notifier reports job lifecycle events to whoever requested the job.
// Implementations must not fail the job; delivery errors are theirs to log.
type Notifier interface {
	Started(ctx context.Context, job models.Job)
	Progress(ctx context.Context, job models.Job, added, target int)
	Finished(ctx context.Context, job models.Job, added int)
	Failed(ctx context.Context, job models.Job, reason string)
}

// ConsoleNotifier prints job events as plain lines, for CLI runs.
type ConsoleNotifier struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsoleNotifier(w io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{w: w}
}

func (c *ConsoleNotifier) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format+"\n", args...)
}

func (c *ConsoleNotifier) Started(_ context.Context, job models.Job) {
	c.printf("transfer %s -> %s started", job.SourceGroup, job.TargetGroup)
}

func (c *ConsoleNotifier) Progress(_ context.Context, _ models.Job, added, target int) {
	c.printf("added %d/%d", added, target)
}

func (c *ConsoleNotifier) Finished(_ context.Context, _ models.Job, added int) {
	c.printf("done, %d members added", added)
}

func (c *ConsoleNotifier) Failed(_ context.Context, _ models.Job, reason string) {
	c.printf("failed: %s", reason)
}
