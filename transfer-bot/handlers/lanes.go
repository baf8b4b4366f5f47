package handlers

import "sync"

// lanes runs work concurrently across keys and in arrival order within a key.
type lanes struct {
	mu      sync.Mutex
	pending map[int64][]func()
	wg      sync.WaitGroup
}

func newLanes() *lanes {
	return &lanes{pending: make(map[int64][]func())}
}

// Go queues fn behind the work already pending for key.
func (l *lanes) Go(key int64, fn func()) {
	l.wg.Add(1)
	l.mu.Lock()
	queue, running := l.pending[key]
	l.pending[key] = append(queue, fn)
	l.mu.Unlock()
	if !running {
		go l.drain(key)
	}
}

func (l *lanes) drain(key int64) {
	for {
		l.mu.Lock()
		queue := l.pending[key]
		if len(queue) == 0 {
			delete(l.pending, key)
			l.mu.Unlock()
			return
		}
		fn := queue[0]
		l.pending[key] = queue[1:]
		l.mu.Unlock()

		fn()
		l.wg.Done()
	}
}

func (l *lanes) Wait() {
	l.wg.Wait()
}
