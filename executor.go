package hydra

import (
	"sync"
)

// executor is the backing substrate an engine owns for its lifetime.
// Submit never blocks the caller beyond queue admission; Close drains
// outstanding work.
type executor interface {
	Submit(task func())
	Close()
}

// poolExecutor is a fixed-size worker pool. Work submitted after Close is
// run inline so late submissions are never lost.
type poolExecutor struct {
	tasks  chan func()
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func newPoolExecutor(workers int) *poolExecutor {
	if workers <= 0 {
		workers = 1
	}
	p := &poolExecutor{
		tasks: make(chan func(), workers*2),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

func (p *poolExecutor) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

func (p *poolExecutor) Submit(task func()) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		task()
		return
	}
	p.mu.Unlock()
	p.tasks <- task
}

func (p *poolExecutor) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	close(p.tasks)
	p.wg.Wait()
}

// spawnExecutor runs each task on its own goroutine. Close waits for
// everything in flight.
type spawnExecutor struct {
	wg sync.WaitGroup
}

func newSpawnExecutor() *spawnExecutor {
	return &spawnExecutor{}
}

func (s *spawnExecutor) Submit(task func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		task()
	}()
}

func (s *spawnExecutor) Close() {
	s.wg.Wait()
}

// span is a contiguous partition of an index range
type span struct {
	lo, hi int
}

// partitionRange splits [0, n) into at most parts contiguous spans,
// clamped so no span is smaller than MinPartitionSize (except the last).
func partitionRange(n, parts int) []span {
	if n <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if parts > n {
		parts = n
	}
	for parts > 1 && n/parts < MinPartitionSize {
		parts--
	}
	spans := make([]span, 0, parts)
	chunk := (n + parts - 1) / parts
	for lo := 0; lo < n; lo += chunk {
		hi := lo + chunk
		if hi > n {
			hi = n
		}
		spans = append(spans, span{lo: lo, hi: hi})
	}
	return spans
}
