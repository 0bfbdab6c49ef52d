package collect

import (
	"sync"
	"time"
)

// Pool bounds how many jobs run at once and spaces out their starts, so a
// single small municipal server never sees a burst of requests.
type Pool struct {
	semaphore chan struct{}
	interval  time.Duration
	wg        sync.WaitGroup
	mu        sync.Mutex
	lastStart time.Time
}

func NewPool(maxWorkers int, interval time.Duration) *Pool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Pool{
		semaphore: make(chan struct{}, maxWorkers),
		interval:  interval,
	}
}

// Submit blocks until a slot is free, then runs job in its own goroutine.
func (p *Pool) Submit(job func()) {
	p.SubmitHeld(func() <-chan struct{} {
		job()
		return nil
	})
}

// SubmitHeld is Submit for jobs that can give up on work still running in
// the background. Wait returns once job has returned, but the slot stays
// taken until the channel job returns is closed. A nil channel frees it at
// once.
func (p *Pool) SubmitHeld(job func() <-chan struct{}) {
	p.wg.Add(1)
	p.semaphore <- struct{}{}

	go func() {
		p.pace()
		finished := job()
		p.wg.Done()

		if finished != nil {
			<-finished
		}
		<-p.semaphore
	}()
}

func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) pace() {
	if p.interval <= 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if elapsed := time.Since(p.lastStart); elapsed < p.interval {
		time.Sleep(p.interval - elapsed)
	}
	p.lastStart = time.Now()
}
