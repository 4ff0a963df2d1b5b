package prerefresh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Task is the unit of work a pre-refresh job runs. It should observe
// ctx.Done() and return promptly on cancellation.
type Task func(ctx context.Context) error

type job struct {
	id     string
	key    string
	task   Task
	ctx    context.Context
	cancel context.CancelFunc
}

// Pool is a bounded worker pool enforcing at most one in-flight refresh
// job per key.
type Pool struct {
	mu       sync.Mutex
	inflight map[string]*job

	queue      chan *job
	rootCtx    context.Context
	rootCancel context.CancelFunc
	group      *errgroup.Group
	done       chan struct{}

	options *Options
	closed  atomic.Bool
}

// New creates a Pool and starts its worker goroutines, supervised by an
// errgroup.Group the same way pkg/lifecycle/xrun's Group supervises
// long-running service goroutines.
func New(opts ...Option) (*Pool, error) {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	rootCtx, rootCancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(rootCtx)
	_ = groupCtx // workers select on rootCtx directly; no worker returns an error that should cancel its siblings

	p := &Pool{
		inflight:   make(map[string]*job),
		queue:      make(chan *job, o.QueueDepth),
		rootCtx:    rootCtx,
		rootCancel: rootCancel,
		group:      group,
		done:       make(chan struct{}),
		options:    o,
	}

	for i := 0; i < o.Workers; i++ {
		group.Go(p.worker)
	}
	go func() {
		_ = group.Wait()
		close(p.done)
	}()
	return p, nil
}

func (p *Pool) worker() error {
	for {
		select {
		case j, ok := <-p.queue:
			if !ok {
				return nil
			}
			p.run(j)
		case <-p.rootCtx.Done():
			return nil
		}
	}
}

// Submit enqueues task for key. If a job is already in flight for key
// the submission is dropped: accepted is false, err is nil. If the
// queue is full the calling goroutine runs task itself (caller-runs),
// still returning accepted=true once the run completes.
func (p *Pool) Submit(key string, task Task) (accepted bool, err error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	if task == nil {
		return false, ErrNilTask
	}
	if p.closed.Load() {
		return false, ErrClosed
	}

	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		return false, ErrClosed
	}
	if _, exists := p.inflight[key]; exists {
		p.mu.Unlock()
		return false, nil
	}
	ctx, cancel := context.WithCancel(p.rootCtx)
	j := &job{id: uuid.NewString(), key: key, task: task, ctx: ctx, cancel: cancel}
	p.inflight[key] = j

	var queued bool
	select {
	case p.queue <- j:
		queued = true
	default:
	}
	p.mu.Unlock()

	if queued {
		return true, nil
	}

	p.options.Logger.Debug("prerefresh: queue full, running inline",
		"key", key, "job_id", j.id)
	p.run(j)
	return true, nil
}

// Cancel cancels the in-flight job for key, if any. Returns true if a
// job was found and cancelled.
func (p *Pool) Cancel(key string) bool {
	p.mu.Lock()
	j, ok := p.inflight[key]
	p.mu.Unlock()
	if !ok {
		return false
	}
	j.cancel()
	return true
}

// Len reports the number of currently in-flight jobs.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inflight)
}

func (p *Pool) run(j *job) {
	defer p.finish(j)
	defer func() {
		if r := recover(); r != nil {
			p.options.Logger.Error("prerefresh: job panicked",
				"key", j.key, "job_id", j.id, "panic", fmt.Sprint(r))
		}
	}()

	if err := j.task(j.ctx); err != nil && j.ctx.Err() == nil {
		p.options.Logger.Warn("prerefresh: job failed",
			"key", j.key, "job_id", j.id, "error", err)
	}
}

// finish removes j from the in-flight map, but only if it is still the
// current job for its key (it always is, since Submit rejects a second
// submission while one is in flight; the identity check is defensive).
func (p *Pool) finish(j *job) {
	p.mu.Lock()
	if current, ok := p.inflight[j.key]; ok && current == j {
		delete(p.inflight, j.key)
	}
	p.mu.Unlock()
	j.cancel()
}

// Shutdown stops accepting new jobs and waits up to the configured
// grace period (or until ctx is done, whichever comes first) for
// outstanding jobs to finish, then force-cancels them. Idempotent: a
// second call is a no-op.
func (p *Pool) Shutdown(ctx context.Context) error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}

	// Closing the queue (under the same lock Submit's enqueue uses) lets
	// every worker drain whatever is already buffered and then exit on
	// its own once the channel is empty, rather than racing rootCancel
	// against in-flight jobs. p.done only closes once every worker has
	// returned, i.e. once the drain is genuinely complete.
	p.mu.Lock()
	close(p.queue)
	p.mu.Unlock()

	graceCtx, cancel := context.WithTimeout(context.Background(), p.options.ShutdownGrace)
	defer cancel()

	select {
	case <-p.done:
		return nil
	case <-graceCtx.Done():
		p.rootCancel()
		<-p.done
		return graceCtx.Err()
	case <-ctx.Done():
		p.rootCancel()
		<-p.done
		return ctx.Err()
	}
}
