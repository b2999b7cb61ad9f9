package engine

import (
	"ambonmud/internal/events"
	"ambonmud/internal/ids"
)

// authResult is one completed login-FSM step, posted by an auth worker
// and drained by the engine at the top of each tick. newPasswordHash is
// set when the step finished a brand-new account's creation flow: the
// bcrypt hash is computed on the worker so the engine goroutine never
// runs the KDF itself.
type authResult struct {
	session         ids.SessionID
	out             []events.Outbound
	closeSession    bool
	newPasswordHash string
	hashErr         error
}

// authPool is the isolated CPU-bound worker pool password KDF work runs
// on. Sessions submit one job at a time (the engine serializes per
// session via the in-flight flag on sessionState), and workers post
// results to the engine's completion channel.
type authPool struct {
	jobs chan func()
	done chan struct{}
}

func newAuthPool(workers int) *authPool {
	p := &authPool{
		jobs: make(chan func(), workers*4),
		done: make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *authPool) worker() {
	for {
		select {
		case job := <-p.jobs:
			job()
		case <-p.done:
			return
		}
	}
}

// Submit queues a job without blocking, reporting whether it was
// accepted. A full queue means the auth funnel is saturated beyond its
// buffer; callers treat that the same as the concurrency cap.
func (p *authPool) Submit(job func()) bool {
	select {
	case p.jobs <- job:
		return true
	default:
		return false
	}
}

func (p *authPool) Close() { close(p.done) }
