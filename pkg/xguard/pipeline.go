package xguard

import (
	"context"
	"time"
)

// Outcome is what a Handler returns after running.
type Outcome int

const (
	// Continued passes control to the next handler in the chain.
	Continued Outcome = iota
	// Handled terminates the chain; PipelineContext.Result is final.
	Handled
	// Failed records an error and, by default, still continues to the
	// next handler; a handler marked stop-on-exception aborts the
	// chain instead, keeping the best-so-far result.
	Failed
)

// PipelineContext is the mutable state threaded through a handler
// chain. Later handlers observe prior handlers' modifications here
// rather than through return values, mirroring the "handler context"
// of spec §4.8.
type PipelineContext struct {
	Ctx context.Context

	CacheName  string
	Key        string
	Descriptor *Descriptor

	// Now is fixed at pipeline construction so every handler in one
	// invocation agrees on "the current time".
	Now time.Time

	// Envelope holds the current value, once a handler has produced
	// or read one.
	Envelope *Envelope

	// Loader, when set, is the method body / fallback the Breakdown
	// Loader handler invokes on a miss. Nil means no loader was
	// supplied (a bare cache read).
	Loader LoadFunc

	// Result is the best-so-far outcome: the envelope's unwrapped
	// value, or nil on a definite miss.
	Result []byte
	// Found reports whether Result represents a real hit (as opposed
	// to an absent value with no error).
	Found bool
	// ResultNull distinguishes a cached-absence sentinel hit (Found
	// true, Result nil, ResultNull true) from an ordinary hit whose
	// value happens to be empty (Found true, Result nil or empty,
	// ResultNull false).
	ResultNull bool

	// RejectedByFilter is set by the penetration handler when the
	// bloom filter short-circuits the chain.
	RejectedByFilter bool

	// Keys holds the set of envelope keys a Clear invocation enumerated
	// for cacheName; unused by Get and Evict.
	Keys []string

	// Errs accumulates Failed-outcome errors from every handler that
	// ran, in order; the chain does not abort because of them unless
	// a handler is marked stop-on-exception.
	Errs []error
}

// Handler is one step of a linear pipeline. Supports reports whether
// this handler applies to pc at all; Handle runs its step and reports
// what happened.
type Handler interface {
	Name() string
	Supports(pc *PipelineContext) bool
	Handle(pc *PipelineContext) (Outcome, error)
}

// StopOnException marks a Handler whose Failed outcome should abort
// the chain instead of the default log-and-continue policy.
type StopOnException interface {
	StopOnException() bool
}

// Chain is a deterministic, linear sequence of Handlers.
type Chain struct {
	handlers []Handler
}

// NewChain builds a Chain from handlers, in the order given.
func NewChain(handlers ...Handler) *Chain {
	return &Chain{handlers: handlers}
}

// Run drives pc through every handler that Supports it, in order,
// until one returns Handled, one marked StopOnException returns
// Failed, or the chain is exhausted.
func (c *Chain) Run(pc *PipelineContext) {
	for _, h := range c.handlers {
		if !h.Supports(pc) {
			continue
		}
		outcome, err := h.Handle(pc)
		switch outcome {
		case Handled:
			return
		case Failed:
			if err != nil {
				pc.Errs = append(pc.Errs, err)
			}
			if stopper, ok := h.(StopOnException); ok && stopper.StopOnException() {
				return
			}
		case Continued:
			// fall through to the next handler
		}
	}
}
