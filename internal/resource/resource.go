// Package resource implements the per-resource loader, hydration state machine and mutation protocol.
//
// A Resource is owned by one session workspace. Activate hydrates it from the
// session cache (cold, fresh or stale) exactly once; Load fetches through the
// record store with a timeout and writes the result through to the cache;
// Mutate applies a change with the configured Strategy.
package resource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"finboard/internal/apperr"
	"finboard/internal/auth"
	"finboard/internal/cache"
	"finboard/internal/log"
)

// DefaultTimeout bounds every fetch.
const DefaultTimeout = 10 * time.Second

// Phase is the hydration state of a resource.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseCold
	PhaseCachedFresh
	PhaseCachedStale
	PhaseLive
)

func (p Phase) String() string {
	switch p {
	case PhaseCold:
		return "cold"
	case PhaseCachedFresh:
		return "cached_fresh"
	case PhaseCachedStale:
		return "cached_stale"
	case PhaseLive:
		return "live"
	default:
		return "idle"
	}
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Strategy selects how mutations reach the displayed state.
type Strategy int

const (
	// InvalidateAndReload calls the backend, then clears the cache and reloads.
	InvalidateAndReload Strategy = iota
	// Optimistic applies the change locally first and rolls back on failure.
	Optimistic
)

func (s Strategy) String() string {
	if s == Optimistic {
		return "optimistic"
	}
	return "invalidate_and_reload"
}

// State is a snapshot of what a resource currently shows.
type State[D any] struct {
	Data      D         `json:"data"`
	Loading   bool      `json:"loading"`
	Err       error     `json:"-"`
	Phase     Phase     `json:"phase"`
	Loaded    bool      `json:"loaded"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Options[D any] struct {
	Name  string
	Cache *cache.Cache[D]
	// SubKey selects the cache entry when the cache is sub-keyed.
	SubKey string
	Fetch  func(ctx context.Context) (D, error)
	// Normalize fills per-field fallbacks before data is shown or cached.
	Normalize func(D) D
	// Empty is the value shown when nothing was ever loaded. Defaults to the zero value.
	Empty    func() D
	Timeout  time.Duration
	Strategy Strategy
	// Auth is the session check run before every fetch and mutation.
	Auth auth.Authenticator
	// OnAuthRequired runs when the backend or the session check reports an expired session.
	OnAuthRequired func()
	// OnMutated runs after every successful mutation.
	OnMutated func()
	Logger    *log.Logger
}

// Resource holds the working copy of one resource for one session.
type Resource[D any] struct {
	opts   Options[D]
	logger *log.Logger

	mu        sync.Mutex
	state     State[D]
	closed    bool
	nextID    int
	listeners map[int]func(State[D])

	bg sync.WaitGroup
}

func New[D any](opts Options[D]) *Resource[D] {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Cache == nil {
		opts.Cache = cache.New[D](cache.NopStorage{}, cache.Options{Prefix: opts.Name})
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	r := &Resource[D]{
		opts:      opts,
		logger:    opts.Logger.WithComponent(log.ComponentResource).With(log.FieldResource, opts.Name),
		listeners: make(map[int]func(State[D])),
	}
	r.state.Data = r.empty()
	return r
}

func (r *Resource[D]) Name() string           { return r.opts.Name }
func (r *Resource[D]) Strategy() Strategy     { return r.opts.Strategy }
func (r *Resource[D]) CacheKey() string       { return r.opts.Cache.Key(r.opts.SubKey) }
func (r *Resource[D]) Cache() *cache.Cache[D] { return r.opts.Cache }

func (r *Resource[D]) empty() D {
	if r.opts.Empty != nil {
		return r.opts.Empty()
	}
	var zero D
	return zero
}

// State returns the current snapshot.
func (r *Resource[D]) State() State[D] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// OnChange registers a listener called after every state change. It returns an unsubscribe func.
func (r *Resource[D]) OnChange(fn func(State[D])) func() {
	r.mu.Lock()
	id := r.nextID
	r.nextID++
	r.listeners[id] = fn
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// commit applies change under the lock and notifies listeners. It returns false once closed.
func (r *Resource[D]) commit(change func(s *State[D])) bool {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return false
	}
	change(&r.state)
	snapshot := r.state
	fns := make([]func(State[D]), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		fn(snapshot)
	}
	return true
}

// Activate hydrates the resource from the cache. Only the first call has any effect.
//
// A miss loads synchronously with the loading flag set. A fresh hit is shown
// as is. A stale hit is shown and revalidated in the background without the
// loading flag.
func (r *Resource[D]) Activate(ctx context.Context) error {
	r.mu.Lock()
	if r.closed || r.state.Phase != PhaseIdle {
		r.mu.Unlock()
		return nil
	}
	hit, ok := r.opts.Cache.Get(r.opts.SubKey)
	switch {
	case !ok:
		r.state.Phase = PhaseCold
	case hit.IsStale:
		r.state.Phase = PhaseCachedStale
	default:
		r.state.Phase = PhaseCachedFresh
	}
	phase := r.state.Phase
	r.mu.Unlock()

	r.logger.DebugContext(ctx, "Resource activated", log.FieldPhase, phase.String(), log.FieldCacheKey, r.CacheKey())

	if phase == PhaseCold {
		r.commit(func(s *State[D]) { s.Loading = true })
		return r.load(ctx, true)
	}

	r.commit(func(s *State[D]) {
		s.Data = hit.Data
		s.Loaded = true
		s.UpdatedAt = hit.Timestamp
	})
	if phase == PhaseCachedStale {
		r.revalidate(ctx)
	}
	return nil
}

// Ensure activates the resource and retries a first load that failed earlier.
// A resource left cold without data is loaded again; one already loading is left alone.
func (r *Resource[D]) Ensure(ctx context.Context) error {
	if err := r.Activate(ctx); err != nil {
		return err
	}
	if st := r.State(); st.Phase == PhaseCold && !st.Loaded && !st.Loading {
		return r.Refresh(ctx)
	}
	return nil
}

// revalidate reloads in the background. The request context may end before the fetch does.
func (r *Resource[D]) revalidate(ctx context.Context) {
	bgCtx := context.WithoutCancel(ctx)
	r.bg.Add(1)
	go func() {
		defer r.bg.Done()
		if err := r.Load(bgCtx, true); err != nil {
			r.logger.WarnContext(bgCtx, "Background revalidation failed", log.FieldOperation, log.OpRevalidate, log.FieldError, err)
		}
	}()
}

// Refresh reloads with the loading flag visible.
func (r *Resource[D]) Refresh(ctx context.Context) error {
	return r.Load(ctx, false)
}

// Load fetches fresh data and writes it through to the cache.
// With skipLoadingFlag the loading flag is left untouched.
func (r *Resource[D]) Load(ctx context.Context, skipLoadingFlag bool) error {
	if !skipLoadingFlag {
		r.commit(func(s *State[D]) { s.Loading = true })
	}
	return r.load(ctx, !skipLoadingFlag)
}

func (r *Resource[D]) load(ctx context.Context, clearLoading bool) error {
	data, err := r.fetch(ctx)
	if err != nil {
		return r.fail(ctx, err, clearLoading)
	}
	if r.opts.Normalize != nil {
		data = r.opts.Normalize(data)
	}

	applied := r.commit(func(s *State[D]) {
		s.Data = data
		s.Err = nil
		s.Loaded = true
		s.Phase = PhaseLive
		s.UpdatedAt = time.Now()
		if clearLoading {
			s.Loading = false
		}
	})
	if !applied {
		r.logger.DebugContext(ctx, "Dropping result of closed resource")
		return nil
	}
	r.opts.Cache.Set(r.opts.SubKey, data)
	return nil
}

// fail records a load error. Displayed data is kept; with nothing loaded it becomes the empty value.
func (r *Resource[D]) fail(ctx context.Context, err error, clearLoading bool) error {
	r.commit(func(s *State[D]) {
		s.Err = err
		if clearLoading {
			s.Loading = false
		}
		if !s.Loaded {
			s.Data = r.empty()
		}
	})

	if apperr.IsAuthRequired(err) {
		r.logger.WarnContext(ctx, "Session expired during load", log.FieldOperation, log.OpLoad)
		r.authRequired()
		return err
	}
	r.logger.WarnContext(ctx, "Load failed", log.FieldOperation, log.OpLoad, log.FieldError, err)
	return err
}

func (r *Resource[D]) authRequired() {
	if r.opts.OnAuthRequired != nil {
		r.opts.OnAuthRequired()
	}
}

// session runs the session check and binds the user to ctx for the record store.
func (r *Resource[D]) session(ctx context.Context) (context.Context, error) {
	if r.opts.Auth == nil {
		return ctx, nil
	}
	u, err := r.opts.Auth.CurrentUser(ctx)
	if err != nil {
		return ctx, err
	}
	return auth.WithUser(ctx, u), nil
}

type fetchResult[D any] struct {
	data D
	err  error
}

// fetch runs the session check and the fetch against the timeout.
// A fetch outliving the timeout is abandoned, not aborted.
func (r *Resource[D]) fetch(ctx context.Context) (D, error) {
	var zero D
	if r.opts.Fetch == nil {
		return zero, fmt.Errorf("%s: no fetch configured", r.opts.Name)
	}

	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	done := make(chan fetchResult[D], 1)
	go func() {
		sctx, err := r.session(ctx)
		if err != nil {
			done <- fetchResult[D]{err: err}
			return
		}
		data, err := r.opts.Fetch(sctx)
		done <- fetchResult[D]{data: data, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil && errors.Is(res.err, context.DeadlineExceeded) {
			return zero, apperr.Wrap(apperr.CodeTimeout, r.opts.Name+" fetch timed out", res.err)
		}
		return res.data, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, apperr.Wrap(apperr.CodeTimeout, r.opts.Name+" fetch timed out", ctx.Err())
		}
		return zero, ctx.Err()
	}
}

// Wait blocks until background revalidations have finished.
func (r *Resource[D]) Wait() {
	r.bg.Wait()
}

// Close marks the resource as no longer interested. Results of in-flight fetches are dropped.
func (r *Resource[D]) Close() {
	r.mu.Lock()
	r.closed = true
	r.listeners = make(map[int]func(State[D]))
	r.mu.Unlock()
}
