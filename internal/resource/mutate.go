package resource

import (
	"context"

	"finboard/internal/apperr"
	"finboard/internal/log"
)

// Mutation describes one change to a resource.
type Mutation[D any] struct {
	// Op names the change in logs.
	Op string
	// Apply predicts the new state for the optimistic strategy. It must not modify its argument.
	Apply func(D) D
	// Call performs the backend mutation.
	Call func(ctx context.Context) error
	// ReloadOnSuccess reloads after an optimistic success, for creates that need server fields.
	ReloadOnSuccess bool
}

// Mutate runs m with the resource's strategy. Errors are returned after any rollback.
func (r *Resource[D]) Mutate(ctx context.Context, m Mutation[D]) error {
	if r.opts.Strategy == Optimistic && m.Apply != nil {
		return r.mutateOptimistic(ctx, m)
	}
	return r.mutateAndReload(ctx, m)
}

func (r *Resource[D]) call(ctx context.Context, m Mutation[D]) error {
	sctx, err := r.session(ctx)
	if err != nil {
		return err
	}
	return m.Call(sctx)
}

func (r *Resource[D]) mutateAndReload(ctx context.Context, m Mutation[D]) error {
	if err := r.call(ctx, m); err != nil {
		return r.mutationFailed(ctx, m, err)
	}
	r.opts.Cache.ClearAll()
	r.mutated(ctx, m)
	return r.Load(ctx, false)
}

func (r *Resource[D]) mutateOptimistic(ctx context.Context, m Mutation[D]) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	loaded := r.state.Loaded
	r.mu.Unlock()

	// Apply must start from real data. Without it the prediction would be
	// built on the empty value and written back over the stored record.
	if !loaded {
		if err := r.Load(ctx, false); err != nil {
			return err
		}
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	before := r.state
	raw, present := r.opts.Cache.Snapshot(r.opts.SubKey)
	r.mu.Unlock()

	var next D
	r.commit(func(s *State[D]) {
		next = m.Apply(s.Data)
		s.Data = next
		s.Loaded = true
		r.opts.Cache.Set(r.opts.SubKey, next)
	})

	if err := r.call(ctx, m); err != nil {
		// State and cache go back together, under the same lock.
		r.commit(func(s *State[D]) {
			*s = before
			r.opts.Cache.Restore(r.opts.SubKey, raw, present)
		})
		r.logger.WarnContext(ctx, "Optimistic mutation rolled back", log.FieldOperation, log.OpRollback, "mutation", m.Op)
		return r.mutationFailed(ctx, m, err)
	}

	r.mutated(ctx, m)
	if m.ReloadOnSuccess {
		return r.Load(ctx, true)
	}
	return nil
}

func (r *Resource[D]) mutationFailed(ctx context.Context, m Mutation[D], err error) error {
	if apperr.IsAuthRequired(err) {
		r.authRequired()
		return err
	}
	r.logger.WarnContext(ctx, "Mutation failed", "mutation", m.Op, log.FieldError, err)
	return err
}

func (r *Resource[D]) mutated(ctx context.Context, m Mutation[D]) {
	r.logger.DebugContext(ctx, "Mutation applied", "mutation", m.Op, "strategy", r.opts.Strategy.String())
	if r.opts.OnMutated != nil {
		r.opts.OnMutated()
	}
}
