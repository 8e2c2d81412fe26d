package resource

import (
	"context"

	"github.com/google/uuid"

	"finboard/internal/log"
	"finboard/internal/store"
)

// List is a Resource over one collection of records, optionally narrowed by a filter.
type List[T store.Record] struct {
	*Resource[[]T]
	coll   store.Collection[T]
	schema store.Schema[T]
}

// NewList builds a list resource. opts.Fetch and opts.Empty are filled in from coll and filter.
func NewList[T store.Record](coll store.Collection[T], schema store.Schema[T], filter store.Filter, opts Options[[]T]) *List[T] {
	opts.Fetch = func(ctx context.Context) ([]T, error) {
		return coll.List(ctx, filter)
	}
	opts.Empty = func() []T { return []T{} }
	if opts.Name == "" {
		opts.Name = schema.Name
	}
	return &List[T]{Resource: New(opts), coll: coll, schema: schema}
}

// Create adds a record. Optimistic lists show it under a temporary id until the reload.
func (l *List[T]) Create(ctx context.Context, rec T) (T, error) {
	var created T
	err := l.Mutate(ctx, Mutation[[]T]{
		Op: log.OpCreate,
		Apply: func(cur []T) []T {
			out := make([]T, 0, len(cur)+1)
			out = append(out, cur...)
			return append(out, l.schema.WithID(rec, "tmp-"+uuid.NewString()))
		},
		Call: func(ctx context.Context) error {
			var err error
			created, err = l.coll.Create(ctx, rec)
			return err
		},
		ReloadOnSuccess: true,
	})
	return created, err
}

func (l *List[T]) Update(ctx context.Context, id string, rec T) (T, error) {
	var updated T
	rec = l.schema.WithID(rec, id)
	err := l.Mutate(ctx, Mutation[[]T]{
		Op: log.OpUpdate,
		Apply: func(cur []T) []T {
			out := make([]T, len(cur))
			for i, r := range cur {
				if r.RecordID() == id {
					out[i] = rec
				} else {
					out[i] = r
				}
			}
			return out
		},
		Call: func(ctx context.Context) error {
			var err error
			updated, err = l.coll.Update(ctx, id, rec)
			return err
		},
	})
	return updated, err
}

func (l *List[T]) Delete(ctx context.Context, id string) error {
	return l.Mutate(ctx, Mutation[[]T]{
		Op: log.OpDelete,
		Apply: func(cur []T) []T {
			out := make([]T, 0, len(cur))
			for _, r := range cur {
				if r.RecordID() != id {
					out = append(out, r)
				}
			}
			return out
		},
		Call: func(ctx context.Context) error {
			return l.coll.Delete(ctx, id)
		},
	})
}
