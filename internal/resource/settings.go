package resource

import (
	"context"

	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/store"
)

// Settings is the optimistic singleton resource over store.SettingsStore.
type Settings struct {
	*Resource[core.Settings]
	store store.SettingsStore
}

func NewSettings(s store.SettingsStore, opts Options[core.Settings]) *Settings {
	opts.Fetch = s.GetSettings
	opts.Empty = core.DefaultSettings
	opts.Strategy = Optimistic
	if opts.Name == "" {
		opts.Name = store.ResourceSettings
	}
	return &Settings{Resource: New(opts), store: s}
}

func (s *Settings) Update(ctx context.Context, next core.Settings) error {
	return s.Mutate(ctx, Mutation[core.Settings]{
		Op: log.OpUpdate,
		Apply: func(core.Settings) core.Settings {
			return cloneSettings(next)
		},
		Call: func(ctx context.Context) error {
			_, err := s.store.UpdateSettings(ctx, next)
			return err
		},
	})
}

// SetCategoryHidden adds or removes a category from the hidden list.
func (s *Settings) SetCategoryHidden(ctx context.Context, categoryID string, hidden bool) error {
	var next core.Settings
	return s.Mutate(ctx, Mutation[core.Settings]{
		Op: "hide_category",
		Apply: func(cur core.Settings) core.Settings {
			next = cloneSettings(cur)
			ids := make([]string, 0, len(cur.HiddenCategoryIDs)+1)
			for _, id := range cur.HiddenCategoryIDs {
				if id != categoryID {
					ids = append(ids, id)
				}
			}
			if hidden {
				ids = append(ids, categoryID)
			}
			next.HiddenCategoryIDs = ids
			return next
		},
		Call: func(ctx context.Context) error {
			_, err := s.store.UpdateSettings(ctx, next)
			return err
		},
	})
}

func cloneSettings(s core.Settings) core.Settings {
	s.HiddenCategoryIDs = append([]string{}, s.HiddenCategoryIDs...)
	return s
}
