package services

import (
	"context"

	"finboard/internal/amqp"
	"finboard/internal/auth"
	"finboard/internal/core"
	"finboard/internal/log"
	"finboard/internal/store"
)

// Publisher announces successful mutations to other processes.
type Publisher interface {
	PublishChange(ctx context.Context, msg *amqp.ChangeMessage) error
}

// RecordService decorates a collection so that every successful mutation publishes a change message.
// Publishing is best effort: a failed publish is logged and never fails the mutation.
type RecordService[T store.Record] struct {
	store.Collection[T]
	resource  string
	publisher Publisher
	logger    *log.Logger
}

func NewRecordService[T store.Record](resource string, coll store.Collection[T], publisher Publisher, logger *log.Logger) *RecordService[T] {
	if logger == nil {
		logger = log.Discard()
	}
	return &RecordService[T]{
		Collection: coll,
		resource:   resource,
		publisher:  publisher,
		logger:     logger.WithComponent(log.ComponentBackend),
	}
}

func (s *RecordService[T]) Create(ctx context.Context, rec T) (T, error) {
	created, err := s.Collection.Create(ctx, rec)
	if err != nil {
		return created, err
	}
	publish(ctx, s.publisher, s.logger, s.resource, log.OpCreate, created.RecordID())
	return created, nil
}

func (s *RecordService[T]) Update(ctx context.Context, id string, rec T) (T, error) {
	updated, err := s.Collection.Update(ctx, id, rec)
	if err != nil {
		return updated, err
	}
	publish(ctx, s.publisher, s.logger, s.resource, log.OpUpdate, id)
	return updated, nil
}

func (s *RecordService[T]) Delete(ctx context.Context, id string) error {
	if err := s.Collection.Delete(ctx, id); err != nil {
		return err
	}
	publish(ctx, s.publisher, s.logger, s.resource, log.OpDelete, id)
	return nil
}

// SettingsService is RecordService for the settings singleton.
type SettingsService struct {
	store.SettingsStore
	publisher Publisher
	logger    *log.Logger
}

func (s *SettingsService) UpdateSettings(ctx context.Context, v core.Settings) (core.Settings, error) {
	updated, err := s.SettingsStore.UpdateSettings(ctx, v)
	if err != nil {
		return updated, err
	}
	publish(ctx, s.publisher, s.logger, store.ResourceSettings, log.OpUpdate, "")
	return updated, nil
}

func publish(ctx context.Context, p Publisher, logger *log.Logger, resource, op, id string) {
	if p == nil {
		return
	}
	u, err := auth.CurrentUser(ctx)
	if err != nil {
		return
	}
	msg := amqp.NewChangeMessage(resource, op, id, u.ID)
	if err := p.PublishChange(ctx, msg); err != nil {
		logger.WarnContext(ctx, "Failed to publish change message",
			log.FieldResource, resource,
			log.FieldOperation, op,
			log.FieldRecordID, id,
			log.FieldError, err)
	}
}

// Publishing wraps every mutable port of rs. With a nil publisher rs is returned unchanged.
func Publishing(rs store.RecordStore, p Publisher, logger *log.Logger) store.RecordStore {
	if p == nil {
		return rs
	}
	if logger == nil {
		logger = log.Discard()
	}
	return store.RecordStore{
		Transactions: NewRecordService(store.ResourceTransactions, rs.Transactions, p, logger),
		Assets:       NewRecordService(store.ResourceAssets, rs.Assets, p, logger),
		Banks:        NewRecordService(store.ResourceBanks, rs.Banks, p, logger),
		Cards:        NewRecordService(store.ResourceCards, rs.Cards, p, logger),
		Categories:   NewRecordService(store.ResourceCategories, rs.Categories, p, logger),
		Budgets:      NewRecordService(store.ResourceBudgets, rs.Budgets, p, logger),
		Settings:     &SettingsService{SettingsStore: rs.Settings, publisher: p, logger: logger.WithComponent(log.ComponentBackend)},
		Reference:    rs.Reference,
	}
}
