package repository

import (
	"context"
	"time"

	"marketplace-escrow/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WebhookEventRepository interface {
	// MarkProcessed records the event id; false means the event was
	// already processed and the delivery is a retry.
	MarkProcessed(ctx context.Context, tx *gorm.DB, eventID, eventType string) (bool, error)
}

type webhookEventRepoImpl struct {
	db *gorm.DB
}

func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &webhookEventRepoImpl{db: db}
}

func (r *webhookEventRepoImpl) MarkProcessed(ctx context.Context, tx *gorm.DB, eventID, eventType string) (bool, error) {
	event := model.WebhookEvent{
		EventID:     eventID,
		EventType:   eventType,
		ProcessedAt: time.Now(),
	}
	result := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&event)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
