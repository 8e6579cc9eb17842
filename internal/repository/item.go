package repository

import (
	"context"
	"time"

	"marketplace-escrow/internal/model"

	"gorm.io/gorm"
)

type ItemRepository interface {
	Create(ctx context.Context, tx *gorm.DB, item *model.Item) error
	FindByID(ctx context.Context, id string) (*model.Item, error)
	MarkSold(ctx context.Context, tx *gorm.DB, id string) error
	Restock(ctx context.Context, tx *gorm.DB, id string) (int64, error)
}

type itemRepoImpl struct {
	db *gorm.DB
}

func NewItemRepository(db *gorm.DB) ItemRepository {
	return &itemRepoImpl{db: db}
}

func (r *itemRepoImpl) Create(ctx context.Context, tx *gorm.DB, item *model.Item) error {
	return tx.WithContext(ctx).Create(item).Error
}

func (r *itemRepoImpl) FindByID(ctx context.Context, id string) (*model.Item, error) {
	var item model.Item
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *itemRepoImpl) MarkSold(ctx context.Context, tx *gorm.DB, id string) error {
	return tx.WithContext(ctx).Model(&model.Item{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.ItemStatusSold,
			"updated_at": time.Now(),
		}).Error
}

// Restock puts a refunded item back on sale. Zero rows is not an error:
// the item may have been deleted since the sale.
func (r *itemRepoImpl) Restock(ctx context.Context, tx *gorm.DB, id string) (int64, error) {
	result := tx.WithContext(ctx).Model(&model.Item{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.ItemStatusAvailable,
			"quantity":   gorm.Expr("quantity + ?", 1),
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}
