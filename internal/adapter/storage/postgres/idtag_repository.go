package postgres

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/ocpp-csms/internal/domain"
	"github.com/seu-repo/ocpp-csms/internal/ports"
)

type IDTagRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewIDTagRepository(db *gorm.DB, log *zap.Logger) ports.IDTagRepository {
	return &IDTagRepository{
		db:  db,
		log: log,
	}
}

func (r *IDTagRepository) Save(ctx context.Context, tag *domain.IDTag) error {
	result := r.db.WithContext(ctx).Save(tag)
	if result.Error != nil {
		r.log.Error("Failed to save id tag",
			zap.String("tag", tag.Tag),
			zap.Error(result.Error),
		)
		return result.Error
	}
	return nil
}

func (r *IDTagRepository) FindByTag(ctx context.Context, tag string) (*domain.IDTag, error) {
	var t domain.IDTag
	result := r.db.WithContext(ctx).First(&t, "tag = ?", tag)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &t, nil
}

func (r *IDTagRepository) FindAll(ctx context.Context) ([]domain.IDTag, error) {
	var tags []domain.IDTag
	result := r.db.WithContext(ctx).Order("tag").Find(&tags)
	if result.Error != nil {
		return nil, result.Error
	}
	return tags, nil
}

func (r *IDTagRepository) Delete(ctx context.Context, tag string) error {
	result := r.db.WithContext(ctx).Delete(&domain.IDTag{}, "tag = ?", tag)
	return result.Error
}
