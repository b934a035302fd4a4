package postgres

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/ocpp-csms/internal/domain"
	"github.com/seu-repo/ocpp-csms/internal/ports"
)

type TemplateRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewTemplateRepository(db *gorm.DB, log *zap.Logger) ports.TemplateRepository {
	return &TemplateRepository{
		db:  db,
		log: log,
	}
}

func (r *TemplateRepository) Save(ctx context.Context, t *domain.DataTransferTemplate) error {
	result := r.db.WithContext(ctx).Save(t)
	if result.Error != nil {
		r.log.Error("Failed to save data transfer template",
			zap.String("name", t.Name),
			zap.Error(result.Error),
		)
		return result.Error
	}
	return nil
}

func (r *TemplateRepository) FindByID(ctx context.Context, id int) (*domain.DataTransferTemplate, error) {
	var t domain.DataTransferTemplate
	result := r.db.WithContext(ctx).First(&t, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &t, nil
}

func (r *TemplateRepository) FindAll(ctx context.Context) ([]domain.DataTransferTemplate, error) {
	var templates []domain.DataTransferTemplate
	result := r.db.WithContext(ctx).Order("id").Find(&templates)
	if result.Error != nil {
		return nil, result.Error
	}
	return templates, nil
}

func (r *TemplateRepository) Delete(ctx context.Context, id int) error {
	result := r.db.WithContext(ctx).Delete(&domain.DataTransferTemplate{}, "id = ?", id)
	return result.Error
}
