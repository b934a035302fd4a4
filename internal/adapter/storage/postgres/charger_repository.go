package postgres

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/ocpp-csms/internal/domain"
	"github.com/seu-repo/ocpp-csms/internal/observability/telemetry"
	"github.com/seu-repo/ocpp-csms/internal/ports"
)

type ChargerRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewChargerRepository(db *gorm.DB, log *zap.Logger) ports.ChargerRepository {
	return &ChargerRepository{
		db:  db,
		log: log,
	}
}

func (r *ChargerRepository) Save(ctx context.Context, c *domain.Charger) error {
	started := time.Now()
	result := r.db.WithContext(ctx).Save(c)
	telemetry.DatabaseLatency.Observe(time.Since(started).Seconds())
	if result.Error != nil {
		r.log.Error("Failed to save charger",
			zap.String("charge_point_id", c.ID),
			zap.Error(result.Error),
		)
		return result.Error
	}
	return nil
}

func (r *ChargerRepository) FindByID(ctx context.Context, id string) (*domain.Charger, error) {
	var c domain.Charger
	started := time.Now()
	result := r.db.WithContext(ctx).First(&c, "id = ?", id)
	telemetry.DatabaseLatency.Observe(time.Since(started).Seconds())
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &c, nil
}

func (r *ChargerRepository) FindAll(ctx context.Context) ([]domain.Charger, error) {
	var chargers []domain.Charger
	result := r.db.WithContext(ctx).Order("id").Find(&chargers)
	if result.Error != nil {
		return nil, result.Error
	}
	return chargers, nil
}

func (r *ChargerRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&domain.Charger{}, "id = ?", id)
	return result.Error
}
