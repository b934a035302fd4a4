package ports

import (
	"context"
	"time"

	"github.com/seu-repo/ocpp-csms/internal/domain"
)

// ChargerRepository persists the charger aggregate as a whole. FindByID
// returns (nil, nil) when the charger does not exist.
type ChargerRepository interface {
	Save(ctx context.Context, c *domain.Charger) error
	FindByID(ctx context.Context, id string) (*domain.Charger, error)
	FindAll(ctx context.Context) ([]domain.Charger, error)
	Delete(ctx context.Context, id string) error
}

// IDTagRepository persists the global authorization table.
type IDTagRepository interface {
	Save(ctx context.Context, tag *domain.IDTag) error
	FindByTag(ctx context.Context, tag string) (*domain.IDTag, error)
	FindAll(ctx context.Context) ([]domain.IDTag, error)
	Delete(ctx context.Context, tag string) error
}

// TemplateRepository persists operator-defined data-transfer templates.
type TemplateRepository interface {
	Save(ctx context.Context, t *domain.DataTransferTemplate) error
	FindByID(ctx context.Context, id int) (*domain.DataTransferTemplate, error)
	FindAll(ctx context.Context) ([]domain.DataTransferTemplate, error)
	Delete(ctx context.Context, id int) error
}

// Cache is the status-snapshot cache in front of the charger list.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping() error
	Close() error
}
