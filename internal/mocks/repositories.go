package mocks

import (
	"context"

	"github.com/seu-repo/ocpp-csms/internal/domain"
)

// MockChargerRepository is a mock implementation of ChargerRepository
type MockChargerRepository struct {
	SaveFunc     func(ctx context.Context, c *domain.Charger) error
	FindByIDFunc func(ctx context.Context, id string) (*domain.Charger, error)
	FindAllFunc  func(ctx context.Context) ([]domain.Charger, error)
	DeleteFunc   func(ctx context.Context, id string) error
}

func (m *MockChargerRepository) Save(ctx context.Context, c *domain.Charger) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, c)
	}
	return nil
}

func (m *MockChargerRepository) FindByID(ctx context.Context, id string) (*domain.Charger, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockChargerRepository) FindAll(ctx context.Context) ([]domain.Charger, error) {
	if m.FindAllFunc != nil {
		return m.FindAllFunc(ctx)
	}
	return []domain.Charger{}, nil
}

func (m *MockChargerRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockIDTagRepository is a mock implementation of IDTagRepository
type MockIDTagRepository struct {
	SaveFunc      func(ctx context.Context, tag *domain.IDTag) error
	FindByTagFunc func(ctx context.Context, tag string) (*domain.IDTag, error)
	FindAllFunc   func(ctx context.Context) ([]domain.IDTag, error)
	DeleteFunc    func(ctx context.Context, tag string) error
}

func (m *MockIDTagRepository) Save(ctx context.Context, tag *domain.IDTag) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tag)
	}
	return nil
}

func (m *MockIDTagRepository) FindByTag(ctx context.Context, tag string) (*domain.IDTag, error) {
	if m.FindByTagFunc != nil {
		return m.FindByTagFunc(ctx, tag)
	}
	return nil, nil
}

func (m *MockIDTagRepository) FindAll(ctx context.Context) ([]domain.IDTag, error) {
	if m.FindAllFunc != nil {
		return m.FindAllFunc(ctx)
	}
	return []domain.IDTag{}, nil
}

func (m *MockIDTagRepository) Delete(ctx context.Context, tag string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, tag)
	}
	return nil
}

// MockTemplateRepository is a mock implementation of TemplateRepository
type MockTemplateRepository struct {
	SaveFunc     func(ctx context.Context, t *domain.DataTransferTemplate) error
	FindByIDFunc func(ctx context.Context, id int) (*domain.DataTransferTemplate, error)
	FindAllFunc  func(ctx context.Context) ([]domain.DataTransferTemplate, error)
	DeleteFunc   func(ctx context.Context, id int) error
}

func (m *MockTemplateRepository) Save(ctx context.Context, t *domain.DataTransferTemplate) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, t)
	}
	return nil
}

func (m *MockTemplateRepository) FindByID(ctx context.Context, id int) (*domain.DataTransferTemplate, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	return nil, nil
}

func (m *MockTemplateRepository) FindAll(ctx context.Context) ([]domain.DataTransferTemplate, error) {
	if m.FindAllFunc != nil {
		return m.FindAllFunc(ctx)
	}
	return []domain.DataTransferTemplate{}, nil
}

func (m *MockTemplateRepository) Delete(ctx context.Context, id int) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}
