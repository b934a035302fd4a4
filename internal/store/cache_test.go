package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-csms/internal/domain"
	"github.com/seu-repo/ocpp-csms/internal/mocks"
)

func TestStore_StatusSnapshotCache(t *testing.T) {
	cache := mocks.NewMockCache()
	st := New(newMemChargerRepository(), newMemIDTagRepository(), newMemTemplateRepository(), cache, zap.NewNop())
	ctx := context.Background()

	if _, ok := st.CachedStatus(ctx, "CP001"); ok {
		t.Error("Expected cache miss before any mutation")
	}

	err := st.ApplyMutation(ctx, "CP001", func(c *domain.Charger) error {
		c.Status = domain.StatusCharging
		return nil
	})
	if err != nil {
		t.Fatalf("ApplyMutation failed: %v", err)
	}

	status, ok := st.CachedStatus(ctx, "CP001")
	if !ok {
		t.Fatal("Expected snapshot cached after mutation")
	}
	if status != domain.StatusCharging {
		t.Errorf("Expected Charging, got %s", status)
	}

	if err := st.DeleteCharger(ctx, "CP001"); err != nil {
		t.Fatalf("DeleteCharger failed: %v", err)
	}
	if _, ok := st.CachedStatus(ctx, "CP001"); ok {
		t.Error("Expected snapshot dropped with the charger")
	}
}

func TestStore_SnapshotCacheFailuresAreNonFatal(t *testing.T) {
	cache := mocks.NewMockCache()
	cache.SetFunc = func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
		return errors.New("redis down")
	}
	cache.GetFunc = func(ctx context.Context, key string) (string, error) {
		return "", errors.New("redis down")
	}
	st := New(newMemChargerRepository(), newMemIDTagRepository(), newMemTemplateRepository(), cache, zap.NewNop())
	ctx := context.Background()

	// A broken cache must never fail the write path.
	err := st.ApplyMutation(ctx, "CP001", func(c *domain.Charger) error {
		c.Status = domain.StatusAvailable
		return nil
	})
	if err != nil {
		t.Fatalf("Expected mutation to survive cache failure, got %v", err)
	}
	if _, ok := st.CachedStatus(ctx, "CP001"); ok {
		t.Error("Expected cache miss when the backend errors")
	}

	c, err := st.GetCharger(ctx, "CP001")
	if err != nil || c == nil {
		t.Fatalf("Charger must still be readable from the repository: %v", err)
	}
}

func TestStore_ChargerRepositoryErrors(t *testing.T) {
	repoErr := errors.New("connection refused")
	repo := &mocks.MockChargerRepository{
		FindByIDFunc: func(ctx context.Context, id string) (*domain.Charger, error) {
			return nil, repoErr
		},
	}
	st := New(repo, newMemIDTagRepository(), newMemTemplateRepository(), nil, zap.NewNop())
	ctx := context.Background()

	if _, err := st.GetCharger(ctx, "CP001"); !errors.Is(err, repoErr) {
		t.Errorf("Expected load error surfaced from GetCharger, got %v", err)
	}
	err := st.ApplyMutation(ctx, "CP001", func(c *domain.Charger) error { return nil })
	if !errors.Is(err, repoErr) {
		t.Errorf("Expected load error surfaced from ApplyMutation, got %v", err)
	}

	// Load succeeds, save fails.
	repo.FindByIDFunc = func(ctx context.Context, id string) (*domain.Charger, error) {
		return nil, nil
	}
	repo.SaveFunc = func(ctx context.Context, c *domain.Charger) error {
		return repoErr
	}
	err = st.ApplyMutation(ctx, "CP001", func(c *domain.Charger) error { return nil })
	if !errors.Is(err, repoErr) {
		t.Errorf("Expected save error surfaced from ApplyMutation, got %v", err)
	}
}

func TestStore_IDTagRepositoryErrors(t *testing.T) {
	repoErr := errors.New("deadlock detected")
	tags := &mocks.MockIDTagRepository{
		FindByTagFunc: func(ctx context.Context, tag string) (*domain.IDTag, error) {
			return nil, repoErr
		},
	}
	st := New(newMemChargerRepository(), tags, newMemTemplateRepository(), nil, zap.NewNop())
	ctx := context.Background()

	if _, err := st.UpsertIDTag(ctx, "TAG1", domain.AuthAccepted, nil, ""); !errors.Is(err, repoErr) {
		t.Errorf("Expected lookup error surfaced from UpsertIDTag, got %v", err)
	}

	tags.FindByTagFunc = func(ctx context.Context, tag string) (*domain.IDTag, error) {
		return nil, nil
	}
	tags.SaveFunc = func(ctx context.Context, tag *domain.IDTag) error {
		return repoErr
	}
	if _, err := st.UpsertIDTag(ctx, "TAG1", domain.AuthAccepted, nil, ""); !errors.Is(err, repoErr) {
		t.Errorf("Expected save error surfaced from UpsertIDTag, got %v", err)
	}
}

func TestStore_TemplateRepositoryErrors(t *testing.T) {
	repoErr := errors.New("relation does not exist")
	templates := &mocks.MockTemplateRepository{
		SaveFunc: func(ctx context.Context, tpl *domain.DataTransferTemplate) error {
			return repoErr
		},
	}
	st := New(newMemChargerRepository(), newMemIDTagRepository(), templates, nil, zap.NewNop())

	err := st.SaveTemplate(context.Background(), &domain.DataTransferTemplate{Name: "ping"})
	if !errors.Is(err, repoErr) {
		t.Errorf("Expected save error surfaced from SaveTemplate, got %v", err)
	}
}
