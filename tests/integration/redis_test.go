package integration

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// TestRedis_BasicOperations tests basic Redis operations
func TestRedis_BasicOperations(t *testing.T) {
	env := SetupTestEnvironment(t)
	if env == nil || env.Redis == nil {
		t.Skip("Redis not available")
	}

	FlushRedis(t, env.Redis)
	ctx := context.Background()

	// Set and Get
	t.Run("SetGet", func(t *testing.T) {
		err := env.Redis.Set(ctx, "test:key", "test-value", time.Minute).Err()
		if err != nil {
			t.Fatalf("Failed to set key: %v", err)
		}

		val, err := env.Redis.Get(ctx, "test:key").Result()
		if err != nil {
			t.Fatalf("Failed to get key: %v", err)
		}

		if val != "test-value" {
			t.Errorf("Expected 'test-value', got '%s'", val)
		}
	})

	// Set with expiration
	t.Run("SetWithExpiration", func(t *testing.T) {
		err := env.Redis.Set(ctx, "test:expiring", "value", 100*time.Millisecond).Err()
		if err != nil {
			t.Fatalf("Failed to set key: %v", err)
		}

		// Verify it exists
		_, err = env.Redis.Get(ctx, "test:expiring").Result()
		if err != nil {
			t.Fatalf("Key should exist: %v", err)
		}

		// Wait for expiration
		time.Sleep(150 * time.Millisecond)

		// Verify it's gone
		_, err = env.Redis.Get(ctx, "test:expiring").Result()
		if err != redis.Nil {
			t.Error("Key should have expired")
		}
	})

	// Delete
	t.Run("Delete", func(t *testing.T) {
		env.Redis.Set(ctx, "test:delete", "value", time.Minute)

		err := env.Redis.Del(ctx, "test:delete").Err()
		if err != nil {
			t.Fatalf("Failed to delete key: %v", err)
		}

		_, err = env.Redis.Get(ctx, "test:delete").Result()
		if err != redis.Nil {
			t.Error("Key should have been deleted")
		}
	})

	// Exists
	t.Run("Exists", func(t *testing.T) {
		env.Redis.Set(ctx, "test:exists", "value", time.Minute)

		exists, err := env.Redis.Exists(ctx, "test:exists").Result()
		if err != nil {
			t.Fatalf("Failed to check exists: %v", err)
		}

		if exists != 1 {
			t.Error("Key should exist")
		}

		exists, err = env.Redis.Exists(ctx, "test:nonexistent").Result()
		if err != nil {
			t.Fatalf("Failed to check exists: %v", err)
		}

		if exists != 0 {
			t.Error("Key should not exist")
		}
	})
}

// TestRedis_StatusSnapshotCache tests caching charger status snapshots
func TestRedis_StatusSnapshotCache(t *testing.T) {
	env := SetupTestEnvironment(t)
	if env == nil || env.Redis == nil {
		t.Skip("Redis not available")
	}

	FlushRedis(t, env.Redis)
	ctx := context.Background()

	type Snapshot struct {
		ID       string `json:"id"`
		Vendor   string `json:"vendor"`
		Model    string `json:"model"`
		Status   string `json:"status"`
		MeterWh  int64  `json:"meter_wh"`
		Charging bool   `json:"charging"`
	}

	// Store snapshot
	t.Run("StoreSnapshot", func(t *testing.T) {
		snap := Snapshot{
			ID:       "CP001",
			Vendor:   "ABB",
			Model:    "Terra 184",
			Status:   "Charging",
			MeterWh:  12500,
			Charging: true,
		}

		data, err := json.Marshal(snap)
		if err != nil {
			t.Fatalf("Failed to marshal: %v", err)
		}

		err = env.Redis.Set(ctx, "charger:status:CP001", data, time.Minute).Err()
		if err != nil {
			t.Fatalf("Failed to store snapshot: %v", err)
		}
	})

	// Retrieve snapshot
	t.Run("RetrieveSnapshot", func(t *testing.T) {
		data, err := env.Redis.Get(ctx, "charger:status:CP001").Bytes()
		if err != nil {
			t.Fatalf("Failed to get snapshot: %v", err)
		}

		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			t.Fatalf("Failed to unmarshal: %v", err)
		}

		if snap.Status != "Charging" || snap.MeterWh != 12500 {
			t.Errorf("Unexpected snapshot: %+v", snap)
		}
	})

	// Invalidate on state change
	t.Run("InvalidateSnapshot", func(t *testing.T) {
		if err := env.Redis.Del(ctx, "charger:status:CP001").Err(); err != nil {
			t.Fatalf("Failed to invalidate: %v", err)
		}

		_, err := env.Redis.Get(ctx, "charger:status:CP001").Result()
		if err != redis.Nil {
			t.Error("Snapshot should be gone after invalidation")
		}
	})
}

// TestRedis_HashOperations tests Redis hash operations
func TestRedis_HashOperations(t *testing.T) {
	env := SetupTestEnvironment(t)
	if env == nil || env.Redis == nil {
		t.Skip("Redis not available")
	}

	FlushRedis(t, env.Redis)
	ctx := context.Background()

	// HSet
	t.Run("HSet", func(t *testing.T) {
		err := env.Redis.HSet(ctx, "charger:CP001:identity", map[string]interface{}{
			"vendor":   "ABB",
			"model":    "Terra 184",
			"firmware": "1.0.3",
		}).Err()

		if err != nil {
			t.Fatalf("Failed to HSet: %v", err)
		}
	})

	// HGet
	t.Run("HGet", func(t *testing.T) {
		vendor, err := env.Redis.HGet(ctx, "charger:CP001:identity", "vendor").Result()
		if err != nil {
			t.Fatalf("Failed to HGet: %v", err)
		}

		if vendor != "ABB" {
			t.Errorf("Expected 'ABB', got '%s'", vendor)
		}
	})

	// HGetAll
	t.Run("HGetAll", func(t *testing.T) {
		data, err := env.Redis.HGetAll(ctx, "charger:CP001:identity").Result()
		if err != nil {
			t.Fatalf("Failed to HGetAll: %v", err)
		}

		if len(data) != 3 {
			t.Errorf("Expected 3 fields, got %d", len(data))
		}

		if data["firmware"] != "1.0.3" {
			t.Errorf("Expected firmware '1.0.3', got '%s'", data["firmware"])
		}
	})

	// HIncrBy
	t.Run("HIncrBy", func(t *testing.T) {
		env.Redis.HSet(ctx, "stats:daily", "boot_notifications", 0)

		newVal, err := env.Redis.HIncrBy(ctx, "stats:daily", "boot_notifications", 1).Result()
		if err != nil {
			t.Fatalf("Failed to HIncrBy: %v", err)
		}

		if newVal != 1 {
			t.Errorf("Expected 1, got %d", newVal)
		}

		newVal, err = env.Redis.HIncrBy(ctx, "stats:daily", "boot_notifications", 5).Result()
		if err != nil {
			t.Fatalf("Failed to HIncrBy: %v", err)
		}

		if newVal != 6 {
			t.Errorf("Expected 6, got %d", newVal)
		}
	})
}

// TestRedis_SetOperations tests tracking connected chargers in a set
func TestRedis_SetOperations(t *testing.T) {
	env := SetupTestEnvironment(t)
	if env == nil || env.Redis == nil {
		t.Skip("Redis not available")
	}

	FlushRedis(t, env.Redis)
	ctx := context.Background()

	// SAdd
	t.Run("SAdd", func(t *testing.T) {
		err := env.Redis.SAdd(ctx, "chargers:connected", "CP001", "CP002", "CP003").Err()
		if err != nil {
			t.Fatalf("Failed to SAdd: %v", err)
		}
	})

	// SMembers
	t.Run("SMembers", func(t *testing.T) {
		members, err := env.Redis.SMembers(ctx, "chargers:connected").Result()
		if err != nil {
			t.Fatalf("Failed to SMembers: %v", err)
		}

		if len(members) != 3 {
			t.Errorf("Expected 3 members, got %d", len(members))
		}
	})

	// SIsMember
	t.Run("SIsMember", func(t *testing.T) {
		isMember, err := env.Redis.SIsMember(ctx, "chargers:connected", "CP001").Result()
		if err != nil {
			t.Fatalf("Failed to SIsMember: %v", err)
		}

		if !isMember {
			t.Error("CP001 should be connected")
		}

		isMember, err = env.Redis.SIsMember(ctx, "chargers:connected", "CP999").Result()
		if err != nil {
			t.Fatalf("Failed to SIsMember: %v", err)
		}

		if isMember {
			t.Error("CP999 should not be connected")
		}
	})

	// SRem on disconnect
	t.Run("SRem", func(t *testing.T) {
		err := env.Redis.SRem(ctx, "chargers:connected", "CP002").Err()
		if err != nil {
			t.Fatalf("Failed to SRem: %v", err)
		}

		isMember, _ := env.Redis.SIsMember(ctx, "chargers:connected", "CP002").Result()
		if isMember {
			t.Error("CP002 should have been removed")
		}
	})
}

// TestRedis_PubSub tests Redis pub/sub for charger events
func TestRedis_PubSub(t *testing.T) {
	env := SetupTestEnvironment(t)
	if env == nil || env.Redis == nil {
		t.Skip("Redis not available")
	}

	FlushRedis(t, env.Redis)
	ctx := context.Background()

	// Subscribe and publish
	t.Run("PubSub", func(t *testing.T) {
		pubsub := env.Redis.Subscribe(ctx, "charger:events")
		defer pubsub.Close()

		// Wait for subscription to be ready
		_, err := pubsub.Receive(ctx)
		if err != nil {
			t.Fatalf("Failed to subscribe: %v", err)
		}

		// Publish in goroutine
		go func() {
			time.Sleep(100 * time.Millisecond)
			env.Redis.Publish(ctx, "charger:events", `{"type":"status_changed","charger_id":"CP001"}`)
		}()

		// Receive message with timeout
		ch := pubsub.Channel()
		select {
		case msg := <-ch:
			var event struct {
				Type      string `json:"type"`
				ChargerID string `json:"charger_id"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				t.Fatalf("Failed to decode event: %v", err)
			}
			if event.Type != "status_changed" || event.ChargerID != "CP001" {
				t.Errorf("Unexpected event: %+v", event)
			}
		case <-time.After(2 * time.Second):
			t.Error("Timeout waiting for message")
		}
	})
}

// TestRedis_Caching tests caching patterns
func TestRedis_Caching(t *testing.T) {
	env := SetupTestEnvironment(t)
	if env == nil || env.Redis == nil {
		t.Skip("Redis not available")
	}

	FlushRedis(t, env.Redis)
	ctx := context.Background()

	// Cache-aside pattern
	t.Run("CacheAside", func(t *testing.T) {
		key := "cache:charger:CP001"

		// Cache miss
		_, err := env.Redis.Get(ctx, key).Result()
		if err != redis.Nil {
			t.Error("Expected cache miss")
		}

		// Simulate fetching from DB and caching
		data := `{"id":"CP001","vendor":"ABB"}`
		err = env.Redis.Set(ctx, key, data, 5*time.Minute).Err()
		if err != nil {
			t.Fatalf("Failed to cache: %v", err)
		}

		// Cache hit
		cached, err := env.Redis.Get(ctx, key).Result()
		if err != nil {
			t.Fatalf("Cache hit failed: %v", err)
		}

		if cached != data {
			t.Errorf("Cached data mismatch")
		}
	})

	// Write-through pattern
	t.Run("WriteThrough", func(t *testing.T) {
		key := "cache:charger:CP001:meter"

		// Update cache and DB together (simulated)
		meter := "12500"
		err := env.Redis.Set(ctx, key, meter, 5*time.Minute).Err()
		if err != nil {
			t.Fatalf("Failed to update cache: %v", err)
		}

		// Verify cache is updated
		cached, _ := env.Redis.Get(ctx, key).Result()
		if cached != meter {
			t.Errorf("Expected '%s', got '%s'", meter, cached)
		}
	})
}

// TestRedis_RateLimiting tests rate limiting pattern
func TestRedis_RateLimiting(t *testing.T) {
	env := SetupTestEnvironment(t)
	if env == nil || env.Redis == nil {
		t.Skip("Redis not available")
	}

	FlushRedis(t, env.Redis)
	ctx := context.Background()

	// Fixed window rate limiter keyed per charge point
	t.Run("RateLimiter", func(t *testing.T) {
		key := "ratelimit:charger:CP001"
		limit := int64(5)
		window := time.Minute

		// Simulate requests
		for i := 0; i < 7; i++ {
			count, err := env.Redis.Incr(ctx, key).Result()
			if err != nil {
				t.Fatalf("Failed to increment: %v", err)
			}

			// Set expiration on first request
			if count == 1 {
				env.Redis.Expire(ctx, key, window)
			}

			if count <= limit {
				// Request allowed
				t.Logf("Request %d allowed", i+1)
			} else {
				// Request denied
				t.Logf("Request %d denied (rate limited)", i+1)
			}
		}

		// Verify count
		count, _ := env.Redis.Get(ctx, key).Int64()
		if count != 7 {
			t.Errorf("Expected count 7, got %d", count)
		}
	})
}
