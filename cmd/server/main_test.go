package main

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	wsAdapter "github.com/seu-repo/ocpp-csms/internal/adapter/websocket"
	"github.com/seu-repo/ocpp-csms/internal/domain"
	"github.com/seu-repo/ocpp-csms/internal/mocks"
)

func TestStartEventFanout_SubscribesLifecycleSubjects(t *testing.T) {
	mq := mocks.NewMockMessageQueue()
	hub := wsAdapter.NewHub()
	go hub.Run()

	startEventFanout(mq, hub, zap.NewNop())

	subjects := []string{
		domain.SubjectChargerConnected,
		domain.SubjectChargerDisconnected,
		domain.SubjectTransactionStarted,
		domain.SubjectTransactionStopped,
		domain.SubjectStatusChanged,
	}
	for _, subject := range subjects {
		if n := mq.SubscriberCount(subject); n != 1 {
			t.Errorf("Expected 1 subscriber on %s, got %d", subject, n)
		}
	}

	event := domain.ChargerEvent{
		Type:          "status_changed",
		ChargePointID: "CP001",
		Status:        domain.StatusCharging,
		Timestamp:     time.Now().UTC(),
	}
	if err := mq.Deliver(domain.SubjectStatusChanged, event.Encode()); err != nil {
		t.Fatalf("Deliver failed: %v", err)
	}
}

func TestStartEventFanout_SubscribeFailureIsNonFatal(t *testing.T) {
	mq := mocks.NewMockMessageQueue()
	mq.SubscribeFunc = func(subject string, handler func([]byte) error) error {
		return errors.New("broker unavailable")
	}
	hub := wsAdapter.NewHub()
	go hub.Run()

	// Must not panic; each failed subject is logged and skipped.
	startEventFanout(mq, hub, zap.NewNop())
}
