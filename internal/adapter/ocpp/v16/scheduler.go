package v16

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-csms/internal/domain"
	"github.com/seu-repo/ocpp-csms/internal/ports"
	"github.com/seu-repo/ocpp-csms/internal/store"
)

// defaultSchedulerDelay is how long after the StartTransaction reply the
// vendor packets go out.
const defaultSchedulerDelay = 500 * time.Millisecond

const (
	vendorPacketVendorID = "Test_Server"
	messageIDStopEnergy  = "Stop_Energy"
	messageIDStopTime    = "Stop_Time"
)

// dataTransferSender is the slice of the command API the scheduler needs.
type dataTransferSender interface {
	DataTransfer(ctx context.Context, chargePointID, vendorID, messageID string, data interface{}) (*ports.DataTransferResult, error)
}

// msilAutoStop is the object-shaped data MSIL chargers expect. Sending an
// object in the data field violates OCPP 1.6 on purpose; see Arm.
type msilAutoStop struct {
	TransactionID int    `json:"transactionId"`
	Parameter     string `json:"parameter"`
	Value         int    `json:"value"`
}

// Scheduler fires deferred vendor DataTransfer packets after each
// successful StartTransaction. Jobs run concurrently; one failing never
// affects the others or the transaction itself.
type Scheduler struct {
	sender dataTransferSender
	store  *store.Store
	delay  time.Duration
	log    *zap.Logger
}

func NewScheduler(sender dataTransferSender, st *store.Store, log *zap.Logger) *Scheduler {
	return &Scheduler{
		sender: sender,
		store:  st,
		delay:  defaultSchedulerDelay,
		log:    log,
	}
}

// Arm inspects the charger's vendor settings and spawns the enabled jobs.
// Called by the StartTransaction handler strictly after the CALLRESULT was
// written.
func (s *Scheduler) Arm(chargePointID string, transactionID int) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	charger, err := s.store.GetCharger(ctx, chargePointID)
	cancel()
	if err != nil || charger == nil {
		s.log.Warn("scheduler could not load vendor settings",
			zap.String("charge_point_id", chargePointID),
			zap.Error(err),
		)
		return
	}

	vs := charger.VendorSettings
	switch vs.Vendor {
	case domain.VendorJioBP:
		if vs.StopEnergyEnabled {
			go s.fireString(chargePointID, messageIDStopEnergy,
				fmt.Sprintf("%d_%d", transactionID, vs.StopEnergyValue))
		}
		if vs.StopTimeEnabled {
			go s.fireString(chargePointID, messageIDStopTime,
				fmt.Sprintf("%d_%d", transactionID, vs.StopTimeValue))
		}
	case domain.VendorMSIL:
		if vs.AutoStopEnabled {
			go s.fireMSIL(chargePointID, transactionID, vs.AutoStopValue)
		}
	case domain.VendorCZ:
		if vs.AutoStopEnabled {
			go s.fireCZ(chargePointID, transactionID, vs.AutoStopValue)
		}
	}
}

func (s *Scheduler) fireString(chargePointID, messageID, data string) {
	time.Sleep(s.delay)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultCallTimeout)
	defer cancel()

	_, err := s.sender.DataTransfer(ctx, chargePointID, vendorPacketVendorID, messageID, data)
	if err != nil {
		s.logFailure(chargePointID, messageID, err)
		return
	}
	s.appendLog(chargePointID, fmt.Sprintf("✅ Auto-stop packet %s sent: %s", messageID, data))
}

// fireMSIL emits the object-shaped data field MSIL asked for. Some
// chargers answer TypeConstraintViolation; that reply is treated as
// accepted and logged, per the agreed interop deviation.
func (s *Scheduler) fireMSIL(chargePointID string, transactionID, value int) {
	time.Sleep(s.delay)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultCallTimeout)
	defer cancel()

	payload := msilAutoStop{TransactionID: transactionID, Parameter: messageIDStopEnergy, Value: value}
	_, err := s.sender.DataTransfer(ctx, chargePointID, vendorPacketVendorID, messageIDStopEnergy, payload)
	if err != nil {
		var callErr *CallError
		if errors.As(err, &callErr) && callErr.Code == ErrCodeTypeConstraint {
			s.appendLog(chargePointID, "⚠️ MSIL auto-stop: charger replied TypeConstraintViolation to object data, treating as accepted")
			return
		}
		s.logFailure(chargePointID, messageIDStopEnergy, err)
		return
	}
	s.appendLog(chargePointID, fmt.Sprintf("✅ MSIL auto-stop packet sent for tx %d", transactionID))
}

// fireCZ sends the same logical payload as MSIL but serialized into a
// JSON string, which is compliant.
func (s *Scheduler) fireCZ(chargePointID string, transactionID, value int) {
	time.Sleep(s.delay)

	ctx, cancel := context.WithTimeout(context.Background(), DefaultCallTimeout)
	defer cancel()

	raw, err := json.Marshal(msilAutoStop{TransactionID: transactionID, Parameter: messageIDStopEnergy, Value: value})
	if err != nil {
		s.logFailure(chargePointID, messageIDStopEnergy, err)
		return
	}
	_, err = s.sender.DataTransfer(ctx, chargePointID, vendorPacketVendorID, messageIDStopEnergy, string(raw))
	if err != nil {
		s.logFailure(chargePointID, messageIDStopEnergy, err)
		return
	}
	s.appendLog(chargePointID, fmt.Sprintf("✅ CZ auto-stop packet sent for tx %d", transactionID))
}

func (s *Scheduler) logFailure(chargePointID, messageID string, err error) {
	s.log.Warn("auto-stop packet failed",
		zap.String("charge_point_id", chargePointID),
		zap.String("message_id", messageID),
		zap.Error(err),
	)
	s.appendLog(chargePointID, fmt.Sprintf("❌ Auto-stop packet %s failed: %v", messageID, err))
}

func (s *Scheduler) appendLog(chargePointID, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.store.AppendLog(ctx, chargePointID, message); err != nil {
		s.log.Debug("failed to append scheduler log", zap.Error(err))
	}
}
