package v16

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-csms/internal/observability/telemetry"
	"github.com/seu-repo/ocpp-csms/internal/store"
)

const (
	// DefaultCallTimeout bounds every outbound call unless the caller's
	// context expires earlier.
	DefaultCallTimeout = 30 * time.Second

	writeTimeout   = 10 * time.Second
	handlerTimeout = 10 * time.Second
)

// wireConn is the slice of *websocket.Conn the session needs. Tests swap
// in an in-memory pipe.
type wireConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session owns one live charge-point connection: the single receive loop,
// the write serializer and the pending-call table. At most one Session per
// charge-point id is bound in the registry.
type Session struct {
	chargePointID string
	conn          wireConn
	pending       *pendingCalls
	handlers      *Handlers
	store         *store.Store
	log           *zap.Logger

	writeMu sync.Mutex
	done    chan struct{}
	closeFn sync.Once
	onClose func(*Session)
}

func newSession(chargePointID string, conn wireConn, handlers *Handlers, st *store.Store, log *zap.Logger, onClose func(*Session)) *Session {
	return &Session{
		chargePointID: chargePointID,
		conn:          conn,
		pending:       newPendingCalls(),
		handlers:      handlers,
		store:         st,
		log:           log,
		done:          make(chan struct{}),
		onClose:       onClose,
	}
}

// ChargePointID returns the identity this session is bound to.
func (s *Session) ChargePointID() string { return s.chargePointID }

// Closed reports whether Close has run.
func (s *Session) Closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Close is idempotent: it closes the socket, fails every pending waiter
// with ErrConnectionLost and notifies the registry.
func (s *Session) Close() {
	s.closeFn.Do(func() {
		close(s.done)
		s.conn.Close()
		s.pending.cancelAll(ErrConnectionLost)
		if s.onClose != nil {
			s.onClose(s)
		}
	})
}

// run is the receive loop. It returns when the connection drops; the
// caller handles unbind and status bookkeeping.
func (s *Session) run() {
	defer s.Close()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if !s.Closed() && websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("websocket read failed",
					zap.String("charge_point_id", s.chargePointID),
					zap.Error(err),
				)
			}
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		s.handleFrame(ctx, raw)
		cancel()
	}
}

func (s *Session) handleFrame(ctx context.Context, raw []byte) {
	// Any inbound frame counts as liveness, not only Heartbeat.
	if err := s.store.NoteActivity(ctx, s.chargePointID, "Charger→CMS: "+string(raw)); err != nil {
		s.log.Warn("failed to record inbound frame",
			zap.String("charge_point_id", s.chargePointID),
			zap.Error(err),
		)
	}

	f, err := decodeFrame(raw)
	if err != nil {
		fe, ok := err.(*frameError)
		if ok && fe.UniqueID != "" {
			s.log.Warn("malformed frame, replying FormationViolation",
				zap.String("charge_point_id", s.chargePointID),
				zap.String("unique_id", fe.UniqueID),
				zap.String("reason", fe.Error()),
			)
			s.replyError(fe.UniqueID, ErrCodeFormationViolation, fe.Error())
			return
		}
		s.log.Warn("undecodable frame, closing session",
			zap.String("charge_point_id", s.chargePointID),
			zap.Error(err),
		)
		s.Close()
		return
	}

	switch f.MessageType {
	case MessageTypeCall:
		s.dispatchCall(ctx, f)
	case MessageTypeCallResult:
		telemetry.OCPPMessagesTotal.WithLabelValues("CallResult", "inbound").Inc()
		ch := s.pending.pop(f.UniqueID)
		if ch == nil {
			s.log.Warn("dropping reply with no waiter",
				zap.String("charge_point_id", s.chargePointID),
				zap.String("unique_id", f.UniqueID),
			)
			return
		}
		ch <- callOutcome{payload: f.Payload}
	case MessageTypeCallError:
		telemetry.OCPPMessagesTotal.WithLabelValues("CallError", "inbound").Inc()
		ch := s.pending.pop(f.UniqueID)
		if ch == nil {
			s.log.Warn("dropping error reply with no waiter",
				zap.String("charge_point_id", s.chargePointID),
				zap.String("unique_id", f.UniqueID),
			)
			return
		}
		ch <- callOutcome{callErr: &CallError{
			Code:        f.ErrorCode,
			Description: f.ErrorDescription,
			Details:     f.ErrorDetails,
		}}
	}
}

// dispatchCall runs the inbound handler and writes the reply. The
// post-reply hook, if any, only runs after the CALLRESULT is on the wire.
func (s *Session) dispatchCall(ctx context.Context, f *frame) {
	telemetry.OCPPMessagesTotal.WithLabelValues(f.Action, "inbound").Inc()

	resp, after, perr := s.handlers.Handle(ctx, s.chargePointID, f.Action, f.Payload)
	if perr != nil {
		s.log.Info("inbound call rejected",
			zap.String("charge_point_id", s.chargePointID),
			zap.String("action", f.Action),
			zap.String("code", perr.code),
			zap.String("description", perr.description),
		)
		s.replyError(f.UniqueID, perr.code, perr.description)
		return
	}

	data, err := encodeCallResult(f.UniqueID, resp)
	if err != nil {
		s.log.Error("failed to encode reply",
			zap.String("charge_point_id", s.chargePointID),
			zap.String("action", f.Action),
			zap.Error(err),
		)
		s.replyError(f.UniqueID, ErrCodeInternalError, "failed to encode response")
		return
	}
	if err := s.writeFrame(data); err != nil {
		s.log.Warn("failed to write reply, closing session",
			zap.String("charge_point_id", s.chargePointID),
			zap.Error(err),
		)
		s.Close()
		return
	}

	if after != nil {
		after()
	}
}

func (s *Session) replyError(uid, code, description string) {
	data, err := encodeCallError(uid, code, description, nil)
	if err != nil {
		return
	}
	if err := s.writeFrame(data); err != nil {
		s.Close()
	}
}

// writeFrame serializes whole-frame writes so concurrent operator calls
// never interleave bytes on the wire.
func (s *Session) writeFrame(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.Closed() {
		return ErrConnectionLost
	}

	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return err
	}

	go func(frame string) {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		defer cancel()
		if err := s.store.AppendLog(ctx, s.chargePointID, "CMS→Charger: "+frame); err != nil {
			s.log.Debug("failed to record outbound frame", zap.Error(err))
		}
	}(string(data))

	return nil
}

// Call sends a CALL and waits for the matching CALLRESULT or CALLERROR.
// Timeout and connection loss remove the waiter, so a late reply with the
// same uid is dropped by the receive loop.
func (s *Session) Call(ctx context.Context, action string, payload interface{}) (json.RawMessage, error) {
	if s.Closed() {
		return nil, ErrConnectionLost
	}

	uid := uuid.NewString()
	ch, err := s.pending.insert(uid)
	if err != nil {
		return nil, err
	}

	data, err := encodeCall(uid, action, payload)
	if err != nil {
		s.pending.pop(uid)
		return nil, fmt.Errorf("encode %s: %w", action, err)
	}

	started := time.Now()
	if err := s.writeFrame(data); err != nil {
		s.pending.pop(uid)
		s.Close()
		return nil, ErrConnectionLost
	}
	telemetry.OCPPMessagesTotal.WithLabelValues(action, "outbound").Inc()

	timeout := DefaultCallTimeout
	if dl, ok := ctx.Deadline(); ok {
		if until := time.Until(dl); until < timeout {
			timeout = until
		}
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case out := <-ch:
		telemetry.OCPPCallDuration.WithLabelValues(action).Observe(time.Since(started).Seconds())
		if out.err != nil {
			return nil, out.err
		}
		if out.callErr != nil {
			return nil, out.callErr
		}
		return out.payload, nil
	case <-timer.C:
		s.pending.pop(uid)
		return nil, ErrCallTimeout
	case <-ctx.Done():
		s.pending.pop(uid)
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrConnectionLost
	}
}

// SendRaw transmits an operator-supplied frame verbatim. No waiter is
// installed, so any reply the charger sends is dropped by the receive loop
// with a warning. The only validation is a parseability check, and even
// that only warns.
func (s *Session) SendRaw(frame string) error {
	if !json.Valid([]byte(frame)) {
		s.log.Warn("raw frame is not valid JSON, sending anyway",
			zap.String("charge_point_id", s.chargePointID),
		)
	}
	if err := s.writeFrame([]byte(frame)); err != nil {
		return err
	}
	telemetry.OCPPMessagesTotal.WithLabelValues("Raw", "outbound").Inc()
	return nil
}
