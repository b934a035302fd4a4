package v16

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-csms/internal/domain"
	"github.com/seu-repo/ocpp-csms/internal/store"
)

const (
	wsPathPrefix    = "/ws/"
	ocppSubprotocol = "ocpp1.6"

	maxChargePointIDLength = 32
)

// Server is the OCPP 1.6J WebSocket endpoint. Chargers connect to
// /ws/{chargePointID} with subprotocol ocpp1.6; the server binds one
// session per id and exposes the operator command surface on top of it.
type Server struct {
	registry  *Registry
	store     *store.Store
	handlers  *Handlers
	scheduler *Scheduler
	events    EventPublisher
	log       *zap.Logger

	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

func NewServer(st *store.Store, events EventPublisher, log *zap.Logger) *Server {
	s := &Server{
		registry: NewRegistry(log),
		store:    st,
		events:   events,
		log:      log,
		upgrader: websocket.Upgrader{
			Subprotocols: []string{ocppSubprotocol},
			CheckOrigin:  func(r *http.Request) bool { return true },
		},
	}
	s.scheduler = NewScheduler(s, st, log)
	s.handlers = NewHandlers(st, events, s.scheduler, log)
	return s
}

// Start blocks serving charger connections until Stop is called.
func (s *Server) Start(port int) error {
	mux := http.NewServeMux()
	mux.HandleFunc(wsPathPrefix, s.handleWebSocket)

	s.httpSrv = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	s.log.Info("Starting OCPP 1.6 WebSocket server", zap.String("addr", s.httpSrv.Addr))
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop closes the listener and every live session.
func (s *Server) Stop(ctx context.Context) error {
	s.registry.CloseAll()
	if s.httpSrv == nil {
		return nil
	}
	return s.httpSrv.Shutdown(ctx)
}

func validChargePointID(id string) bool {
	if id == "" || len(id) > maxChargePointIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.' || r == ':':
		default:
			return false
		}
	}
	return true
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	chargePointID := strings.TrimPrefix(r.URL.Path, wsPathPrefix)
	if !validChargePointID(chargePointID) {
		http.Error(w, "invalid charge point id", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("WebSocket upgrade failed",
			zap.String("charge_point_id", chargePointID),
			zap.Error(err),
		)
		return
	}

	sess := newSession(chargePointID, conn, s.handlers, s.store, s.log, s.registry.Unbind)
	s.registry.Bind(sess)

	s.log.Info("Charger connected",
		zap.String("charge_point_id", chargePointID),
		zap.String("subprotocol", conn.Subprotocol()),
	)
	s.markConnected(chargePointID)

	sess.run()

	s.log.Info("Charger disconnected", zap.String("charge_point_id", chargePointID))
	s.markDisconnected(chargePointID)
}

// markConnected flips the aggregate to Connected. The aggregate is created
// here if the charger was never seen before.
func (s *Server) markConnected(chargePointID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	err := s.store.ApplyMutation(ctx, chargePointID, func(c *domain.Charger) error {
		c.Status = domain.StatusConnected
		c.LastHeartbeat = &now
		c.Logs = appendBounded(c.Logs, now, "✅ Charger connected")
		return nil
	})
	if err != nil {
		s.log.Warn("failed to record connect",
			zap.String("charge_point_id", chargePointID),
			zap.Error(err),
		)
	}
	s.publish(domain.SubjectChargerConnected, domain.ChargerEvent{
		Type:          "connected",
		ChargePointID: chargePointID,
		Status:        domain.StatusConnected,
		Timestamp:     now,
	})
}

// markDisconnected runs after the receive loop exits. If the charger
// already reconnected and a newer session is bound, the aggregate is left
// alone.
func (s *Server) markDisconnected(chargePointID string) {
	if s.registry.IsConnected(chargePointID) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	err := s.store.ApplyMutation(ctx, chargePointID, func(c *domain.Charger) error {
		c.Status = domain.StatusDisconnected
		c.Logs = appendBounded(c.Logs, now, "❌ Charger disconnected")
		return nil
	})
	if err != nil {
		s.log.Warn("failed to record disconnect",
			zap.String("charge_point_id", chargePointID),
			zap.Error(err),
		)
	}
	s.publish(domain.SubjectChargerDisconnected, domain.ChargerEvent{
		Type:          "disconnected",
		ChargePointID: chargePointID,
		Status:        domain.StatusDisconnected,
		Timestamp:     now,
	})
}

func (s *Server) publish(subject string, event domain.ChargerEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(subject, event.Encode()); err != nil {
		s.log.Warn("failed to publish event", zap.String("subject", subject), zap.Error(err))
	}
}

// --- session directory ---

func (s *Server) IsConnected(chargePointID string) bool {
	return s.registry.IsConnected(chargePointID)
}

func (s *Server) ConnectedIDs() []string {
	return s.registry.ConnectedIDs()
}

// Disconnect force-closes the live session, if any. Returns whether one
// existed.
func (s *Server) Disconnect(chargePointID string) bool {
	sess := s.registry.Get(chargePointID)
	if sess == nil {
		return false
	}
	sess.Close()
	return true
}

// Sweep drops sessions whose sockets died without a close handshake.
func (s *Server) Sweep() []string {
	return s.registry.Sweep()
}
