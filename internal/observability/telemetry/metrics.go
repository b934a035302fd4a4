package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Métricas de negócio
	ConnectedChargers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ocpp_csms_connected_chargers",
		Help: "Número de carregadores com sessão WebSocket ativa",
	})

	ActiveTransactions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ocpp_csms_active_transactions",
		Help: "Número de transações de carregamento ativas",
	})

	// Métricas de infraestrutura
	OCPPMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ocpp_csms_ocpp_messages_total",
		Help: "Total de mensagens OCPP",
	}, []string{"action", "direction"})

	OCPPCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ocpp_csms_call_duration_seconds",
		Help:    "Latência das chamadas CSMS para o carregador",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	DatabaseLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ocpp_csms_database_latency_seconds",
		Help:    "Latência de queries no banco",
		Buckets: prometheus.DefBuckets,
	})
)
