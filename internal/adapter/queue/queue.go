package queue

// MessageQueue carries charger lifecycle events between the OCPP server
// and the dashboard fanout. Subjects are the domain.Subject* constants;
// payloads are encoded ChargerEvent envelopes. Delivery is fire-and-forget
// on both drivers.
type MessageQueue interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte) error) error
	Close() error
}
