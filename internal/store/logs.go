package store

import (
	"context"
	"time"

	"github.com/seu-repo/ocpp-csms/internal/domain"
)

// AppendLog adds one line to the charger's bounded log, evicting the
// oldest entries beyond the cap.
func (s *Store) AppendLog(ctx context.Context, id, message string) error {
	now := time.Now().UTC()
	return s.ApplyMutation(ctx, id, func(c *domain.Charger) error {
		c.Logs = append(c.Logs, domain.LogEntry{Timestamp: now, Message: message})
		if over := len(c.Logs) - domain.MaxChargerLogs; over > 0 {
			c.Logs = append([]domain.LogEntry(nil), c.Logs[over:]...)
		}
		return nil
	})
}

// NoteActivity records one inbound frame: bumps last_heartbeat and
// appends a log line in a single mutation.
func (s *Store) NoteActivity(ctx context.Context, id, message string) error {
	now := time.Now().UTC()
	return s.ApplyMutation(ctx, id, func(c *domain.Charger) error {
		c.LastHeartbeat = &now
		c.Logs = append(c.Logs, domain.LogEntry{Timestamp: now, Message: message})
		if over := len(c.Logs) - domain.MaxChargerLogs; over > 0 {
			c.Logs = append([]domain.LogEntry(nil), c.Logs[over:]...)
		}
		return nil
	})
}

// GetLogs returns entries strictly newer than the cleared-at watermark.
// Older entries stay in storage but are never returned.
func (s *Store) GetLogs(ctx context.Context, id string) ([]domain.LogEntry, error) {
	c, err := s.GetCharger(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, ErrChargerNotFound
	}
	if c.LogsClearedAt == nil {
		return c.Logs, nil
	}
	out := make([]domain.LogEntry, 0, len(c.Logs))
	for _, e := range c.Logs {
		if e.Timestamp.After(*c.LogsClearedAt) {
			out = append(out, e)
		}
	}
	return out, nil
}

// ClearLogs moves the watermark to now. Nothing is deleted, so concurrent
// readers never observe a half-cleared log.
func (s *Store) ClearLogs(ctx context.Context, id string) error {
	now := time.Now().UTC()
	return s.ApplyMutation(ctx, id, func(c *domain.Charger) error {
		c.LogsClearedAt = &now
		return nil
	})
}
