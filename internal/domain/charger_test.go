package domain

import (
	"testing"
	"time"
)

func TestNextTransactionID_WallClockSeconds(t *testing.T) {
	c := NewCharger("CP001")
	now := time.Unix(1700000000, 0)

	id := c.NextTransactionID(now)
	if id != 1700000000 {
		t.Errorf("Expected 1700000000, got %d", id)
	}
}

func TestNextTransactionID_BumpsWithinSameSecond(t *testing.T) {
	c := NewCharger("CP001")
	now := time.Unix(1700000000, 0)

	first := c.NextTransactionID(now)
	second := c.NextTransactionID(now)
	third := c.NextTransactionID(now)

	if second != first+1 || third != first+2 {
		t.Errorf("Expected monotonic bump, got %d, %d, %d", first, second, third)
	}
}

func TestNextTransactionID_NeverGoesBackwards(t *testing.T) {
	c := NewCharger("CP001")
	c.LastTransactionID = 1800000000

	id := c.NextTransactionID(time.Unix(1700000000, 0))
	if id != 1800000001 {
		t.Errorf("Expected bump past last issued id, got %d", id)
	}
}

func TestCloneIsDeep(t *testing.T) {
	c := NewCharger("CP001")
	c.Connectors[1] = ConnectorState{Status: StatusAvailable}
	c.Reservations[7] = Reservation{ReservationID: 7}
	c.ChargingProfiles[1] = map[int]ChargingProfile{11: {ProfileID: 11}}
	c.Logs = []LogEntry{{Message: "one"}}

	cp := c.Clone()
	cp.Connectors[2] = ConnectorState{Status: StatusCharging}
	cp.Reservations[8] = Reservation{ReservationID: 8}
	cp.ChargingProfiles[1][12] = ChargingProfile{ProfileID: 12}
	cp.Logs = append(cp.Logs, LogEntry{Message: "two"})

	if len(c.Connectors) != 1 {
		t.Error("Clone shares the connectors map")
	}
	if len(c.Reservations) != 1 {
		t.Error("Clone shares the reservations map")
	}
	if len(c.ChargingProfiles[1]) != 1 {
		t.Error("Clone shares the inner profiles map")
	}
	if len(c.Logs) != 1 {
		t.Error("Clone shares the logs slice")
	}
}

func TestPruneExpiredReservations(t *testing.T) {
	c := NewCharger("CP001")
	now := time.Now().UTC()
	c.Reservations[1] = Reservation{ReservationID: 1, ExpiryDate: now.Add(-time.Second)}
	c.Reservations[2] = Reservation{ReservationID: 2, ExpiryDate: now.Add(time.Hour)}

	if !c.PruneExpiredReservations(now) {
		t.Error("Expected pruning to report a removal")
	}
	if _, ok := c.Reservations[1]; ok {
		t.Error("Expired reservation not removed")
	}
	if _, ok := c.Reservations[2]; !ok {
		t.Error("Live reservation removed")
	}
	if c.PruneExpiredReservations(now) {
		t.Error("Second prune should remove nothing")
	}
}

func TestIDTagAuthorized(t *testing.T) {
	now := time.Now().UTC()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	cases := []struct {
		name string
		tag  IDTag
		want bool
	}{
		{"accepted without expiry", IDTag{Status: AuthAccepted}, true},
		{"accepted with future expiry", IDTag{Status: AuthAccepted, ExpiryDate: &future}, true},
		{"accepted but expired", IDTag{Status: AuthAccepted, ExpiryDate: &past}, false},
		{"blocked", IDTag{Status: AuthBlocked}, false},
		{"invalid", IDTag{Status: AuthInvalid}, false},
	}
	for _, tc := range cases {
		if got := tc.tag.Authorized(now); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
