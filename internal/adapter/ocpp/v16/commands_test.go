package v16

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/ocpp-csms/internal/domain"
	"github.com/seu-repo/ocpp-csms/internal/ports"
	"github.com/seu-repo/ocpp-csms/internal/store"
)

func newTestServer(t *testing.T) (*Server, *store.Store, *fakeConn) {
	t.Helper()
	st, _, _ := newTestStore()
	srv := NewServer(st, nil, zap.NewNop())

	conn := newFakeConn()
	sess := newSession("CP001", conn, srv.handlers, st, zap.NewNop(), srv.registry.Unbind)
	srv.registry.Bind(sess)
	go sess.run()

	t.Cleanup(sess.Close)
	return srv, st, conn
}

func TestCommands_NotConnected(t *testing.T) {
	st, _, _ := newTestStore()
	srv := NewServer(st, nil, zap.NewNop())

	if _, err := srv.RemoteStart(context.Background(), "ghost", "TAG1", nil); err != ErrChargerNotConnected {
		t.Errorf("Expected ErrChargerNotConnected, got %v", err)
	}
	if _, err := srv.ClearCache(context.Background(), "ghost"); err != ErrChargerNotConnected {
		t.Errorf("Expected ErrChargerNotConnected, got %v", err)
	}
	if err := srv.SendRaw(context.Background(), "ghost", "[]"); err != ErrChargerNotConnected {
		t.Errorf("Expected ErrChargerNotConnected, got %v", err)
	}
}

func TestCommands_RemoteStart(t *testing.T) {
	srv, _, conn := newTestServer(t)

	respondWith(conn, `{"status":"Accepted"}`)
	connID := 1
	res, err := srv.RemoteStart(context.Background(), "CP001", "TAG1", &connID)
	if err != nil {
		t.Fatalf("RemoteStart failed: %v", err)
	}
	if res.Status != "Accepted" {
		t.Errorf("Expected Accepted, got %s", res.Status)
	}
}

func TestCommands_RemoteStartWireShape(t *testing.T) {
	srv, _, conn := newTestServer(t)

	done := make(chan []byte, 1)
	go func() {
		raw, ok := conn.nextWritten()
		if !ok {
			return
		}
		done <- raw
		parts := decodeParts(raw)
		var uid string
		json.Unmarshal(parts[1], &uid)
		reply, _ := json.Marshal([]interface{}{MessageTypeCallResult, uid, map[string]string{"status": "Accepted"}})
		conn.inbound <- reply
	}()

	if _, err := srv.RemoteStart(context.Background(), "CP001", "TAG1", nil); err != nil {
		t.Fatalf("RemoteStart failed: %v", err)
	}

	raw := <-done
	parts := decodeParts(raw)
	var action string
	json.Unmarshal(parts[2], &action)
	if action != "RemoteStartTransaction" {
		t.Errorf("Expected action RemoteStartTransaction, got %s", action)
	}
	var payload map[string]interface{}
	json.Unmarshal(parts[3], &payload)
	if payload["idTag"] != "TAG1" {
		t.Errorf("Expected camelCase idTag on the wire, got %v", payload)
	}
	if _, present := payload["connectorId"]; present {
		t.Error("Nil connector id must be omitted from the wire payload")
	}
}

func TestCommands_GetConfiguration(t *testing.T) {
	srv, _, conn := newTestServer(t)

	respondWith(conn, `{"configurationKey":[{"key":"HeartbeatInterval","readonly":false,"value":"300"}],"unknownKey":["Bogus"]}`)

	res, err := srv.GetConfiguration(context.Background(), "CP001", []string{"HeartbeatInterval", "Bogus"})
	if err != nil {
		t.Fatalf("GetConfiguration failed: %v", err)
	}
	if len(res.ConfigurationKey) != 1 || res.ConfigurationKey[0].Key != "HeartbeatInterval" {
		t.Errorf("Unexpected configuration keys: %+v", res.ConfigurationKey)
	}
	if res.ConfigurationKey[0].Value == nil || *res.ConfigurationKey[0].Value != "300" {
		t.Error("Expected value 300")
	}
	if len(res.UnknownKey) != 1 || res.UnknownKey[0] != "Bogus" {
		t.Errorf("Unexpected unknown keys: %v", res.UnknownKey)
	}
}

func TestCommands_CallErrorSurfaces(t *testing.T) {
	srv, _, conn := newTestServer(t)

	respondWithError(conn, ErrCodeNotSupported, "no cache here")

	_, err := srv.ClearCache(context.Background(), "CP001")
	callErr, ok := err.(*CallError)
	if !ok {
		t.Fatalf("Expected *CallError, got %v", err)
	}
	if callErr.Code != ErrCodeNotSupported {
		t.Errorf("Expected %s, got %s", ErrCodeNotSupported, callErr.Code)
	}
}

func TestCommands_SendLocalListConsumesVersion(t *testing.T) {
	srv, st, conn := newTestServer(t)

	respondWith(conn, `{"status":"Accepted"}`)
	res, err := srv.SendLocalList(context.Background(), "CP001", "Full", []ports.LocalListEntry{
		{IDTag: "TAG1", Status: "Accepted"},
	})
	if err != nil {
		t.Fatalf("SendLocalList failed: %v", err)
	}
	if res.ListVersion != 1 {
		t.Errorf("Expected first push to carry version 1, got %d", res.ListVersion)
	}
	if st.LocalListVersion() != 1 {
		t.Errorf("Expected counter at 1, got %d", st.LocalListVersion())
	}

	// A rejected push still consumes its increment.
	respondWith(conn, `{"status":"Failed"}`)
	res, err = srv.SendLocalList(context.Background(), "CP001", "Differential", nil)
	if err != nil {
		t.Fatalf("SendLocalList failed: %v", err)
	}
	if res.Status != "Failed" {
		t.Errorf("Expected Failed, got %s", res.Status)
	}
	if res.ListVersion != 2 || st.LocalListVersion() != 2 {
		t.Errorf("Expected counter at 2, got result %d counter %d", res.ListVersion, st.LocalListVersion())
	}
}

func TestCommands_SendLocalListMirrorsAcceptedTags(t *testing.T) {
	srv, st, conn := newTestServer(t)
	ctx := context.Background()

	expiry := time.Now().UTC().Add(24 * time.Hour)
	respondWith(conn, `{"status":"Accepted"}`)
	_, err := srv.SendLocalList(ctx, "CP001", "Full", []ports.LocalListEntry{
		{IDTag: "TAG1", Status: "Accepted", ExpiryDate: &expiry, ParentIDTag: "FLEET"},
		{IDTag: "TAG2", Status: "Blocked"},
	})
	if err != nil {
		t.Fatalf("SendLocalList failed: %v", err)
	}

	tag, err := st.GetIDTag(ctx, "TAG1")
	if err != nil {
		t.Fatalf("GetIDTag failed: %v", err)
	}
	if tag == nil {
		t.Fatal("Accepted entry not mirrored into the id-tag table")
	}
	if tag.Status != "Accepted" || tag.ParentIDTag != "FLEET" {
		t.Errorf("Unexpected mirrored tag: %+v", tag)
	}
	if tag.ExpiryDate == nil || !tag.ExpiryDate.Equal(expiry) {
		t.Error("Expected expiry carried into the mirror")
	}
	if tag, _ := st.GetIDTag(ctx, "TAG2"); tag == nil || tag.Status != "Blocked" {
		t.Error("Expected every listed entry mirrored, including blocked ones")
	}

	// A rejected push leaves the table untouched.
	respondWith(conn, `{"status":"Failed"}`)
	_, err = srv.SendLocalList(ctx, "CP001", "Full", []ports.LocalListEntry{
		{IDTag: "TAG3", Status: "Accepted"},
	})
	if err != nil {
		t.Fatalf("SendLocalList failed: %v", err)
	}
	if tag, _ := st.GetIDTag(ctx, "TAG3"); tag != nil {
		t.Error("Rejected push must not be mirrored")
	}
}

func TestCommands_ClearLocalListDoesNotConsumeVersion(t *testing.T) {
	srv, st, conn := newTestServer(t)

	done := make(chan []byte, 1)
	go func() {
		raw, ok := conn.nextWritten()
		if !ok {
			return
		}
		done <- raw
		parts := decodeParts(raw)
		var uid string
		json.Unmarshal(parts[1], &uid)
		reply, _ := json.Marshal([]interface{}{MessageTypeCallResult, uid, map[string]string{"status": "Accepted"}})
		conn.inbound <- reply
	}()

	res, err := srv.ClearLocalList(context.Background(), "CP001")
	if err != nil {
		t.Fatalf("ClearLocalList failed: %v", err)
	}
	if res.ListVersion != 0 {
		t.Errorf("Expected version 0, got %d", res.ListVersion)
	}
	if st.LocalListVersion() != 0 {
		t.Errorf("Clear must not consume the counter, got %d", st.LocalListVersion())
	}

	raw := <-done
	parts := decodeParts(raw)
	var action string
	json.Unmarshal(parts[2], &action)
	if action != "SendLocalList" {
		t.Errorf("Expected SendLocalList on the wire, got %s", action)
	}
	var payload map[string]interface{}
	json.Unmarshal(parts[3], &payload)
	if payload["listVersion"] != float64(0) || payload["updateType"] != "Full" {
		t.Errorf("Expected Full update with version 0, got %v", payload)
	}
}

func TestCommands_ReserveNowMirrorsAccepted(t *testing.T) {
	srv, st, conn := newTestServer(t)

	respondWith(conn, `{"status":"Accepted"}`)
	expiry := time.Now().UTC().Add(time.Hour)
	res, err := srv.ReserveNow(context.Background(), "CP001", ports.ReserveNowRequest{
		ReservationID: 7,
		ConnectorID:   1,
		IDTag:         "TAG1",
		ExpiryDate:    expiry,
	})
	if err != nil {
		t.Fatalf("ReserveNow failed: %v", err)
	}
	if res.Status != "Accepted" {
		t.Errorf("Expected Accepted, got %s", res.Status)
	}

	c, _ := st.GetCharger(context.Background(), "CP001")
	r, ok := c.Reservations[7]
	if !ok {
		t.Fatal("Accepted reservation not mirrored")
	}
	if r.IDTag != "TAG1" || r.ConnectorID != 1 {
		t.Errorf("Unexpected mirrored reservation: %+v", r)
	}
}

func TestCommands_ReserveNowRejectedNotMirrored(t *testing.T) {
	srv, st, conn := newTestServer(t)

	respondWith(conn, `{"status":"Occupied"}`)
	res, err := srv.ReserveNow(context.Background(), "CP001", ports.ReserveNowRequest{
		ReservationID: 8,
		ConnectorID:   1,
		IDTag:         "TAG1",
		ExpiryDate:    time.Now().UTC().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("ReserveNow failed: %v", err)
	}
	if res.Status != "Occupied" {
		t.Errorf("Expected Occupied, got %s", res.Status)
	}

	c, _ := st.GetCharger(context.Background(), "CP001")
	if c != nil {
		if _, ok := c.Reservations[8]; ok {
			t.Error("Rejected reservation must not be mirrored")
		}
	}
}

func TestCommands_CancelReservationDropsMirror(t *testing.T) {
	srv, st, conn := newTestServer(t)

	err := st.ApplyMutation(context.Background(), "CP001", func(c *domain.Charger) error {
		c.Reservations[7] = domain.Reservation{
			ReservationID: 7,
			ConnectorID:   1,
			IDTag:         "TAG1",
			ExpiryDate:    time.Now().UTC().Add(time.Hour),
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	respondWith(conn, `{"status":"Accepted"}`)
	if _, err := srv.CancelReservation(context.Background(), "CP001", 7); err != nil {
		t.Fatalf("CancelReservation failed: %v", err)
	}

	c, _ := st.GetCharger(context.Background(), "CP001")
	if _, ok := c.Reservations[7]; ok {
		t.Error("Cancelled reservation still mirrored")
	}
}

func TestCommands_SetChargingProfileMirrorsAccepted(t *testing.T) {
	srv, st, conn := newTestServer(t)

	respondWith(conn, `{"status":"Accepted"}`)
	profile := domain.ChargingProfile{
		ProfileID:   11,
		ConnectorID: 1,
		StackLevel:  0,
		Purpose:     "TxDefaultProfile",
		Kind:        "Absolute",
		Schedule: domain.ChargingSchedule{
			ChargingRateUnit: "W",
			ChargingSchedulePeriod: []domain.ChargingSchedulePeriod{
				{StartPeriod: 0, Limit: 11000},
			},
		},
	}
	if _, err := srv.SetChargingProfile(context.Background(), "CP001", profile); err != nil {
		t.Fatalf("SetChargingProfile failed: %v", err)
	}

	c, _ := st.GetCharger(context.Background(), "CP001")
	got, ok := c.ChargingProfiles[1][11]
	if !ok {
		t.Fatal("Accepted profile not mirrored")
	}
	if got.Purpose != "TxDefaultProfile" || got.InstalledAt.IsZero() {
		t.Errorf("Unexpected mirrored profile: %+v", got)
	}
}

func TestCommands_ClearChargingProfileFilter(t *testing.T) {
	srv, st, conn := newTestServer(t)

	err := st.ApplyMutation(context.Background(), "CP001", func(c *domain.Charger) error {
		c.ChargingProfiles[1] = map[int]domain.ChargingProfile{
			11: {ProfileID: 11, ConnectorID: 1, Purpose: "TxDefaultProfile", StackLevel: 0},
			12: {ProfileID: 12, ConnectorID: 1, Purpose: "ChargePointMaxProfile", StackLevel: 1},
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	respondWith(conn, `{"status":"Accepted"}`)
	purpose := "TxDefaultProfile"
	if _, err := srv.ClearChargingProfile(context.Background(), "CP001", ports.ClearProfileFilter{Purpose: &purpose}); err != nil {
		t.Fatalf("ClearChargingProfile failed: %v", err)
	}

	c, _ := st.GetCharger(context.Background(), "CP001")
	if _, ok := c.ChargingProfiles[1][11]; ok {
		t.Error("Matching profile not cleared")
	}
	if _, ok := c.ChargingProfiles[1][12]; !ok {
		t.Error("Non-matching profile must survive")
	}
}

func TestCommands_GetDiagnostics(t *testing.T) {
	srv, _, conn := newTestServer(t)

	respondWith(conn, `{"fileName":"diag-CP001.log"}`)
	name, err := srv.GetDiagnostics(context.Background(), "CP001", "ftp://example/upload", nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("GetDiagnostics failed: %v", err)
	}
	if name != "diag-CP001.log" {
		t.Errorf("Expected file name, got %s", name)
	}
}

func TestCommands_UpdateFirmwareEmptyConf(t *testing.T) {
	srv, _, conn := newTestServer(t)

	respondWith(conn, `{}`)
	err := srv.UpdateFirmware(context.Background(), "CP001", "ftp://example/fw.bin", time.Now().UTC(), nil, nil)
	if err != nil {
		t.Fatalf("UpdateFirmware failed: %v", err)
	}
}

func TestCommands_DataTransferStringConf(t *testing.T) {
	srv, _, conn := newTestServer(t)

	respondWith(conn, `{"status":"Accepted","data":"pong"}`)
	res, err := srv.DataTransfer(context.Background(), "CP001", "Acme", "Ping", "ping")
	if err != nil {
		t.Fatalf("DataTransfer failed: %v", err)
	}
	if res.Status != "Accepted" || res.Data != "pong" {
		t.Errorf("Unexpected result: %+v", res)
	}
}

func TestServer_DirectoryDisconnect(t *testing.T) {
	srv, _, _ := newTestServer(t)

	if !srv.IsConnected("CP001") {
		t.Fatal("Expected CP001 connected")
	}
	if !srv.Disconnect("CP001") {
		t.Fatal("Expected Disconnect to find the session")
	}
	if srv.Disconnect("CP001") {
		t.Error("Second Disconnect should report no session")
	}
}
