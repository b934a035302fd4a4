package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// SimulatorConfig holds the simulator configuration
type SimulatorConfig struct {
	ServerURL       string
	ChargePointID   string
	Vendor          string
	Model           string
	SerialNumber    string
	FirmwareVersion string
	ConnectorCount  int
	IDTag           string
}

// ConnectorState represents a connector's state
type ConnectorState struct {
	ID         int
	Status     string // Available, Preparing, Charging, Finishing, Unavailable, Faulted
	MeterWh    int
	IsCharging bool
}

// Simulator simulates an OCPP 1.6J charge point
type Simulator struct {
	config     *SimulatorConfig
	conn       *websocket.Conn
	log        *zap.Logger
	connectors []ConnectorState

	// State
	currentTxID       int
	isCharging        bool
	heartbeatInterval int
	configKeys        map[string]string
	localListVersion  int

	// Message handling
	messageID   int
	pendingMsgs map[string]chan []byte
	mu          sync.RWMutex

	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewSimulator creates a new charge point simulator
func NewSimulator(config *SimulatorConfig, log *zap.Logger) *Simulator {
	connectors := make([]ConnectorState, config.ConnectorCount)
	for i := 0; i < config.ConnectorCount; i++ {
		connectors[i] = ConnectorState{
			ID:     i + 1,
			Status: "Available",
		}
	}

	return &Simulator{
		config:     config,
		log:        log,
		connectors: connectors,
		configKeys: map[string]string{
			"HeartbeatInterval":        "300",
			"MeterValueSampleInterval": "60",
			"NumberOfConnectors":       strconv.Itoa(config.ConnectorCount),
		},
		pendingMsgs:       make(map[string]chan []byte),
		stopChan:          make(chan struct{}),
		heartbeatInterval: 300,
	}
}

// Connect connects to the OCPP server
func (s *Simulator) Connect() error {
	url := fmt.Sprintf("%s/%s", s.config.ServerURL, s.config.ChargePointID)

	dialer := websocket.Dialer{
		Subprotocols: []string{"ocpp1.6"},
	}

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	s.conn = conn
	s.log.Info("Connected to OCPP server",
		zap.String("url", url),
		zap.String("chargePointID", s.config.ChargePointID),
	)

	// Start message reader
	s.wg.Add(1)
	go s.readMessages()

	// Send BootNotification
	resp, err := s.sendBootNotification()
	if err != nil {
		s.log.Error("BootNotification failed", zap.Error(err))
	} else {
		s.log.Info("BootNotification response", zap.Any("response", resp))
		if interval, ok := resp["interval"].(float64); ok {
			s.heartbeatInterval = int(interval)
		}
	}

	// Report every connector as available
	for _, conn := range s.connectors {
		s.sendStatusNotification(conn.ID, conn.Status, "NoError")
	}

	// Start heartbeat goroutine
	s.wg.Add(1)
	go s.heartbeatLoop()

	return nil
}

// Stop stops the simulator
func (s *Simulator) Stop() {
	close(s.stopChan)
	if s.conn != nil {
		s.conn.Close()
	}
	s.wg.Wait()
}

// readMessages reads and processes incoming messages
func (s *Simulator) readMessages() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stopChan:
			return
		default:
			_, message, err := s.conn.ReadMessage()
			if err != nil {
				s.log.Error("Read error", zap.Error(err))
				return
			}
			s.handleMessage(message)
		}
	}
}

// handleMessage processes an incoming OCPP message
func (s *Simulator) handleMessage(data []byte) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		s.log.Error("Invalid message", zap.Error(err))
		return
	}

	if len(raw) < 3 {
		return
	}

	var msgType int
	json.Unmarshal(raw[0], &msgType)

	var msgID string
	json.Unmarshal(raw[1], &msgID)

	switch msgType {
	case 2: // Call - request from server
		var action string
		json.Unmarshal(raw[2], &action)
		s.handleServerRequest(msgID, action, raw[3])

	case 3: // CallResult - response to our request
		s.mu.Lock()
		if ch, ok := s.pendingMsgs[msgID]; ok {
			ch <- raw[2]
			delete(s.pendingMsgs, msgID)
		}
		s.mu.Unlock()

	case 4: // CallError
		s.mu.Lock()
		if ch, ok := s.pendingMsgs[msgID]; ok {
			close(ch)
			delete(s.pendingMsgs, msgID)
		}
		s.mu.Unlock()
	}
}

// handleServerRequest handles requests from the CSMS
func (s *Simulator) handleServerRequest(msgID, action string, payload json.RawMessage) {
	s.log.Info("Received server request", zap.String("action", action))

	var response interface{}

	switch action {
	case "RemoteStartTransaction":
		response = s.handleRemoteStart(payload)
	case "RemoteStopTransaction":
		response = s.handleRemoteStop(payload)
	case "Reset":
		response = s.handleReset(payload)
	case "TriggerMessage":
		response = s.handleTriggerMessage(payload)
	case "GetConfiguration":
		response = s.handleGetConfiguration(payload)
	case "ChangeConfiguration":
		response = s.handleChangeConfiguration(payload)
	case "ClearCache":
		response = map[string]interface{}{"status": "Accepted"}
	case "SendLocalList":
		response = s.handleSendLocalList(payload)
	case "GetLocalListVersion":
		response = map[string]interface{}{"listVersion": s.localListVersion}
	case "DataTransfer":
		response = s.handleDataTransfer(payload)
	case "ChangeAvailability":
		response = s.handleChangeAvailability(payload)
	case "ReserveNow":
		response = s.handleReserveNow(payload)
	case "CancelReservation":
		response = map[string]interface{}{"status": "Accepted"}
	case "SetChargingProfile":
		response = map[string]interface{}{"status": "Accepted"}
	case "ClearChargingProfile":
		response = map[string]interface{}{"status": "Accepted"}
	case "GetCompositeSchedule":
		response = map[string]interface{}{"status": "Rejected"}
	case "UpdateFirmware":
		response = s.handleUpdateFirmware(payload)
	case "GetDiagnostics":
		response = s.handleGetDiagnostics(payload)
	case "UnlockConnector":
		response = map[string]interface{}{"status": "Unlocked"}
	default:
		s.sendCallError(msgID, "NotImplemented", fmt.Sprintf("Action %s not implemented", action))
		return
	}

	s.sendCallResult(msgID, response)
}

// --- Request Handlers ---

func (s *Simulator) handleRemoteStart(payload json.RawMessage) map[string]interface{} {
	var req struct {
		IDTag       string `json:"idTag"`
		ConnectorID *int   `json:"connectorId"`
	}
	json.Unmarshal(payload, &req)

	connectorID := 1
	if req.ConnectorID != nil {
		connectorID = *req.ConnectorID
	}

	s.log.Info("Remote start accepted",
		zap.String("idTag", req.IDTag),
		zap.Int("connectorID", connectorID),
	)

	// The real StartTransaction goes out after the reply, like hardware does
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.startTransaction(connectorID, req.IDTag)
	}()

	return map[string]interface{}{"status": "Accepted"}
}

func (s *Simulator) handleRemoteStop(payload json.RawMessage) map[string]interface{} {
	var req struct {
		TransactionID int `json:"transactionId"`
	}
	json.Unmarshal(payload, &req)

	if !s.isCharging || s.currentTxID != req.TransactionID {
		return map[string]interface{}{"status": "Rejected"}
	}

	s.log.Info("Remote stop accepted", zap.Int("transactionID", req.TransactionID))

	go func() {
		time.Sleep(100 * time.Millisecond)
		s.stopTransaction("Remote")
	}()

	return map[string]interface{}{"status": "Accepted"}
}

func (s *Simulator) handleReset(payload json.RawMessage) map[string]interface{} {
	var req struct {
		Type string `json:"type"`
	}
	json.Unmarshal(payload, &req)

	s.log.Info("Reset requested", zap.String("type", req.Type))

	go func() {
		if s.isCharging {
			s.stopTransaction("Reboot")
		}
		time.Sleep(500 * time.Millisecond)

		for i := range s.connectors {
			s.connectors[i].Status = "Available"
			s.connectors[i].IsCharging = false
		}

		s.sendBootNotification()
		for _, conn := range s.connectors {
			s.sendStatusNotification(conn.ID, conn.Status, "NoError")
		}
	}()

	return map[string]interface{}{"status": "Accepted"}
}

func (s *Simulator) handleTriggerMessage(payload json.RawMessage) map[string]interface{} {
	var req struct {
		RequestedMessage string `json:"requestedMessage"`
		ConnectorID      *int   `json:"connectorId"`
	}
	json.Unmarshal(payload, &req)

	s.log.Info("Trigger message", zap.String("message", req.RequestedMessage))

	go func() {
		time.Sleep(100 * time.Millisecond)
		switch req.RequestedMessage {
		case "BootNotification":
			s.sendBootNotification()
		case "Heartbeat":
			s.sendHeartbeat()
		case "StatusNotification":
			for _, conn := range s.connectors {
				if req.ConnectorID == nil || *req.ConnectorID == conn.ID {
					s.sendStatusNotification(conn.ID, conn.Status, "NoError")
				}
			}
		case "MeterValues":
			if s.isCharging && len(s.connectors) > 0 {
				s.sendMeterValues(1, s.connectors[0].MeterWh)
			}
		case "FirmwareStatusNotification":
			s.sendFirmwareStatus("Idle")
		case "DiagnosticsStatusNotification":
			s.sendDiagnosticsStatus("Idle")
		}
	}()

	return map[string]interface{}{"status": "Accepted"}
}

func (s *Simulator) handleGetConfiguration(payload json.RawMessage) map[string]interface{} {
	var req struct {
		Key []string `json:"key"`
	}
	json.Unmarshal(payload, &req)

	var keys []map[string]interface{}
	var unknown []string

	if len(req.Key) == 0 {
		for k, v := range s.configKeys {
			keys = append(keys, map[string]interface{}{"key": k, "readonly": false, "value": v})
		}
	} else {
		for _, k := range req.Key {
			if v, ok := s.configKeys[k]; ok {
				keys = append(keys, map[string]interface{}{"key": k, "readonly": false, "value": v})
			} else {
				unknown = append(unknown, k)
			}
		}
	}

	resp := map[string]interface{}{"configurationKey": keys}
	if len(unknown) > 0 {
		resp["unknownKey"] = unknown
	}
	return resp
}

func (s *Simulator) handleChangeConfiguration(payload json.RawMessage) map[string]interface{} {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	json.Unmarshal(payload, &req)

	s.configKeys[req.Key] = req.Value
	if req.Key == "HeartbeatInterval" {
		if v, err := strconv.Atoi(req.Value); err == nil && v > 0 {
			s.heartbeatInterval = v
		}
	}

	return map[string]interface{}{"status": "Accepted"}
}

func (s *Simulator) handleSendLocalList(payload json.RawMessage) map[string]interface{} {
	var req struct {
		ListVersion int `json:"listVersion"`
	}
	json.Unmarshal(payload, &req)

	s.localListVersion = req.ListVersion
	s.log.Info("Local list updated", zap.Int("version", req.ListVersion))

	return map[string]interface{}{"status": "Accepted"}
}

func (s *Simulator) handleDataTransfer(payload json.RawMessage) map[string]interface{} {
	var req struct {
		VendorID  string          `json:"vendorId"`
		MessageID string          `json:"messageId"`
		Data      json.RawMessage `json:"data"`
	}
	json.Unmarshal(payload, &req)

	s.log.Info("DataTransfer received",
		zap.String("vendorId", req.VendorID),
		zap.String("messageId", req.MessageID),
		zap.ByteString("data", req.Data),
	)

	return map[string]interface{}{"status": "Accepted"}
}

func (s *Simulator) handleChangeAvailability(payload json.RawMessage) map[string]interface{} {
	var req struct {
		ConnectorID int    `json:"connectorId"`
		Type        string `json:"type"`
	}
	json.Unmarshal(payload, &req)

	status := "Available"
	if req.Type == "Inoperative" {
		status = "Unavailable"
	}

	if req.ConnectorID == 0 {
		for i := range s.connectors {
			s.connectors[i].Status = status
		}
	} else if req.ConnectorID <= len(s.connectors) {
		s.connectors[req.ConnectorID-1].Status = status
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		for _, conn := range s.connectors {
			if req.ConnectorID == 0 || req.ConnectorID == conn.ID {
				s.sendStatusNotification(conn.ID, conn.Status, "NoError")
			}
		}
	}()

	return map[string]interface{}{"status": "Accepted"}
}

func (s *Simulator) handleReserveNow(payload json.RawMessage) map[string]interface{} {
	var req struct {
		ConnectorID   int    `json:"connectorId"`
		ReservationID int    `json:"reservationId"`
		IDTag         string `json:"idTag"`
	}
	json.Unmarshal(payload, &req)

	if req.ConnectorID > 0 && req.ConnectorID <= len(s.connectors) {
		s.connectors[req.ConnectorID-1].Status = "Reserved"
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.sendStatusNotification(req.ConnectorID, "Reserved", "NoError")
		}()
	}

	return map[string]interface{}{"status": "Accepted"}
}

func (s *Simulator) handleUpdateFirmware(payload json.RawMessage) map[string]interface{} {
	var req struct {
		Location string `json:"location"`
	}
	json.Unmarshal(payload, &req)

	s.log.Info("Firmware update requested", zap.String("location", req.Location))

	go func() {
		statuses := []string{"Downloading", "Downloaded", "Installing", "Installed"}
		for _, status := range statuses {
			time.Sleep(1 * time.Second)
			s.sendFirmwareStatus(status)
		}
	}()

	return map[string]interface{}{}
}

func (s *Simulator) handleGetDiagnostics(payload json.RawMessage) map[string]interface{} {
	var req struct {
		Location string `json:"location"`
	}
	json.Unmarshal(payload, &req)

	fileName := fmt.Sprintf("diag-%s-%d.log", s.config.ChargePointID, time.Now().Unix())
	s.log.Info("Diagnostics requested", zap.String("location", req.Location))

	go func() {
		statuses := []string{"Uploading", "Uploaded"}
		for _, status := range statuses {
			time.Sleep(1 * time.Second)
			s.sendDiagnosticsStatus(status)
		}
	}()

	return map[string]interface{}{"fileName": fileName}
}

// --- Transaction helpers ---

func (s *Simulator) startTransaction(connectorID int, idTag string) {
	meterStart := 0
	if connectorID <= len(s.connectors) {
		meterStart = s.connectors[connectorID-1].MeterWh
	}

	resp, err := s.sendCall("StartTransaction", map[string]interface{}{
		"connectorId": connectorID,
		"idTag":       idTag,
		"meterStart":  meterStart,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.log.Error("StartTransaction failed", zap.Error(err))
		return
	}

	if txID, ok := resp["transactionId"].(float64); ok {
		s.currentTxID = int(txID)
		s.isCharging = true
		if connectorID <= len(s.connectors) {
			s.connectors[connectorID-1].Status = "Charging"
			s.connectors[connectorID-1].IsCharging = true
		}
		s.log.Info("Transaction started", zap.Int("transactionID", s.currentTxID))
		s.sendStatusNotification(connectorID, "Charging", "NoError")
	}
}

func (s *Simulator) stopTransaction(reason string) {
	meterStop := 0
	connectorID := 0
	for i := range s.connectors {
		if s.connectors[i].IsCharging {
			connectorID = s.connectors[i].ID
			meterStop = s.connectors[i].MeterWh
			s.connectors[i].Status = "Available"
			s.connectors[i].IsCharging = false
		}
	}

	_, err := s.sendCall("StopTransaction", map[string]interface{}{
		"transactionId": s.currentTxID,
		"meterStop":     meterStop,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
		"reason":        reason,
	})
	if err != nil {
		s.log.Error("StopTransaction failed", zap.Error(err))
	}

	s.isCharging = false
	if connectorID > 0 {
		s.sendStatusNotification(connectorID, "Available", "NoError")
	}
}

// --- Outgoing Messages ---

func (s *Simulator) sendCall(action string, payload interface{}) (map[string]interface{}, error) {
	s.mu.Lock()
	s.messageID++
	msgID := fmt.Sprintf("%d", s.messageID)
	responseChan := make(chan []byte, 1)
	s.pendingMsgs[msgID] = responseChan
	s.mu.Unlock()

	msg := []interface{}{2, msgID, action, payload}
	data, _ := json.Marshal(msg)

	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return nil, err
	}

	select {
	case respData, ok := <-responseChan:
		if !ok {
			return nil, fmt.Errorf("server returned CallError for %s", action)
		}
		var result map[string]interface{}
		json.Unmarshal(respData, &result)
		return result, nil
	case <-time.After(30 * time.Second):
		return nil, fmt.Errorf("timeout waiting for response")
	}
}

func (s *Simulator) sendCallResult(msgID string, payload interface{}) {
	msg := []interface{}{3, msgID, payload}
	data, _ := json.Marshal(msg)
	s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Simulator) sendCallError(msgID, code, desc string) {
	msg := []interface{}{4, msgID, code, desc, map[string]string{}}
	data, _ := json.Marshal(msg)
	s.conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Simulator) sendBootNotification() (map[string]interface{}, error) {
	payload := map[string]interface{}{
		"chargePointVendor":       s.config.Vendor,
		"chargePointModel":        s.config.Model,
		"chargePointSerialNumber": s.config.SerialNumber,
		"firmwareVersion":         s.config.FirmwareVersion,
	}
	return s.sendCall("BootNotification", payload)
}

func (s *Simulator) sendHeartbeat() {
	s.sendCall("Heartbeat", map[string]interface{}{})
}

func (s *Simulator) sendAuthorize(idTag string) {
	resp, err := s.sendCall("Authorize", map[string]interface{}{"idTag": idTag})
	if err != nil {
		s.log.Error("Authorize failed", zap.Error(err))
		return
	}
	s.log.Info("Authorize response", zap.Any("response", resp))
}

func (s *Simulator) sendStatusNotification(connectorID int, status, errorCode string) {
	payload := map[string]interface{}{
		"connectorId": connectorID,
		"status":      status,
		"errorCode":   errorCode,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	}
	s.sendCall("StatusNotification", payload)
}

func (s *Simulator) sendMeterValues(connectorID, valueWh int) {
	payload := map[string]interface{}{
		"connectorId": connectorID,
		"meterValue": []map[string]interface{}{
			{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
				"sampledValue": []map[string]interface{}{
					{
						"value":     fmt.Sprintf("%d", valueWh),
						"measurand": "Energy.Active.Import.Register",
						"unit":      "Wh",
					},
				},
			},
		},
	}
	if s.isCharging {
		payload["transactionId"] = s.currentTxID
	}
	s.sendCall("MeterValues", payload)
}

func (s *Simulator) sendDataTransfer(vendorID, messageID, data string) {
	payload := map[string]interface{}{
		"vendorId": vendorID,
	}
	if messageID != "" {
		payload["messageId"] = messageID
	}
	if data != "" {
		payload["data"] = data
	}
	resp, err := s.sendCall("DataTransfer", payload)
	if err != nil {
		s.log.Error("DataTransfer failed", zap.Error(err))
		return
	}
	s.log.Info("DataTransfer response", zap.Any("response", resp))
}

func (s *Simulator) sendFirmwareStatus(status string) {
	s.sendCall("FirmwareStatusNotification", map[string]interface{}{"status": status})
}

func (s *Simulator) sendDiagnosticsStatus(status string) {
	s.sendCall("DiagnosticsStatusNotification", map[string]interface{}{"status": status})
}

func (s *Simulator) heartbeatLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(time.Duration(s.heartbeatInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sendHeartbeat()
		}
	}
}

// RunInteractive runs the simulator in interactive mode
func (s *Simulator) RunInteractive() {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		parts := strings.Fields(line)

		if len(parts) == 0 {
			fmt.Print("> ")
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "start":
			connID := 1
			if len(args) > 0 {
				connID, _ = strconv.Atoi(args[0])
			}
			s.startTransaction(connID, s.config.IDTag)
			fmt.Printf("Started charging on connector %d, TX: %d\n", connID, s.currentTxID)

		case "stop":
			if s.isCharging {
				s.stopTransaction("Local")
				fmt.Println("Stopped charging")
			} else {
				fmt.Println("Not currently charging")
			}

		case "authorize":
			tag := s.config.IDTag
			if len(args) > 0 {
				tag = args[0]
			}
			s.sendAuthorize(tag)

		case "status":
			if len(args) < 1 {
				fmt.Println("Usage: status <connector> [status]")
			} else {
				connID, _ := strconv.Atoi(args[0])
				status := "Available"
				if len(args) > 1 {
					status = args[1]
				}
				s.sendStatusNotification(connID, status, "NoError")
				fmt.Printf("Sent status %s for connector %d\n", status, connID)
			}

		case "meter":
			if len(args) < 1 {
				fmt.Println("Usage: meter <valueWh>")
			} else {
				value, _ := strconv.Atoi(args[0])
				if len(s.connectors) > 0 {
					s.connectors[0].MeterWh = value
				}
				s.sendMeterValues(1, value)
				fmt.Printf("Sent meter value: %d Wh\n", value)
			}

		case "heartbeat":
			s.sendHeartbeat()
			fmt.Println("Sent heartbeat")

		case "data":
			if len(args) < 1 {
				fmt.Println("Usage: data <vendorId> [messageId] [data]")
			} else {
				messageID, data := "", ""
				if len(args) > 1 {
					messageID = args[1]
				}
				if len(args) > 2 {
					data = strings.Join(args[2:], " ")
				}
				s.sendDataTransfer(args[0], messageID, data)
			}

		case "fault":
			connID := 1
			if len(args) > 0 {
				connID, _ = strconv.Atoi(args[0])
			}
			s.sendStatusNotification(connID, "Faulted", "OtherError")
			fmt.Printf("Sent fault status for connector %d\n", connID)

		case "reset":
			fmt.Println("Simulating reset...")
			s.sendBootNotification()
			fmt.Println("Reset complete")

		case "quit", "exit":
			fmt.Println("Goodbye!")
			return

		default:
			fmt.Printf("Unknown command: %s\n", cmd)
		}

		fmt.Print("> ")
	}
}
