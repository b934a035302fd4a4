package v16

import (
	"encoding/json"
	"fmt"
)

// OCPP-J message type identifiers.
const (
	MessageTypeCall       = 2
	MessageTypeCallResult = 3
	MessageTypeCallError  = 4
)

const maxUniqueIDLength = 36

// frame is one decoded OCPP-J envelope. Which fields are populated depends
// on MessageType.
type frame struct {
	MessageType      int
	UniqueID         string
	Action           string
	Payload          json.RawMessage
	ErrorCode        string
	ErrorDescription string
	ErrorDetails     json.RawMessage
}

// frameError is a decode failure. UniqueID carries the uid when one could
// be extracted, so the session can answer with a CALLERROR instead of
// closing.
type frameError struct {
	UniqueID string
	reason   string
}

func (e *frameError) Error() string { return e.reason }

// decodeFrame parses a raw OCPP-J array into a frame.
func decodeFrame(raw []byte) (*frame, error) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil {
		return nil, &frameError{reason: fmt.Sprintf("not a JSON array: %v", err)}
	}
	if len(parts) < 3 {
		return nil, &frameError{reason: fmt.Sprintf("message too short: %d elements", len(parts))}
	}

	var msgType int
	if err := json.Unmarshal(parts[0], &msgType); err != nil {
		return nil, &frameError{reason: "message type is not an integer"}
	}

	var uid string
	if err := json.Unmarshal(parts[1], &uid); err != nil {
		return nil, &frameError{reason: "unique id is not a string"}
	}
	if uid == "" || len(uid) > maxUniqueIDLength {
		return nil, &frameError{UniqueID: uid, reason: "unique id empty or too long"}
	}

	f := &frame{MessageType: msgType, UniqueID: uid}

	switch msgType {
	case MessageTypeCall:
		if len(parts) < 4 {
			return nil, &frameError{UniqueID: uid, reason: "CALL needs 4 elements"}
		}
		if err := json.Unmarshal(parts[2], &f.Action); err != nil || f.Action == "" {
			return nil, &frameError{UniqueID: uid, reason: "action is not a string"}
		}
		f.Payload = parts[3]
	case MessageTypeCallResult:
		f.Payload = parts[2]
	case MessageTypeCallError:
		if len(parts) < 5 {
			return nil, &frameError{UniqueID: uid, reason: "CALLERROR needs 5 elements"}
		}
		if err := json.Unmarshal(parts[2], &f.ErrorCode); err != nil {
			return nil, &frameError{UniqueID: uid, reason: "error code is not a string"}
		}
		if err := json.Unmarshal(parts[3], &f.ErrorDescription); err != nil {
			return nil, &frameError{UniqueID: uid, reason: "error description is not a string"}
		}
		f.ErrorDetails = parts[4]
	default:
		return nil, &frameError{UniqueID: uid, reason: fmt.Sprintf("unknown message type %d", msgType)}
	}

	return f, nil
}

func encodeCall(uid, action string, payload interface{}) ([]byte, error) {
	if payload == nil {
		payload = struct{}{}
	}
	return json.Marshal([]interface{}{MessageTypeCall, uid, action, payload})
}

func encodeCallResult(uid string, payload interface{}) ([]byte, error) {
	if payload == nil {
		payload = struct{}{}
	}
	return json.Marshal([]interface{}{MessageTypeCallResult, uid, payload})
}

func encodeCallError(uid, code, description string, details interface{}) ([]byte, error) {
	if details == nil {
		details = struct{}{}
	}
	return json.Marshal([]interface{}{MessageTypeCallError, uid, code, description, details})
}
