package v16

import (
	"encoding/json"
	"errors"
	"fmt"
)

// OCPP-J error codes used in CALLERROR frames.
const (
	ErrCodeNotImplemented       = "NotImplemented"
	ErrCodeNotSupported         = "NotSupported"
	ErrCodeInternalError        = "InternalError"
	ErrCodeProtocolError        = "ProtocolError"
	ErrCodeSecurityError        = "SecurityError"
	ErrCodeFormationViolation   = "FormationViolation"
	ErrCodePropertyConstraint   = "PropertyConstraintViolation"
	ErrCodeOccurenceConstraint  = "OccurenceConstraintViolation"
	ErrCodeTypeConstraint       = "TypeConstraintViolation"
	ErrCodeGenericError         = "GenericError"
)

var (
	// ErrChargerNotConnected means no live session exists for the id.
	// Commands fail fast; nothing is queued.
	ErrChargerNotConnected = errors.New("charger not connected")

	// ErrCallTimeout means the charger did not reply within the command
	// deadline. A late reply with the same uid is dropped.
	ErrCallTimeout = errors.New("call timed out")

	// ErrConnectionLost means the session closed while a call was in
	// flight.
	ErrConnectionLost = errors.New("connection lost")
)

// CallError is a CALLERROR frame received in reply to an outbound CALL.
type CallError struct {
	Code        string
	Description string
	Details     json.RawMessage
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call error %s: %s", e.Code, e.Description)
}

// protocolError is an inbound handler failure that maps to a CALLERROR
// reply. The receive loop never crashes on one.
type protocolError struct {
	code        string
	description string
}

func (e *protocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.description)
}

func newProtocolError(code, format string, args ...interface{}) *protocolError {
	return &protocolError{code: code, description: fmt.Sprintf(format, args...)}
}
