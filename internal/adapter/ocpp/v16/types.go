package v16

import (
	"encoding/json"
	"time"

	"github.com/seu-repo/ocpp-csms/internal/domain"
)

// Wire payloads are camelCase per OCPP 1.6J; the rest of the system speaks
// snake_case. This file is the only place both spellings meet.

func ocppTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// --- charger-initiated actions ---

type bootNotificationReq struct {
	ChargePointVendor       string `json:"chargePointVendor"`
	ChargePointModel        string `json:"chargePointModel"`
	ChargePointSerialNumber string `json:"chargePointSerialNumber,omitempty"`
	ChargeBoxSerialNumber   string `json:"chargeBoxSerialNumber,omitempty"`
	FirmwareVersion         string `json:"firmwareVersion,omitempty"`
	Iccid                   string `json:"iccid,omitempty"`
	Imsi                    string `json:"imsi,omitempty"`
	MeterType               string `json:"meterType,omitempty"`
	MeterSerialNumber       string `json:"meterSerialNumber,omitempty"`
}

type bootNotificationConf struct {
	Status      string `json:"status"`
	CurrentTime string `json:"currentTime"`
	Interval    int    `json:"interval"`
}

type heartbeatConf struct {
	CurrentTime string `json:"currentTime"`
}

type statusNotificationReq struct {
	ConnectorID     int    `json:"connectorId"`
	ErrorCode       string `json:"errorCode"`
	Status          string `json:"status"`
	Timestamp       string `json:"timestamp,omitempty"`
	Info            string `json:"info,omitempty"`
	VendorID        string `json:"vendorId,omitempty"`
	VendorErrorCode string `json:"vendorErrorCode,omitempty"`
}

type idTagInfo struct {
	Status      string `json:"status"`
	ExpiryDate  string `json:"expiryDate,omitempty"`
	ParentIDTag string `json:"parentIdTag,omitempty"`
}

type authorizeReq struct {
	IDTag string `json:"idTag"`
}

type authorizeConf struct {
	IDTagInfo idTagInfo `json:"idTagInfo"`
}

type startTransactionReq struct {
	ConnectorID   int    `json:"connectorId"`
	IDTag         string `json:"idTag"`
	MeterStart    int    `json:"meterStart"`
	Timestamp     string `json:"timestamp"`
	ReservationID *int   `json:"reservationId,omitempty"`
}

type startTransactionConf struct {
	TransactionID int       `json:"transactionId"`
	IDTagInfo     idTagInfo `json:"idTagInfo"`
}

type stopTransactionReq struct {
	TransactionID   int             `json:"transactionId"`
	MeterStop       int             `json:"meterStop"`
	Timestamp       string          `json:"timestamp"`
	IDTag           string          `json:"idTag,omitempty"`
	Reason          string          `json:"reason,omitempty"`
	TransactionData json.RawMessage `json:"transactionData,omitempty"`
}

type sampledValue struct {
	Value     string `json:"value"`
	Context   string `json:"context,omitempty"`
	Format    string `json:"format,omitempty"`
	Measurand string `json:"measurand,omitempty"`
	Phase     string `json:"phase,omitempty"`
	Location  string `json:"location,omitempty"`
	Unit      string `json:"unit,omitempty"`
}

type meterValue struct {
	Timestamp    string         `json:"timestamp"`
	SampledValue []sampledValue `json:"sampledValue"`
}

type meterValuesReq struct {
	ConnectorID   int          `json:"connectorId"`
	TransactionID *int         `json:"transactionId,omitempty"`
	MeterValue    []meterValue `json:"meterValue"`
}

type dataTransferReq struct {
	VendorID  string          `json:"vendorId"`
	MessageID string          `json:"messageId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

type dataTransferConf struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
}

type firmwareStatusNotificationReq struct {
	Status string `json:"status"`
}

type diagnosticsStatusNotificationReq struct {
	Status string `json:"status"`
}

// --- CSMS-initiated actions ---

type remoteStartTransactionReq struct {
	IDTag           string               `json:"idTag"`
	ConnectorID     *int                 `json:"connectorId,omitempty"`
	ChargingProfile *wireChargingProfile `json:"chargingProfile,omitempty"`
}

type remoteStopTransactionReq struct {
	TransactionID int `json:"transactionId"`
}

type statusConf struct {
	Status string `json:"status"`
}

type getConfigurationReq struct {
	Key []string `json:"key,omitempty"`
}

type wireConfigurationKey struct {
	Key      string  `json:"key"`
	Readonly bool    `json:"readonly"`
	Value    *string `json:"value,omitempty"`
}

type getConfigurationConf struct {
	ConfigurationKey []wireConfigurationKey `json:"configurationKey,omitempty"`
	UnknownKey       []string               `json:"unknownKey,omitempty"`
}

type changeConfigurationReq struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type resetReq struct {
	Type string `json:"type"`
}

type triggerMessageReq struct {
	RequestedMessage string `json:"requestedMessage"`
	ConnectorID      *int   `json:"connectorId,omitempty"`
}

type authorizationData struct {
	IDTag     string     `json:"idTag"`
	IDTagInfo *idTagInfo `json:"idTagInfo,omitempty"`
}

type sendLocalListReq struct {
	ListVersion            int                 `json:"listVersion"`
	UpdateType             string              `json:"updateType"`
	LocalAuthorizationList []authorizationData `json:"localAuthorizationList,omitempty"`
}

type getLocalListVersionConf struct {
	ListVersion int `json:"listVersion"`
}

type changeAvailabilityReq struct {
	ConnectorID int    `json:"connectorId"`
	Type        string `json:"type"`
}

type reserveNowReq struct {
	ConnectorID   int    `json:"connectorId"`
	ExpiryDate    string `json:"expiryDate"`
	IDTag         string `json:"idTag"`
	ParentIDTag   string `json:"parentIdTag,omitempty"`
	ReservationID int    `json:"reservationId"`
}

type cancelReservationReq struct {
	ReservationID int `json:"reservationId"`
}

type wireChargingSchedulePeriod struct {
	StartPeriod  int     `json:"startPeriod"`
	Limit        float64 `json:"limit"`
	NumberPhases *int    `json:"numberPhases,omitempty"`
}

type wireChargingSchedule struct {
	Duration               *int                         `json:"duration,omitempty"`
	StartSchedule          string                       `json:"startSchedule,omitempty"`
	ChargingRateUnit       string                       `json:"chargingRateUnit"`
	ChargingSchedulePeriod []wireChargingSchedulePeriod `json:"chargingSchedulePeriod"`
	MinChargingRate        *float64                     `json:"minChargingRate,omitempty"`
}

type wireChargingProfile struct {
	ChargingProfileID      int                  `json:"chargingProfileId"`
	TransactionID          *int                 `json:"transactionId,omitempty"`
	StackLevel             int                  `json:"stackLevel"`
	ChargingProfilePurpose string               `json:"chargingProfilePurpose"`
	ChargingProfileKind    string               `json:"chargingProfileKind"`
	RecurrencyKind         string               `json:"recurrencyKind,omitempty"`
	ValidFrom              string               `json:"validFrom,omitempty"`
	ValidTo                string               `json:"validTo,omitempty"`
	ChargingSchedule       wireChargingSchedule `json:"chargingSchedule"`
}

type setChargingProfileReq struct {
	ConnectorID        int                 `json:"connectorId"`
	CsChargingProfiles wireChargingProfile `json:"csChargingProfiles"`
}

type clearChargingProfileReq struct {
	ID              *int    `json:"id,omitempty"`
	ConnectorID     *int    `json:"connectorId,omitempty"`
	ChargingProfile *string `json:"chargingProfilePurpose,omitempty"`
	StackLevel      *int    `json:"stackLevel,omitempty"`
}

type getCompositeScheduleReq struct {
	ConnectorID      int    `json:"connectorId"`
	Duration         int    `json:"duration"`
	ChargingRateUnit string `json:"chargingRateUnit,omitempty"`
}

type getCompositeScheduleConf struct {
	Status           string                `json:"status"`
	ConnectorID      *int                  `json:"connectorId,omitempty"`
	ScheduleStart    string                `json:"scheduleStart,omitempty"`
	ChargingSchedule *wireChargingSchedule `json:"chargingSchedule,omitempty"`
}

type updateFirmwareReq struct {
	Location      string `json:"location"`
	Retries       *int   `json:"retries,omitempty"`
	RetrieveDate  string `json:"retrieveDate"`
	RetryInterval *int   `json:"retryInterval,omitempty"`
}

type getDiagnosticsReq struct {
	Location      string `json:"location"`
	Retries       *int   `json:"retries,omitempty"`
	RetryInterval *int   `json:"retryInterval,omitempty"`
	StartTime     string `json:"startTime,omitempty"`
	StopTime      string `json:"stopTime,omitempty"`
}

type getDiagnosticsConf struct {
	FileName string `json:"fileName,omitempty"`
}

type unlockConnectorReq struct {
	ConnectorID int `json:"connectorId"`
}

// --- conversions between wire and domain profile shapes ---

func toWireProfile(p domain.ChargingProfile) wireChargingProfile {
	w := wireChargingProfile{
		ChargingProfileID:      p.ProfileID,
		TransactionID:          p.TransactionID,
		StackLevel:             p.StackLevel,
		ChargingProfilePurpose: p.Purpose,
		ChargingProfileKind:    p.Kind,
		RecurrencyKind:         p.RecurrencyKind,
		ChargingSchedule: wireChargingSchedule{
			Duration:         p.Schedule.Duration,
			ChargingRateUnit: p.Schedule.ChargingRateUnit,
			MinChargingRate:  p.Schedule.MinChargingRate,
		},
	}
	if p.ValidFrom != nil {
		w.ValidFrom = ocppTime(*p.ValidFrom)
	}
	if p.ValidTo != nil {
		w.ValidTo = ocppTime(*p.ValidTo)
	}
	if p.Schedule.StartSchedule != nil {
		w.ChargingSchedule.StartSchedule = ocppTime(*p.Schedule.StartSchedule)
	}
	for _, sp := range p.Schedule.ChargingSchedulePeriod {
		w.ChargingSchedule.ChargingSchedulePeriod = append(w.ChargingSchedule.ChargingSchedulePeriod, wireChargingSchedulePeriod{
			StartPeriod:  sp.StartPeriod,
			Limit:        sp.Limit,
			NumberPhases: sp.NumberPhases,
		})
	}
	return w
}

func fromWireSchedule(w wireChargingSchedule) *domain.ChargingSchedule {
	s := &domain.ChargingSchedule{
		Duration:         w.Duration,
		ChargingRateUnit: w.ChargingRateUnit,
		MinChargingRate:  w.MinChargingRate,
	}
	if w.StartSchedule != "" {
		if t, err := time.Parse(time.RFC3339, w.StartSchedule); err == nil {
			s.StartSchedule = &t
		}
	}
	for _, sp := range w.ChargingSchedulePeriod {
		s.ChargingSchedulePeriod = append(s.ChargingSchedulePeriod, domain.ChargingSchedulePeriod{
			StartPeriod:  sp.StartPeriod,
			Limit:        sp.Limit,
			NumberPhases: sp.NumberPhases,
		})
	}
	return s
}
