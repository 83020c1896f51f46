package audit

import (
	"encoding/hex"
	"strconv"

	"github.com/RyanW02/waterledger/pkg/digest"
)

// EventId of the first anchored event. Ids are dense and strictly increasing from here.
const FirstEventId EventId = 1

type EventId uint64

func (e EventId) String() string {
	return strconv.FormatUint(uint64(e), 10)
}

type EventType uint8

const (
	EventTypeTelemetryAnchor EventType = iota + 1
	EventTypeAlarm
	EventTypeControlAction
	EventTypeMaintenance
)

func (e EventType) Valid() bool {
	return e >= EventTypeTelemetryAnchor && e <= EventTypeMaintenance
}

func (e EventType) String() string {
	switch e {
	case EventTypeTelemetryAnchor:
		return "TelemetryAnchor"
	case EventTypeAlarm:
		return "Alarm"
	case EventTypeControlAction:
		return "ControlAction"
	case EventTypeMaintenance:
		return "Maintenance"
	default:
		return "Unknown(" + strconv.Itoa(int(e)) + ")"
	}
}

// AuditEvent is an anchored record on the ledger. The ledger never dereferences Locator, nor does it
// check Digest against the off-chain store.
type AuditEvent struct {
	EventId     EventId       `json:"event_id"`
	DeviceId    DeviceId      `json:"device_id"`
	EventType   EventType     `json:"event_type"`
	Timestamp   int64         `json:"timestamp"`
	Digest      digest.Digest `json:"digest"`
	Locator     string        `json:"locator"`
	SubmittedBy Principal     `json:"submitted_by"`
}

// HexBytes is a byte slice that is hex encoded in transit.
type HexBytes []byte

func (h HexBytes) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(h)), nil
}

func (h *HexBytes) UnmarshalText(text []byte) error {
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}

	*h = decoded
	return nil
}
