package audit

import "time"

type DeviceId string

func (d DeviceId) String() string {
	return string(d)
}

// Device is an entry in the device registry. Entries are never modified once registered.
type Device struct {
	DeviceId     DeviceId  `json:"device_id"`
	Label        string    `json:"label"`
	Zone         string    `json:"zone"`
	RegisteredBy Principal `json:"registered_by"`
	RegisteredAt time.Time `json:"registered_at"`
}
