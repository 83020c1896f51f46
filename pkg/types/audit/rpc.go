package audit

const (
	AppName = "audit"

	RequestTypeGrantRole      = "grant_role"
	RequestTypeRevokeRole     = "revoke_role"
	RequestTypeRegisterDevice = "register_device"
	RequestTypeAnchorEvent    = "anchor_event"
)

// Genesis is the app_state document read on InitChain.
type Genesis struct {
	Admins []Principal `json:"admins"`
}

type PayloadGrantRole struct {
	Role      Role      `json:"role"`
	Principal Principal `json:"principal"`
}

type PayloadRevokeRole struct {
	Role      Role      `json:"role"`
	Principal Principal `json:"principal"`
}

type PayloadRegisterDevice struct {
	DeviceId DeviceId `json:"device_id"`
	Label    string   `json:"label"`
	Zone     string   `json:"zone"`
}

type PayloadAnchorEvent struct {
	DeviceId  DeviceId  `json:"device_id"`
	EventType EventType `json:"event_type"`
	Timestamp int64     `json:"timestamp"`
	Digest    HexBytes  `json:"digest"`
	Locator   string    `json:"locator"`
}
