package audit

type AnchorEventResponse struct {
	EventId EventId `json:"event_id"`
}

type RegisterDeviceResponse struct {
	Device Device `json:"device"`
}

type EventCountResponse struct {
	Count uint64 `json:"count"`
}

type EventIdAtResponse struct {
	Index   uint64  `json:"index"`
	EventId EventId `json:"event_id"`
}

type RoleResponse struct {
	Role      Role      `json:"role"`
	Principal Principal `json:"principal"`
	Held      bool      `json:"held"`
}
