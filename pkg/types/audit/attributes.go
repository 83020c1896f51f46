package audit

// ABCI event types emitted on successful transactions
const (
	EventAnchor           = "anchor"
	EventDeviceRegistered = "device_registered"
	EventRoleGranted      = "role_granted"
	EventRoleRevoked      = "role_revoked"
)

const (
	AttributeEventId   = "event_id"
	AttributeDeviceId  = "device_id"
	AttributeEventType = "event_type"
	AttributeDigest    = "digest"
	AttributeLocator   = "locator"
	AttributePrincipal = "principal"
	AttributeRole      = "role"
	AttributeZone      = "zone"
)
