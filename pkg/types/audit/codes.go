package audit

const (
	Codespace string = "audit"

	CodeOk                 uint32 = 0
	CodeUnknownRequestType uint32 = iota + 1000
	CodeInvalidSignature
	CodeMalformedRequest
	CodeUnauthorized
	CodeUnknownRole
	CodeLastAdmin
	CodeConflict
	CodeInvalidDevice
	CodeUnknownDevice
	CodeInvalidEventType
	CodeInvalidDigest
	CodeOutOfRange
	CodeNotFound
	CodeTreeUninitialized
	CodeReplayedNonce
	CodeUnknownError
)
