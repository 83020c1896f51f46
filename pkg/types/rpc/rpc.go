package rpc

import "encoding/json"

// MuxedRequest is the envelope of every ledger transaction. App selects the ABCI sub-application.
type MuxedRequest struct {
	App  string          `json:"app"`
	Data json.RawMessage `json:"data"`
}
