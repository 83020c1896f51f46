package blockchain

import (
	"context"

	"github.com/RyanW02/waterledger/pkg/ledger"
	"github.com/RyanW02/waterledger/pkg/types/audit"
)

func (c *Client) GrantRole(ctx context.Context, role audit.Role, principal audit.Principal) error {
	return c.broadcast(ctx, audit.RequestTypeGrantRole, audit.PayloadGrantRole{
		Role:      role,
		Principal: principal,
	}, nil)
}

func (c *Client) RevokeRole(ctx context.Context, role audit.Role, principal audit.Principal) error {
	return c.broadcast(ctx, audit.RequestTypeRevokeRole, audit.PayloadRevokeRole{
		Role:      role,
		Principal: principal,
	}, nil)
}

func (c *Client) RegisterDevice(ctx context.Context, deviceId audit.DeviceId, label, zone string) (audit.Device, error) {
	var res audit.RegisterDeviceResponse
	if err := c.broadcast(ctx, audit.RequestTypeRegisterDevice, audit.PayloadRegisterDevice{
		DeviceId: deviceId,
		Label:    label,
		Zone:     zone,
	}, &res); err != nil {
		return audit.Device{}, err
	}

	return res.Device, nil
}

// AnchorEvent returns the id the ledger assigned once the transaction is in a block.
func (c *Client) AnchorEvent(ctx context.Context, anchor ledger.Anchor) (audit.EventId, error) {
	var res audit.AnchorEventResponse
	if err := c.broadcast(ctx, audit.RequestTypeAnchorEvent, audit.PayloadAnchorEvent{
		DeviceId:  anchor.DeviceId,
		EventType: anchor.EventType,
		Timestamp: anchor.Timestamp,
		Digest:    anchor.Digest,
		Locator:   anchor.Locator,
	}, &res); err != nil {
		return 0, err
	}

	return res.EventId, nil
}
