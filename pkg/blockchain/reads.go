package blockchain

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/RyanW02/waterledger/pkg/auditapp"
	"github.com/RyanW02/waterledger/pkg/ledger"
	"github.com/RyanW02/waterledger/pkg/proof"
	"github.com/RyanW02/waterledger/pkg/types/audit"
	"github.com/RyanW02/waterledger/pkg/verification"
	abci "github.com/cometbft/cometbft/abci/types"
	"github.com/pkg/errors"
)

var _ verification.EventSource = (*Client)(nil)

func (c *Client) TotalEvents(ctx context.Context) (uint64, error) {
	var res audit.EventCountResponse
	if err := c.queryJSON(ctx, auditapp.PathCount, &res); err != nil {
		return 0, err
	}

	return res.Count, nil
}

func (c *Client) EventIdAt(ctx context.Context, index uint64) (audit.EventId, error) {
	var res audit.EventIdAtResponse
	if err := c.queryJSON(ctx, auditapp.PathEventIdAt(index), &res); err != nil {
		return 0, err
	}

	return res.EventId, nil
}

func (c *Client) HasRole(ctx context.Context, role audit.Role, principal audit.Principal) (bool, error) {
	var res audit.RoleResponse
	if err := c.queryJSON(ctx, auditapp.PathRole(role, principal), &res); err != nil {
		return false, err
	}

	return res.Held, nil
}

// GetEvent fetches an event and checks it against the merkle proof returned with it.
func (c *Client) GetEvent(ctx context.Context, eventId audit.EventId) (audit.AuditEvent, error) {
	var event audit.AuditEvent
	if err := c.queryProven(ctx, auditapp.PathEvent(eventId), ledger.EventKey(eventId), &event); err != nil {
		return audit.AuditEvent{}, err
	}

	if event.EventId != eventId {
		return audit.AuditEvent{}, errors.Wrapf(proof.ErrValueMismatch, "requested event %d, got %d", eventId, event.EventId)
	}

	return event, nil
}

func (c *Client) GetDevice(ctx context.Context, deviceId audit.DeviceId) (audit.Device, error) {
	var device audit.Device
	if err := c.queryProven(ctx, auditapp.PathDevice(deviceId), ledger.DeviceKey(deviceId), &device); err != nil {
		return audit.Device{}, err
	}

	return device, nil
}

// queryProven decodes the proven value into v. A not found answer is only returned once its proof of absence
// checks out.
func (c *Client) queryProven(ctx context.Context, path string, key []byte, v any) error {
	res, err := c.query(ctx, path)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			if proofErr := validate(res, key, nil); proofErr != nil {
				return proofErr
			}
		}

		return err
	}

	if err := validate(res, key, res.Value); err != nil {
		return err
	}

	return json.Unmarshal(res.Value, v)
}

func validate(res abci.ResponseQuery, key []byte, value []byte) error {
	if err := proof.ValidateProofOps(res.ProofOps, value); err != nil {
		return err
	}

	if !bytes.Equal(res.ProofOps.Ops[0].Key, key) {
		return ErrProofKeyMismatch
	}

	return nil
}
