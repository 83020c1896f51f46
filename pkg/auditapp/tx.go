package auditapp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/RyanW02/waterledger/internal/utils"
	"github.com/RyanW02/waterledger/pkg/ledger"
	"github.com/RyanW02/waterledger/pkg/multiplexer"
	"github.com/RyanW02/waterledger/pkg/types/audit"
	"github.com/RyanW02/waterledger/pkg/types/rpc"
	abci "github.com/cometbft/cometbft/abci/types"
	"go.uber.org/zap"
)

// txHandler applies a decoded request to the ledger, returning the response data and the events to emit.
type txHandler func(app *AuditApp, caller audit.Principal, data json.RawMessage) (any, []abci.Event, error)

var handlers = map[rpc.RequestType]txHandler{
	audit.RequestTypeGrantRole:      handleGrantRole,
	audit.RequestTypeRevokeRole:     handleRevokeRole,
	audit.RequestTypeRegisterDevice: handleRegisterDevice,
	audit.RequestTypeAnchorEvent:    handleAnchorEvent,
}

var payloadTypes = map[rpc.RequestType]func() any{
	audit.RequestTypeGrantRole:      func() any { return &audit.PayloadGrantRole{} },
	audit.RequestTypeRevokeRole:     func() any { return &audit.PayloadRevokeRole{} },
	audit.RequestTypeRegisterDevice: func() any { return &audit.PayloadRegisterDevice{} },
	audit.RequestTypeAnchorEvent:    func() any { return &audit.PayloadAnchorEvent{} },
}

// CheckTx only checks the signature, the nonce and the shape of the payload. Authorization depends on the state
// the transaction is executed against, so it is left to FinalizeBlock.
func (app *AuditApp) CheckTx(ctx context.Context, req *abci.RequestCheckTx, data json.RawMessage) (*abci.ResponseCheckTx, error) {
	decoded, errRes := app.decode(data)
	if errRes != nil {
		return errRes.IntoCheckTxResponse(), nil
	}

	newPayload, ok := payloadTypes[decoded.Type]
	if !ok {
		return multiplexer.NewErrorResponse(
			audit.CodeUnknownRequestType,
			audit.Codespace,
			fmt.Errorf("unknown request type: %s", decoded.Type),
		).IntoCheckTxResponse(), nil
	}

	if err := json.Unmarshal(decoded.Data, newPayload()); err != nil {
		app.logger.Warn("Got error decoding AuditApp payload", zap.Error(err), zap.String("type", string(decoded.Type)))
		return multiplexer.NewErrorResponse(audit.CodeMalformedRequest, audit.Codespace, err).IntoCheckTxResponse(), nil
	}

	if errRes := app.checkNonce(decoded); errRes != nil {
		return errRes.IntoCheckTxResponse(), nil
	}

	return &abci.ResponseCheckTx{
		Code:      audit.CodeOk,
		Codespace: audit.Codespace,
	}, nil
}

func (app *AuditApp) FinalizeBlock(ctx context.Context, req *abci.RequestFinalizeBlock, data json.RawMessage) multiplexer.FinalizeBlockResponse {
	decoded, errRes := app.decode(data)
	if errRes != nil {
		return errRes.IntoFinalizeBlockResponse()
	}

	handler, ok := handlers[decoded.Type]
	if !ok {
		return multiplexer.NewErrorResponse(
			audit.CodeUnknownRequestType,
			audit.Codespace,
			fmt.Errorf("unknown request type: %s", decoded.Type),
		).IntoFinalizeBlockResponse()
	}

	if errRes := app.checkNonce(decoded); errRes != nil {
		return errRes.IntoFinalizeBlockResponse()
	}

	// Deterministic
	app.Ledger.SetBlockTime(req.Time)

	res, events, err := handler(app, decoded.Principal, decoded.Data)
	if err != nil {
		code := CodeForError(err)
		if code == audit.CodeUnknownError {
			app.logger.Error("Got unexpected error executing AuditApp request", zap.Error(err), zap.String("type", string(decoded.Type)))
		} else {
			app.logger.Debug("Rejected AuditApp request", zap.Error(err), zap.String("type", string(decoded.Type)))
		}

		return multiplexer.NewErrorResponse(code, audit.Codespace, err).IntoFinalizeBlockResponse()
	}

	// Only applied transactions consume their nonce, so a rejected one leaves no state behind
	if err := app.Ledger.ConsumeNonce(decoded.Principal, decoded.Nonce); err != nil {
		app.logger.Error("Got error consuming nonce", zap.Error(err), zap.Stringer("requester", decoded.Principal))
		return multiplexer.NewErrorResponse(CodeForError(err), audit.Codespace, err).IntoFinalizeBlockResponse()
	}

	marshalled, err := json.Marshal(res)
	if err != nil {
		app.logger.Error("Got error marshalling AuditApp response", zap.Error(err))
		return multiplexer.NewErrorResponse(audit.CodeUnknownError, audit.Codespace, err).IntoFinalizeBlockResponse()
	}

	appHash, err := app.Ledger.Hash()
	if err != nil {
		app.logger.Error("Got error getting app hash", zap.Error(err))
		return multiplexer.NewErrorResponse(audit.CodeUnknownError, audit.Codespace, err).IntoFinalizeBlockResponse()
	}

	return multiplexer.FinalizeBlockResponse{
		TxResult: abci.ExecTxResult{
			Code:      audit.CodeOk,
			Data:      marshalled,
			Log:       string(decoded.Type),
			Events:    events,
			Codespace: audit.Codespace,
		},
		AppHash: appHash,
	}
}

// checkNonce rejects a request whose nonce the principal has already used. Nonces live in the ledger tree, so
// every node agrees and the check survives a restart.
func (app *AuditApp) checkNonce(decoded rpc.SignedPayload) *multiplexer.ErrorResponse {
	used, err := app.Ledger.NonceUsed(decoded.Principal, decoded.Nonce)
	if err != nil {
		app.logger.Error("Got error looking up nonce", zap.Error(err))
		return multiplexer.NewErrorResponse(audit.CodeUnknownError, audit.Codespace, err)
	}

	if used {
		app.logger.Warn("Rejected replayed AuditApp request", zap.Stringer("requester", decoded.Principal), zap.String("nonce", decoded.Nonce))
		return multiplexer.NewErrorResponse(
			audit.CodeReplayedNonce,
			audit.Codespace,
			fmt.Errorf("%w: %s", ledger.ErrReplayed, decoded.Nonce),
		)
	}

	return nil
}

func unmarshalPayload[T any](data json.RawMessage) (T, error) {
	var payload T
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("%w: %w", errMalformedPayload, err)
	}

	return payload, nil
}

func handleGrantRole(app *AuditApp, caller audit.Principal, data json.RawMessage) (any, []abci.Event, error) {
	payload, err := unmarshalPayload[audit.PayloadGrantRole](data)
	if err != nil {
		return nil, nil, err
	}

	if !payload.Principal.Valid() {
		return nil, nil, fmt.Errorf("%w: %s", ledger.ErrInvalidPrincipal, payload.Principal)
	}

	if err := app.Ledger.GrantRole(payload.Role, payload.Principal, caller); err != nil {
		return nil, nil, err
	}

	return audit.RoleResponse{Role: payload.Role, Principal: payload.Principal, Held: true}, []abci.Event{
		utils.Event(audit.EventRoleGranted,
			utils.Attribute(audit.AttributeRole, payload.Role.String()),
			utils.Attribute(audit.AttributePrincipal, payload.Principal.String()),
		),
	}, nil
}

func handleRevokeRole(app *AuditApp, caller audit.Principal, data json.RawMessage) (any, []abci.Event, error) {
	payload, err := unmarshalPayload[audit.PayloadRevokeRole](data)
	if err != nil {
		return nil, nil, err
	}

	if err := app.Ledger.RevokeRole(payload.Role, payload.Principal, caller); err != nil {
		return nil, nil, err
	}

	return audit.RoleResponse{Role: payload.Role, Principal: payload.Principal, Held: false}, []abci.Event{
		utils.Event(audit.EventRoleRevoked,
			utils.Attribute(audit.AttributeRole, payload.Role.String()),
			utils.Attribute(audit.AttributePrincipal, payload.Principal.String()),
		),
	}, nil
}

func handleRegisterDevice(app *AuditApp, caller audit.Principal, data json.RawMessage) (any, []abci.Event, error) {
	payload, err := unmarshalPayload[audit.PayloadRegisterDevice](data)
	if err != nil {
		return nil, nil, err
	}

	device, err := app.Ledger.RegisterDevice(payload.DeviceId, payload.Label, payload.Zone, caller)
	if err != nil {
		return nil, nil, err
	}

	return audit.RegisterDeviceResponse{Device: device}, []abci.Event{
		utils.Event(audit.EventDeviceRegistered,
			utils.Attribute(audit.AttributeDeviceId, device.DeviceId.String()),
			utils.Attribute(audit.AttributeZone, device.Zone),
			utils.Attribute(audit.AttributePrincipal, caller.String()),
		),
	}, nil
}

func handleAnchorEvent(app *AuditApp, caller audit.Principal, data json.RawMessage) (any, []abci.Event, error) {
	payload, err := unmarshalPayload[audit.PayloadAnchorEvent](data)
	if err != nil {
		return nil, nil, err
	}

	eventId, err := app.Ledger.AnchorEvent(ledger.Anchor{
		DeviceId:  payload.DeviceId,
		EventType: payload.EventType,
		Timestamp: payload.Timestamp,
		Digest:    payload.Digest,
		Locator:   payload.Locator,
	}, caller)
	if err != nil {
		return nil, nil, err
	}

	event, err := app.Ledger.GetEvent(eventId)
	if err != nil {
		return nil, nil, err
	}

	return audit.AnchorEventResponse{EventId: eventId}, []abci.Event{
		utils.Event(audit.EventAnchor,
			utils.Attribute(audit.AttributeEventId, eventId.String()),
			utils.Attribute(audit.AttributeDeviceId, event.DeviceId.String()),
			utils.Attribute(audit.AttributeEventType, event.EventType.String()),
			utils.Attribute(audit.AttributeDigest, event.Digest.String()),
			utils.Attribute(audit.AttributeLocator, event.Locator),
			utils.Attribute(audit.AttributePrincipal, caller.String()),
		),
	}, nil
}
