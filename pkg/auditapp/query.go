package auditapp

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/RyanW02/waterledger/pkg/ledger"
	"github.com/RyanW02/waterledger/pkg/multiplexer"
	"github.com/RyanW02/waterledger/pkg/proof"
	"github.com/RyanW02/waterledger/pkg/types/audit"
	abci "github.com/cometbft/cometbft/abci/types"
	"go.uber.org/zap"
)

const PathCount = "/count"

var (
	// /event-id-at/{index}
	eventIdAtRegex = regexp.MustCompile(`^/event-id-at/(\d+)$`)
	// /event/{event_id}
	eventRegex = regexp.MustCompile(`^/event/(\d+)$`)
	// /device/{device_id}
	deviceRegex = regexp.MustCompile(`^/device/(.+)$`)
	// /role/{role}/{principal}
	roleRegex = regexp.MustCompile(`^/role/([^/]+)/([^/]+)$`)
)

func PathEventIdAt(index uint64) string {
	return "/event-id-at/" + strconv.FormatUint(index, 10)
}

func PathEvent(id audit.EventId) string {
	return "/event/" + id.String()
}

func PathDevice(id audit.DeviceId) string {
	return "/device/" + id.String()
}

func PathRole(role audit.Role, principal audit.Principal) string {
	return "/role/" + role.String() + "/" + principal.String()
}

func (app *AuditApp) Query(ctx context.Context, req *abci.RequestQuery) (*abci.ResponseQuery, error) {
	if req.Path == PathCount {
		count, err := app.Ledger.TotalEvents()
		if err != nil {
			app.logger.Error("Got error getting event count", zap.Error(err))
			return multiplexer.NewErrorResponse(audit.CodeUnknownError, audit.Codespace, err).IntoQueryResponse(), nil
		}

		return app.jsonResponse(req, "event count", audit.EventCountResponse{Count: count}), nil
	}

	if match := eventIdAtRegex.FindStringSubmatch(req.Path); len(match) == 2 {
		return app.queryEventIdAt(req, match[1]), nil
	}

	if match := eventRegex.FindStringSubmatch(req.Path); len(match) == 2 {
		return app.queryEvent(req, match[1]), nil
	}

	if match := roleRegex.FindStringSubmatch(req.Path); len(match) == 3 {
		return app.queryRole(req, audit.Role(match[1]), audit.Principal(match[2])), nil
	}

	if match := deviceRegex.FindStringSubmatch(req.Path); len(match) == 2 {
		return app.queryDevice(req, audit.DeviceId(match[1])), nil
	}

	return multiplexer.NewErrorResponse(
		multiplexer.CodeInvalidQueryPath,
		multiplexer.Codespace,
		fmt.Errorf("unknown query path %q", req.Path),
	).IntoQueryResponse(), nil
}

func (app *AuditApp) queryEventIdAt(req *abci.RequestQuery, raw string) *abci.ResponseQuery {
	index, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return multiplexer.NewErrorResponse(audit.CodeOutOfRange, audit.Codespace, err).IntoQueryResponse()
	}

	eventId, err := app.Ledger.EventIdAt(index)
	if err != nil {
		return app.errorResponse(err)
	}

	return app.jsonResponse(req, "event id", audit.EventIdAtResponse{Index: index, EventId: eventId})
}

func (app *AuditApp) queryEvent(req *abci.RequestQuery, raw string) *abci.ResponseQuery {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return multiplexer.NewErrorResponse(audit.CodeNotFound, audit.Codespace, err).IntoQueryResponse()
	}

	eventId := audit.EventId(id)

	ev, err := app.Ledger.GetEventWithProof(eventId)
	if err != nil {
		return app.errorResponse(err)
	}

	return proofResponse(req, ev, ledger.EventKey(eventId), "event")
}

func (app *AuditApp) queryDevice(req *abci.RequestQuery, deviceId audit.DeviceId) *abci.ResponseQuery {
	device, err := app.Ledger.GetDeviceWithProof(deviceId)
	if err != nil {
		return app.errorResponse(err)
	}

	return proofResponse(req, device, ledger.DeviceKey(deviceId), "device")
}

func (app *AuditApp) queryRole(req *abci.RequestQuery, role audit.Role, principal audit.Principal) *abci.ResponseQuery {
	held, err := app.Ledger.HasRole(role, principal)
	if err != nil {
		return app.errorResponse(err)
	}

	return app.jsonResponse(req, "role", audit.RoleResponse{Role: role, Principal: principal, Held: held})
}

// proofResponse answers with the committed encoding of the item, so that the proof can be checked against the
// exact bytes returned. A missing item is answered with a proof of absence.
func proofResponse[T any](req *abci.RequestQuery, item proof.ItemWithProof[T], key []byte, name string) *abci.ResponseQuery {
	height := req.Height
	if height == 0 {
		height = item.Height
	}

	res := &abci.ResponseQuery{
		Code:      audit.CodeOk,
		Log:       name + " found",
		Index:     item.Index,
		Key:       key,
		Value:     item.Value,
		ProofOps:  item.ProofOps(),
		Height:    height,
		Codespace: audit.Codespace,
	}

	if item.Item == nil {
		res.Code = audit.CodeNotFound
		res.Log = name + " not found"
		res.Value = nil
	}

	return res
}

func (app *AuditApp) jsonResponse(req *abci.RequestQuery, log string, value any) *abci.ResponseQuery {
	marshalled, err := json.Marshal(value)
	if err != nil {
		app.logger.Error("Got error marshalling query response", zap.Error(err), zap.String("path", req.Path))
		return multiplexer.NewErrorResponse(audit.CodeUnknownError, audit.Codespace, err).IntoQueryResponse()
	}

	return &abci.ResponseQuery{
		Code:      audit.CodeOk,
		Log:       log,
		Height:    req.Height,
		Value:     marshalled,
		Codespace: audit.Codespace,
	}
}

func (app *AuditApp) errorResponse(err error) *abci.ResponseQuery {
	code := CodeForError(err)
	if code == audit.CodeUnknownError {
		app.logger.Error("Got unexpected error answering query", zap.Error(err))
	}

	return multiplexer.NewErrorResponse(code, audit.Codespace, err).IntoQueryResponse()
}
