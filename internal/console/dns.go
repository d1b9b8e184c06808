package console

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/2beens/cfdnsadmin/internal/telemetry/tracing"
	"github.com/2beens/cfdnsadmin/internal/upstream"
	"github.com/2beens/cfdnsadmin/pkg"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const maxRecordBodyBytes = 1 << 20

// clientFor picks the account from the route, or the oldest account for
// the legacy routes that carry no account id.
func (handler *Handler) clientFor(r *http.Request, span trace.Span) (*upstream.Client, error) {
	vars := mux.Vars(r)
	accountID, ok := vars["accountId"]
	if !ok {
		client, err := handler.gateway.FirstAccount()
		if err == nil {
			span.SetAttributes(attribute.String("account.id", client.AccountID()))
		}
		return client, err
	}

	span.SetAttributes(attribute.String("account.id", accountID))
	return handler.gateway.ForAccount(accountID)
}

// readRecordBody returns the request body when it is a JSON object.
func readRecordBody(r *http.Request) (json.RawMessage, bool) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRecordBodyBytes))
	if err != nil {
		return nil, false
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' || !json.Valid(data) {
		return nil, false
	}
	return data, true
}

func (handler *Handler) handleListZones(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "consoleHandler.listZones")
	defer span.End()

	client, err := handler.clientFor(r, span)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := client.ListZones(ctx, r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	pkg.WriteData(w, result)
}

func (handler *Handler) handleListRecords(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "consoleHandler.listRecords")
	defer span.End()

	zoneID := mux.Vars(r)["zoneId"]
	span.SetAttributes(attribute.String("zone.id", zoneID))

	client, err := handler.clientFor(r, span)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := client.ListRecords(ctx, zoneID, r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}

	pkg.WriteData(w, result)
}

func (handler *Handler) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "consoleHandler.createRecord")
	defer span.End()

	zoneID := mux.Vars(r)["zoneId"]
	span.SetAttributes(attribute.String("zone.id", zoneID))

	client, err := handler.clientFor(r, span)
	if err != nil {
		writeError(w, err)
		return
	}

	record, ok := readRecordBody(r)
	if !ok {
		pkg.WriteError(w, http.StatusBadRequest, "Invalid request body", "DNS record must be a JSON object")
		return
	}

	result, err := client.CreateRecord(ctx, zoneID, record)
	if err != nil {
		writeError(w, err)
		return
	}

	pkg.WriteData(w, result)
}

func (handler *Handler) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "consoleHandler.updateRecord")
	defer span.End()

	vars := mux.Vars(r)
	zoneID, recordID := vars["zoneId"], vars["recordId"]
	span.SetAttributes(
		attribute.String("zone.id", zoneID),
		attribute.String("record.id", recordID),
	)

	client, err := handler.clientFor(r, span)
	if err != nil {
		writeError(w, err)
		return
	}

	record, ok := readRecordBody(r)
	if !ok {
		pkg.WriteError(w, http.StatusBadRequest, "Invalid request body", "DNS record must be a JSON object")
		return
	}

	result, err := client.UpdateRecord(ctx, zoneID, recordID, record)
	if err != nil {
		writeError(w, err)
		return
	}

	pkg.WriteData(w, result)
}

func (handler *Handler) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "consoleHandler.deleteRecord")
	defer span.End()

	vars := mux.Vars(r)
	zoneID, recordID := vars["zoneId"], vars["recordId"]
	span.SetAttributes(
		attribute.String("zone.id", zoneID),
		attribute.String("record.id", recordID),
	)

	client, err := handler.clientFor(r, span)
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := client.DeleteRecord(ctx, zoneID, recordID)
	if err != nil {
		writeError(w, err)
		return
	}

	pkg.WriteData(w, result)
}
