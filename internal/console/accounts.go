package console

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/2beens/cfdnsadmin/internal/telemetry/tracing"
	"github.com/2beens/cfdnsadmin/internal/upstream"
	"github.com/2beens/cfdnsadmin/pkg"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const maxAccountBodyBytes = 16 << 10

type addAccountRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Token string `json:"token"`
}

func (handler *Handler) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "consoleHandler.listAccounts")
	defer span.End()

	list := handler.store.List()
	span.SetAttributes(attribute.Int("accounts.count", len(list)))
	pkg.WriteData(w, list)
}

func (handler *Handler) handleAddAccount(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "consoleHandler.addAccount")
	defer span.End()

	var req addAccountRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxAccountBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debugf("add account, unmarshal json params: %s", err)
		span.SetStatus(codes.Error, "bad-json")
		pkg.WriteError(w, http.StatusBadRequest, "Invalid request body", "")
		return
	}
	if req.ID == "" || req.Name == "" || req.Token == "" {
		span.SetStatus(codes.Error, "missing-fields")
		pkg.WriteError(w, http.StatusBadRequest, "Missing required fields: id, name, token", "")
		return
	}

	span.SetAttributes(attribute.String("account.id", req.ID))

	if err := handler.gateway.VerifyNewToken(ctx, req.Token); err != nil {
		span.SetStatus(codes.Error, "verify-token")
		var verr *upstream.VerificationError
		if errors.As(err, &verr) {
			log.Warnf("add account [%s]: token rejected: %s", req.ID, verr.Reason)
			writeVerificationError(w, verr)
			return
		}
		writeError(w, err)
		return
	}

	record, err := handler.store.Add(req.ID, req.Name, req.Token)
	if err != nil {
		span.SetStatus(codes.Error, "store-add")
		span.RecordError(err)
		writeError(w, err)
		return
	}

	handler.updateAccountsGauge()
	log.Infof("account [%s] added", record.ID)
	span.SetStatus(codes.Ok, "ok")
	pkg.WriteData(w, record.Summary())
}

func (handler *Handler) handleRemoveAccount(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "consoleHandler.removeAccount")
	defer span.End()

	accountID := mux.Vars(r)["accountId"]
	span.SetAttributes(attribute.String("account.id", accountID))

	removed, err := handler.store.Remove(accountID)
	if err != nil {
		span.SetStatus(codes.Error, "store-remove")
		span.RecordError(err)
		writeError(w, err)
		return
	}
	if !removed {
		span.SetStatus(codes.Error, "not-found")
		pkg.WriteError(w, http.StatusNotFound, msgAccountNotFound, "")
		return
	}

	handler.updateAccountsGauge()
	log.Infof("account [%s] removed", accountID)
	span.SetStatus(codes.Ok, "ok")
	pkg.WriteSuccessMessage(w, "Account deleted successfully")
}
