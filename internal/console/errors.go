package console

import (
	"errors"
	"net/http"

	"github.com/2beens/cfdnsadmin/internal/accounts"
	"github.com/2beens/cfdnsadmin/internal/upstream"
	"github.com/2beens/cfdnsadmin/pkg"

	log "github.com/sirupsen/logrus"
)

const (
	msgAccountNotFound = "Account not found"
	msgNoAccounts      = "No Cloudflare accounts configured. Please add an account first."
	msgInternal        = "Internal server error"
)

// writeError translates errors coming from the store or the upstream
// gateway into the JSON error envelope.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *upstream.Error
	switch {
	case errors.As(err, &apiErr):
		pkg.WriteError(w, apiErr.StatusCode, apiErr.Message, apiErr.Detail)
	case errors.Is(err, upstream.ErrAccountNotFound):
		pkg.WriteError(w, http.StatusNotFound, msgAccountNotFound, "")
	case errors.Is(err, upstream.ErrNoAccounts):
		pkg.WriteError(w, http.StatusBadRequest, msgNoAccounts, "")
	case errors.Is(err, upstream.ErrTimeout):
		pkg.WriteError(w, http.StatusGatewayTimeout, "Cloudflare API timeout", "The Cloudflare API did not respond in time")
	case errors.Is(err, accounts.ErrDuplicateID):
		pkg.WriteError(w, http.StatusConflict, "Account already exists", "")
	case errors.Is(err, accounts.ErrInvalidRecord):
		pkg.WriteError(w, http.StatusBadRequest, "Missing required fields: id, name, token", "")
	case errors.Is(err, accounts.ErrStorage):
		log.Errorf("accounts storage: %s", err)
		pkg.WriteError(w, http.StatusInternalServerError, msgInternal, "Failed to persist accounts")
	default:
		log.Errorf("unexpected error: %s", err)
		pkg.WriteError(w, http.StatusInternalServerError, msgInternal, "")
	}
}

func writeVerificationError(w http.ResponseWriter, verr *upstream.VerificationError) {
	if verr.ClientSide() {
		message := "API token is invalid or lacks permissions; it needs Zone:Read and DNS:Edit"
		if verr.Reason == upstream.ReasonWrongTokenType {
			message = "Malformed API token; use a custom API token, not the Global API Key"
		}
		pkg.WriteError(w, http.StatusBadRequest, message, "")
		return
	}

	if verr.Reason == upstream.ReasonTimeout {
		pkg.WriteError(w, http.StatusGatewayTimeout,
			"Failed to verify API token", "The Cloudflare API did not respond in time")
		return
	}
	log.Errorf("token verification: %s", verr)
	pkg.WriteError(w, http.StatusInternalServerError, "Failed to verify API token", verr.Error())
}
