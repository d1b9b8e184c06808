package console

import (
	"github.com/2beens/cfdnsadmin/internal/accounts"
	"github.com/2beens/cfdnsadmin/internal/telemetry/metrics"
	"github.com/2beens/cfdnsadmin/internal/upstream"

	"github.com/gorilla/mux"
)

// Handler serves the account management and dns record endpoints.
type Handler struct {
	store          *accounts.Store
	gateway        *upstream.Gateway
	metricsManager *metrics.Manager
}

func NewHandler(
	store *accounts.Store,
	gateway *upstream.Gateway,
	metricsManager *metrics.Manager,
) *Handler {
	h := &Handler{
		store:          store,
		gateway:        gateway,
		metricsManager: metricsManager,
	}
	h.updateAccountsGauge()
	return h
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/accounts", handler.handleListAccounts).Methods("GET", "OPTIONS").Name("list-accounts")
	router.HandleFunc("/accounts", handler.handleAddAccount).Methods("POST", "OPTIONS").Name("add-account")
	router.HandleFunc("/accounts/{accountId}", handler.handleRemoveAccount).Methods("DELETE", "OPTIONS").Name("remove-account")

	accountRouter := router.PathPrefix("/accounts/{accountId}").Subrouter()
	accountRouter.HandleFunc("/zones", handler.handleListZones).Methods("GET", "OPTIONS").Name("list-zones")
	accountRouter.HandleFunc("/zones/{zoneId}/dns_records", handler.handleListRecords).Methods("GET", "OPTIONS").Name("list-records")
	accountRouter.HandleFunc("/zones/{zoneId}/dns_records", handler.handleCreateRecord).Methods("POST", "OPTIONS").Name("create-record")
	accountRouter.HandleFunc("/zones/{zoneId}/dns_records/{recordId}", handler.handleUpdateRecord).Methods("PUT", "OPTIONS").Name("update-record")
	accountRouter.HandleFunc("/zones/{zoneId}/dns_records/{recordId}", handler.handleDeleteRecord).Methods("DELETE", "OPTIONS").Name("delete-record")

	// legacy single-account routes, served with the oldest stored account
	router.HandleFunc("/zones", handler.handleListZones).Methods("GET", "OPTIONS").Name("legacy-list-zones")
	router.HandleFunc("/zones/{zoneId}/dns_records", handler.handleListRecords).Methods("GET", "OPTIONS").Name("legacy-list-records")
	router.HandleFunc("/zones/{zoneId}/dns_records", handler.handleCreateRecord).Methods("POST", "OPTIONS").Name("legacy-create-record")
	router.HandleFunc("/zones/{zoneId}/dns_records/{recordId}", handler.handleUpdateRecord).Methods("PUT", "OPTIONS").Name("legacy-update-record")
	router.HandleFunc("/zones/{zoneId}/dns_records/{recordId}", handler.handleDeleteRecord).Methods("DELETE", "OPTIONS").Name("legacy-delete-record")
}

func (handler *Handler) updateAccountsGauge() {
	if handler.metricsManager != nil {
		handler.metricsManager.GaugeAccounts.Set(float64(handler.store.Len()))
	}
}
