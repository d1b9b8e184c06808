package misc

import (
	"net/http"
	"time"

	"github.com/2beens/cfdnsadmin/pkg"

	"github.com/gorilla/mux"
)

type Handler struct {
	versionInfo string
	now         func() time.Time
}

func NewHandler(versionInfo string) *Handler {
	return &Handler{
		versionInfo: versionInfo,
		now:         time.Now,
	}
}

type healthResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type versionResponse struct {
	Success bool   `json:"success"`
	Version string `json:"version"`
}

func (handler *Handler) SetupRoutes(router *mux.Router) {
	router.HandleFunc("/health", handler.handleHealth).Methods("GET", "OPTIONS").Name("health")
	router.HandleFunc("/version", handler.handleGetVersionInfo).Methods("GET", "OPTIONS").Name("version")
}

func (handler *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteJSONOK(w, healthResponse{
		Success:   true,
		Message:   "Server is running",
		Timestamp: handler.now().UTC().Format(time.RFC3339Nano),
	})
}

func (handler *Handler) handleGetVersionInfo(w http.ResponseWriter, _ *http.Request) {
	pkg.WriteJSONOK(w, versionResponse{
		Success: true,
		Version: handler.versionInfo,
	})
}
