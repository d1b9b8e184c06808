package pkg

import (
	"encoding/json"
	"net/http"

	log "github.com/sirupsen/logrus"
)

var ContentType = struct {
	JSON string
	Text string
}{
	JSON: "application/json",
	Text: "text/plain; charset=utf-8",
}

func WriteResponseBytes(w http.ResponseWriter, contentType string, message []byte, statusCode int) {
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.WriteHeader(statusCode)

	if _, err := w.Write(message); err != nil {
		log.Errorf("failed to write response: %s", err)
	}
}

func WriteTextResponseOK(w http.ResponseWriter, message string) {
	WriteResponseBytes(w, ContentType.Text, []byte(message), http.StatusOK)
}

// WriteJSON marshals v and writes it with the given status code.
// A marshal failure is answered with a bare 500 envelope.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Errorf("marshal json response: %s", err)
		WriteResponseBytes(
			w, ContentType.JSON,
			[]byte(`{"success":false,"error":"Internal server error"}`),
			http.StatusInternalServerError,
		)
		return
	}
	WriteResponseBytes(w, ContentType.JSON, data, statusCode)
}

func WriteJSONOK(w http.ResponseWriter, v any) {
	WriteJSON(w, http.StatusOK, v)
}

type ErrorEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type DataEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type MessageEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func WriteError(w http.ResponseWriter, statusCode int, errMsg, message string) {
	WriteJSON(w, statusCode, ErrorEnvelope{
		Success: false,
		Error:   errMsg,
		Message: message,
	})
}

func WriteData(w http.ResponseWriter, data any) {
	WriteJSONOK(w, DataEnvelope{
		Success: true,
		Data:    data,
	})
}

func WriteSuccessMessage(w http.ResponseWriter, message string) {
	WriteJSONOK(w, MessageEnvelope{
		Success: true,
		Message: message,
	})
}
