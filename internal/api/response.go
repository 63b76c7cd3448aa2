package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/mindscan-ai/mindscan/internal/genai"
	"github.com/mindscan-ai/mindscan/internal/models"
)

// Pre-marshaled fallback response to avoid runtime JSON encoding failures.
var fallbackErrorResponse []byte

func init() {
	var err error
	fallbackErrorResponse, err = json.Marshal(models.Error("Internal server error"))
	if err != nil {
		panic(fmt.Sprintf("Failed to marshal fallback error response at startup: %v", err))
	}
}

// writeJSONResponse writes a JSON response with the given status code. The
// payload is marshaled before any header is written so encoding errors can
// still fall back to a clean 500.
func writeJSONResponse(w http.ResponseWriter, statusCode int, response interface{}) {
	jsonData, err := json.Marshal(response)
	if err != nil {
		slog.Error("Server.writeJSONResponse: failed to marshal JSON response", "error", err)
		jsonData = fallbackErrorResponse
		statusCode = http.StatusInternalServerError
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if _, writeErr := w.Write(jsonData); writeErr != nil {
		slog.Error("Server.writeJSONResponse: failed to write JSON response", "error", writeErr)
	}
}

// writeFlowError maps a flow error onto the HTTP taxonomy: validation
// failures are 400, step-machine violations 409, unknown sessions 404, a
// disabled gateway 503, and anything else is treated as a generation failure
// surfaced verbatim.
func writeFlowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrSessionNotFound):
		writeJSONResponse(w, http.StatusNotFound, models.Error(err.Error()))
	case errors.Is(err, models.ErrInvalidTransition):
		writeJSONResponse(w, http.StatusConflict, models.Error(err.Error()))
	case errors.Is(err, models.ErrEmptyName),
		errors.Is(err, models.ErrEmptySituation),
		errors.Is(err, models.ErrEmptyMessage),
		errors.Is(err, models.ErrAnalysisNotReady),
		errors.Is(err, models.ErrScenarioNotSelected),
		errors.Is(err, models.ErrUnknownScenario):
		writeJSONResponse(w, http.StatusBadRequest, models.Error(err.Error()))
	case errors.Is(err, genai.ErrDisabled):
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error(err.Error()))
	default:
		writeJSONResponse(w, http.StatusBadGateway, models.Error("분석 실패: "+err.Error()))
	}
}
