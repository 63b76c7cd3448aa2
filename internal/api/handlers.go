package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mindscan-ai/mindscan/internal/models"
	"github.com/mindscan-ai/mindscan/internal/share"
)

type situationRequest struct {
	Text  string `json:"text"`
	Image string `json:"image,omitempty"` // data URI, optional
}

type scenarioRequest struct {
	Label string `json:"label"`
}

type chatRequest struct {
	Message string `json:"message"`
}

// createSessionHandler handles POST /sessions
func (s *Server) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.flow.CreateSession(r.Context())
	if err != nil {
		slog.Error("createSessionHandler failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to create session"))
		return
	}
	writeJSONResponse(w, http.StatusCreated, models.SuccessWithMessage("Session created", sess))
}

// getSessionHandler handles GET /sessions/{id}
func (s *Server) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.flow.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess))
}

// startHandler handles POST /sessions/{id}/start
func (s *Server) startHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.flow.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	if err := s.flow.Start(r.Context(), sess); err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess))
}

// profileHandler handles POST /sessions/{id}/profile
func (s *Server) profileHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.flow.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	var target models.TargetProfile
	if err := json.NewDecoder(r.Body).Decode(&target); err != nil {
		slog.Warn("profileHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := s.flow.SubmitProfile(r.Context(), sess, target); err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess))
}

// analysisHandler handles POST /sessions/{id}/analysis. Entering the
// trait-analysis step runs the model on first call; repeat calls return
// the cached result.
func (s *Server) analysisHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.flow.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	text, err := s.flow.EnsureTraitAnalysis(r.Context(), sess)
	if err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]interface{}{
		"analysis": text,
		"profile":  sess.Profile,
	}))
}

// continueHandler handles POST /sessions/{id}/continue
func (s *Server) continueHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.flow.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	if err := s.flow.ContinueToSituation(r.Context(), sess); err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess))
}

// situationHandler handles POST /sessions/{id}/situation
func (s *Server) situationHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.flow.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	var req situationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("situationHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := s.flow.SubmitSituation(r.Context(), sess, req.Text, req.Image); err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess))
}

// diagnosisHandler handles POST /sessions/{id}/diagnosis. Runs the scenario
// prediction on first call; repeat calls return the cached result.
func (s *Server) diagnosisHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.flow.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	result, err := s.flow.EnsureScenarios(r.Context(), sess)
	if err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(result))
}

// selectScenarioHandler handles POST /sessions/{id}/scenario
func (s *Server) selectScenarioHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.flow.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	var req scenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("selectScenarioHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if err := s.flow.SelectScenario(r.Context(), sess, req.Label); err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess))
}

// redoSituationHandler handles POST /sessions/{id}/redo-situation
func (s *Server) redoSituationHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.flow.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	if err := s.flow.RedoSituation(r.Context(), sess); err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess))
}

// resetScenarioHandler handles POST /sessions/{id}/reset-scenario
func (s *Server) resetScenarioHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.flow.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	if err := s.flow.ResetScenario(r.Context(), sess); err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess))
}

// restartHandler handles POST /sessions/{id}/restart
func (s *Server) restartHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.flow.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	if err := s.flow.Restart(r.Context(), sess); err != nil {
		writeFlowError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(sess))
}

// chatHandler handles POST /sessions/{id}/chat. With ?stream=1 the persona
// reply is delivered as server-sent events, one data event per chunk and a
// final "done" event carrying the parsed reply; otherwise the parsed reply
// is returned as a single JSON envelope.
func (s *Server) chatHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.flow.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("chatHandler invalid JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}

	if r.URL.Query().Get("stream") != "1" {
		reply, err := s.flow.SendMessage(r.Context(), sess, req.Message, nil)
		if err != nil {
			writeFlowError(w, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, models.Success(reply))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		slog.Error("chatHandler streaming unsupported by response writer")
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	reply, err := s.flow.SendMessage(r.Context(), sess, req.Message, func(chunk string) {
		writeSSE(w, "", chunk)
		flusher.Flush()
	})
	if err != nil {
		writeSSE(w, "error", err.Error())
		flusher.Flush()
		return
	}
	writeSSE(w, "done", reply)
	flusher.Flush()
}

// writeSSE emits one server-sent event. The payload is JSON-encoded so
// chunks containing newlines survive the wire format.
func writeSSE(w http.ResponseWriter, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Server.writeSSE: failed to marshal event payload", "error", err)
		return
	}
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// shareCardHandler handles GET /sessions/{id}/share-card. Renders the
// session's analysis into the downloadable PNG card.
func (s *Server) shareCardHandler(w http.ResponseWriter, r *http.Request) {
	sess, err := s.flow.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeFlowError(w, err)
		return
	}
	if sess.TraitAnalysis == "" {
		writeFlowError(w, models.ErrAnalysisNotReady)
		return
	}

	raw, err := s.renderer.Render("Mind Scan", sess.Target.Name, shareCardBody(sess))
	if err != nil {
		slog.Error("shareCardHandler render failed", "sessionID", sess.ID, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to render share card"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", `attachment; filename="mindscan-report.png"`)
	if _, err := w.Write(raw); err != nil {
		slog.Error("shareCardHandler write failed", "sessionID", sess.ID, "error", err)
	}
}

// shareCardBody assembles the card text from whatever the session has
// accumulated so far.
func shareCardBody(sess *models.Session) string {
	var sections []string
	sections = append(sections, "🔮 성향 분석\n\n"+sess.TraitAnalysis)
	if sess.GeneralAnalysis != "" {
		sections = append(sections, "📋 종합 분석\n\n"+sess.GeneralAnalysis)
	}
	if sess.SelectedScenario != "" {
		sections = append(sections, "🎲 선택한 시나리오\n\n"+sess.SelectedScenario)
	}
	return strings.Join(sections, "\n\n")
}

// qrHandler handles GET /share/qr. Returns the service-URL QR code as a
// data URI for direct embedding.
func (s *Server) qrHandler(w http.ResponseWriter, r *http.Request) {
	uri, err := share.QRDataURI(s.serviceURL)
	if err != nil {
		slog.Error("qrHandler encode failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to generate QR code"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(map[string]string{
		"url":         s.serviceURL,
		"qr_data_uri": uri,
	}))
}

// healthHandler handles GET /health
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Mind Scan API is healthy", nil))
}
