package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Capstone-E1/hydrodose_console/internal/api"
	"github.com/Capstone-E1/hydrodose_console/internal/gateway"
	"github.com/Capstone-E1/hydrodose_console/internal/models"
	"github.com/Capstone-E1/hydrodose_console/internal/orchestrator"
	"github.com/Capstone-E1/hydrodose_console/internal/poller"
	"github.com/Capstone-E1/hydrodose_console/internal/report"
	"github.com/Capstone-E1/hydrodose_console/internal/session"
	"github.com/Capstone-E1/hydrodose_console/internal/ws"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	gateway  *gateway.Gateway
	sessions session.Store
	alum     *orchestrator.AlumFlow
	preLime  *orchestrator.LimeFlow
	postLime *orchestrator.LimeFlow
	poller   *poller.Poller
	hub      *ws.Hub
}

// NewHandlers creates a new handlers instance
func NewHandlers(gw *gateway.Gateway, sessions session.Store, alum *orchestrator.AlumFlow,
	preLime, postLime *orchestrator.LimeFlow, dashboardPoller *poller.Poller, hub *ws.Hub) *Handlers {
	return &Handlers{
		gateway:  gw,
		sessions: sessions,
		alum:     alum,
		preLime:  preLime,
		postLime: postLime,
		poller:   dashboardPoller,
		hub:      hub,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Login authenticates the operator against the prediction backend and saves
// the session locally.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if request.Email == "" || request.Password == "" {
		h.sendErrorResponse(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	sess, err := h.gateway.Login(r.Context(), request.Email, request.Password)
	if err != nil {
		h.sendPredictionError(w, err)
		return
	}
	if err := h.sessions.Save(sess); err != nil {
		h.sendErrorResponse(w, "Failed to persist session", http.StatusInternalServerError)
		return
	}

	h.sendJSONResponse(w, APIResponse{
		Success: true,
		Message: "Login successful",
		Data:    sess.User,
	})
}

// Register creates a new operator account on the prediction backend. The
// operator still logs in afterwards; no session is created here.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if request.Email == "" || request.Password == "" {
		h.sendErrorResponse(w, "Email and password are required", http.StatusBadRequest)
		return
	}

	if err := h.gateway.Register(r.Context(), request.Email, request.Password); err != nil {
		h.sendPredictionError(w, err)
		return
	}
	h.sendJSONResponse(w, APIResponse{Success: true, Message: "Account created"})
}

// Logout clears the locally persisted session.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Clear(); err != nil {
		h.sendErrorResponse(w, "Failed to clear session", http.StatusInternalServerError)
		return
	}
	h.sendJSONResponse(w, APIResponse{Success: true, Message: "Logged out"})
}

// GetSession reports whether an operator is logged in.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.sessions.Current()
	if !ok {
		h.sendErrorResponse(w, "Not logged in", http.StatusUnauthorized)
		return
	}
	h.sendJSONResponse(w, APIResponse{Success: true, Data: sess.User})
}

// SubmitAlum runs the classify-then-predict alum flow for the submitted
// readings and returns the resulting flow state. An ABNORMAL sample leaves
// the flow awaiting the advanced readings.
func (h *Handlers) SubmitAlum(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Ph           string `json:"ph"`
		Turbidity    string `json:"turbidity"`
		Conductivity string `json:"conductivity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.alum.Submit(r.Context(), request.Ph, request.Turbidity, request.Conductivity); err != nil {
		h.hub.BroadcastError(err.Error())
		h.sendPredictionError(w, err)
		return
	}

	snapshot := h.alum.Snapshot()
	if snapshot.State == orchestrator.StateDone {
		h.hub.BroadcastPrediction("alum", snapshot)
	}
	h.sendJSONResponse(w, APIResponse{Success: true, Data: snapshot})
}

// SubmitAlumAdvanced completes an ABNORMAL alum flow with the flow readings.
func (h *Handlers) SubmitAlumAdvanced(w http.ResponseWriter, r *http.Request) {
	var request struct {
		RawWaterFlow string `json:"raw_water_flow"`
		DChamberFlow string `json:"d_chamber_flow"`
		AeratorFlow  string `json:"aerator_flow"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.alum.SubmitAdvanced(r.Context(), request.RawWaterFlow, request.DChamberFlow, request.AeratorFlow)
	if err != nil {
		var stateErr *orchestrator.FlowStateError
		if errors.As(err, &stateErr) {
			h.sendErrorResponse(w, err.Error(), http.StatusConflict)
			return
		}
		h.hub.BroadcastError(err.Error())
		h.sendPredictionError(w, err)
		return
	}

	snapshot := h.alum.Snapshot()
	if snapshot.State == orchestrator.StateDone {
		h.hub.BroadcastPrediction("alum", snapshot)
	}
	h.sendJSONResponse(w, APIResponse{Success: true, Data: snapshot})
}

// UpdateAlumInputs records in-progress edits so stale results are cleared.
func (h *Handlers) UpdateAlumInputs(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Ph           string `json:"ph"`
		Turbidity    string `json:"turbidity"`
		Conductivity string `json:"conductivity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	h.alum.UpdateInputs(request.Ph, request.Turbidity, request.Conductivity)
	h.sendJSONResponse(w, APIResponse{Success: true, Data: h.alum.Snapshot()})
}

// GetAlumState returns the alum flow snapshot.
func (h *Handlers) GetAlumState(w http.ResponseWriter, r *http.Request) {
	h.sendJSONResponse(w, APIResponse{Success: true, Data: h.alum.Snapshot()})
}

// SubmitLime runs the pre- or post-lime prediction for the submitted readings.
func (h *Handlers) SubmitLime(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.limeFlow(chi.URLParam(r, "stage"))
	if !ok {
		h.sendErrorResponse(w, "Unknown lime stage. Use 'pre-lime' or 'post-lime'", http.StatusNotFound)
		return
	}

	var request struct {
		Ph           string `json:"ph"`
		Turbidity    string `json:"turbidity"`
		Conductivity string `json:"conductivity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := flow.Submit(r.Context(), request.Ph, request.Turbidity, request.Conductivity); err != nil {
		h.hub.BroadcastError(err.Error())
		h.sendPredictionError(w, err)
		return
	}

	snapshot := flow.Snapshot()
	if snapshot.State == orchestrator.StateDone {
		h.hub.BroadcastPrediction(chi.URLParam(r, "stage"), snapshot)
	}
	h.sendJSONResponse(w, APIResponse{Success: true, Data: snapshot})
}

// GetLimeState returns a lime flow snapshot.
func (h *Handlers) GetLimeState(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.limeFlow(chi.URLParam(r, "stage"))
	if !ok {
		h.sendErrorResponse(w, "Unknown lime stage. Use 'pre-lime' or 'post-lime'", http.StatusNotFound)
		return
	}
	h.sendJSONResponse(w, APIResponse{Success: true, Data: flow.Snapshot()})
}

func (h *Handlers) limeFlow(stage string) (*orchestrator.LimeFlow, bool) {
	switch models.LimeStage(stage) {
	case models.LimeStagePre:
		return h.preLime, true
	case models.LimeStagePost:
		return h.postLime, true
	default:
		return nil, false
	}
}

// GetDashboard returns the latest polled dashboard snapshot.
func (h *Handlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	h.sendJSONResponse(w, APIResponse{Success: true, Data: h.poller.Snapshot()})
}

// SetLookback switches the dashboard window and refreshes immediately.
func (h *Handlers) SetLookback(w http.ResponseWriter, r *http.Request) {
	var request struct {
		Lookback string `json:"lookback"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		h.sendErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	lookback, err := poller.ParseLookback(request.Lookback)
	if err != nil {
		h.sendErrorResponse(w, "Invalid lookback. Use '15m', '1h' or '24h'", http.StatusBadRequest)
		return
	}
	h.poller.SetLookback(lookback)
	h.sendJSONResponse(w, APIResponse{Success: true, Message: "Lookback updated"})
}

// DownloadReport streams the PDF report for a completed prediction flow.
func (h *Handlers) DownloadReport(w http.ResponseWriter, r *http.Request) {
	capability := chi.URLParam(r, "capability")
	now := time.Now()

	var doc report.Report
	switch capability {
	case "alum":
		snap := h.alum.Snapshot()
		if snap.State != orchestrator.StateDone {
			h.sendErrorResponse(w, "No completed alum prediction to report", http.StatusConflict)
			return
		}
		history := h.fetchReportHistory(r, h.gateway.AlumHistory)
		doc = report.BuildAlumReport(snap.Classification, snap.Basic, snap.Advanced, history, now)
		doc.Chart = snap.Chart
	case "pre-lime", "post-lime":
		flow, _ := h.limeFlow(capability)
		snap := flow.Snapshot()
		if snap.State != orchestrator.StateDone || snap.Prediction == nil {
			h.sendErrorResponse(w, "No completed "+capability+" prediction to report", http.StatusConflict)
			return
		}
		fetch := h.gateway.PreLimeHistory
		if capability == "post-lime" {
			fetch = h.gateway.PostLimeHistory
		}
		history := h.fetchReportHistory(r, fetch)
		doc = report.BuildLimeReport(*snap.Prediction, history, now)
		doc.Chart = snap.Chart
	default:
		h.sendErrorResponse(w, "Unknown report capability", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName()))
	if err := doc.Generate(w); err != nil {
		// headers are already written; log instead of re-answering
		log.Printf("Failed to render %s report: %v", capability, err)
	}
}

// fetchReportHistory pulls the report's history table for the requested date
// range. Report history is decorative, so fetch failures degrade to an empty
// table instead of failing the download.
func (h *Handlers) fetchReportHistory(r *http.Request,
	fetch func(ctx context.Context, startDate, endDate string) ([]models.HistoryPoint, error)) []models.HistoryPoint {

	startDate := r.URL.Query().Get("start_date")
	endDate := r.URL.Query().Get("end_date")
	if startDate == "" || endDate == "" {
		end := time.Now()
		start := end.AddDate(0, 0, -7)
		startDate = start.Format("2006-01-02")
		endDate = end.Format("2006-01-02")
	}

	history, err := fetch(r.Context(), startDate, endDate)
	if err != nil {
		log.Printf("Report history fetch failed: %v", err)
		return nil
	}
	return history
}

// DownloadHistoryXLSX streams the prediction-history workbook.
func (h *Handlers) DownloadHistoryXLSX(w http.ResponseWriter, r *http.Request) {
	startDate := r.URL.Query().Get("start_date")
	endDate := r.URL.Query().Get("end_date")
	if startDate == "" || endDate == "" {
		h.sendErrorResponse(w, "start_date and end_date are required", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	preLime, err := h.gateway.PreLimeHistory(ctx, startDate, endDate)
	if err != nil {
		h.sendPredictionError(w, err)
		return
	}
	postLime, err := h.gateway.PostLimeHistory(ctx, startDate, endDate)
	if err != nil {
		h.sendPredictionError(w, err)
		return
	}
	alum, err := h.gateway.AlumHistory(ctx, startDate, endDate)
	if err != nil {
		h.sendPredictionError(w, err)
		return
	}

	now := time.Now()
	workbook, err := report.GenerateWorkbook(report.HistoryExport{
		GeneratedAt: now,
		DateRange:   startDate + " to " + endDate,
		PreLime:     preLime,
		PostLime:    postLime,
		Alum:        alum,
	})
	if err != nil {
		h.sendErrorResponse(w, "Failed to build history workbook", http.StatusInternalServerError)
		return
	}
	defer workbook.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.WorkbookFileName(now)))
	if err := workbook.Write(w); err != nil {
		log.Printf("Failed to stream history workbook: %v", err)
	}
}

// HealthCheck reports console liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.sendJSONResponse(w, APIResponse{
		Success: true,
		Message: "HydroDose console is running",
		Data: map[string]interface{}{
			"time":     time.Now().Format(time.RFC3339),
			"lookback": h.poller.Lookback().String(),
		},
	})
}

// sendPredictionError maps gateway failures onto console status codes:
// operator input problems are 400s, expired sessions 401s, and backend
// failures surface as 502s with the human-readable message.
func (h *Handlers) sendPredictionError(w http.ResponseWriter, err error) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		h.sendErrorResponse(w, validationErr.Message, http.StatusBadRequest)
		return
	}
	if errors.Is(err, api.ErrUnauthorized) {
		h.sendErrorResponse(w, "Session expired, please log in again", http.StatusUnauthorized)
		return
	}
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		h.sendErrorResponse(w, apiErr.Error(), http.StatusBadGateway)
		return
	}
	h.sendErrorResponse(w, err.Error(), http.StatusBadGateway)
}

func (h *Handlers) sendJSONResponse(w http.ResponseWriter, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func (h *Handlers) sendErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	response := APIResponse{
		Success: false,
		Error:   message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(response)
}
