package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/applyplan"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/driver"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/feedback"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/opt"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/risk"
	"github.com/AdiCoder33/AI-Train-Traffic-Control/internal/sim"
)

type handler struct {
	provider StateProvider
	feedback *feedback.Log
	sandbox  bool
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("API: encoding response failed: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// snapshot fetches the latest cycle or answers 503 when the engine has not
// completed one yet.
func (h *handler) snapshot(w http.ResponseWriter) *driver.Snapshot {
	snap := h.provider.Snapshot()
	if snap == nil {
		writeError(w, http.StatusServiceUnavailable, "no cycle completed yet")
		return nil
	}
	return snap
}

// Health handles GET /health.
func (h *handler) Health(w http.ResponseWriter, r *http.Request) {
	snap := h.provider.Snapshot()
	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	}
	if snap != nil {
		body["cycle"] = snap.Cycle
		body["lastCycleAt"] = snap.T0
	} else {
		body["cycle"] = 0
	}
	writeJSON(w, http.StatusOK, body)
}

// GetState handles GET /api/state: the full latest snapshot.
func (h *handler) GetState(w http.ResponseWriter, r *http.Request) {
	if snap := h.snapshot(w); snap != nil {
		writeJSON(w, http.StatusOK, snap)
	}
}

// RadarResponse is the JSON response for GET /api/radar.
type RadarResponse struct {
	Cycle      int              `json:"cycle"`
	T0         time.Time        `json:"t0"`
	Assessment *risk.Assessment `json:"assessment"`
}

// GetRadar handles GET /api/radar.
func (h *handler) GetRadar(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	writeJSON(w, http.StatusOK, RadarResponse{Cycle: snap.Cycle, T0: snap.T0, Assessment: snap.Assessment})
}

// RecommendationsResponse is the JSON response for GET /api/recommendations.
type RecommendationsResponse struct {
	Cycle        int                  `json:"cycle"`
	Plan         *opt.Plan            `json:"plan"`
	Alternatives []opt.AlternativeSet `json:"alternatives,omitempty"`
	Report       *applyplan.Report    `json:"report,omitempty"`
}

// GetRecommendations handles GET /api/recommendations.
func (h *handler) GetRecommendations(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	writeJSON(w, http.StatusOK, RecommendationsResponse{
		Cycle:        snap.Cycle,
		Plan:         snap.Plan,
		Alternatives: snap.Alternatives,
		Report:       snap.Report,
	})
}

// KPIResponse is the JSON response for GET /api/kpis.
type KPIResponse struct {
	Cycle  int             `json:"cycle"`
	T0     time.Time       `json:"t0"`
	Replay sim.KPIs        `json:"replay"`
	Risks  risk.KPISummary `json:"risks"`
}

// GetKPIs handles GET /api/kpis.
func (h *handler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	resp := KPIResponse{Cycle: snap.Cycle, T0: snap.T0, Replay: snap.KPIs}
	if snap.Assessment != nil {
		resp.Risks = snap.Assessment.KPIs
	}
	writeJSON(w, http.StatusOK, resp)
}

// PostFeedback handles POST /api/feedback: append one controller decision.
func (h *handler) PostFeedback(w http.ResponseWriter, r *http.Request) {
	if h.feedback == nil {
		writeError(w, http.StatusNotImplemented, "feedback log not configured")
		return
	}
	var rec feedback.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid feedback body: "+err.Error())
		return
	}
	if err := h.feedback.Append(rec); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"recorded": true})
}

// FeedbackSummaryResponse is the JSON response for GET /api/feedback/summary.
type FeedbackSummaryResponse struct {
	ByType []feedback.TypeSummary `json:"byType"`
	Total  int                    `json:"total"`
}

// GetFeedbackSummary handles GET /api/feedback/summary.
func (h *handler) GetFeedbackSummary(w http.ResponseWriter, r *http.Request) {
	if h.feedback == nil {
		writeError(w, http.StatusNotImplemented, "feedback log not configured")
		return
	}
	byType, err := h.feedback.Summary()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := FeedbackSummaryResponse{ByType: byType}
	for _, s := range byType {
		resp.Total += s.Total()
	}
	writeJSON(w, http.StatusOK, resp)
}

// PlanApplyRequest asks for the current plan to be applied. The plan id
// must match the snapshot's so a stale dashboard cannot apply a superseded
// plan.
type PlanApplyRequest struct {
	PlanID string `json:"planId"`
	Reason string `json:"reason,omitempty"`
}

// PlanApplyResponse is the JSON response for POST /api/plan/apply.
type PlanApplyResponse struct {
	Mode   string            `json:"mode"` // "sandbox" or "live"
	PlanID string            `json:"planId"`
	Report *applyplan.Report `json:"report"`
}

// PostPlanApply handles POST /api/plan/apply. In sandbox mode the evaluated
// report is returned without recording a dispatch; in live mode every plan
// action additionally lands in the feedback log as an APPLY decision.
func (h *handler) PostPlanApply(w http.ResponseWriter, r *http.Request) {
	snap := h.snapshot(w)
	if snap == nil {
		return
	}
	if snap.Plan == nil {
		writeError(w, http.StatusConflict, "no plan available")
		return
	}

	var req PlanApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid apply body: "+err.Error())
		return
	}
	if req.PlanID != snap.Plan.ID {
		writeError(w, http.StatusConflict, "plan "+req.PlanID+" is no longer current")
		return
	}

	mode := "live"
	if h.sandbox {
		mode = "sandbox"
	} else if h.feedback != nil {
		reason := req.Reason
		if reason == "" {
			reason = "dispatched via api"
		}
		for _, a := range snap.Plan.Actions {
			rec := feedback.Record{
				ActionID:   a.ID,
				ActionType: string(a.Type),
				TrainID:    a.TrainID,
				PlanID:     snap.Plan.ID,
				Decision:   feedback.DecisionApply,
				Reason:     reason,
			}
			if err := h.feedback.Append(rec); err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
		}
	}
	log.Printf("API: plan %s apply requested (%s mode)", snap.Plan.ID, mode)
	writeJSON(w, http.StatusOK, PlanApplyResponse{Mode: mode, PlanID: snap.Plan.ID, Report: snap.Report})
}
