package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kkogteva6/ReadingPlatform/internal/service"
	"github.com/kkogteva6/ReadingPlatform/internal/transport/rest/middleware"
)

// DashboardHandler serves the student and parent read models
type DashboardHandler struct {
	svc *service.DashboardService
}

func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{svc: svc}
}

// AnalyzeTextRequest is the body of POST /v1/student/texts
type AnalyzeTextRequest struct {
	Text string `json:"text"`
}

// Student handles GET /v1/student/dashboard
func (h *DashboardHandler) Student(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	withHistory := false
	switch r.URL.Query().Get("history") {
	case "1", "true":
		withHistory = true
	}
	writeJSON(w, http.StatusOK, h.svc.Student(r.Context(), user, withHistory))
}

// AnalyzeText handles POST /v1/student/texts
func (h *DashboardHandler) AnalyzeText(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}

	var req AnalyzeTextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}

	resp, err := h.svc.AnalyzeText(r.Context(), user, req.Text)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      resp.OK,
		"profile": resp.Profile,
		"message": "Текст проанализирован. Профиль обновлён.",
	})
}

// Children handles GET /v1/parent/children
func (h *DashboardHandler) Children(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	recent, err := h.svc.RecentChildren(r.Context(), user)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recent)
}

// Child handles GET /v1/parent/children/{email}/dashboard
func (h *DashboardHandler) Child(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	view, err := h.svc.Parent(r.Context(), user, mux.Vars(r)["email"])
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
