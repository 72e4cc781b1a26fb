package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/kkogteva6/ReadingPlatform/internal/model"
	"github.com/kkogteva6/ReadingPlatform/internal/service"
	"github.com/kkogteva6/ReadingPlatform/internal/transport/rest/middleware"
	"github.com/kkogteva6/ReadingPlatform/internal/validation"
)

// QuestionnaireHandler exposes the questionnaire wizard
type QuestionnaireHandler struct {
	svc *service.QuestionnaireService
}

func NewQuestionnaireHandler(svc *service.QuestionnaireService) *QuestionnaireHandler {
	return &QuestionnaireHandler{svc: svc}
}

// AnswerRequest is the body of PUT /v1/questionnaire/{id}/answer
type AnswerRequest struct {
	Value int `json:"value"`
}

// ConsentRequest is the body of PUT /v1/questionnaire/{id}/consent
type ConsentRequest struct {
	Consent *bool `json:"consent" validate:"required"`
}

// Start handles POST /v1/questionnaire
func (h *QuestionnaireHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(user model.User) (interface{}, error) {
		return h.svc.Start(r.Context(), user)
	})
}

// Restart handles POST /v1/questionnaire/restart
func (h *QuestionnaireHandler) Restart(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(user model.User) (interface{}, error) {
		return h.svc.Restart(r.Context(), user)
	})
}

// Attempts handles GET /v1/questionnaire/attempts
func (h *QuestionnaireHandler) Attempts(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(user model.User) (interface{}, error) {
		return h.svc.Attempts(r.Context(), user)
	})
}

// Get handles GET /v1/questionnaire/{id}
func (h *QuestionnaireHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(user model.User) (interface{}, error) {
		return h.svc.Get(r.Context(), user, mux.Vars(r)["id"])
	})
}

// Answer handles PUT /v1/questionnaire/{id}/answer
func (h *QuestionnaireHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req AnswerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}
	h.respond(w, r, func(user model.User) (interface{}, error) {
		return h.svc.Answer(r.Context(), user, mux.Vars(r)["id"], req.Value)
	})
}

// Next handles POST /v1/questionnaire/{id}/next
func (h *QuestionnaireHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(user model.User) (interface{}, error) {
		return h.svc.Next(r.Context(), user, mux.Vars(r)["id"])
	})
}

// Prev handles POST /v1/questionnaire/{id}/prev
func (h *QuestionnaireHandler) Prev(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(user model.User) (interface{}, error) {
		return h.svc.Prev(r.Context(), user, mux.Vars(r)["id"])
	})
}

// Consent handles PUT /v1/questionnaire/{id}/consent
func (h *QuestionnaireHandler) Consent(w http.ResponseWriter, r *http.Request) {
	var req ConsentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}
	if err := validation.Struct(req); err != nil {
		writeServiceError(w, err)
		return
	}
	h.respond(w, r, func(user model.User) (interface{}, error) {
		return h.svc.SetConsent(r.Context(), user, mux.Vars(r)["id"], *req.Consent)
	})
}

// Submit handles POST /v1/questionnaire/{id}/submit
func (h *QuestionnaireHandler) Submit(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, func(user model.User) (interface{}, error) {
		return h.svc.Submit(r.Context(), user, mux.Vars(r)["id"])
	})
}

func (h *QuestionnaireHandler) respond(w http.ResponseWriter, r *http.Request, fn func(model.User) (interface{}, error)) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
		return
	}
	out, err := fn(user)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
