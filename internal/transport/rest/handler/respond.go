package handler

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/kkogteva6/ReadingPlatform/internal/backend"
	"github.com/kkogteva6/ReadingPlatform/internal/logging"
	"github.com/kkogteva6/ReadingPlatform/internal/questionnaire"
	"github.com/kkogteva6/ReadingPlatform/internal/service"
	"github.com/kkogteva6/ReadingPlatform/internal/validation"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Wizard messages shown to the reader for each rejected transition
var wizardErrors = map[*questionnaire.ValidationError]ErrorResponse{
	questionnaire.ErrAnswerRequired:  {"Выберите вариант ответа, чтобы продолжить.", "answer_required"},
	questionnaire.ErrConsentRequired: {"Подтвердите согласие: анкета носит образовательный характер и не является диагнозом.", "consent_required"},
	questionnaire.ErrIncomplete:      {"Ответьте на все вопросы, чтобы завершить.", "incomplete"},
	questionnaire.ErrAttentionFailed: {"Контрольный вопрос выбран неверно. Пройдите внимательнее.", "attention_failed"},
	questionnaire.ErrNotFinalStep:    {"Завершить анкету можно только на последнем вопросе.", "not_final_step"},
	questionnaire.ErrInvalidAnswer:   {"Ответ должен быть от 1 до 5.", "invalid_answer"},
	questionnaire.ErrCompleted:       {"Анкета уже отправлена.", "completed"},
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logging.Warn().Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}

func decodeJSON(r *http.Request, dst interface{}) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeServiceError maps domain errors onto HTTP statuses
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		wizErr *questionnaire.ValidationError
		reqErr *validation.Error
		subErr *questionnaire.SubmissionError
		apiErr *backend.APIError
	)

	switch {
	case errors.As(err, &wizErr):
		if resp, ok := wizardErrors[wizErr]; ok {
			writeError(w, http.StatusUnprocessableEntity, resp.Error, resp.Code)
			return
		}
		writeError(w, http.StatusUnprocessableEntity, wizErr.Error(), "validation")
	case errors.As(err, &reqErr):
		writeError(w, http.StatusUnprocessableEntity, reqErr.Error(), "invalid_request")
	case errors.Is(err, service.ErrTextTooShort):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "text_too_short")
	case errors.Is(err, service.ErrInvalidReader):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "invalid_reader")
	case errors.Is(err, service.ErrInvalidEmail):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "invalid_email")
	case errors.Is(err, service.ErrPasswordTooShort):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "password_too_short")
	case errors.Is(err, service.ErrSubmissionInProgress), errors.Is(err, service.ErrSessionBusy):
		writeError(w, http.StatusConflict, err.Error(), "conflict")
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "not_found")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error(), "forbidden")
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, err.Error(), "unauthorized")
	case errors.Is(err, backend.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, err.Error(), "backend_unavailable")
	case errors.As(err, &subErr):
		msg := subErr.Err.Error()
		if errors.As(subErr.Err, &apiErr) {
			msg = apiErr.Message
		}
		writeError(w, http.StatusBadGateway, msg, "submission_failed")
	case errors.As(err, &apiErr):
		writeError(w, http.StatusBadGateway, apiErr.Message, "backend_error")
	default:
		logging.Error().Err(err).Msg("unhandled error")
		writeError(w, http.StatusInternalServerError, "internal error", "internal")
	}
}
