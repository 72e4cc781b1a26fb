package handler

import (
	"context"
	"net/http"

	"github.com/kkogteva6/ReadingPlatform/internal/model"
	"github.com/kkogteva6/ReadingPlatform/internal/service"
)

// AdminHandler exposes catalogue maintenance
type AdminHandler struct {
	svc *service.AdminService
}

func NewAdminHandler(svc *service.AdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// ListBooks handles GET /v1/admin/books
func (h *AdminHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.svc.ListBooks(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

// AddBook handles POST /v1/admin/books
func (h *AdminHandler) AddBook(w http.ResponseWriter, r *http.Request) {
	var book model.Book
	if err := decodeJSON(r, &book); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", "bad_request")
		return
	}
	res, err := h.svc.AddBook(r.Context(), book)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// RebuildWorks handles POST /v1/admin/rebuild_works
func (h *AdminHandler) RebuildWorks(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.svc.RebuildWorks)
}

// ImportWorks handles POST /v1/admin/import_works_neo4j
func (h *AdminHandler) ImportWorks(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.svc.ImportWorks)
}

// Publish handles POST /v1/admin/publish
func (h *AdminHandler) Publish(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, h.svc.Publish)
}

func (h *AdminHandler) action(w http.ResponseWriter, r *http.Request, fn func(context.Context) (*model.AdminResult, error)) {
	res, err := fn(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
