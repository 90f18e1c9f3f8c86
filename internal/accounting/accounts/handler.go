package accounts

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler exposes the chart and the maintenance guard over HTTP.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger}
}

// MountRoutes registers account routes under /companies/{companyID}/accounts.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/codes/{code}/recode-check", h.RecodeCheck)
	r.Get("/{accountID}/type-change-check", h.TypeChangeCheck)
}

type accountResponse struct {
	ID        int64       `json:"id"`
	Code      string      `json:"code"`
	Name      string      `json:"name"`
	Type      AccountType `json:"type"`
	IsActive  bool        `json:"is_active"`
	Protected bool        `json:"protected"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.PathInt64(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.List(r.Context(), companyID)
	if err != nil {
		h.logger.Error("list accounts", slog.Int64("company_id", companyID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]accountResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, accountResponse{
			ID: e.ID, Code: e.Code, Name: e.Name, Type: e.Type, IsActive: e.IsActive, Protected: e.Protected,
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) RecodeCheck(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(chi.URLParam(r, "code"))
	if err := h.service.CheckRecode(code); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) TypeChangeCheck(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.PathInt64(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	accountID, err := httpx.PathInt64(r, "accountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.CheckTypeChange(r.Context(), companyID, accountID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
