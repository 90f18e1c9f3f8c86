package periods

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/shared"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

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

// MountRoutes registers period routes under /companies/{companyID}/periods.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{year}/{month}/close", h.Close)
	r.Post("/{year}/{month}/reopen", h.Reopen)
}

type periodResponse struct {
	CompanyID  int64      `json:"company_id"`
	Year       int        `json:"year"`
	Month      int        `json:"month"`
	Closed     bool       `json:"closed"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	ReopenedAt *time.Time `json:"reopened_at,omitempty"`
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.service.Close)
}

func (h *Handler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, h.service.Reopen)
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request, action func(ctx context.Context, key Key, actorID int64) (Period, error)) {
	key, err := pathKey(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actor, err := httpx.ActorID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	period, err := action(r.Context(), key, actor)
	if err != nil {
		if httpx.StatusFor(err) == http.StatusInternalServerError {
			h.logger.Error("period action", slog.String("path", r.URL.Path), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, periodResponse{
		CompanyID:  period.CompanyID,
		Year:       period.Year,
		Month:      int(period.Month),
		Closed:     period.Closed,
		ClosedAt:   period.ClosedAt,
		ReopenedAt: period.ReopenedAt,
	})
}

func pathKey(r *http.Request) (Key, error) {
	companyID, err := httpx.PathInt64(r, "companyID")
	if err != nil {
		return Key{}, err
	}
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return Key{}, shared.ErrInvalidPeriod
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		return Key{}, shared.ErrInvalidPeriod
	}
	key := Key{CompanyID: companyID, Year: year, Month: time.Month(month)}
	return key, key.Validate()
}
