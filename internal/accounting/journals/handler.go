package journals

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes registers journal routes under /companies/{companyID}/journals.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.Create)
}

type lineRequest struct {
	AccountID int64           `json:"account_id" validate:"gt=0"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo" validate:"max=255"`
}

type createRequest struct {
	Date  string        `json:"date" validate:"required,datetime=2006-01-02"`
	Memo  string        `json:"memo" validate:"max=255"`
	Lines []lineRequest `json:"lines" validate:"required,dive"`
}

type lineResponse struct {
	LineNo    int             `json:"line_no"`
	AccountID int64           `json:"account_id"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo,omitempty"`
}

type entryResponse struct {
	ID           int64          `json:"id"`
	CompanyID    int64          `json:"company_id"`
	Date         string         `json:"date"`
	DocumentType DocumentType   `json:"document_type"`
	Memo         string         `json:"memo,omitempty"`
	Lines        []lineResponse `json:"lines"`
}

// Create handles POST / for manual entries. An Idempotency-Key header makes
// retries safe.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	companyID, err := httpx.PathInt64(r, "companyID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req createRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrBadRequest, err))
		return
	}
	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrBadRequest, err))
		return
	}
	actor, err := httpx.ActorID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := ManualInput{
		CompanyID:      companyID,
		Date:           date,
		Memo:           req.Memo,
		ActorID:        actor,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
	}
	for _, line := range req.Lines {
		in.Lines = append(in.Lines, LineInput{AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit, Memo: line.Memo})
	}
	entry, err := h.service.PostManual(r.Context(), in)
	if err != nil {
		if httpx.StatusFor(err) == http.StatusInternalServerError {
			h.logger.Error("post manual journal", slog.Int64("company_id", companyID), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	resp := entryResponse{
		ID:           entry.ID,
		CompanyID:    entry.CompanyID,
		Date:         entry.Date.Format(time.DateOnly),
		DocumentType: entry.DocumentType,
		Memo:         entry.Memo,
		Lines:        make([]lineResponse, 0, len(entry.Lines)),
	}
	for _, line := range entry.Lines {
		resp.Lines = append(resp.Lines, lineResponse{LineNo: line.LineNo, AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit, Memo: line.Memo})
	}
	httpx.JSON(w, http.StatusCreated, resp)
}
