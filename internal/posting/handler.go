package posting

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/mappings"
	"github.com/odyssey-erp/odyssey-ledger/internal/documents"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
)

// Handler exposes document actions over HTTP.
type Handler struct {
	service  *Service
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, logger: logger, validate: validator.New()}
}

// MountRoutes registers document routes under /companies/{companyID}/documents.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/{documentID}/post", h.Post)
	r.Post("/{documentID}/cancel", h.Cancel)
	r.Post("/{documentID}/lock", h.Lock)
}

type postRequest struct {
	VATMode   string           `json:"vat_mode" validate:"omitempty,oneof=STANDARD REDUCED EXEMPT"`
	Overrides map[string]int64 `json:"overrides" validate:"omitempty,dive,keys,oneof=RECEIVABLE REVENUE COGS INVENTORY VAT_OUTPUT EXPENSE PAYABLE VAT_INPUT,endkeys,gt=0"`
}

type allocationResponse struct {
	LotID    int64           `json:"lot_id"`
	LineNo   int             `json:"line_no,omitempty"`
	Kind     string          `json:"kind"`
	Quantity decimal.Decimal `json:"quantity"`
	UnitCost decimal.Decimal `json:"unit_cost"`
}

type documentResponse struct {
	ID              int64            `json:"id"`
	CompanyID       int64            `json:"company_id"`
	Kind            documents.Kind   `json:"kind"`
	Number          string           `json:"number"`
	Date            string           `json:"date"`
	Status          documents.Status `json:"status"`
	VATMode         mappings.VATMode `json:"vat_mode,omitempty"`
	PostingAccounts map[string]int64 `json:"posting_accounts,omitempty"`
	EntryIDs        []int64          `json:"entry_ids"`
}

type postResponse struct {
	Document      documentResponse     `json:"document"`
	EntryID       int64                `json:"entry_id,omitempty"`
	LineCount     int                  `json:"line_count"`
	COGSEntryID   int64                `json:"cogs_entry_id,omitempty"`
	COGSLineCount int                  `json:"cogs_line_count,omitempty"`
	Net           decimal.Decimal      `json:"net"`
	VAT           decimal.Decimal      `json:"vat"`
	Gross         decimal.Decimal      `json:"gross"`
	TotalCOGS     *decimal.Decimal     `json:"total_cogs,omitempty"`
	Allocations   []allocationResponse `json:"allocations,omitempty"`
}

type cancelResponse struct {
	Document         documentResponse     `json:"document"`
	ReversalEntryIDs []int64              `json:"reversal_entry_ids"`
	LineCount        int                  `json:"line_count"`
	Allocations      []allocationResponse `json:"allocations,omitempty"`
}

// Post handles POST /{documentID}/post.
func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	companyID, documentID, actor, err := documentPath(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req postRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrBadRequest, err))
		return
	}
	cmd := PostCommand{
		CompanyID:  companyID,
		DocumentID: documentID,
		VATMode:    mappings.VATMode(req.VATMode),
		ActorID:    actor,
	}
	if len(req.Overrides) > 0 {
		cmd.Overrides = make(map[mappings.Role]int64, len(req.Overrides))
		for role, id := range req.Overrides {
			cmd.Overrides[mappings.Role(role)] = id
		}
	}
	result, err := h.service.Post(r.Context(), cmd)
	if err != nil {
		h.fail(w, r, "post document", err)
		return
	}
	resp := postResponse{
		Document:      toDocumentResponse(result.Document),
		EntryID:       result.EntryID,
		LineCount:     result.LineCount,
		COGSEntryID:   result.COGSEntryID,
		COGSLineCount: result.COGSLineCount,
		Net:           result.Totals.Net,
		VAT:           result.Totals.VAT,
		Gross:         result.Totals.Gross,
		Allocations:   toAllocations(result.Allocations),
	}
	if result.Document.Kind == documents.KindSale {
		cogs := result.TotalCOGS
		resp.TotalCOGS = &cogs
	}
	httpx.JSON(w, http.StatusOK, resp)
}

// Cancel handles POST /{documentID}/cancel.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	companyID, documentID, actor, err := documentPath(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.Cancel(r.Context(), CancelCommand{CompanyID: companyID, DocumentID: documentID, ActorID: actor})
	if err != nil {
		h.fail(w, r, "cancel document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, cancelResponse{
		Document:         toDocumentResponse(result.Document),
		ReversalEntryIDs: result.ReversalEntryIDs,
		LineCount:        result.LineCount,
		Allocations:      toAllocations(result.Allocations),
	})
}

// Lock handles POST /{documentID}/lock.
func (h *Handler) Lock(w http.ResponseWriter, r *http.Request) {
	companyID, documentID, actor, err := documentPath(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	doc, err := h.service.Lock(r.Context(), LockCommand{CompanyID: companyID, DocumentID: documentID, ActorID: actor})
	if err != nil {
		h.fail(w, r, "lock document", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"document": toDocumentResponse(doc)})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(msg, slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func documentPath(r *http.Request) (int64, int64, int64, error) {
	companyID, err := httpx.PathInt64(r, "companyID")
	if err != nil {
		return 0, 0, 0, err
	}
	documentID, err := httpx.PathInt64(r, "documentID")
	if err != nil {
		return 0, 0, 0, err
	}
	actor, err := httpx.ActorID(r)
	if err != nil {
		return 0, 0, 0, err
	}
	return companyID, documentID, actor, nil
}

func toDocumentResponse(doc documents.Document) documentResponse {
	resp := documentResponse{
		ID:        doc.ID,
		CompanyID: doc.CompanyID,
		Kind:      doc.Kind,
		Number:    doc.Number,
		Date:      doc.Date.Format(time.DateOnly),
		Status:    doc.Status,
		VATMode:   doc.VATMode,
		EntryIDs:  doc.EntryIDs,
	}
	if len(doc.PostingAccounts) > 0 {
		resp.PostingAccounts = make(map[string]int64, len(doc.PostingAccounts))
		for role, id := range doc.PostingAccounts {
			resp.PostingAccounts[string(role)] = id
		}
	}
	if resp.EntryIDs == nil {
		resp.EntryIDs = []int64{}
	}
	return resp
}

func toAllocations(allocs []inventory.Allocation) []allocationResponse {
	if len(allocs) == 0 {
		return nil
	}
	out := make([]allocationResponse, 0, len(allocs))
	for _, a := range allocs {
		out = append(out, allocationResponse{
			LotID:    a.LotID,
			LineNo:   a.DocumentLineNo,
			Kind:     string(a.Kind),
			Quantity: a.Quantity,
			UnitCost: a.UnitCost,
		})
	}
	return out
}
