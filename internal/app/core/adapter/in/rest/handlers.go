package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-entry-ledger/internal/app/core/domain"
)

// Ledger 是 handler 需要的核心操作，由 usecase.CoreUseCase 實作
type Ledger interface {
	OpenAccount(ctx context.Context, in domain.NewAccount) (*domain.Account, error)
	GetAccount(ctx context.Context, accountID string) (*domain.Account, error)
	ListEntries(ctx context.Context, accountID string) ([]domain.Entry, error)
	CheckBalance(ctx context.Context, accountID string) (domain.BalanceCheck, error)
	CreateEntry(ctx context.Context, in domain.NewEntry) (*domain.Entry, error)
	GetEntry(ctx context.Context, entryID string) (*domain.Entry, error)
	UpdateEntry(ctx context.Context, entryID string, patch domain.EntryPatch) (*domain.Entry, error)
	DeleteEntry(ctx context.Context, entryID string) error
}

type Handler struct {
	ledger Ledger
	logger *zap.Logger
}

func NewHandler(ledger Ledger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ledger: ledger, logger: logger}
}

type openAccountRequest struct {
	Name    string          `json:"name"`
	UserID  string          `json:"userId"`
	Balance decimal.Decimal `json:"balance"`
}

type accountResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	UserID         string    `json:"userId"`
	Balance        string    `json:"balance"`
	OpeningBalance string    `json:"openingBalance"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func toAccountResponse(a *domain.Account) accountResponse {
	return accountResponse{
		ID:             a.ID,
		Name:           a.Name,
		UserID:         a.UserID,
		Balance:        a.Balance.StringFixed(domain.MoneyScale),
		OpeningBalance: a.OpeningBalance.StringFixed(domain.MoneyScale),
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

type createEntryRequest struct {
	Type      domain.EntryType `json:"type"`
	Amount    decimal.Decimal  `json:"amount"`
	AccountID string           `json:"accountId"`
}

type updateEntryRequest struct {
	Type      *domain.EntryType `json:"type"`
	Amount    *decimal.Decimal  `json:"amount"`
	AccountID *string           `json:"accountId"`
}

type entryResponse struct {
	ID        string           `json:"id"`
	Type      domain.EntryType `json:"type"`
	Amount    string           `json:"amount"`
	AccountID string           `json:"accountId"`
	CreatedAt time.Time        `json:"createdAt"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

func toEntryResponse(e *domain.Entry) entryResponse {
	return entryResponse{
		ID:        e.ID,
		Type:      e.Type,
		Amount:    e.Amount.StringFixed(domain.MoneyScale),
		AccountID: e.AccountID,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

type balanceCheckResponse struct {
	AccountID  string `json:"accountId"`
	Stored     string `json:"stored"`
	Expected   string `json:"expected"`
	Entries    int    `json:"entries"`
	Consistent bool   `json:"consistent"`
}

func (h *Handler) handleOpenAccount(w http.ResponseWriter, r *http.Request) {
	var req openAccountRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	acc, err := h.ledger.OpenAccount(r.Context(), domain.NewAccount{
		Name:           req.Name,
		UserID:         req.UserID,
		OpeningBalance: req.Balance,
	})
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, toAccountResponse(acc))
}

func (h *Handler) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.ledger.GetAccount(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toAccountResponse(acc))
}

func (h *Handler) handleListEntries(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ledger.ListEntries(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, toEntryResponse(&entries[i]))
	}
	respondWithJSON(w, http.StatusOK, out)
}

func (h *Handler) handleCheckBalance(w http.ResponseWriter, r *http.Request) {
	check, err := h.ledger.CheckBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, balanceCheckResponse{
		AccountID:  check.AccountID,
		Stored:     check.Stored.StringFixed(domain.MoneyScale),
		Expected:   check.Expected.StringFixed(domain.MoneyScale),
		Entries:    check.Entries,
		Consistent: check.Consistent(),
	})
}

func (h *Handler) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var req createEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := h.ledger.CreateEntry(r.Context(), domain.NewEntry{
		Type:      req.Type,
		Amount:    req.Amount,
		AccountID: req.AccountID,
	})
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, toEntryResponse(entry))
}

func (h *Handler) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.ledger.GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	var req updateEntryRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := h.ledger.UpdateEntry(r.Context(), chi.URLParam(r, "id"), domain.EntryPatch{
		Type:      req.Type,
		Amount:    req.Amount,
		AccountID: req.AccountID,
	})
	if err != nil {
		h.respondWithError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, toEntryResponse(entry))
}

func (h *Handler) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.ledger.DeleteEntry(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondWithError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondWithJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor 將 domain 錯誤對應到 HTTP 狀態碼。
// ErrLedgerInconsistent 同時包著 ErrAccountNotFound，必須先判斷。
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrLedgerInconsistent):
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrEntryNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrAmountMustBePositive),
		errors.Is(err, domain.ErrAmountPrecision),
		errors.Is(err, domain.ErrInvalidEntryType),
		errors.Is(err, domain.ErrInvalidAccount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrAccountAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, domain.ErrAtomicUnitFailed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		)
		if status == http.StatusInternalServerError {
			msg = http.StatusText(status)
		}
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	respondWithJSON(w, status, errorResponse{Error: msg})
}

func respondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
