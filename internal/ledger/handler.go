package ledger

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerpos/ledgerpos/internal/platform/httpx"
	"github.com/ledgerpos/ledgerpos/internal/shared"
)

// IdempotencyHeader carries the client supplied key of a payment request.
const IdempotencyHeader = "Idempotency-Key"

const defaultRecentSales = 5

// IdempotencyPort claims request keys.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

// IntegrityEnqueuer schedules a background integrity check of a store.
type IntegrityEnqueuer interface {
	EnqueueIntegrityCheck(ctx context.Context, storeID string) (string, error)
}

var errorMappings = []httpx.ErrorMapping{
	{Err: ErrInvalidAmount, Status: http.StatusUnprocessableEntity, Title: "Invalid Amount"},
	{Err: ErrInvalidMethod, Status: http.StatusUnprocessableEntity, Title: "Invalid Payment Method"},
	{Err: ErrEmptySale, Status: http.StatusUnprocessableEntity, Title: "Empty Sale"},
	{Err: ErrInvalidQuantity, Status: http.StatusUnprocessableEntity, Title: "Invalid Quantity"},
	{Err: ErrInsufficientStock, Status: http.StatusUnprocessableEntity, Title: "Insufficient Stock"},
	{Err: ErrAmountOverflow, Status: http.StatusUnprocessableEntity, Title: "Amount Out Of Range"},
	{Err: ErrNoOutstandingDebt, Status: http.StatusUnprocessableEntity, Title: "No Outstanding Debt"},
	{Err: ErrProductNotFound, Status: http.StatusUnprocessableEntity, Title: "Unknown Product"},
	{Err: ErrCustomerNotFound, Status: http.StatusNotFound, Title: "Customer Not Found"},
	{Err: ErrSaleNotFound, Status: http.StatusNotFound, Title: "Sale Not Found"},
	{Err: ErrConflict, Status: http.StatusConflict, Title: "Conflict"},
	{Err: shared.ErrIdempotencyConflict, Status: http.StatusConflict, Title: "Duplicate Request"},
	{Err: ErrSessionsClosed, Status: http.StatusServiceUnavailable, Title: "Unavailable"},
}

// Handler exposes the ledger over JSON.
type Handler struct {
	logger      *slog.Logger
	sessions    *Sessions
	validate    *validator.Validate
	idempotency IdempotencyPort
	enqueuer    IntegrityEnqueuer
}

// NewHandler builds Handler. idempotency and enqueuer may be nil.
func NewHandler(logger *slog.Logger, sessions *Sessions, idempotency IdempotencyPort, enqueuer IntegrityEnqueuer) *Handler {
	return &Handler{
		logger:      logger,
		sessions:    sessions,
		validate:    validator.New(),
		idempotency: idempotency,
		enqueuer:    enqueuer,
	}
}

// MountRoutes registers ledger routes on a router scoped to /stores/{storeID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/sales", h.listSales)
	r.Post("/sales", h.createSale)
	r.Post("/sales/{saleID}/payments", h.paySale)
	r.Post("/customers/{customerID}/payments", h.payCustomer)
	r.Get("/customers/{customerID}/outstanding", h.outstanding)
	r.Get("/payments", h.listPayments)
	r.Get("/payments/history", h.paymentHistory)
	r.Get("/summary", h.summary)
	r.Get("/debtors", h.debtors)
	r.Post("/integrity-checks", h.enqueueIntegrity)
	r.Get("/integrity", h.integrity)
}

func (h *Handler) service(w http.ResponseWriter, r *http.Request) (*Service, bool) {
	svc, err := h.sessions.Get(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		h.fail(w, r, "open store session", err)
		return nil, false
	}
	return svc, true
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	level := slog.LevelWarn
	if !isClientError(err) {
		level = slog.LevelError
	}
	h.logger.Log(r.Context(), level, msg, slog.String("store_id", chi.URLParam(r, "storeID")), slog.Any("error", err))
	httpx.RespondError(w, err, errorMappings...)
}

func isClientError(err error) bool {
	for _, m := range errorMappings {
		if errors.Is(err, m.Err) {
			return m.Status < http.StatusInternalServerError
		}
	}
	return errors.Is(err, httpx.ErrBadRequest) || errors.Is(err, httpx.ErrValidation) || errors.Is(err, httpx.ErrNotFound)
}

func (h *Handler) listSales(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, paginated(r, svc.Sales()))
}

func (h *Handler) createSale(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	var req saleRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		h.fail(w, r, "decode sale", err)
		return
	}
	sale, err := svc.CommitSale(r.Context(), req.input())
	if err != nil {
		h.fail(w, r, "commit sale", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) paySale(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		h.fail(w, r, "decode payment", err)
		return
	}
	h.withIdempotency(w, r, func() (PaymentGroup, error) {
		return svc.PayOneSale(r.Context(), SalePaymentInput{
			SaleID:          chi.URLParam(r, "saleID"),
			Amount:          req.Amount,
			PaymentMethodID: req.PaymentMethodID,
		})
	})
}

func (h *Handler) payCustomer(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if err := httpx.DecodeAndValidate(r, h.validate, &req); err != nil {
		h.fail(w, r, "decode payment", err)
		return
	}
	h.withIdempotency(w, r, func() (PaymentGroup, error) {
		return svc.PayCustomer(r.Context(), CustomerPaymentInput{
			CustomerID:      chi.URLParam(r, "customerID"),
			Amount:          req.Amount,
			PaymentMethodID: req.PaymentMethodID,
		})
	})
}

// withIdempotency claims the request key before pay runs and releases it
// when pay fails so the client may retry.
func (h *Handler) withIdempotency(w http.ResponseWriter, r *http.Request, pay func() (PaymentGroup, error)) {
	key := r.Header.Get(IdempotencyHeader)
	module := "payments:" + chi.URLParam(r, "storeID")
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, module); err != nil {
			h.fail(w, r, "claim idempotency key", err)
			return
		}
	}
	group, err := pay()
	if err != nil {
		if key != "" && h.idempotency != nil {
			if derr := h.idempotency.Delete(context.WithoutCancel(r.Context()), key, module); derr != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", derr))
			}
		}
		h.fail(w, r, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, group)
}

func (h *Handler) outstanding(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	debt, err := svc.Outstanding(chi.URLParam(r, "customerID"))
	if err != nil {
		h.fail(w, r, "outstanding debt", err)
		return
	}
	httpx.JSON(w, http.StatusOK, debt)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, paginated(r, svc.Payments()))
}

func (h *Handler) paymentHistory(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	groups, err := svc.ProjectPaymentHistory(r.Context())
	if err != nil {
		h.fail(w, r, "project payment history", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse[PaymentGroup]{Data: groups})
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	recent := defaultRecentSales
	if raw := r.URL.Query().Get("recent"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.fail(w, r, "parse recent", httpx.ErrBadRequest)
			return
		}
		recent = n
	}
	httpx.JSON(w, http.StatusOK, svc.Summary(recent))
}

func (h *Handler) debtors(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse[Debtor]{Data: svc.Debtors()})
}

func (h *Handler) integrity(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.service(w, r)
	if !ok {
		return
	}
	violations, err := svc.CheckIntegrity(r.Context())
	if err != nil {
		h.fail(w, r, "check integrity", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse[Violation]{Data: violations})
}

func (h *Handler) enqueueIntegrity(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Unavailable", "background jobs are not configured")
		return
	}
	storeID := chi.URLParam(r, "storeID")
	taskID, err := h.enqueuer.EnqueueIntegrityCheck(r.Context(), storeID)
	if err != nil {
		h.fail(w, r, "enqueue integrity check", err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, integrityResponse{StoreID: storeID, TaskID: taskID})
}
