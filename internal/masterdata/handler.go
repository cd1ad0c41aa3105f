package masterdata

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerpos/ledgerpos/internal/entitystore"
	"github.com/ledgerpos/ledgerpos/internal/ledger"
	"github.com/ledgerpos/ledgerpos/internal/platform/httpx"
)

var errorMappings = []httpx.ErrorMapping{
	{Err: ErrNameRequired, Status: http.StatusUnprocessableEntity, Title: "Name Required"},
	{Err: ErrInvalidPrice, Status: http.StatusUnprocessableEntity, Title: "Invalid Price"},
	{Err: ErrInvalidStock, Status: http.StatusUnprocessableEntity, Title: "Invalid Stock"},
	{Err: entitystore.ErrNotFound, Status: http.StatusNotFound, Title: "Not Found"},
	{Err: entitystore.ErrConflict, Status: http.StatusConflict, Title: "Conflict"},
}

// Handler exposes reference data over JSON.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers reference data routes on a router scoped to
// /stores/{storeID}.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Get("/products/{productID}", h.showProduct)
	r.Put("/products/{productID}", h.updateProduct)
	r.Delete("/products/{productID}", h.deleteProduct)

	r.Get("/customers", h.listCustomers)
	r.Post("/customers", h.createCustomer)
	r.Get("/customers/{customerID}", h.showCustomer)
	r.Put("/customers/{customerID}", h.updateCustomer)
	r.Delete("/customers/{customerID}", h.deleteCustomer)

	r.Get("/payment-methods", h.listPaymentMethods)
	r.Post("/payment-methods", h.createPaymentMethod)
	r.Get("/payment-methods/{methodID}", h.showPaymentMethod)
	r.Put("/payment-methods/{methodID}", h.renamePaymentMethod)
	r.Delete("/payment-methods/{methodID}", h.deletePaymentMethod)
}

func storeID(r *http.Request) string {
	return chi.URLParam(r, "storeID")
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.Warn(msg, slog.String("store_id", storeID(r)), slog.Any("error", err))
	httpx.RespondError(w, err, errorMappings...)
}

func respond[T any](h *Handler, w http.ResponseWriter, r *http.Request, msg string, status int, v T, err error) {
	if err != nil {
		h.fail(w, r, msg, err)
		return
	}
	httpx.JSON(w, status, v)
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context(), storeID(r))
	respond(h, w, r, "list products", http.StatusOK, listResponse[ledger.Product]{Data: products}, err)
}

func (h *Handler) showProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), storeID(r), chi.URLParam(r, "productID"))
	respond(h, w, r, "get product", http.StatusOK, p, err)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var form productForm
	if err := httpx.DecodeAndValidate(r, h.validate, &form); err != nil {
		h.fail(w, r, "decode product", err)
		return
	}
	p, err := h.service.CreateProduct(r.Context(), storeID(r), ProductInput(form))
	respond(h, w, r, "create product", http.StatusCreated, p, err)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	var form productUpdateForm
	if err := httpx.DecodeAndValidate(r, h.validate, &form); err != nil {
		h.fail(w, r, "decode product", err)
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), storeID(r), chi.URLParam(r, "productID"), ProductUpdate(form))
	respond(h, w, r, "update product", http.StatusOK, p, err)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProduct(r.Context(), storeID(r), chi.URLParam(r, "productID")); err != nil {
		h.fail(w, r, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.ListCustomers(r.Context(), storeID(r))
	respond(h, w, r, "list customers", http.StatusOK, listResponse[ledger.Customer]{Data: customers}, err)
}

func (h *Handler) showCustomer(w http.ResponseWriter, r *http.Request) {
	c, err := h.service.GetCustomer(r.Context(), storeID(r), chi.URLParam(r, "customerID"))
	respond(h, w, r, "get customer", http.StatusOK, c, err)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var form customerForm
	if err := httpx.DecodeAndValidate(r, h.validate, &form); err != nil {
		h.fail(w, r, "decode customer", err)
		return
	}
	c, err := h.service.CreateCustomer(r.Context(), storeID(r), CustomerInput(form))
	respond(h, w, r, "create customer", http.StatusCreated, c, err)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	var form customerForm
	if err := httpx.DecodeAndValidate(r, h.validate, &form); err != nil {
		h.fail(w, r, "decode customer", err)
		return
	}
	c, err := h.service.UpdateCustomer(r.Context(), storeID(r), chi.URLParam(r, "customerID"), CustomerInput(form))
	respond(h, w, r, "update customer", http.StatusOK, c, err)
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteCustomer(r.Context(), storeID(r), chi.URLParam(r, "customerID")); err != nil {
		h.fail(w, r, "delete customer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPaymentMethods(w http.ResponseWriter, r *http.Request) {
	methods, err := h.service.ListPaymentMethods(r.Context(), storeID(r))
	respond(h, w, r, "list payment methods", http.StatusOK, listResponse[ledger.PaymentMethod]{Data: methods}, err)
}

func (h *Handler) showPaymentMethod(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.GetPaymentMethod(r.Context(), storeID(r), chi.URLParam(r, "methodID"))
	respond(h, w, r, "get payment method", http.StatusOK, m, err)
}

func (h *Handler) createPaymentMethod(w http.ResponseWriter, r *http.Request) {
	var form paymentMethodForm
	if err := httpx.DecodeAndValidate(r, h.validate, &form); err != nil {
		h.fail(w, r, "decode payment method", err)
		return
	}
	m, err := h.service.CreatePaymentMethod(r.Context(), storeID(r), PaymentMethodInput(form))
	respond(h, w, r, "create payment method", http.StatusCreated, m, err)
}

func (h *Handler) renamePaymentMethod(w http.ResponseWriter, r *http.Request) {
	var form paymentMethodForm
	if err := httpx.DecodeAndValidate(r, h.validate, &form); err != nil {
		h.fail(w, r, "decode payment method", err)
		return
	}
	m, err := h.service.RenamePaymentMethod(r.Context(), storeID(r), chi.URLParam(r, "methodID"), PaymentMethodInput(form))
	respond(h, w, r, "rename payment method", http.StatusOK, m, err)
}

func (h *Handler) deletePaymentMethod(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeletePaymentMethod(r.Context(), storeID(r), chi.URLParam(r, "methodID")); err != nil {
		h.fail(w, r, "delete payment method", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
