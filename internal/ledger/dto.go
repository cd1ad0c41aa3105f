package ledger

import (
	"net/http"

	"github.com/ledgerpos/ledgerpos/internal/shared"
)

type saleItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int64  `json:"quantity"`
}

type saleRequest struct {
	CustomerID   string            `json:"customer_id" validate:"required"`
	CustomerName string            `json:"customer_name" validate:"max=200"`
	Items        []saleItemRequest `json:"items" validate:"dive"`
}

func (r saleRequest) input() SaleInput {
	items := make([]ItemInput, len(r.Items))
	for i, it := range r.Items {
		items[i] = ItemInput{ProductID: it.ProductID, Quantity: it.Quantity}
	}
	return SaleInput{CustomerID: r.CustomerID, CustomerName: r.CustomerName, Items: items}
}

type paymentRequest struct {
	Amount          int64  `json:"amount"`
	PaymentMethodID string `json:"payment_method_id"`
}

type listResponse[T any] struct {
	Data       []T                `json:"data"`
	Pagination *shared.Pagination `json:"pagination,omitempty"`
}

func paginated[T any](r *http.Request, items []T) listResponse[T] {
	page, perPage, ok := shared.PageFromQuery(r.URL.Query())
	if !ok {
		return listResponse[T]{Data: items}
	}
	data, p := shared.Paginate(items, page, perPage)
	return listResponse[T]{Data: data, Pagination: &p}
}

type integrityResponse struct {
	StoreID string `json:"store_id"`
	TaskID  string `json:"task_id"`
}
