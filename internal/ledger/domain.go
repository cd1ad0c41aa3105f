// Package ledger implements the accounts-receivable ledger of a store: sale
// commits that decrement stock, payment allocation across outstanding sales
// and the grouped payment history derived from the payment feed.
package ledger

import "time"

// Collection names inside the entity store.
const (
	CollectionProducts       = "products"
	CollectionCustomers      = "customers"
	CollectionSales          = "sales"
	CollectionPayments       = "payments"
	CollectionPaymentMethods = "paymentMethods"
)

// Collections lists every collection mirrored for a store.
var Collections = []string{
	CollectionProducts,
	CollectionCustomers,
	CollectionSales,
	CollectionPayments,
	CollectionPaymentMethods,
}

// UnknownCustomer labels payment groups whose sale can no longer be resolved.
const UnknownCustomer = "N/A"

// Product is a sellable item with its current price and stock.
type Product struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Stock     int64  `json:"stock"`
	Version   int64  `json:"version"`
}

// Customer is the identity receivables are tracked against. Its balance is
// always derived from open sales.
type Customer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Version int64  `json:"version"`
}

// LineItem is a product line captured on a sale at sale time.
type LineItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int64  `json:"quantity"`
}

// Subtotal returns price times quantity. It fails with ErrAmountOverflow
// beyond MaxAmount.
func (li LineItem) Subtotal() (int64, error) {
	return mulAmount(li.UnitPrice, li.Quantity)
}

// Sale is a receivable. Total never changes; Balance only decreases through
// payments and stays within [0, Total].
type Sale struct {
	ID           string     `json:"id"`
	CustomerID   string     `json:"customer_id"`
	CustomerName string     `json:"customer_name"`
	Items        []LineItem `json:"items"`
	Total        int64      `json:"total"`
	Balance      int64      `json:"balance"`
	CreatedAt    time.Time  `json:"created_at"`
	Version      int64      `json:"version"`
}

// Closed reports whether the sale has been fully paid.
func (s Sale) Closed() bool {
	return s.Balance == 0
}

// Paid returns the amount already collected on the sale.
func (s Sale) Paid() int64 {
	return s.Total - s.Balance
}

// Payment is an append-only record of money applied to one sale.
type Payment struct {
	ID                string    `json:"id"`
	SaleID            string    `json:"sale_id"`
	Amount            int64     `json:"amount"`
	PaymentMethodID   string    `json:"payment_method_id"`
	PaymentMethodName string    `json:"payment_method_name"`
	GroupID           string    `json:"group_id"`
	CreatedAt         time.Time `json:"created_at"`
}

// PaymentMethod is reference data selected when recording a payment.
type PaymentMethod struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Version int64  `json:"version"`
}

// Application is the share of a payment event applied to one sale.
type Application struct {
	SaleID string `json:"sale_id"`
	Amount int64  `json:"amount"`
}

// PaymentGroup is one real-world payment event, derived from the payments
// sharing a group id.
type PaymentGroup struct {
	ID                string        `json:"id"`
	Date              time.Time     `json:"date"`
	CustomerID        string        `json:"customer_id,omitempty"`
	CustomerName      string        `json:"customer_name"`
	PaymentMethodID   string        `json:"payment_method_id"`
	PaymentMethodName string        `json:"payment_method_name"`
	TotalAmount       int64         `json:"total_amount"`
	Applications      []Application `json:"applications"`
}

// ItemInput requests a quantity of a product on a new sale.
type ItemInput struct {
	ProductID string
	Quantity  int64
}

// SaleInput carries the data needed to commit a sale. An empty CustomerName
// falls back to the customer's current name.
type SaleInput struct {
	CustomerID   string
	CustomerName string
	Items        []ItemInput
}

// SalePaymentInput pays a single sale.
type SalePaymentInput struct {
	SaleID          string
	Amount          int64
	PaymentMethodID string
}

// CustomerPaymentInput pays a customer's debt, allocated oldest sale first.
type CustomerPaymentInput struct {
	CustomerID      string
	Amount          int64
	PaymentMethodID string
}

// OutstandingDebt lists a customer's open sales in allocation order.
type OutstandingDebt struct {
	CustomerID string `json:"customer_id"`
	Sales      []Sale `json:"sales"`
	Total      int64  `json:"total"`
}
