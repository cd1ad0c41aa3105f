package ledger

import (
	"fmt"

	"github.com/ledgerpos/ledgerpos/internal/entitystore"
)

// Stored document layouts. Field names match the collections written by the
// point-of-sale clients.

type productDoc struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Stock int64  `json:"stock"`
}

type customerDoc struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type lineItemDoc struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}

type saleDoc struct {
	CustomerID   string        `json:"customerId"`
	CustomerName string        `json:"customerName"`
	Items        []lineItemDoc `json:"items"`
	Total        int64         `json:"total"`
	Balance      int64         `json:"balance"`
}

type paymentDoc struct {
	SaleID            string `json:"saleId"`
	Amount            int64  `json:"amount"`
	PaymentMethodID   string `json:"paymentMethodId"`
	PaymentMethodName string `json:"paymentMethodName"`
	PaymentGroupID    string `json:"paymentGroupId"`
}

type paymentMethodDoc struct {
	Name string `json:"name"`
}

// DecodeProduct maps a products document.
func DecodeProduct(doc entitystore.Document) (Product, error) {
	var d productDoc
	if err := doc.Decode(&d); err != nil {
		return Product{}, fmt.Errorf("ledger: decode product %s: %w", doc.ID, err)
	}
	return Product{ID: doc.ID, Name: d.Name, UnitPrice: d.Price, Stock: d.Stock, Version: doc.Version}, nil
}

// ProductFields encodes a product for storage.
func ProductFields(p Product) map[string]any {
	return map[string]any{"name": p.Name, "price": p.UnitPrice, "stock": p.Stock}
}

// DecodeCustomer maps a customers document.
func DecodeCustomer(doc entitystore.Document) (Customer, error) {
	var d customerDoc
	if err := doc.Decode(&d); err != nil {
		return Customer{}, fmt.Errorf("ledger: decode customer %s: %w", doc.ID, err)
	}
	return Customer{ID: doc.ID, Name: d.Name, Email: d.Email, Phone: d.Phone, Version: doc.Version}, nil
}

// CustomerFields encodes a customer for storage.
func CustomerFields(c Customer) map[string]any {
	return map[string]any{"name": c.Name, "email": c.Email, "phone": c.Phone}
}

// DecodeSale maps a sales document.
func DecodeSale(doc entitystore.Document) (Sale, error) {
	var d saleDoc
	if err := doc.Decode(&d); err != nil {
		return Sale{}, fmt.Errorf("ledger: decode sale %s: %w", doc.ID, err)
	}
	items := make([]LineItem, len(d.Items))
	for i, it := range d.Items {
		items[i] = LineItem{ProductID: it.ProductID, Name: it.Name, UnitPrice: it.Price, Quantity: it.Quantity}
	}
	return Sale{
		ID:           doc.ID,
		CustomerID:   d.CustomerID,
		CustomerName: d.CustomerName,
		Items:        items,
		Total:        d.Total,
		Balance:      d.Balance,
		CreatedAt:    doc.CreatedAt,
		Version:      doc.Version,
	}, nil
}

// SaleFields encodes a new sale for storage.
func SaleFields(s Sale) map[string]any {
	items := make([]lineItemDoc, len(s.Items))
	for i, it := range s.Items {
		items[i] = lineItemDoc{ProductID: it.ProductID, Name: it.Name, Price: it.UnitPrice, Quantity: it.Quantity}
	}
	return map[string]any{
		"customerId":   s.CustomerID,
		"customerName": s.CustomerName,
		"items":        items,
		"total":        s.Total,
		"balance":      s.Balance,
	}
}

// DecodePayment maps a payments document.
func DecodePayment(doc entitystore.Document) (Payment, error) {
	var d paymentDoc
	if err := doc.Decode(&d); err != nil {
		return Payment{}, fmt.Errorf("ledger: decode payment %s: %w", doc.ID, err)
	}
	return Payment{
		ID:                doc.ID,
		SaleID:            d.SaleID,
		Amount:            d.Amount,
		PaymentMethodID:   d.PaymentMethodID,
		PaymentMethodName: d.PaymentMethodName,
		GroupID:           d.PaymentGroupID,
		CreatedAt:         doc.CreatedAt,
	}, nil
}

// PaymentFields encodes a payment for storage.
func PaymentFields(p Payment) map[string]any {
	return map[string]any{
		"saleId":            p.SaleID,
		"amount":            p.Amount,
		"paymentMethodId":   p.PaymentMethodID,
		"paymentMethodName": p.PaymentMethodName,
		"paymentGroupId":    p.GroupID,
	}
}

// DecodePaymentMethod maps a paymentMethods document.
func DecodePaymentMethod(doc entitystore.Document) (PaymentMethod, error) {
	var d paymentMethodDoc
	if err := doc.Decode(&d); err != nil {
		return PaymentMethod{}, fmt.Errorf("ledger: decode payment method %s: %w", doc.ID, err)
	}
	return PaymentMethod{ID: doc.ID, Name: d.Name, Version: doc.Version}, nil
}

// PaymentMethodFields encodes a payment method for storage.
func PaymentMethodFields(m PaymentMethod) map[string]any {
	return map[string]any{"name": m.Name}
}
