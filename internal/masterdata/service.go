// Package masterdata manages the reference data of a store: products,
// customers and payment methods.
package masterdata

import (
	"context"
	"fmt"

	"github.com/ledgerpos/ledgerpos/internal/entitystore"
	"github.com/ledgerpos/ledgerpos/internal/ledger"
)

// CommitObserver is told about documents written by this package so open
// ledger sessions see them without waiting for the change feed.
type CommitObserver interface {
	ApplyCommitted(storeID string, docs []entitystore.Document)
}

// Service reads and writes reference data through the entity store.
type Service struct {
	store    entitystore.Store
	observer CommitObserver
}

// NewService builds Service. observer may be nil.
func NewService(store entitystore.Store, observer CommitObserver) *Service {
	return &Service{store: store, observer: observer}
}

// ProductInput creates a product with its opening stock.
type ProductInput struct {
	Name      string
	UnitPrice int64
	Stock     int64
}

// ProductUpdate edits a product. Stock is not editable.
type ProductUpdate struct {
	Name      string
	UnitPrice int64
}

// CustomerInput creates or replaces a customer.
type CustomerInput struct {
	Name  string
	Email string
	Phone string
}

// PaymentMethodInput creates or renames a payment method.
type PaymentMethodInput struct {
	Name string
}

// ListProducts returns the products of a store in creation order.
func (s *Service) ListProducts(ctx context.Context, storeID string) ([]ledger.Product, error) {
	return list(ctx, s.store, storeID, ledger.CollectionProducts, ledger.DecodeProduct)
}

// GetProduct returns entitystore.ErrNotFound for unknown ids.
func (s *Service) GetProduct(ctx context.Context, storeID, id string) (ledger.Product, error) {
	return get(ctx, s.store, storeID, ledger.CollectionProducts, id, ledger.DecodeProduct)
}

// CreateProduct sets the initial stock. Stock is only changed by sales after
// that.
func (s *Service) CreateProduct(ctx context.Context, storeID string, in ProductInput) (ledger.Product, error) {
	p := ledger.Product{Name: in.Name, UnitPrice: in.UnitPrice, Stock: in.Stock}
	if err := validateProduct(p.Name, p.UnitPrice); err != nil {
		return ledger.Product{}, err
	}
	if p.Stock < 0 {
		return ledger.Product{}, fmt.Errorf("%w: %d", ErrInvalidStock, p.Stock)
	}
	doc, err := s.commit(ctx, storeID, entitystore.Create(ledger.CollectionProducts, "", ledger.ProductFields(p)))
	if err != nil {
		return ledger.Product{}, err
	}
	return ledger.DecodeProduct(doc)
}

// UpdateProduct changes name and price. Existing sales keep the price they
// were sold at.
func (s *Service) UpdateProduct(ctx context.Context, storeID, id string, in ProductUpdate) (ledger.Product, error) {
	if err := validateProduct(in.Name, in.UnitPrice); err != nil {
		return ledger.Product{}, err
	}
	doc, err := s.commit(ctx, storeID, entitystore.Update(ledger.CollectionProducts, id, 0, map[string]any{
		"name":  in.Name,
		"price": in.UnitPrice,
	}))
	if err != nil {
		return ledger.Product{}, err
	}
	return ledger.DecodeProduct(doc)
}

// DeleteProduct removes a product. Sales that captured it are unaffected.
func (s *Service) DeleteProduct(ctx context.Context, storeID, id string) error {
	_, err := s.commit(ctx, storeID, entitystore.Remove(ledger.CollectionProducts, id, 0))
	return err
}

// ListCustomers returns the customers of a store in creation order.
func (s *Service) ListCustomers(ctx context.Context, storeID string) ([]ledger.Customer, error) {
	return list(ctx, s.store, storeID, ledger.CollectionCustomers, ledger.DecodeCustomer)
}

func (s *Service) GetCustomer(ctx context.Context, storeID, id string) (ledger.Customer, error) {
	return get(ctx, s.store, storeID, ledger.CollectionCustomers, id, ledger.DecodeCustomer)
}

// CreateCustomer validates the name and stores a new customer.
func (s *Service) CreateCustomer(ctx context.Context, storeID string, in CustomerInput) (ledger.Customer, error) {
	c := ledger.Customer{Name: in.Name, Email: in.Email, Phone: in.Phone}
	if err := validateName(c.Name); err != nil {
		return ledger.Customer{}, err
	}
	doc, err := s.commit(ctx, storeID, entitystore.Create(ledger.CollectionCustomers, "", ledger.CustomerFields(c)))
	if err != nil {
		return ledger.Customer{}, err
	}
	return ledger.DecodeCustomer(doc)
}

// UpdateCustomer renames a customer. Sales keep the name they were made under.
func (s *Service) UpdateCustomer(ctx context.Context, storeID, id string, in CustomerInput) (ledger.Customer, error) {
	c := ledger.Customer{Name: in.Name, Email: in.Email, Phone: in.Phone}
	if err := validateName(c.Name); err != nil {
		return ledger.Customer{}, err
	}
	doc, err := s.commit(ctx, storeID, entitystore.Update(ledger.CollectionCustomers, id, 0, ledger.CustomerFields(c)))
	if err != nil {
		return ledger.Customer{}, err
	}
	return ledger.DecodeCustomer(doc)
}

// DeleteCustomer removes a customer. Their sales and payments remain.
func (s *Service) DeleteCustomer(ctx context.Context, storeID, id string) error {
	_, err := s.commit(ctx, storeID, entitystore.Remove(ledger.CollectionCustomers, id, 0))
	return err
}

func (s *Service) ListPaymentMethods(ctx context.Context, storeID string) ([]ledger.PaymentMethod, error) {
	return list(ctx, s.store, storeID, ledger.CollectionPaymentMethods, ledger.DecodePaymentMethod)
}

func (s *Service) GetPaymentMethod(ctx context.Context, storeID, id string) (ledger.PaymentMethod, error) {
	return get(ctx, s.store, storeID, ledger.CollectionPaymentMethods, id, ledger.DecodePaymentMethod)
}

// CreatePaymentMethod stores a new payment method.
func (s *Service) CreatePaymentMethod(ctx context.Context, storeID string, in PaymentMethodInput) (ledger.PaymentMethod, error) {
	m := ledger.PaymentMethod{Name: in.Name}
	if err := validateName(m.Name); err != nil {
		return ledger.PaymentMethod{}, err
	}
	doc, err := s.commit(ctx, storeID, entitystore.Create(ledger.CollectionPaymentMethods, "", ledger.PaymentMethodFields(m)))
	if err != nil {
		return ledger.PaymentMethod{}, err
	}
	return ledger.DecodePaymentMethod(doc)
}

// RenamePaymentMethod changes the name shown on future payments.
func (s *Service) RenamePaymentMethod(ctx context.Context, storeID, id string, in PaymentMethodInput) (ledger.PaymentMethod, error) {
	m := ledger.PaymentMethod{Name: in.Name}
	if err := validateName(m.Name); err != nil {
		return ledger.PaymentMethod{}, err
	}
	doc, err := s.commit(ctx, storeID, entitystore.Update(ledger.CollectionPaymentMethods, id, 0, ledger.PaymentMethodFields(m)))
	if err != nil {
		return ledger.PaymentMethod{}, err
	}
	return ledger.DecodePaymentMethod(doc)
}

func (s *Service) DeletePaymentMethod(ctx context.Context, storeID, id string) error {
	_, err := s.commit(ctx, storeID, entitystore.Remove(ledger.CollectionPaymentMethods, id, 0))
	return err
}

func (s *Service) commit(ctx context.Context, storeID string, w entitystore.Write) (entitystore.Document, error) {
	docs, err := s.store.Commit(ctx, storeID, []entitystore.Write{w})
	if err != nil {
		return entitystore.Document{}, err
	}
	if s.observer != nil {
		s.observer.ApplyCommitted(storeID, docs)
	}
	return docs[0], nil
}

func list[T any](ctx context.Context, store entitystore.Store, storeID, collection string, decode func(entitystore.Document) (T, error)) ([]T, error) {
	docs, err := store.List(ctx, storeID, collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := decode(d)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func get[T any](ctx context.Context, store entitystore.Store, storeID, collection, id string, decode func(entitystore.Document) (T, error)) (T, error) {
	var zero T
	doc, err := store.Get(ctx, storeID, collection, id)
	if err != nil {
		return zero, err
	}
	return decode(doc)
}
