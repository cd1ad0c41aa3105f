package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ledgerpos/ledgerpos/internal/entitystore"
)

// DefaultMaxAttempts bounds how often a conflicting commit is replanned.
const DefaultMaxAttempts = 3

// OperationRecorder receives the outcome of every ledger operation.
type OperationRecorder interface {
	RecordLedgerOperation(op, outcome string)
}

// ServiceConfig groups optional settings.
type ServiceConfig struct {
	MaxAttempts int
	Metrics     OperationRecorder
}

// Service coordinates sale commits and payment allocation for one store. It
// reads from its Mirror and funnels every mutation through a single store
// commit.
type Service struct {
	store    entitystore.Store
	mirror   *Mirror
	tenant   string
	logger   *slog.Logger
	attempts int
	metrics  OperationRecorder
}

// NewService builds Service.
func NewService(store entitystore.Store, mirror *Mirror, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = DefaultMaxAttempts
	}
	return &Service{
		store:    store,
		mirror:   mirror,
		tenant:   mirror.Tenant(),
		logger:   logger.With(slog.String("store_id", mirror.Tenant())),
		attempts: attempts,
		metrics:  cfg.Metrics,
	}
}

// Mirror exposes the read model backing the service.
func (s *Service) Mirror() *Mirror {
	return s.mirror
}

// CommitSale records a sale and decrements stock for its items in one commit.
func (s *Service) CommitSale(ctx context.Context, input SaleInput) (Sale, error) {
	var sale Sale
	err := s.withRetry(ctx, "commit_sale", []string{CollectionProducts, CollectionCustomers}, func() error {
		customer, ok := s.mirror.Customer(input.CustomerID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrCustomerNotFound, input.CustomerID)
		}
		plan, err := PlanSale(input, customer, s.mirror.ProductIndex())
		if err != nil {
			return err
		}
		docs, err := s.commit(ctx, plan.Writes)
		if err != nil {
			return err
		}
		sale, err = DecodeSale(docs[0])
		return err
	})
	if err != nil {
		return Sale{}, err
	}
	s.logger.Info("sale committed", slog.String("sale_id", sale.ID), slog.Int64("total", sale.Total))
	return sale, nil
}

// PayOneSale applies amount to a single sale.
func (s *Service) PayOneSale(ctx context.Context, input SalePaymentInput) (PaymentGroup, error) {
	var group PaymentGroup
	err := s.withRetry(ctx, "pay_sale", []string{CollectionSales, CollectionPaymentMethods}, func() error {
		if input.Amount <= 0 {
			return fmt.Errorf("%w: %d must be positive", ErrInvalidAmount, input.Amount)
		}
		method, err := s.paymentMethod(input.PaymentMethodID)
		if err != nil {
			return err
		}
		sale, ok := s.mirror.Sale(input.SaleID)
		if !ok {
			return fmt.Errorf("%w: %s", ErrSaleNotFound, input.SaleID)
		}
		if sale.Closed() {
			return fmt.Errorf("%w: sale %s is paid", ErrNoOutstandingDebt, sale.ID)
		}
		if input.Amount > sale.Balance {
			return fmt.Errorf("%w: %d exceeds balance %d", ErrInvalidAmount, input.Amount, sale.Balance)
		}
		allocation := Allocation{SaleID: sale.ID, Version: sale.Version, Balance: sale.Balance, Amount: input.Amount}
		group, err = s.commitAllocations(ctx, method, []Allocation{allocation})
		return err
	})
	if err != nil {
		return PaymentGroup{}, err
	}
	return group, nil
}

// PayCustomer allocates amount across the customer's outstanding sales,
// oldest first, as one payment group.
func (s *Service) PayCustomer(ctx context.Context, input CustomerPaymentInput) (PaymentGroup, error) {
	var group PaymentGroup
	err := s.withRetry(ctx, "pay_customer", []string{CollectionSales, CollectionPaymentMethods}, func() error {
		if input.Amount <= 0 {
			return fmt.Errorf("%w: %d must be positive", ErrInvalidAmount, input.Amount)
		}
		method, err := s.paymentMethod(input.PaymentMethodID)
		if err != nil {
			return err
		}
		allocations, err := Allocate(s.customerSales(input.CustomerID), input.Amount)
		if err != nil {
			return err
		}
		group, err = s.commitAllocations(ctx, method, allocations)
		return err
	})
	if err != nil {
		return PaymentGroup{}, err
	}
	return group, nil
}

// ProjectPaymentHistory returns the grouped payment history, newest first.
func (s *Service) ProjectPaymentHistory(ctx context.Context) ([]PaymentGroup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return GroupPayments(s.mirror.Payments(), s.mirror.Sales()), nil
}

// Outstanding lists the customer's open sales in allocation order.
func (s *Service) Outstanding(customerID string) (OutstandingDebt, error) {
	open := OutstandingSales(s.customerSales(customerID))
	total, err := TotalOutstanding(open)
	if err != nil {
		return OutstandingDebt{}, err
	}
	return OutstandingDebt{CustomerID: customerID, Sales: open, Total: total}, nil
}

// Sales returns every sale, newest first.
func (s *Service) Sales() []Sale {
	sales := s.mirror.Sales()
	for i, j := 0, len(sales)-1; i < j; i, j = i+1, j-1 {
		sales[i], sales[j] = sales[j], sales[i]
	}
	return sales
}

// Payments returns every payment in creation order.
func (s *Service) Payments() []Payment {
	return s.mirror.Payments()
}

// Summary returns the dashboard figures.
func (s *Service) Summary(recent int) Summary {
	return Summarize(s.mirror.Sales(), recent)
}

// Debtors lists customers that still owe money.
func (s *Service) Debtors() []Debtor {
	return Debtors(s.mirror.Sales(), s.mirror.Customers())
}

// CheckIntegrity audits one consistent read of the store. The live mirror is
// not used since its collections may be applied at different times.
func (s *Service) CheckIntegrity(ctx context.Context) ([]Violation, error) {
	audit, err := AuditStore(ctx, s.store, s.tenant, s.logger)
	if err != nil {
		return nil, err
	}
	return audit.Violations, nil
}

func (s *Service) customerSales(customerID string) []Sale {
	all := s.mirror.Sales()
	sales := make([]Sale, 0)
	for _, sale := range all {
		if sale.CustomerID == customerID {
			sales = append(sales, sale)
		}
	}
	return sales
}

func (s *Service) paymentMethod(id string) (PaymentMethod, error) {
	if id == "" {
		return PaymentMethod{}, fmt.Errorf("%w: none selected", ErrInvalidMethod)
	}
	method, ok := s.mirror.PaymentMethod(id)
	if !ok {
		return PaymentMethod{}, fmt.Errorf("%w: %s", ErrInvalidMethod, id)
	}
	return method, nil
}

// commitAllocations writes one guarded balance update and one payment per
// allocation under a fresh group id.
func (s *Service) commitAllocations(ctx context.Context, method PaymentMethod, allocations []Allocation) (PaymentGroup, error) {
	groupID := uuid.NewString()
	writes := make([]entitystore.Write, 0, 2*len(allocations))
	for _, a := range allocations {
		writes = append(writes,
			entitystore.Update(CollectionSales, a.SaleID, a.Version, map[string]any{"balance": a.Remaining()}),
			entitystore.Create(CollectionPayments, "", PaymentFields(Payment{
				SaleID:            a.SaleID,
				Amount:            a.Amount,
				PaymentMethodID:   method.ID,
				PaymentMethodName: method.Name,
				GroupID:           groupID,
			})),
		)
	}
	docs, err := s.commit(ctx, writes)
	if err != nil {
		return PaymentGroup{}, err
	}

	var (
		payments []Payment
		sales    []Sale
	)
	for _, d := range docs {
		switch d.Collection {
		case CollectionPayments:
			p, err := DecodePayment(d)
			if err != nil {
				return PaymentGroup{}, err
			}
			payments = append(payments, p)
		case CollectionSales:
			sale, err := DecodeSale(d)
			if err != nil {
				return PaymentGroup{}, err
			}
			sales = append(sales, sale)
		}
	}
	groups := GroupPayments(payments, sales)
	if len(groups) != 1 {
		return PaymentGroup{}, fmt.Errorf("ledger: payment commit produced %d groups", len(groups))
	}
	s.logger.Info("payment recorded",
		slog.String("group_id", groupID),
		slog.Int64("amount", groups[0].TotalAmount),
		slog.Int("sales", len(allocations)),
	)
	return groups[0], nil
}

func (s *Service) commit(ctx context.Context, writes []entitystore.Write) ([]entitystore.Document, error) {
	docs, err := s.store.Commit(ctx, s.tenant, writes)
	if err != nil {
		return nil, err
	}
	s.mirror.ApplyCommitted(docs)
	return docs, nil
}

// withRetry runs attempt, replanning from refreshed collections while the
// store reports conflicts.
func (s *Service) withRetry(ctx context.Context, op string, refresh []string, attempt func() error) error {
	var err error
	for i := 1; i <= s.attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
			break
		}
		err = attempt()
		if err == nil || !IsRetryable(err) {
			break
		}
		s.logger.Warn("commit conflict", slog.String("op", op), slog.Int("attempt", i), slog.Any("error", err))
		if i == s.attempts {
			err = fmt.Errorf("ledger: %s failed after %d attempts: %w", op, s.attempts, err)
			break
		}
		if rerr := s.refresh(ctx, refresh); rerr != nil {
			err = rerr
			break
		}
	}
	s.record(op, err)
	return err
}

func (s *Service) refresh(ctx context.Context, collections []string) error {
	return s.mirror.RefreshCollections(ctx, collections...)
}

func (s *Service) record(op string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "ok"
	switch {
	case err == nil:
	case IsRetryable(err):
		outcome = "conflict"
	default:
		outcome = "rejected"
	}
	s.metrics.RecordLedgerOperation(op, outcome)
}
