package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ledgerpos/ledgerpos/internal/app"
	"github.com/ledgerpos/ledgerpos/internal/ledger"
	"github.com/ledgerpos/ledgerpos/internal/masterdata"
)

func main() {
	storeID := flag.String("store", "demo", "store id to seed")
	withSales := flag.Bool("sales", true, "also record demo sales and payments")
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.StoreBackend != app.BackendPostgres {
		log.Printf("warning: STORE_BACKEND=%s, seeded data is discarded on exit", cfg.StoreBackend)
	}
	logger := app.NewLogger(cfg)

	ctx := context.Background()
	res, err := app.OpenResources(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("open resources: %v", err)
	}
	defer res.Close()

	md := masterdata.NewService(res.Store, nil)

	fmt.Println("→ Seeding reference data...")
	ref, err := seedReference(ctx, md, *storeID)
	if err != nil {
		log.Fatalf("seed reference data: %v", err)
	}

	if *withSales {
		fmt.Println("→ Seeding sales and payments...")
		if err := seedLedger(ctx, res, *storeID, ref); err != nil {
			log.Fatalf("seed ledger: %v", err)
		}
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
}

type reference struct {
	products  []ledger.Product
	customers []ledger.Customer
	methods   []ledger.PaymentMethod
}

func seedReference(ctx context.Context, md *masterdata.Service, storeID string) (reference, error) {
	var ref reference
	products := []masterdata.ProductInput{
		{Name: "Sabun Mandi", UnitPrice: 4500, Stock: 120},
		{Name: "Beras 5kg", UnitPrice: 68000, Stock: 40},
		{Name: "Minyak Goreng 1L", UnitPrice: 17500, Stock: 60},
		{Name: "Gula Pasir 1kg", UnitPrice: 15000, Stock: 80},
	}
	for _, in := range products {
		p, err := md.CreateProduct(ctx, storeID, in)
		if err != nil {
			return ref, fmt.Errorf("product %s: %w", in.Name, err)
		}
		ref.products = append(ref.products, p)
	}

	customers := []masterdata.CustomerInput{
		{Name: "Ana Wijaya", Phone: "0812-1111-2222"},
		{Name: "Budi Santoso", Email: "budi@example.com"},
		{Name: "Citra Lestari"},
	}
	for _, in := range customers {
		c, err := md.CreateCustomer(ctx, storeID, in)
		if err != nil {
			return ref, fmt.Errorf("customer %s: %w", in.Name, err)
		}
		ref.customers = append(ref.customers, c)
	}

	for _, name := range []string{"Tunai", "Transfer Bank", "QRIS"} {
		m, err := md.CreatePaymentMethod(ctx, storeID, masterdata.PaymentMethodInput{Name: name})
		if err != nil {
			return ref, fmt.Errorf("payment method %s: %w", name, err)
		}
		ref.methods = append(ref.methods, m)
	}
	return ref, nil
}

func seedLedger(ctx context.Context, res *app.Resources, storeID string, ref reference) error {
	mirror := ledger.NewMirror(res.Store, storeID, nil)
	if err := mirror.Refresh(ctx); err != nil {
		return err
	}
	svc := ledger.NewService(res.Store, mirror, nil, ledger.ServiceConfig{})

	sales := []ledger.SaleInput{
		{CustomerID: ref.customers[0].ID, Items: []ledger.ItemInput{{ProductID: ref.products[0].ID, Quantity: 3}, {ProductID: ref.products[1].ID, Quantity: 1}}},
		{CustomerID: ref.customers[0].ID, Items: []ledger.ItemInput{{ProductID: ref.products[2].ID, Quantity: 2}}},
		{CustomerID: ref.customers[1].ID, Items: []ledger.ItemInput{{ProductID: ref.products[3].ID, Quantity: 4}}},
	}
	for _, in := range sales {
		if _, err := svc.CommitSale(ctx, in); err != nil {
			return err
		}
	}

	if _, err := svc.PayCustomer(ctx, ledger.CustomerPaymentInput{
		CustomerID:      ref.customers[0].ID,
		Amount:          90000,
		PaymentMethodID: ref.methods[0].ID,
	}); err != nil {
		return err
	}
	if _, err := svc.PayCustomer(ctx, ledger.CustomerPaymentInput{
		CustomerID:      ref.customers[1].ID,
		Amount:          60000,
		PaymentMethodID: ref.methods[2].ID,
	}); err != nil {
		return err
	}

	p := message.NewPrinter(language.Indonesian)
	summary := svc.Summary(0)
	p.Printf("  sales: %d (open %d)\n", summary.SalesCount, summary.OpenSales)
	p.Printf("  collected: Rp %d\n", summary.Revenue)
	p.Printf("  receivable: Rp %d\n", summary.Receivable)
	for _, d := range svc.Debtors() {
		p.Printf("  debtor %s: Rp %d\n", d.CustomerName, d.Outstanding)
	}
	return nil
}
