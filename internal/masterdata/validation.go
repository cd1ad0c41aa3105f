package masterdata

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ledgerpos/ledgerpos/internal/ledger"
)

// Validation errors returned by Service.
var (
	ErrNameRequired = errors.New("masterdata: name is required")
	// ErrInvalidPrice covers negative prices and prices above ledger.MaxAmount.
	ErrInvalidPrice = errors.New("masterdata: price out of range")
	ErrInvalidStock = errors.New("masterdata: stock must not be negative")
)

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return ErrNameRequired
	}
	return nil
}

func validateProduct(name string, price int64) error {
	if err := validateName(name); err != nil {
		return err
	}
	if price < 0 || price > ledger.MaxAmount {
		return fmt.Errorf("%w: %d", ErrInvalidPrice, price)
	}
	return nil
}
