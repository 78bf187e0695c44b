package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// WalletType is a cosmetic label of a wallet
type WalletType string

const (
	WalletSaving WalletType = "saving"
	WalletStock  WalletType = "stock"
	WalletCrypto WalletType = "crypto"
)

// WalletTypes lists the accepted wallet types in form order
var WalletTypes = []WalletType{WalletSaving, WalletStock, WalletCrypto}

// Wallet is a named group of tracked items
type Wallet struct {
	Name  string     `json:"name" yaml:"name" validate:"required"`
	URL   string     `json:"url" yaml:"url"`
	Type  WalletType `json:"type" yaml:"type" validate:"required,oneof=saving stock crypto"`
	Items []Item     `json:"items" yaml:"items" validate:"dive"`
}

// Item is one holding of a wallet. An empty EntityID means a fixed rate of 1.
type Item struct {
	Name     string          `json:"item_name" yaml:"name" validate:"required"`
	EntityID string          `json:"entity_id" yaml:"entity_id"`
	Amount   decimal.Decimal `json:"amount" yaml:"-"`
}

// Entry sources
const (
	SourceUser   = "user"
	SourceImport = "import"
)

// ConfigEntry is a stored wallet configuration
type ConfigEntry struct {
	EntryID   string    `json:"entry_id"`
	Title     string    `json:"title"`
	Source    string    `json:"source"`
	Data      Wallet    `json:"data"`
	CreatedAt time.Time `json:"created_at"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the wallet and its items
func (w Wallet) Validate() error {
	if err := validate.Struct(w); err != nil {
		return fmt.Errorf("invalid wallet %q: %w", w.Name, err)
	}
	return nil
}

// ParseAmount parses a user supplied amount. An empty string is zero.
func ParseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}
