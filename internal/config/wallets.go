package config

import (
	"fmt"
	"os"

	"github.com/Dan9191/wallet-service/internal/models"
	"gopkg.in/yaml.v3"
)

// walletsFile mirrors the YAML layout of static wallet configuration:
//
//	wallets:
//	  - name: binance
//	    url: binance.com
//	    type: crypto
//	    items:
//	      - name: btc
//	        entity_id: sensor.binance_ticker_btceur
//	        amount: "0.5"
type walletsFile struct {
	Wallets []struct {
		Name  string `yaml:"name"`
		URL   string `yaml:"url"`
		Type  string `yaml:"type"`
		Items []struct {
			Name     string `yaml:"name"`
			EntityID string `yaml:"entity_id"`
			Amount   string `yaml:"amount"`
		} `yaml:"items"`
	} `yaml:"wallets"`
}

// LoadWallets reads static wallets from a YAML file
func LoadWallets(path string) ([]models.Wallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wallets file: %w", err)
	}
	return ParseWallets(data)
}

// ParseWallets decodes and validates static wallets
func ParseWallets(data []byte) ([]models.Wallet, error) {
	var f walletsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse wallets: %w", err)
	}

	wallets := make([]models.Wallet, 0, len(f.Wallets))
	for _, w := range f.Wallets {
		wallet := models.Wallet{
			Name:  w.Name,
			URL:   w.URL,
			Type:  models.WalletType(w.Type),
			Items: make([]models.Item, 0, len(w.Items)),
		}
		for _, it := range w.Items {
			amount, err := models.ParseAmount(it.Amount)
			if err != nil {
				return nil, fmt.Errorf("wallet %q item %q: %w", w.Name, it.Name, err)
			}
			wallet.Items = append(wallet.Items, models.Item{
				Name:     it.Name,
				EntityID: it.EntityID,
				Amount:   amount,
			})
		}
		if err := wallet.Validate(); err != nil {
			return nil, err
		}
		wallets = append(wallets, wallet)
	}
	return wallets, nil
}
