package main

import (
	"context"
	"fmt"

	"secure-transfer-gateway/internal/core/domain"
	"secure-transfer-gateway/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// seedAccount is one entry of the seed file.
type seedAccount struct {
	AccountID   string `mapstructure:"account_id"`
	DisplayName string `mapstructure:"display_name"`
	HolderName  string `mapstructure:"holder_name"`
	PIN         string `mapstructure:"pin"`
	Balance     string `mapstructure:"balance"`
}

// loadSeeds reads the "accounts" list from a YAML or JSON file.
func loadSeeds(path string) ([]seedAccount, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading seed file: %w", err)
	}

	var seeds []seedAccount
	if err := v.UnmarshalKey("accounts", &seeds); err != nil {
		return nil, fmt.Errorf("decoding seed accounts: %w", err)
	}
	return seeds, nil
}

// seedAccounts creates every seed whose account ID is not taken yet and
// returns how many were created.
func seedAccounts(ctx context.Context, accounts ports.AccountStore, seeder ports.AccountSeeder, hasher ports.HashService, seeds []seedAccount, log zerolog.Logger) (int, error) {
	created := 0
	for _, s := range seeds {
		if s.AccountID == "" {
			return created, fmt.Errorf("seed account without account_id")
		}

		existing, err := accounts.FindByField(ctx, domain.FieldAccountID, s.AccountID)
		if err != nil {
			return created, fmt.Errorf("looking up %s: %w", s.AccountID, err)
		}
		if existing != nil {
			log.Debug().Str("account_id", s.AccountID).Msg("seed account exists, skipping")
			continue
		}

		balance := decimal.Zero
		if s.Balance != "" {
			balance, err = decimal.NewFromString(s.Balance)
			if err != nil {
				return created, fmt.Errorf("seed %s balance: %w", s.AccountID, err)
			}
		}

		pinHash, err := hasher.Hash(s.PIN)
		if err != nil {
			return created, fmt.Errorf("hashing pin for %s: %w", s.AccountID, err)
		}

		if err := seeder.Create(ctx, &domain.Account{
			AccountID:   s.AccountID,
			DisplayName: s.DisplayName,
			HolderName:  s.HolderName,
			PinHash:     pinHash,
			Balance:     balance,
		}); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}
