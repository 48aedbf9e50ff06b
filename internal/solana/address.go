package solana

import (
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// ValidateAddress checks that s is a base58-encoded 32-byte public key.
func ValidateAddress(s string) error {
	if s == "" {
		return fmt.Errorf("solana: empty address: %w", domain.ErrInvalidInput)
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("solana: address %q: %w", s, domain.ErrInvalidInput)
	}
	if len(raw) != 32 {
		return fmt.Errorf("solana: address %q: decoded to %d bytes, want 32: %w", s, len(raw), domain.ErrInvalidInput)
	}
	return nil
}

// IsValidAddress reports whether s is a well-formed Solana public key.
func IsValidAddress(s string) bool {
	return ValidateAddress(s) == nil
}
