package dex

import (
	"fmt"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// Raydium AMM pool state field offsets. The account is larger than the
// fields read here; only mints, decimals and reserves are needed.
const (
	raydiumMinLen          = 200
	raydiumBaseMintOff     = 40
	raydiumQuoteMintOff    = 72
	raydiumBaseDecimalOff  = 104
	raydiumQuoteDecimalOff = 112
	raydiumBaseReserveOff  = 120
	raydiumQuoteReserveOff = 128
)

// RaydiumDecoder decodes Raydium AMM pool accounts.
type RaydiumDecoder struct{}

// NewRaydiumDecoder returns a decoder for Raydium pool accounts.
func NewRaydiumDecoder() *RaydiumDecoder { return &RaydiumDecoder{} }

func (*RaydiumDecoder) Venue() string { return domain.VenueRaydium }

func (d *RaydiumDecoder) Decode(data []byte) (PoolState, error) {
	if len(data) < raydiumMinLen {
		return PoolState{}, fmt.Errorf("dex: raydium: account too short (%d bytes): %w", len(data), domain.ErrDecodeFailed)
	}

	baseMint, err := readPubkey(data, raydiumBaseMintOff)
	if err != nil {
		return PoolState{}, err
	}
	quoteMint, err := readPubkey(data, raydiumQuoteMintOff)
	if err != nil {
		return PoolState{}, err
	}

	baseDecimal, err := readU64(data, raydiumBaseDecimalOff)
	if err != nil {
		return PoolState{}, err
	}
	quoteDecimal, err := readU64(data, raydiumQuoteDecimalOff)
	if err != nil {
		return PoolState{}, err
	}
	if baseDecimal > 18 || quoteDecimal > 18 {
		return PoolState{}, fmt.Errorf("dex: raydium: implausible decimals %d/%d: %w", baseDecimal, quoteDecimal, domain.ErrDecodeFailed)
	}

	baseReserve, err := readU64(data, raydiumBaseReserveOff)
	if err != nil {
		return PoolState{}, err
	}
	quoteReserve, err := readU64(data, raydiumQuoteReserveOff)
	if err != nil {
		return PoolState{}, err
	}

	reserveA, err := uiAmount(baseReserve, uint8(baseDecimal))
	if err != nil {
		return PoolState{}, err
	}
	reserveB, err := uiAmount(quoteReserve, uint8(quoteDecimal))
	if err != nil {
		return PoolState{}, err
	}

	state := PoolState{
		MintA:    baseMint,
		MintB:    quoteMint,
		ReserveA: reserveA,
		ReserveB: reserveB,
	}
	if err := validateState(domain.VenueRaydium, state); err != nil {
		return PoolState{}, err
	}
	return state, nil
}
