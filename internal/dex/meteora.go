package dex

import (
	"fmt"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// Meteora DLMM pair account field offsets.
const (
	meteoraMinLen       = 200
	meteoraMintXOff     = 88
	meteoraMintYOff     = 120
	meteoraReserveXOff  = 152
	meteoraReserveYOff  = 160
	meteoraDecimalsXOff = 168
	meteoraDecimalsYOff = 169
)

// MeteoraDecoder decodes Meteora DLMM pair accounts.
type MeteoraDecoder struct{}

// NewMeteoraDecoder returns a decoder for Meteora pair accounts.
func NewMeteoraDecoder() *MeteoraDecoder { return &MeteoraDecoder{} }

func (*MeteoraDecoder) Venue() string { return domain.VenueMeteora }

func (d *MeteoraDecoder) Decode(data []byte) (PoolState, error) {
	if len(data) < meteoraMinLen {
		return PoolState{}, fmt.Errorf("dex: meteora: account too short (%d bytes): %w", len(data), domain.ErrDecodeFailed)
	}

	mintX, err := readPubkey(data, meteoraMintXOff)
	if err != nil {
		return PoolState{}, err
	}
	mintY, err := readPubkey(data, meteoraMintYOff)
	if err != nil {
		return PoolState{}, err
	}

	reserveX, err := readU64(data, meteoraReserveXOff)
	if err != nil {
		return PoolState{}, err
	}
	reserveY, err := readU64(data, meteoraReserveYOff)
	if err != nil {
		return PoolState{}, err
	}

	decimalsX, err := readU8(data, meteoraDecimalsXOff)
	if err != nil {
		return PoolState{}, err
	}
	decimalsY, err := readU8(data, meteoraDecimalsYOff)
	if err != nil {
		return PoolState{}, err
	}

	uiX, err := uiAmount(reserveX, decimalsX)
	if err != nil {
		return PoolState{}, err
	}
	uiY, err := uiAmount(reserveY, decimalsY)
	if err != nil {
		return PoolState{}, err
	}

	state := PoolState{
		MintA:    mintX,
		MintB:    mintY,
		ReserveA: uiX,
		ReserveB: uiY,
	}
	if err := validateState(domain.VenueMeteora, state); err != nil {
		return PoolState{}, err
	}
	return state, nil
}
