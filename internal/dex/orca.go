package dex

import (
	"fmt"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// Orca whirlpool account field offsets.
const (
	orcaMinLen       = 200
	orcaMintAOff     = 101
	orcaMintBOff     = 133
	orcaVaultAOff    = 165
	orcaVaultBOff    = 173
	orcaDecimalsAOff = 181
	orcaDecimalsBOff = 182
)

// OrcaDecoder decodes Orca whirlpool accounts.
type OrcaDecoder struct{}

// NewOrcaDecoder returns a decoder for Orca whirlpool accounts.
func NewOrcaDecoder() *OrcaDecoder { return &OrcaDecoder{} }

func (*OrcaDecoder) Venue() string { return domain.VenueOrca }

func (d *OrcaDecoder) Decode(data []byte) (PoolState, error) {
	if len(data) < orcaMinLen {
		return PoolState{}, fmt.Errorf("dex: orca: account too short (%d bytes): %w", len(data), domain.ErrDecodeFailed)
	}

	mintA, err := readPubkey(data, orcaMintAOff)
	if err != nil {
		return PoolState{}, err
	}
	mintB, err := readPubkey(data, orcaMintBOff)
	if err != nil {
		return PoolState{}, err
	}

	vaultA, err := readU64(data, orcaVaultAOff)
	if err != nil {
		return PoolState{}, err
	}
	vaultB, err := readU64(data, orcaVaultBOff)
	if err != nil {
		return PoolState{}, err
	}

	decimalsA, err := readU8(data, orcaDecimalsAOff)
	if err != nil {
		return PoolState{}, err
	}
	decimalsB, err := readU8(data, orcaDecimalsBOff)
	if err != nil {
		return PoolState{}, err
	}

	reserveA, err := uiAmount(vaultA, decimalsA)
	if err != nil {
		return PoolState{}, err
	}
	reserveB, err := uiAmount(vaultB, decimalsB)
	if err != nil {
		return PoolState{}, err
	}

	state := PoolState{
		MintA:    mintA,
		MintB:    mintB,
		ReserveA: reserveA,
		ReserveB: reserveB,
	}
	if err := validateState(domain.VenueOrca, state); err != nil {
		return PoolState{}, err
	}
	return state, nil
}
