// Package dex decodes venue-specific on-chain pool account layouts into a
// common pool state. Each venue registers a Decoder; the verifier dispatches
// by venue name and treats an unknown venue or a malformed account as a
// verification failure.
package dex

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/mr-tron/base58"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

// PoolState is the venue-independent result of decoding a pool account.
// Reserves are in UI units (raw amount scaled down by token decimals).
type PoolState struct {
	MintA    string
	MintB    string
	ReserveA float64
	ReserveB float64
}

// Decoder decodes one venue's raw pool account bytes.
type Decoder interface {
	Venue() string
	Decode(data []byte) (PoolState, error)
}

// Registry dispatches decoding by venue name.
type Registry struct {
	decoders map[string]Decoder
}

// NewRegistry builds a registry from the given decoders.
func NewRegistry(decoders ...Decoder) *Registry {
	r := &Registry{decoders: make(map[string]Decoder, len(decoders))}
	for _, d := range decoders {
		r.decoders[d.Venue()] = d
	}
	return r
}

// DefaultRegistry returns a registry with all supported venue decoders.
func DefaultRegistry() *Registry {
	return NewRegistry(NewRaydiumDecoder(), NewOrcaDecoder(), NewMeteoraDecoder())
}

// Supports reports whether the registry has a decoder for the venue.
func (r *Registry) Supports(venue string) bool {
	_, ok := r.decoders[venue]
	return ok
}

// Decode dispatches to the venue's decoder. An unregistered venue is a
// decode failure, never a guess.
func (r *Registry) Decode(venue string, data []byte) (PoolState, error) {
	d, ok := r.decoders[venue]
	if !ok {
		return PoolState{}, fmt.Errorf("dex: no decoder for venue %q: %w", venue, domain.ErrDecodeFailed)
	}
	return d.Decode(data)
}

// readU64 reads a little-endian uint64 at offset.
func readU64(data []byte, offset int) (uint64, error) {
	if len(data) < offset+8 {
		return 0, fmt.Errorf("dex: u64 at offset %d out of range (len %d): %w", offset, len(data), domain.ErrDecodeFailed)
	}
	return binary.LittleEndian.Uint64(data[offset : offset+8]), nil
}

// readU8 reads a single byte at offset.
func readU8(data []byte, offset int) (uint8, error) {
	if len(data) < offset+1 {
		return 0, fmt.Errorf("dex: u8 at offset %d out of range (len %d): %w", offset, len(data), domain.ErrDecodeFailed)
	}
	return data[offset], nil
}

// readPubkey reads a 32-byte public key at offset and returns it base58
// encoded.
func readPubkey(data []byte, offset int) (string, error) {
	if len(data) < offset+32 {
		return "", fmt.Errorf("dex: pubkey at offset %d out of range (len %d): %w", offset, len(data), domain.ErrDecodeFailed)
	}
	return base58.Encode(data[offset : offset+32]), nil
}

// uiAmount scales a raw token amount down by the token's decimals.
func uiAmount(raw uint64, decimals uint8) (float64, error) {
	if decimals > 18 {
		return 0, fmt.Errorf("dex: implausible decimals %d: %w", decimals, domain.ErrDecodeFailed)
	}
	return float64(raw) / math.Pow10(int(decimals)), nil
}

// validateState rejects decoded pools that cannot produce a price.
func validateState(venue string, s PoolState) error {
	if s.MintA == s.MintB {
		return fmt.Errorf("dex: %s: identical mints: %w", venue, domain.ErrDecodeFailed)
	}
	if s.ReserveA <= 0 || s.ReserveB <= 0 {
		return fmt.Errorf("dex: %s: empty reserves: %w", venue, domain.ErrDecodeFailed)
	}
	return nil
}
