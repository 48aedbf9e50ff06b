package dex

import (
	"encoding/binary"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qajybay/offchain-arbitrage/internal/domain"
)

func putPubkey(t *testing.T, data []byte, offset int, address string) {
	t.Helper()
	raw, err := base58.Decode(address)
	require.NoError(t, err)
	require.Len(t, raw, 32)
	copy(data[offset:], raw)
}

func raydiumFixture(t *testing.T, baseReserve, quoteReserve uint64) []byte {
	t.Helper()
	data := make([]byte, 752)
	putPubkey(t, data, raydiumBaseMintOff, domain.MintWSOL)
	putPubkey(t, data, raydiumQuoteMintOff, domain.MintUSDC)
	binary.LittleEndian.PutUint64(data[raydiumBaseDecimalOff:], 9)
	binary.LittleEndian.PutUint64(data[raydiumQuoteDecimalOff:], 6)
	binary.LittleEndian.PutUint64(data[raydiumBaseReserveOff:], baseReserve)
	binary.LittleEndian.PutUint64(data[raydiumQuoteReserveOff:], quoteReserve)
	return data
}

func TestRaydiumDecoder(t *testing.T) {
	// 1000 SOL against 150_000 USDC.
	data := raydiumFixture(t, 1000_000_000_000, 150_000_000_000)

	state, err := NewRaydiumDecoder().Decode(data)
	require.NoError(t, err)

	assert.Equal(t, domain.MintWSOL, state.MintA)
	assert.Equal(t, domain.MintUSDC, state.MintB)
	assert.InDelta(t, 1000, state.ReserveA, 1e-9)
	assert.InDelta(t, 150_000, state.ReserveB, 1e-9)
}

func TestRaydiumDecoder_TooShort(t *testing.T) {
	_, err := NewRaydiumDecoder().Decode(make([]byte, 64))
	require.ErrorIs(t, err, domain.ErrDecodeFailed)
}

func TestRaydiumDecoder_EmptyReserves(t *testing.T) {
	data := raydiumFixture(t, 0, 150_000_000_000)
	_, err := NewRaydiumDecoder().Decode(data)
	require.ErrorIs(t, err, domain.ErrDecodeFailed)
}

func TestRaydiumDecoder_ImplausibleDecimals(t *testing.T) {
	data := raydiumFixture(t, 1, 1)
	binary.LittleEndian.PutUint64(data[raydiumBaseDecimalOff:], 200)
	_, err := NewRaydiumDecoder().Decode(data)
	require.ErrorIs(t, err, domain.ErrDecodeFailed)
}

func orcaFixture(t *testing.T, vaultA, vaultB uint64) []byte {
	t.Helper()
	data := make([]byte, 256)
	putPubkey(t, data, orcaMintAOff, domain.MintWSOL)
	putPubkey(t, data, orcaMintBOff, domain.MintUSDT)
	binary.LittleEndian.PutUint64(data[orcaVaultAOff:], vaultA)
	binary.LittleEndian.PutUint64(data[orcaVaultBOff:], vaultB)
	data[orcaDecimalsAOff] = 9
	data[orcaDecimalsBOff] = 6
	return data
}

func TestOrcaDecoder(t *testing.T) {
	data := orcaFixture(t, 500_000_000_000, 74_000_000_000)

	state, err := NewOrcaDecoder().Decode(data)
	require.NoError(t, err)

	assert.Equal(t, domain.MintWSOL, state.MintA)
	assert.Equal(t, domain.MintUSDT, state.MintB)
	assert.InDelta(t, 500, state.ReserveA, 1e-9)
	assert.InDelta(t, 74_000, state.ReserveB, 1e-9)
}

func TestOrcaDecoder_TooShort(t *testing.T) {
	_, err := NewOrcaDecoder().Decode(make([]byte, 150))
	require.ErrorIs(t, err, domain.ErrDecodeFailed)
}

func meteoraFixture(t *testing.T, reserveX, reserveY uint64) []byte {
	t.Helper()
	data := make([]byte, 256)
	putPubkey(t, data, meteoraMintXOff, domain.MintUSDC)
	putPubkey(t, data, meteoraMintYOff, domain.MintUSDT)
	binary.LittleEndian.PutUint64(data[meteoraReserveXOff:], reserveX)
	binary.LittleEndian.PutUint64(data[meteoraReserveYOff:], reserveY)
	data[meteoraDecimalsXOff] = 6
	data[meteoraDecimalsYOff] = 6
	return data
}

func TestMeteoraDecoder(t *testing.T) {
	data := meteoraFixture(t, 2_000_000_000, 1_998_000_000)

	state, err := NewMeteoraDecoder().Decode(data)
	require.NoError(t, err)

	assert.Equal(t, domain.MintUSDC, state.MintA)
	assert.Equal(t, domain.MintUSDT, state.MintB)
	assert.InDelta(t, 2000, state.ReserveA, 1e-9)
	assert.InDelta(t, 1998, state.ReserveB, 1e-9)
}

func TestRegistry_UnknownVenue(t *testing.T) {
	reg := DefaultRegistry()

	_, err := reg.Decode("pumpswap", make([]byte, 256))
	require.ErrorIs(t, err, domain.ErrDecodeFailed)
}

func TestRegistry_Dispatch(t *testing.T) {
	reg := DefaultRegistry()

	assert.True(t, reg.Supports(domain.VenueRaydium))
	assert.True(t, reg.Supports(domain.VenueOrca))
	assert.True(t, reg.Supports(domain.VenueMeteora))
	assert.False(t, reg.Supports("unknown"))

	state, err := reg.Decode(domain.VenueRaydium, raydiumFixture(t, 1_000_000_000, 150_000_000))
	require.NoError(t, err)
	assert.Equal(t, domain.MintWSOL, state.MintA)
}
