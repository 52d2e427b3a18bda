package datafetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/elys-network/clmm-monitor/internal/clmm"
	"github.com/elys-network/clmm-monitor/internal/types"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWallet = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"

func fastOptions() ClientOptions {
	return ClientOptions{RequestsPerSecond: 1000, RetryBackoff: time.Millisecond}
}

// rawPosition builds API state for a SOL/USDC position (9 and 6 decimals)
// with human range [lo, hi] and human price current.
func rawPosition(t *testing.T, id string, lo, hi, current float64) APIPosition {
	t.Helper()
	const adjust = 1e-3 // 10^(6-9)

	tickLower, err := clmm.PriceToTick(lo * adjust)
	require.NoError(t, err)
	tickUpper, err := clmm.PriceToTick(hi * adjust)
	require.NoError(t, err)
	tickCurrent, err := clmm.PriceToTick(current * adjust)
	require.NoError(t, err)
	sqrtPrice, err := clmm.PriceToSqrtPriceX64(current * adjust)
	require.NoError(t, err)

	return APIPosition{
		ID:             id,
		PoolAddress:    "61R1ndXxvsWXXkWSyNkCxnzwd3zUNB8Q2ibmkiLPC8ht",
		Token0Symbol:   "SOL",
		Token1Symbol:   "USDC",
		Token0Decimals: 9,
		Token1Decimals: 6,
		Liquidity:      "2000000000",
		TickLower:      tickLower,
		TickUpper:      tickUpper,
		TickCurrent:    tickCurrent,
		SqrtPriceX64:   sqrtPrice.String(),
		TotalValueUSD:  2000,
		PendingFeesUSD: 20,
		APR:            28.5,
	}
}

func TestToSnapshotOutOfRange(t *testing.T) {
	snapshot, err := ToSnapshot(rawPosition(t, "pos-1", 95, 105, 120))
	require.NoError(t, err)

	assert.Equal(t, "SOL/USDC", snapshot.PoolName)
	assert.InEpsilon(t, 120.0, snapshot.CurrentPrice, 1e-9)
	assert.InEpsilon(t, 95.0, snapshot.PriceMin, 1e-3)
	assert.InEpsilon(t, 105.0, snapshot.PriceMax, 1e-3)
	assert.True(t, snapshot.IsOutOfRange)
	// Above the range the position is entirely token1.
	assert.Zero(t, snapshot.Token0Amount)
	assert.Positive(t, snapshot.Token1Amount)
	assert.Equal(t, "2000000000", snapshot.Liquidity)
}

func TestToSnapshotInRange(t *testing.T) {
	snapshot, err := ToSnapshot(rawPosition(t, "pos-2", 95, 105, 100))
	require.NoError(t, err)

	assert.False(t, snapshot.IsOutOfRange)
	assert.Positive(t, snapshot.Token0Amount)
	assert.Positive(t, snapshot.Token1Amount)
}

func TestToSnapshotRejectsBadData(t *testing.T) {
	raw := rawPosition(t, "pos-3", 95, 105, 100)
	raw.SqrtPriceX64 = "not-a-number"
	_, err := ToSnapshot(raw)
	assert.ErrorIs(t, err, ErrInvalidPositionData)

	raw = rawPosition(t, "pos-3", 95, 105, 100)
	raw.Liquidity = "-5"
	_, err = ToSnapshot(raw)
	assert.ErrorIs(t, err, clmm.ErrInvalidLiquidity)

	raw = rawPosition(t, "", 95, 105, 100)
	_, err = ToSnapshot(raw)
	assert.ErrorIs(t, err, ErrInvalidPositionData)

	raw = rawPosition(t, "pos-3", 95, 105, 100)
	raw.TickLower, raw.TickUpper = raw.TickUpper, raw.TickLower
	_, err = ToSnapshot(raw)
	assert.ErrorIs(t, err, clmm.ErrInvalidTickRange)
}

func TestAPISourceGetWalletPositions(t *testing.T) {
	body := APIPositionsResponse{
		Wallet:    testWallet,
		Positions: []APIPosition{rawPosition(t, "pos-1", 95, 105, 120), rawPosition(t, "pos-2", 95, 105, 100)},
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wallets/"+testWallet+"/positions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	source, err := NewAPISource(server.URL+"/", "secret", fastOptions())
	require.NoError(t, err)

	positions, err := source.GetWalletPositions(context.Background(), testWallet)
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.True(t, positions[0].IsOutOfRange)
	assert.False(t, positions[1].IsOutOfRange)
}

func TestAPISourceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(APIPositionsResponse{})
	}))
	defer server.Close()

	source, err := NewAPISource(server.URL, "", fastOptions())
	require.NoError(t, err)

	positions, err := source.GetWalletPositions(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.Equal(t, int32(3), calls.Load())
}

func TestAPISourceDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	source, err := NewAPISource(server.URL, "", fastOptions())
	require.NoError(t, err)

	_, err = source.GetWalletPositions(context.Background(), testWallet)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAPISourceCircuitBreakerOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	source, err := NewAPISource(server.URL, "", fastOptions())
	require.NoError(t, err)

	_, err = source.GetWalletPositions(context.Background(), testWallet)
	require.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, int32(MAX_RETRIES), calls.Load())

	_, err = source.GetWalletPositions(context.Background(), testWallet)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(MAX_RETRIES), calls.Load())
}

func TestAPISourceRejectsMalformedPosition(t *testing.T) {
	bad := rawPosition(t, "pos-bad", 95, 105, 100)
	bad.SqrtPriceX64 = ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(APIPositionsResponse{Positions: []APIPosition{bad}})
	}))
	defer server.Close()

	source, err := NewAPISource(server.URL, "", fastOptions())
	require.NoError(t, err)

	_, err = source.GetWalletPositions(context.Background(), testWallet)
	assert.ErrorIs(t, err, ErrInvalidPositionData)
}

func TestNewAPISourceValidatesURL(t *testing.T) {
	_, err := NewAPISource("not a url", "", ClientOptions{})
	assert.Error(t, err)
}

func TestPriceFeedSpotPriceUSD(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "SOL", r.URL.Query().Get("fsym"))
		assert.Equal(t, "USD", r.URL.Query().Get("tsyms"))
		assert.Equal(t, "key", r.URL.Query().Get("api_key"))
		_, _ = w.Write([]byte(`{"USD":142.37}`))
	}))
	defer server.Close()

	feed, err := NewPriceFeed(server.URL, "key", fastOptions())
	require.NoError(t, err)

	price, err := feed.SpotPriceUSD(context.Background(), "wsol")
	require.NoError(t, err)
	assert.Equal(t, 142.37, price)
}

func TestPriceFeedAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Response":"Error","Message":"fsym is a required param."}`))
	}))
	defer server.Close()

	feed, err := NewPriceFeed(server.URL, "", fastOptions())
	require.NoError(t, err)

	_, err = feed.SpotPriceUSD(context.Background(), "SOL")
	assert.ErrorIs(t, err, ErrInvalidPriceData)
}

func TestMockSourceDemoPortfolio(t *testing.T) {
	source := NewMockSource()

	positions, err := source.GetWalletPositions(context.Background(), testWallet)
	require.NoError(t, err)
	require.Len(t, positions, 2)

	solUSDC := positions[0]
	assert.Equal(t, "position_9WzDXwBb_1", solUSDC.ID)
	assert.Equal(t, "SOL/USDC", solUSDC.PoolName)
	assert.False(t, solUSDC.IsOutOfRange)
	assert.Less(t, solUSDC.TickLower, solUSDC.TickUpper)

	raySOL := positions[1]
	assert.Equal(t, "position_9WzDXwBb_2", raySOL.ID)
	assert.True(t, raySOL.IsOutOfRange)

	for _, p := range positions {
		assert.NoError(t, p.Validate())
	}
}

func TestMockSourcePriceOverride(t *testing.T) {
	source := NewMockSource()
	source.SetPrice("SOL/USDC", 120)

	positions, err := source.GetWalletPositions(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Equal(t, 120.0, positions[0].CurrentPrice)
	assert.True(t, positions[0].IsOutOfRange)

	pools, err := source.GetPools(context.Background())
	require.NoError(t, err)
	assert.Len(t, pools, 4)
	assert.Equal(t, 120.0, pools[0].CurrentPrice)
	assert.Equal(t, 100.50, demoPools[0].CurrentPrice)
}

func TestMockSourceRequiresWallet(t *testing.T) {
	_, err := NewMockSource().GetWalletPositions(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidPositionData)
}

var _ interface {
	GetWalletPositions(context.Context, string) ([]types.PositionSnapshot, error)
} = (*APISource)(nil)
