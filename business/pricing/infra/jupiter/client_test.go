package jupiter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/token-price-engine/business/pricing/domain"
	"github.com/fd1az/token-price-engine/internal/apperror"
	"github.com/fd1az/token-price-engine/internal/asset"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Info(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Warn(ctx context.Context, msg string, args ...any)               {}
func (m *mockLogger) Error(ctx context.Context, msg string, args ...any)              {}
func (m *mockLogger) Debugc(ctx context.Context, caller int, msg string, args ...any) {}
func (m *mockLogger) Infoc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Warnc(ctx context.Context, caller int, msg string, args ...any)  {}
func (m *mockLogger) Errorc(ctx context.Context, caller int, msg string, args ...any) {}

const rayMint = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"

func newTestClient(t *testing.T, body string, status int) *Client {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/price", r.URL.Path)
		assert.Equal(t, rayMint, r.URL.Query().Get("ids"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(Config{BaseURL: server.URL}, &mockLogger{})
	require.NoError(t, err)
	return c
}

func rayToken(t *testing.T) domain.Token {
	t.Helper()
	tok, err := domain.NewToken(asset.ChainSolana, rayMint, 6)
	require.NoError(t, err)
	return tok
}

func TestTokenPriceUSD(t *testing.T) {
	c := newTestClient(t, `{"data":{"`+rayMint+`":{"id":"`+rayMint+`","type":"derivedPrice","price":"2.3187"}},"timeTaken":0.004}`, http.StatusOK)

	q, err := c.TokenPriceUSD(context.Background(), rayToken(t))
	require.NoError(t, err)
	assert.True(t, q.PriceUSD.Equal(decimal.RequireFromString("2.3187")))
	assert.True(t, q.MarketCapUSD.IsZero())
}

func TestTokenPriceUSD_UnknownMint(t *testing.T) {
	c := newTestClient(t, `{"data":{"`+rayMint+`":null},"timeTaken":0.001}`, http.StatusOK)

	_, err := c.TokenPriceUSD(context.Background(), rayToken(t))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeAggregatorNoPrice, apperror.GetCode(err))
}

func TestTokenPriceUSD_ServerError(t *testing.T) {
	c := newTestClient(t, `upstream unavailable`, http.StatusBadGateway)

	_, err := c.TokenPriceUSD(context.Background(), rayToken(t))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeAggregatorFailed, apperror.GetCode(err))
}

func TestSupportsSolanaOnly(t *testing.T) {
	c, err := NewClient(Config{}, &mockLogger{})
	require.NoError(t, err)
	assert.True(t, c.Supports(asset.ChainSolana))
	assert.False(t, c.Supports(asset.ChainEthereum))
	assert.False(t, c.Supports(asset.ChainBSC))
}
