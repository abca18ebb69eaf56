package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestRequest_GetWithQueryAndResult(t *testing.T) {
	var gotQuery string
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotHeader = r.Header.Get("X-Api-Key")
		assert.Equal(t, "/simple/price", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"price":"1.25"}`))
	}))
	defer srv.Close()

	client, err := NewInstrumentedClient(
		WithBaseURL(srv.URL+"/"),
		WithProviderName("test"),
		WithHeaders(map[string]string{"X-Api-Key": "secret"}),
		WithRequestTimeout(time.Second),
	)
	require.NoError(t, err)

	var result struct {
		Price string `json:"price"`
	}
	resp, err := client.NewRequestWithOptions(WithLabels(NewLabel("endpoint", "price"))).
		SetQueryParam("ids", "a,b").
		SetQueryParam("vs", "usd").
		SetResult(&result).
		Get(context.Background(), "/simple/price")
	require.NoError(t, err)

	assert.True(t, resp.IsSuccess())
	assert.Equal(t, "1.25", result.Price)
	assert.Equal(t, "ids=a%2Cb&vs=usd", gotQuery)
	assert.Equal(t, "secret", gotHeader)
}

func TestRequest_PostJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		var in map[string]any
		require.NoError(t, json.Unmarshal(body, &in))
		_, _ = fmt.Fprintf(w, `{"echo":%q}`, in["method"])
	}))
	defer srv.Close()

	client, err := NewInstrumentedClient(WithBaseURL(srv.URL))
	require.NoError(t, err)

	var out struct {
		Echo string `json:"echo"`
	}
	_, err = client.NewRequest().
		SetBody(map[string]any{"method": "getSlot"}).
		SetResult(&out).
		Post(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "getSlot", out.Echo)
}

func TestRequest_ErrorHandler(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"slow down"}`))
	}))
	defer srv.Close()

	client, err := NewInstrumentedClient(WithBaseURL(srv.URL))
	require.NoError(t, err)

	errRateLimited := errors.New("rate limited")
	resp, err := client.NewRequestWithOptions(WithResponseErrorHandler(func(status int, body []byte) error {
		if status == http.StatusTooManyRequests {
			return errRateLimited
		}
		return nil
	})).Get(context.Background(), "/x")

	require.ErrorIs(t, err, errRateLimited)
	require.NotNil(t, resp)
	assert.True(t, resp.IsError())
	assert.Contains(t, resp.String(), "slow down")
}

func TestRequest_UndecodableSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>maintenance</html>`))
	}))
	defer srv.Close()

	client, err := NewInstrumentedClient(WithBaseURL(srv.URL))
	require.NoError(t, err)

	var out map[string]any
	_, err = client.NewRequest().SetResult(&out).Get(context.Background(), "/")
	require.ErrorIs(t, err, ErrDecodeBody)
}

func TestRequest_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	client, err := NewInstrumentedClient(WithBaseURL(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = client.NewRequest().Get(ctx, "/slow")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClient_DefaultUserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	client, err := NewInstrumentedClient(WithBaseURL(srv.URL))
	require.NoError(t, err)
	_, err = client.NewRequest().Get(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, defaultUserAgent, ua)

	client, err = NewInstrumentedClient(WithBaseURL(srv.URL), WithUserAgent("probe/1.0"))
	require.NoError(t, err)
	_, err = client.NewRequest().SetHeader("x-trace", "1").Get(context.Background(), "/")
	require.NoError(t, err)
	assert.Equal(t, "probe/1.0", ua)
}

func TestClient_RecordsMetrics(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	client, err := NewInstrumentedClient(
		WithBaseURL(srv.URL),
		WithProviderName("test"),
		WithMeterProvider(mp),
	)
	require.NoError(t, err)

	_, err = client.NewRequest().Get(context.Background(), "/ok")
	require.NoError(t, err)
	_, err = client.NewRequest().Get(context.Background(), "/missing")
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
			if m.Name != metricRequestCounter {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			assert.Equal(t, int64(2), total)
		}
	}
	assert.True(t, found[metricRequestCounter])
	assert.True(t, found[metricRequestDuration])
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "none", statusClass(0))
	assert.Equal(t, "2xx", statusClass(200))
	assert.Equal(t, "4xx", statusClass(429))
	assert.Equal(t, "5xx", statusClass(503))
}
