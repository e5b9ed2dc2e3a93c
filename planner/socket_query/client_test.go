package socketquery_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	socketquery "github.com/Cogwheel-Validator/spectra-bridge/planner/socket_query"
	"github.com/stretchr/testify/require"
)

func testFailoverConfig() socketquery.FailoverConfig {
	return socketquery.FailoverConfig{
		MaxRetries:          1,
		RetryDelay:          time.Millisecond,
		HealthCheckInterval: 0,
		Timeout:             time.Second,
	}
}

func params() socketquery.QuoteParams {
	return socketquery.QuoteParams{
		FromChainID:      42161,
		ToChainID:        137,
		FromTokenAddress: "0xFF970A61A04b1cA14834A43f5dE4533eBDDB5CC8",
		ToTokenAddress:   "0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174",
		FromAmount:       "60000000",
		UserAddress:      "0x1111111111111111111111111111111111111111",
	}
}

func TestGetQuote_SendsQueryAndHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quote", r.URL.Path)
		require.Equal(t, "secret", r.Header.Get("API-KEY"))
		q := r.URL.Query()
		require.Equal(t, "42161", q.Get("fromChainId"))
		require.Equal(t, "137", q.Get("toChainId"))
		require.Equal(t, "60000000", q.Get("fromAmount"))
		require.Equal(t, "output", q.Get("sort"))
		require.Equal(t, "true", q.Get("singleTxOnly"))
		require.Equal(t, "true", q.Get("uniqueRoutesPerBridge"))

		_, _ = w.Write([]byte(`{"success":true,"result":{"routes":[
			{"routeId":"r1","totalGasFeeUSD":"1.25","totalBridgeFeeUSD":"0.75","protocol":{"name":"hop","displayName":"Hop"},"serviceTime":120},
			{"routeId":"r2","totalGasFeeUSD":"9","serviceTime":60}
		]}}`))
	}))
	defer server.Close()

	client, err := socketquery.NewSocketQueryClientWithFailover(server.URL, nil, "secret", testFailoverConfig())
	require.NoError(t, err)
	defer client.Close()

	route, err := client.GetQuote(context.Background(), params())
	require.NoError(t, err)
	require.Equal(t, "r1", route.RouteID)
	require.Equal(t, "1.25", route.TotalGasFeeUSD)
	require.Equal(t, "hop", route.ProtocolName())
	require.Equal(t, int64(120), route.ServiceTime)
}

func TestGetQuote_RejectedAndEmpty(t *testing.T) {
	body := `{"success":false,"message":"unsupported pair"}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	client, err := socketquery.NewSocketQueryClientWithFailover(server.URL, nil, "k", testFailoverConfig())
	require.NoError(t, err)

	_, err = client.GetQuote(context.Background(), params())
	require.True(t, errors.Is(err, socketquery.ErrQuoteRejected))

	body = `{"success":true,"result":{"routes":[]}}`
	_, err = client.GetQuote(context.Background(), params())
	require.True(t, errors.Is(err, socketquery.ErrNoRoutes))
}

func TestGetQuote_RetriesThenFails(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := socketquery.NewSocketQueryClientWithFailover(server.URL, nil, "k", testFailoverConfig())
	require.NoError(t, err)

	_, err = client.GetQuote(context.Background(), params())
	require.Error(t, err)
	require.Equal(t, int32(2), hits.Load())
}

func TestGetQuote_FailsOverToBackup(t *testing.T) {
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer primary.Close()

	backup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/supported/chains" {
			_, _ = w.Write([]byte(`{"success":true}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"result":{"routes":[{"routeId":"backup","totalGasFeeUSD":"1","totalBridgeFeeUSD":"1","protocol":"across","serviceTime":30}]}}`))
	}))
	defer backup.Close()

	client, err := socketquery.NewSocketQueryClientWithFailover(primary.URL, []string{backup.URL}, "k", testFailoverConfig())
	require.NoError(t, err)
	defer client.Close()

	route, err := client.GetQuote(context.Background(), params())
	require.NoError(t, err)
	require.Equal(t, "backup", route.RouteID)
	require.Equal(t, "across", route.ProtocolName())
}

func TestNewSocketQueryClient_InvalidURL(t *testing.T) {
	_, err := socketquery.NewSocketQueryClient("::not-a-url", "k")
	require.Error(t, err)
}
