// Package socketquery is a client for the Socket bridge aggregator quote API.
package socketquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "socket").Logger()
}

// DefaultBaseURL is the public Socket v2 API
const DefaultBaseURL = "https://api.socket.tech/v2"

var (
	// ErrQuoteRejected is returned when the API answers with success=false
	ErrQuoteRejected = errors.New("socket quote rejected")
	// ErrNoRoutes is returned when the API found no route for the pair
	ErrNoRoutes = errors.New("socket returned no routes")
)

// SocketQueryClient calls the Socket API. It keeps a primary endpoint and switches
// to backup endpoints when the primary stops answering.
type SocketQueryClient struct {
	httpClient     *http.Client
	apiKey         string
	primaryURL     string
	backupURLs     []string
	currentURL     string
	mu             sync.RWMutex
	healthChecker  *healthChecker
	failoverConfig FailoverConfig
}

// FailoverConfig controls failover behavior
type FailoverConfig struct {
	// MaxRetries is the number of times to retry a failed request on the current endpoint
	MaxRetries int
	// RetryDelay is the initial delay between retries (doubles with each retry)
	RetryDelay time.Duration
	// HealthCheckInterval is how often to check if the primary endpoint is back up
	HealthCheckInterval time.Duration
	// Timeout is the HTTP request timeout
	Timeout time.Duration
}

// DefaultFailoverConfig returns the defaults used by the planner
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		MaxRetries:          1,
		RetryDelay:          300 * time.Millisecond,
		HealthCheckInterval: 30 * time.Second,
		Timeout:             10 * time.Second,
	}
}

// healthChecker periodically checks if the primary endpoint is healthy
type healthChecker struct {
	client    *SocketQueryClient
	stopCh    chan struct{}
	stoppedCh chan struct{}
	stopOnce  sync.Once
}

// NewSocketQueryClient creates a client for a single endpoint
func NewSocketQueryClient(apiURL, apiKey string) (*SocketQueryClient, error) {
	return NewSocketQueryClientWithFailover(apiURL, nil, apiKey, DefaultFailoverConfig())
}

// NewSocketQueryClientWithFailover creates a client that fails over to backupURLs
func NewSocketQueryClientWithFailover(
	primaryURL string,
	backupURLs []string,
	apiKey string,
	config FailoverConfig,
) (*SocketQueryClient, error) {
	if _, err := url.ParseRequestURI(primaryURL); err != nil {
		return nil, fmt.Errorf("invalid socket api url %q: %w", primaryURL, err)
	}

	validBackups := make([]string, 0, len(backupURLs))
	for _, u := range backupURLs {
		if _, err := url.ParseRequestURI(u); err != nil {
			log.Warn().Err(err).Str("url", u).Msg("Invalid backup URL, skipping")
			continue
		}
		validBackups = append(validBackups, u)
	}

	client := &SocketQueryClient{
		httpClient:     &http.Client{Timeout: config.Timeout},
		apiKey:         apiKey,
		primaryURL:     primaryURL,
		backupURLs:     validBackups,
		currentURL:     primaryURL,
		failoverConfig: config,
	}

	if len(validBackups) > 0 && config.HealthCheckInterval > 0 {
		client.startHealthChecker()
	}

	log.Info().
		Str("primary", primaryURL).
		Int("backups", len(validBackups)).
		Msg("Socket client initialized")
	return client, nil
}

func (c *SocketQueryClient) startHealthChecker() {
	c.healthChecker = &healthChecker{
		client:    c,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}

	go func() {
		h := c.healthChecker
		defer close(h.stoppedCh)
		ticker := time.NewTicker(c.failoverConfig.HealthCheckInterval)
		defer ticker.Stop()

		for {
			select {
			case <-h.stopCh:
				return
			case <-ticker.C:
				h.checkAndRestore()
			}
		}
	}()
}

func (h *healthChecker) stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		<-h.stoppedCh
	})
}

// checkAndRestore moves back to the primary endpoint once it answers again
func (h *healthChecker) checkAndRestore() {
	h.client.mu.RLock()
	currentURL := h.client.currentURL
	primaryURL := h.client.primaryURL
	h.client.mu.RUnlock()

	if currentURL == primaryURL {
		return
	}

	if h.client.isEndpointHealthy(context.Background(), primaryURL) {
		h.client.mu.Lock()
		h.client.currentURL = primaryURL
		h.client.mu.Unlock()
		log.Info().Str("url", primaryURL).Msg("Restored primary endpoint")
	}
}

// isEndpointHealthy asks the endpoint for its supported chains
func (c *SocketQueryClient) isEndpointHealthy(ctx context.Context, endpoint string) bool {
	healthURL := endpoint + "/supported/chains"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, healthURL, nil)
	if err != nil {
		return false
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", healthURL).Msg("Health check failed")
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return resp.StatusCode == http.StatusOK
}

func (c *SocketQueryClient) getCurrentURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentURL
}

// failover switches to the next healthy endpoint
func (c *SocketQueryClient) failover(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	allURLs := append([]string{c.primaryURL}, c.backupURLs...)
	currentIdx := 0
	for i, u := range allURLs {
		if u == c.currentURL {
			currentIdx = i
			break
		}
	}

	for i := 1; i < len(allURLs); i++ {
		nextURL := allURLs[(currentIdx+i)%len(allURLs)]
		if nextURL == c.currentURL {
			continue
		}
		if c.isEndpointHealthy(ctx, nextURL) {
			c.currentURL = nextURL
			log.Info().Str("url", nextURL).Msg("Failover to endpoint")
			return true
		}
	}

	log.Warn().Str("url", c.currentURL).Msg("All endpoints unhealthy, staying on current")
	return false
}

// Close stops the health checker
func (c *SocketQueryClient) Close() {
	if c.healthChecker != nil {
		c.healthChecker.stop()
	}
}

func (c *SocketQueryClient) setHeaders(req *http.Request) {
	req.Header.Set("API-KEY", c.apiKey)
	req.Header.Set("Accept", "application/json")
}

func (c *SocketQueryClient) get(ctx context.Context, fullURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

// doRequestWithFailover performs a GET with retry on the current endpoint, then one attempt after failover
func (c *SocketQueryClient) doRequestWithFailover(ctx context.Context, pathAndQuery string) ([]byte, error) {
	var lastErr error
	retryDelay := c.failoverConfig.RetryDelay

	for attempt := 0; attempt <= c.failoverConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
			retryDelay *= 2
		}

		body, err := c.get(ctx, c.getCurrentURL()+pathAndQuery)
		if err != nil {
			lastErr = err
			continue
		}
		return body, nil
	}

	if len(c.backupURLs) > 0 && ctx.Err() == nil && c.failover(ctx) {
		body, err := c.get(ctx, c.getCurrentURL()+pathAndQuery)
		if err != nil {
			return nil, fmt.Errorf("failover request failed: %w (original: %w)", err, lastErr)
		}
		return body, nil
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.failoverConfig.MaxRetries+1, lastErr)
}

// GetQuote asks for the best single-transaction route sorted by output amount.
// A rejected quote or an empty route list is returned as an error.
func (c *SocketQueryClient) GetQuote(ctx context.Context, params QuoteParams) (QuoteRoute, error) {
	query := url.Values{}
	query.Set("fromChainId", strconv.FormatInt(params.FromChainID, 10))
	query.Set("toChainId", strconv.FormatInt(params.ToChainID, 10))
	query.Set("fromTokenAddress", params.FromTokenAddress)
	query.Set("toTokenAddress", params.ToTokenAddress)
	query.Set("fromAmount", params.FromAmount)
	query.Set("userAddress", params.UserAddress)
	query.Set("uniqueRoutesPerBridge", "true")
	query.Set("sort", "output")
	query.Set("singleTxOnly", "true")

	body, err := c.doRequestWithFailover(ctx, "/quote?"+query.Encode())
	if err != nil {
		return QuoteRoute{}, err
	}

	var quote QuoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		return QuoteRoute{}, fmt.Errorf("failed to parse quote response: %w", err)
	}
	if !quote.Success {
		return QuoteRoute{}, fmt.Errorf("%w: %s", ErrQuoteRejected, quote.Message)
	}
	if len(quote.Result.Routes) == 0 {
		return QuoteRoute{}, fmt.Errorf("%w: %d -> %d", ErrNoRoutes, params.FromChainID, params.ToChainID)
	}
	return quote.Result.Routes[0], nil
}
