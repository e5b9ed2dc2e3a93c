package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/Cogwheel-Validator/spectra-bridge/planner/balances"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/cache"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/metrics"
	"github.com/Cogwheel-Validator/spectra-bridge/planner/models"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var plannerLog zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	plannerLog = zerolog.New(out).With().Timestamp().Str("component", "planner").Logger()
}

// Planner serves route requests end to end: validation, response caching,
// balance collection across every supported chain and allocation.
type Planner struct {
	chains    []models.Chain
	chainMap  map[string]models.Chain
	allocator *Allocator
	reader    BalanceReader
	store     cache.Store
	ttl       time.Duration
	validate  *validator.Validate
}

// PlannerOption configures a Planner
type PlannerOption func(*Planner)

// WithRouteCache caches computed responses in store for ttl
func WithRouteCache(store cache.Store, ttl time.Duration) PlannerOption {
	return func(p *Planner) {
		p.store = store
		if ttl > 0 {
			p.ttl = ttl
		}
	}
}

// Result is the outcome of one PlanRoutes call. Body is the exact JSON to send,
// on a cache hit it is the stored body.
type Result struct {
	Response models.APIResponse
	Body     []byte
	Status   int
	Cached   bool
}

// NewPlanner creates a planner over chains. The allocator must know the same chains.
func NewPlanner(chains []models.Chain, allocator *Allocator, reader BalanceReader, opts ...PlannerOption) *Planner {
	chainMap := make(map[string]models.Chain, len(chains))
	for _, chain := range chains {
		chainMap[chain.Key] = chain
	}
	p := &Planner{
		chains:    chains,
		chainMap:  chainMap,
		allocator: allocator,
		reader:    reader,
		ttl:       cache.DefaultTTL,
		validate:  newValidator(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the request shape and that the target chain is supported
func (p *Planner) Validate(req models.BridgeRequest) error {
	if err := p.validate.Struct(req); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, describeValidation(err))
	}
	if _, ok := p.chainMap[req.TargetChain]; !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedChain, req.TargetChain)
	}
	return nil
}

func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" is required")
		case "gt":
			msgs = append(msgs, fe.Field()+" must be greater than "+fe.Param())
		case "eth_addr":
			msgs = append(msgs, fe.Field()+" must be a 0x-prefixed 40 hex character address")
		default:
			msgs = append(msgs, fe.Field()+" failed "+fe.Tag()+" validation")
		}
	}
	return strings.Join(msgs, "; ")
}

// PlanRoutes answers one route request. It never returns an error: invalid
// requests get a 400 result and unexpected failures a 500 result.
func (p *Planner) PlanRoutes(ctx context.Context, req models.BridgeRequest) (res Result) {
	start := time.Now()
	outcome := "computed"
	defer func() {
		metrics.RouteRequests.WithLabelValues(outcome).Inc()
		metrics.RouteDuration.WithLabelValues(p.allocator.StrategyName()).Observe(time.Since(start).Seconds())
	}()

	if err := p.Validate(req); err != nil {
		outcome = "invalid"
		plannerLog.Info().Err(err).Msg("Rejected route request")
		return p.validationResult(err)
	}

	defer func() {
		if r := recover(); r != nil {
			outcome = "execution_error"
			plannerLog.Error().Interface("panic", r).Str("target", req.TargetChain).Msg("Route planning panicked")
			res = p.executionResult(req, fmt.Errorf("route planning failed: %v", r))
		}
	}()

	key := cache.RoutesKey(req.UserAddress, req.TargetChain, req.Amount, req.TokenAddress)
	if cached, ok := p.fromCache(ctx, key); ok {
		outcome = "cached"
		return cached
	}

	plannerLog.Info().
		Str("target", req.TargetChain).
		Str("amount", req.Amount.String()).
		Str("user", shortAddress(req.UserAddress)).
		Msg("Starting route calculation")

	chainBalances := balances.FetchAll(ctx, p.reader, p.chains, req.UserAddress)

	var data models.RouteResponse
	targetBalance := balanceOf(chainBalances, req.TargetChain)
	if targetBalance.GreaterThanOrEqual(req.Amount) {
		data = DirectFulfillment(chainBalances, req.TargetChain, req.Amount)
	} else {
		data = p.allocator.FindOptimalRoutes(ctx, chainBalances, req.TargetChain, req.Amount, req.TokenAddress, req.UserAddress)
	}

	if err := ctx.Err(); err != nil {
		outcome = "execution_error"
		return p.executionResult(req, fmt.Errorf("route planning aborted: %w", err))
	}

	resp := models.APIResponse{
		Success: data.TotalAmount.GreaterThanOrEqual(req.Amount),
		Data:    &data,
	}
	switch {
	case data.InsufficientFunds:
		msg := MsgInsufficientFunds
		resp.Error = &msg
	case data.NoValidRoutes:
		msg := MsgNoValidRoutes
		resp.Error = &msg
	}

	body, err := json.Marshal(resp)
	if err != nil {
		outcome = "execution_error"
		return p.executionResult(req, fmt.Errorf("failed to encode response: %w", err))
	}
	p.toCache(ctx, key, body)

	plannerLog.Info().
		Str("target", req.TargetChain).
		Int("routes", len(data.Routes)).
		Str("total_fee", data.TotalFee.String()).
		Bool("success", resp.Success).
		Msg("Route calculation finished")

	return Result{Response: resp, Body: body, Status: http.StatusOK}
}

func (p *Planner) fromCache(ctx context.Context, key string) (Result, bool) {
	if p.store == nil {
		return Result{}, false
	}
	body, err := p.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			plannerLog.Warn().Err(err).Msg("Route cache read failed")
		}
		metrics.CacheLookups.WithLabelValues("routes", "miss").Inc()
		return Result{}, false
	}

	var resp models.APIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		plannerLog.Warn().Err(err).Str("key", key).Msg("Ignoring corrupt cached response")
		metrics.CacheLookups.WithLabelValues("routes", "miss").Inc()
		return Result{}, false
	}
	metrics.CacheLookups.WithLabelValues("routes", "hit").Inc()
	return Result{Response: resp, Body: body, Status: http.StatusOK, Cached: true}, true
}

func (p *Planner) toCache(ctx context.Context, key string, body []byte) {
	if p.store == nil {
		return
	}
	if err := p.store.SetEx(ctx, key, body, p.ttl); err != nil {
		plannerLog.Warn().Err(err).Msg("Route cache write failed")
	}
}

func (p *Planner) validationResult(err error) Result {
	msg := err.Error()
	if errors.Is(err, ErrUnsupportedChain) {
		msg = "Unsupported target chain: " + strings.TrimPrefix(msg, ErrUnsupportedChain.Error()+": ")
	}
	resp := models.APIResponse{Success: false, Error: &msg, Code: models.CodeValidationError}
	return newResult(resp, http.StatusBadRequest)
}

// executionResult is the failure envelope: zero totals, both flags set, shortfall = required
func (p *Planner) executionResult(req models.BridgeRequest, err error) Result {
	msg := err.Error()
	data := newRouteResponse(req.TargetChain, req.Amount, decimal.Zero)
	data.InsufficientFunds = true
	data.NoValidRoutes = true
	data.Shortfall = req.Amount
	resp := models.APIResponse{Success: false, Data: &data, Error: &msg, Code: models.CodeExecutionError}
	return newResult(resp, http.StatusInternalServerError)
}

func newResult(resp models.APIResponse, status int) Result {
	body, err := json.Marshal(resp)
	if err != nil {
		body = []byte(`{"success":false,"data":null,"error":"internal error","code":"EXECUTION_ERROR"}`)
	}
	return Result{Response: resp, Body: body, Status: status}
}

func shortAddress(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:10] + "..."
}
