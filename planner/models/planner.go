package models

import (
	"github.com/shopspring/decimal"
)

func init() {
	// amounts travel as JSON numbers on the wire
	decimal.MarshalJSONWithoutQuotes = true
}

// Response codes attached to failed API responses
const (
	CodeValidationError = "VALIDATION_ERROR"
	CodeExecutionError  = "EXECUTION_ERROR"
)

// BridgeRequest is the inbound body of POST /api/bridge/routes
type BridgeRequest struct {
	TargetChain  string          `json:"targetChain" validate:"required"`
	Amount       decimal.Decimal `json:"amount" validate:"gt=0"`
	TokenAddress string          `json:"tokenAddress" validate:"required,eth_addr"`
	UserAddress  string          `json:"userAddress" validate:"required,eth_addr"`
}

// ChainBalance is the owner's token holding on one chain at query time
type ChainBalance struct {
	Chain   string          `json:"chain"`
	Balance decimal.Decimal `json:"balance"`
}

// FeeQuote is the priced cost of bridging an amount from one chain to another
type FeeQuote struct {
	GasFee        decimal.Decimal `json:"gasFee"`
	BridgeFee     decimal.Decimal `json:"bridgeFee"`
	EstimatedTime int64           `json:"estimatedTime"`
	Protocol      string          `json:"protocol"`
}

// Total returns gas fee plus bridge fee
func (q FeeQuote) Total() decimal.Decimal {
	return q.GasFee.Add(q.BridgeFee)
}

// BridgeRoute is a single planned transfer from a source chain to the target chain
type BridgeRoute struct {
	SourceChain   string          `json:"sourceChain"`
	Amount        decimal.Decimal `json:"amount"`
	Fee           decimal.Decimal `json:"fee"`
	EstimatedTime int64           `json:"estimatedTime"`
	Protocol      string          `json:"protocol"`
	GasToken      string          `json:"gasToken"`
	SourceBalance decimal.Decimal `json:"sourceBalance"`
}

// RouteResponse is the aggregated plan returned to the caller.
// Routes keep their selection order.
type RouteResponse struct {
	Routes             []BridgeRoute   `json:"routes"`
	TotalFee           decimal.Decimal `json:"totalFee"`
	TotalAmount        decimal.Decimal `json:"totalAmount"`
	EstimatedTotalTime int64           `json:"estimatedTotalTime"`
	AvailableBalance   decimal.Decimal `json:"availableBalance"`
	RequiredAmount     decimal.Decimal `json:"requiredAmount"`
	InsufficientFunds  bool            `json:"insufficientFunds"`
	NoValidRoutes      bool            `json:"noValidRoutes"`
	Shortfall          decimal.Decimal `json:"shortfall"`
	TargetChain        string          `json:"targetChain"`
	Strategy           string          `json:"strategy,omitempty"`
}

// APIResponse is the envelope of every /api/bridge/routes response
type APIResponse struct {
	Success bool           `json:"success"`
	Data    *RouteResponse `json:"data"`
	Error   *string        `json:"error"`
	Code    string         `json:"code,omitempty"`
}

// Chain is the static description of a supported chain
type Chain struct {
	// Key used in requests and fee tables (e.g. "polygon")
	Key string
	// Human-readable name
	Name string
	// EVM chain id
	ChainID int64
	// Symbol of the gas token on this chain
	NativeToken string
	// Token contract planned over (USDC in the default set)
	TokenAddress  string
	TokenDecimals int32
	RPCURLs       []string
	// Scales the fallback gas fee
	GasMultiplier decimal.Decimal
	// USD price of the native token, used by the gas-price-aware fee estimate
	NativeTokenUSD decimal.Decimal
	// A failed contract call on this chain means the owner holds nothing.
	// Gnosis returns CALL_EXCEPTION for untouched accounts.
	ZeroOnCallException bool
}
