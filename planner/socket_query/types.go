package socketquery

import "encoding/json"

// QuoteParams are the query parameters of GET /quote
type QuoteParams struct {
	FromChainID      int64
	ToChainID        int64
	FromTokenAddress string
	ToTokenAddress   string
	// Amount in integer base units of the source token
	FromAmount  string
	UserAddress string
}

// QuoteResponse is the subset of the /quote body the planner reads
type QuoteResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Result  QuoteResult `json:"result"`
}

type QuoteResult struct {
	Routes []QuoteRoute `json:"routes"`
}

type QuoteRoute struct {
	RouteID           string          `json:"routeId"`
	FromAmount        string          `json:"fromAmount"`
	ToAmount          string          `json:"toAmount"`
	TotalGasFeeUSD    string          `json:"totalGasFeeUSD"`
	TotalBridgeFeeUSD string          `json:"totalBridgeFeeUSD,omitempty"`
	Protocol          json.RawMessage `json:"protocol,omitempty"`
	ServiceTime       int64           `json:"serviceTime"`
	UserTxs           []UserTx        `json:"userTxs"`
}

type UserTx struct {
	UserTxType string `json:"userTxType"`
	GasFeeUSD  string `json:"gasFeeUSD"`
}

// ProtocolName returns the bridge name whether the API sent a plain string or a protocol object
func (r QuoteRoute) ProtocolName() string {
	if len(r.Protocol) == 0 {
		return ""
	}
	var name string
	if err := json.Unmarshal(r.Protocol, &name); err == nil {
		return name
	}
	var obj struct {
		Name        string `json:"name"`
		DisplayName string `json:"displayName"`
	}
	if err := json.Unmarshal(r.Protocol, &obj); err == nil {
		if obj.Name != "" {
			return obj.Name
		}
		return obj.DisplayName
	}
	return ""
}
