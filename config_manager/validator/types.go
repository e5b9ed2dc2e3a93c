package validator

import (
	"context"
	"math/big"

	"github.com/Cogwheel-Validator/spectra-bridge/config_manager/input"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// EndpointClient is the part of an EVM JSON-RPC client the probe uses.
// *ethclient.Client satisfies it.
type EndpointClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	Close()
}

// DialFunc opens a client for one endpoint URL
type DialFunc func(ctx context.Context, url string) (EndpointClient, error)

// EthDial dials url with go-ethereum's ethclient
func EthDial(ctx context.Context, url string) (EndpointClient, error) {
	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// RpcValidity tracks how trustworthy an endpoint looks while it is probed
type RpcValidity struct {
	Endpoint input.APIEndpoint
	// All start with 100 points, anything lower than 60 is invalid
	points int
	// If the points are less than 60, the endpoint is invalid
	valid bool
	// eth_chainId as reported by the endpoint
	chainID *int64
	// latest block number as reported by the endpoint
	height *uint64
	// sampled block headers, nil when the endpoint failed to return one
	blockData map[uint64]*BlockData

	client EndpointClient
}

// BlockData are the header fields compared between endpoints
type BlockData struct {
	Hash        common.Hash
	ParentHash  common.Hash
	StateRoot   common.Hash
	TxHash      common.Hash
	ReceiptHash common.Hash
	Coinbase    common.Address
	Time        uint64
}

func newBlockData(h *types.Header) *BlockData {
	return &BlockData{
		Hash:        h.Hash(),
		ParentHash:  h.ParentHash,
		StateRoot:   h.Root,
		TxHash:      h.TxHash,
		ReceiptHash: h.ReceiptHash,
		Coinbase:    h.Coinbase,
		Time:        h.Time,
	}
}

func (v *RpcValidity) GetPoints() int { return v.points }
func (v *RpcValidity) SetPoints(p int) { v.points = p }
func (v *RpcValidity) IsValid() bool { return v.valid }
func (v *RpcValidity) SetValid(ok bool) { v.valid = ok }
func (v *RpcValidity) GetURL() string { return v.Endpoint.URL }
func (v *RpcValidity) GetBlockData() map[uint64]*BlockData {
	return v.blockData
}

type blockDataTracker struct {
	hash        map[common.Hash]int
	parentHash  map[common.Hash]int
	stateRoot   map[common.Hash]int
	txHash      map[common.Hash]int
	receiptHash map[common.Hash]int
	coinbase    map[common.Address]int
	time        map[uint64]int
}

// Consensus made by getting the most common value from the tracker
type majorityConsensus struct {
	hash        common.Hash
	parentHash  common.Hash
	stateRoot   common.Hash
	txHash      common.Hash
	receiptHash common.Hash
	coinbase    common.Address
	time        uint64
}
