package exchange

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"market-hierarchy/internal/hierarchy"
)

const erc4626ABIJSON = `[{"inputs":[{"internalType":"uint256","name":"assets","type":"uint256"}],"name":"previewDeposit","outputs":[{"internalType":"uint256","name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

var erc4626ABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(erc4626ABIJSON))
	if err != nil {
		panic("failed to parse ERC-4626 ABI: " + err.Error())
	}
	erc4626ABI = parsed
}

// OnChainOptions parameterise the vault adapter.
type OnChainOptions struct {
	ID           string
	RPCURL       string
	VaultAddress string
	Symbol       string
	Region       string
	Timeout      time.Duration
}

// OnChain prices one ERC-4626 vault share as a spot market.
type OnChain struct {
	opts      OnChainOptions
	logger    zerolog.Logger
	client    *ethclient.Client
	clientMux sync.Mutex
}

// NewOnChain builds the adapter. The RPC connection is dialled lazily.
func NewOnChain(opts OnChainOptions, logger zerolog.Logger) *OnChain {
	return &OnChain{opts: opts, logger: logger.With().Str("component", "exchange_onchain").Logger()}
}

// ID names the adapter.
func (o *OnChain) ID() string { return o.opts.ID }

// FetchMarkets returns a single snapshot with the previewDeposit rate of 1e18 assets.
func (o *OnChain) FetchMarkets(ctx context.Context) ([]hierarchy.MarketSnapshot, error) {
	rate, block, err := o.FetchRate(ctx)
	if err != nil {
		return nil, err
	}
	price, _ := rate.Float64()
	o.logger.Debug().Str("rate", rate.String()).Uint64("block", block).Msg("vault rate fetched")

	return []hierarchy.MarketSnapshot{{
		ExchangeID: o.opts.ID,
		MarketID:   o.opts.Symbol,
		Category:   hierarchy.CategorySpot.String(),
		Price:      price,
		RegionID:   o.opts.Region,
		Timestamp:  time.Now().UTC(),
	}}, nil
}

// FetchRate returns the share rate and the block it was read at.
func (o *OnChain) FetchRate(ctx context.Context) (decimal.Decimal, uint64, error) {
	if o.opts.RPCURL == "" {
		return decimal.Decimal{}, 0, errors.New("ethereum rpc url not configured")
	}
	if o.opts.VaultAddress == "" {
		return decimal.Decimal{}, 0, errors.New("vault contract address not configured")
	}

	timeout := o.opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := o.getClient(ctx)
	if err != nil {
		return decimal.Decimal{}, 0, err
	}

	addr := common.HexToAddress(o.opts.VaultAddress)
	assets := new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

	payload, err := erc4626ABI.Pack("previewDeposit", assets)
	if err != nil {
		return decimal.Decimal{}, 0, err
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return decimal.Decimal{}, 0, err
	}

	outputs, err := erc4626ABI.Unpack("previewDeposit", res)
	if err != nil {
		return decimal.Decimal{}, 0, err
	}
	if len(outputs) != 1 {
		return decimal.Decimal{}, 0, errors.New("unexpected previewDeposit response")
	}

	shares, ok := outputs[0].(*big.Int)
	if !ok {
		return decimal.Decimal{}, 0, errors.New("failed to decode previewDeposit output")
	}
	if shares.Sign() <= 0 {
		return decimal.Decimal{}, 0, errors.New("vault returned zero shares")
	}

	blockNumber, err := client.BlockNumber(ctx)
	if err != nil {
		return decimal.Decimal{}, 0, err
	}

	return decimal.NewFromBigInt(shares, -18), blockNumber, nil
}

func (o *OnChain) getClient(ctx context.Context) (*ethclient.Client, error) {
	o.clientMux.Lock()
	defer o.clientMux.Unlock()

	if o.client != nil {
		return o.client, nil
	}

	client, err := ethclient.DialContext(ctx, o.opts.RPCURL)
	if err != nil {
		return nil, err
	}
	o.client = client
	return client, nil
}

var _ hierarchy.Exchange = (*OnChain)(nil)
