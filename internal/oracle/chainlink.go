// Package oracle provides price feeds for the prediction game. The
// production feed reads Chainlink aggregators over Ethereum RPC; an HTTP
// ticker feed and a cache-backed wrapper are available for environments
// without an RPC endpoint.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"

	"github.com/Clish254/prediction-game/internal/domain"
)

const aggregatorABIJSON = `[
{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"},
{"inputs":[],"name":"decimals","outputs":[{"internalType":"uint8","name":"","type":"uint8"}],"stateMutability":"view","type":"function"}
]`

var aggregatorABI abi.ABI

func init() {
	parsed, err := abi.JSON(strings.NewReader(aggregatorABIJSON))
	if err != nil {
		panic("failed to parse aggregator ABI: " + err.Error())
	}
	aggregatorABI = parsed
}

// ChainlinkConfig parameterises the on-chain oracle.
type ChainlinkConfig struct {
	RPCURL string
	// Feeds maps asset IDs to Chainlink aggregator contract addresses.
	Feeds map[string]string
	// MaxStale bounds how old an on-chain answer may be before it is
	// treated as unavailable. Zero disables the check.
	MaxStale time.Duration
	Timeout  time.Duration
}

// Chainlink reads prices from Chainlink AggregatorV3 contracts over
// Ethereum RPC. It lazily dials the RPC endpoint on first use and caches
// per-feed decimals after the first read.
type Chainlink struct {
	cfg    ChainlinkConfig
	logger *slog.Logger

	mu       sync.Mutex
	client   *ethclient.Client
	decimals map[string]int32
}

// NewChainlink creates a Chainlink oracle. It does not dial the RPC
// endpoint until the first GetPrice call.
func NewChainlink(cfg ChainlinkConfig, logger *slog.Logger) *Chainlink {
	return &Chainlink{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "chainlink_oracle")),
		decimals: make(map[string]int32),
	}
}

// GetPrice returns the latest on-chain answer for the asset's aggregator.
// It returns domain.ErrOracleUnavailable when the feed is unknown, the RPC
// call fails, the answer is non-positive, or the answer is older than
// MaxStale relative to the requested time.
func (c *Chainlink) GetPrice(ctx context.Context, assetID string, at time.Time) (domain.PricePoint, error) {
	feedAddr, ok := c.cfg.Feeds[assetID]
	if !ok {
		return domain.PricePoint{}, fmt.Errorf("oracle: no feed for asset %q: %w", assetID, domain.ErrOracleUnavailable)
	}

	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := c.getClient(ctx)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("oracle: dial rpc: %v: %w", err, domain.ErrOracleUnavailable)
	}

	addr := common.HexToAddress(feedAddr)

	scale, err := c.feedDecimals(ctx, client, assetID, addr)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("oracle: read decimals for %q: %v: %w", assetID, err, domain.ErrOracleUnavailable)
	}

	payload, err := aggregatorABI.Pack("latestRoundData")
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("oracle: pack latestRoundData: %w", err)
	}

	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("oracle: call %q: %v: %w", assetID, err, domain.ErrOracleUnavailable)
	}

	outputs, err := aggregatorABI.Unpack("latestRoundData", res)
	if err != nil {
		return domain.PricePoint{}, fmt.Errorf("oracle: unpack latestRoundData: %v: %w", err, domain.ErrOracleUnavailable)
	}
	if len(outputs) != 5 {
		return domain.PricePoint{}, fmt.Errorf("oracle: unexpected latestRoundData outputs (%d): %w", len(outputs), domain.ErrOracleUnavailable)
	}

	answer, ok := outputs[1].(*big.Int)
	if !ok || answer.Sign() <= 0 {
		return domain.PricePoint{}, fmt.Errorf("oracle: invalid answer for %q: %w", assetID, domain.ErrOracleUnavailable)
	}
	updatedAt, ok := outputs[3].(*big.Int)
	if !ok {
		return domain.PricePoint{}, fmt.Errorf("oracle: invalid updatedAt for %q: %w", assetID, domain.ErrOracleUnavailable)
	}

	observed := time.Unix(updatedAt.Int64(), 0).UTC()
	if c.cfg.MaxStale > 0 && at.Sub(observed) > c.cfg.MaxStale {
		c.logger.WarnContext(ctx, "stale aggregator answer",
			slog.String("asset_id", assetID),
			slog.Time("updated_at", observed),
			slog.Time("requested_at", at),
		)
		return domain.PricePoint{}, fmt.Errorf("oracle: answer for %q older than %s: %w", assetID, c.cfg.MaxStale, domain.ErrOracleUnavailable)
	}

	return domain.PricePoint{
		Price:     decimal.NewFromBigInt(answer, -scale),
		Timestamp: observed,
	}, nil
}

func (c *Chainlink) feedDecimals(ctx context.Context, client *ethclient.Client, assetID string, addr common.Address) (int32, error) {
	c.mu.Lock()
	if scale, ok := c.decimals[assetID]; ok {
		c.mu.Unlock()
		return scale, nil
	}
	c.mu.Unlock()

	payload, err := aggregatorABI.Pack("decimals")
	if err != nil {
		return 0, err
	}
	res, err := client.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: payload}, nil)
	if err != nil {
		return 0, err
	}
	outputs, err := aggregatorABI.Unpack("decimals", res)
	if err != nil {
		return 0, err
	}
	if len(outputs) != 1 {
		return 0, fmt.Errorf("unexpected decimals response")
	}
	d, ok := outputs[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("failed to decode decimals output")
	}

	scale := int32(d)
	c.mu.Lock()
	c.decimals[assetID] = scale
	c.mu.Unlock()
	return scale, nil
}

func (c *Chainlink) getClient(ctx context.Context) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	client, err := ethclient.DialContext(ctx, c.cfg.RPCURL)
	if err != nil {
		return nil, err
	}
	c.client = client
	return client, nil
}

// Close releases the underlying RPC connection.
func (c *Chainlink) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}

// Compile-time interface check.
var _ domain.PriceOracle = (*Chainlink)(nil)
