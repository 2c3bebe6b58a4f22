package solana

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"github.com/brojonat/lpctl/service/metrics"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// RPCClient is the set of Solana RPC operations the pipeline and inspector
// need. Tests substitute an in-memory implementation.
type RPCClient interface {
	GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error)
	GetLatestBlockhash(ctx context.Context) (*rpc.GetLatestBlockhashResult, error)
	SimulateTransaction(ctx context.Context, tx *solana.Transaction, opts *rpc.SimulateTransactionOpts) (*rpc.SimulateTransactionResponse, error)
	SendTransaction(ctx context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error)
	GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error)
}

// SelectRandomEndpoint picks one RPC URL from a configured pool.
func SelectRandomEndpoint(endpoints []string) (string, error) {
	if len(endpoints) == 0 {
		return "", errors.New("no RPC endpoints configured")
	}
	return endpoints[rand.IntN(len(endpoints))], nil
}

// EndpointLabel extracts a short identifier from an RPC URL for metrics
// labeling, so API keys in the URL never reach a label.
// Examples:
//   - "https://api.mainnet-beta.solana.com" -> "mainnet"
//   - "https://api.devnet.solana.com" -> "devnet"
//   - "https://mainnet.helius-rpc.com/?api-key=..." -> "helius"
func EndpointLabel(rpcURL string) string {
	parsed, err := url.Parse(rpcURL)
	if err != nil {
		return "unknown"
	}
	host := parsed.Hostname()

	// Common RPC providers first; their hosts often also say "mainnet".
	for _, provider := range []string{"helius", "quiknode", "alchemy", "triton", "rpcpool"} {
		if strings.Contains(host, provider) {
			return provider
		}
	}
	if strings.Contains(host, "quicknode") {
		return "quiknode"
	}

	switch {
	case strings.Contains(host, "mainnet"):
		return "mainnet"
	case strings.Contains(host, "devnet"):
		return "devnet"
	case strings.Contains(host, "testnet"):
		return "testnet"
	case host == "localhost" || host == "127.0.0.1":
		return "localhost"
	}

	// Fallback to hostname
	return host
}

// realRPCClient adapts the solana-go RPC client to RPCClient and records a
// metric for every call.
type realRPCClient struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
	metrics    *metrics.Metrics
	endpoint   string // metrics label, e.g. "mainnet" or "devnet"
}

// NewRPCClient creates an RPCClient for rpcURL. For premium RPC endpoints
// that require API keys, include the key in the URL:
// - Helius: https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
// - QuickNode: https://YOUR-ENDPOINT.quiknode.pro/YOUR-KEY/
// If m is nil, no metrics are recorded.
func NewRPCClient(rpcURL, endpoint string, commitment rpc.CommitmentType, m *metrics.Metrics) RPCClient {
	return &realRPCClient{
		client:     rpc.New(rpcURL),
		commitment: commitment,
		metrics:    m,
		endpoint:   endpoint,
	}
}

func (r *realRPCClient) observe(method string, start time.Time, err error) {
	if r.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	r.metrics.RecordRPCCall(method, status, r.endpoint, time.Since(start).Seconds())
}

func (r *realRPCClient) GetAccountInfo(ctx context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	start := time.Now()
	out, err := r.client.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: r.commitment,
	})
	// A missing account is an empty result, not a failure.
	if errors.Is(err, rpc.ErrNotFound) {
		r.observe("GetAccountInfo", start, nil)
		return &rpc.GetAccountInfoResult{}, nil
	}
	r.observe("GetAccountInfo", start, err)
	return out, err
}

func (r *realRPCClient) GetLatestBlockhash(ctx context.Context) (*rpc.GetLatestBlockhashResult, error) {
	start := time.Now()
	out, err := r.client.GetLatestBlockhash(ctx, r.commitment)
	r.observe("GetLatestBlockhash", start, err)
	return out, err
}

func (r *realRPCClient) SimulateTransaction(
	ctx context.Context,
	tx *solana.Transaction,
	opts *rpc.SimulateTransactionOpts,
) (*rpc.SimulateTransactionResponse, error) {
	start := time.Now()
	out, err := r.client.SimulateTransactionWithOpts(ctx, tx, opts)
	r.observe("SimulateTransaction", start, err)
	return out, err
}

func (r *realRPCClient) SendTransaction(
	ctx context.Context,
	tx *solana.Transaction,
	opts rpc.TransactionOpts,
) (solana.Signature, error) {
	start := time.Now()
	sig, err := r.client.SendTransactionWithOpts(ctx, tx, opts)
	r.observe("SendTransaction", start, err)
	return sig, err
}

func (r *realRPCClient) GetSignatureStatuses(ctx context.Context, signatures ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	start := time.Now()
	out, err := r.client.GetSignatureStatuses(ctx, false, signatures...)
	r.observe("GetSignatureStatuses", start, err)
	return out, err
}
