package engine

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/golang-jwt/jwt/v4"

	"github.com/eth2031/beacon/log"
	"github.com/eth2031/beacon/metrics"
)

// DefaultForkchoiceUpdatedTimeout is the default per-call deadline for
// engine_forkchoiceUpdatedV1 (spec.md §4.6).
const DefaultForkchoiceUpdatedTimeout = 650 * time.Millisecond

// DefaultCallTimeout is the default per-call deadline for newPayload and
// getPayload, which spec.md does not special-case like forkchoiceUpdated.
const DefaultCallTimeout = 2 * time.Second

// Config configures the execution-engine HTTP JSON-RPC client.
type Config struct {
	URL                     string
	JWTSecret               []byte // 32-byte shared secret, optional
	ForkchoiceUpdatedTimeout time.Duration
	CallTimeout             time.Duration
}

// DefaultConfig returns a Config with spec.md's default timeouts.
func DefaultConfig(url string) Config {
	return Config{
		URL:                      url,
		ForkchoiceUpdatedTimeout: DefaultForkchoiceUpdatedTimeout,
		CallTimeout:              DefaultCallTimeout,
	}
}

// jwtTransport attaches a freshly signed JWT bearer token to every request,
// as required by the Engine API's authenticated port.
type jwtTransport struct {
	secret []byte
	base   http.RoundTripper
}

func (t *jwtTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iat": time.Now().Unix(),
	})
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+signed)
	return t.base.RoundTrip(req)
}

// Client is the execution-engine JSON-RPC client. The underlying
// connection is established lazily before every call (ensureClient),
// matching spec.md §4.6's "connection is re-established lazily" contract.
type Client struct {
	cfg Config
	log *log.Logger

	metricNewPayloadCalls   *metrics.Counter
	metricFCUCalls          *metrics.Counter
	metricFCUTimeouts       *metrics.Counter
	metricRPCLatency        *metrics.Histogram

	mu     sync.Mutex
	client *rpc.Client
}

// New returns a Client for the given config.
func New(cfg Config, logger *log.Logger) *Client {
	if cfg.ForkchoiceUpdatedTimeout == 0 {
		cfg.ForkchoiceUpdatedTimeout = DefaultForkchoiceUpdatedTimeout
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	return &Client{
		cfg:                   cfg,
		log:                   logger.Module("engine"),
		metricNewPayloadCalls: metrics.NewCounter("engine_new_payload_calls"),
		metricFCUCalls:        metrics.NewCounter("engine_forkchoice_updated_calls"),
		metricFCUTimeouts:     metrics.NewCounter("engine_forkchoice_updated_timeouts"),
		metricRPCLatency:      metrics.NewHistogram("engine_rpc_latency_seconds"),
	}
}

// ensureClient lazily (re-)dials the execution engine's HTTP endpoint.
func (c *Client) ensureClient(ctx context.Context) (*rpc.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		return c.client, nil
	}

	httpClient := http.DefaultClient
	if len(c.cfg.JWTSecret) > 0 {
		httpClient = &http.Client{Transport: &jwtTransport{secret: c.cfg.JWTSecret, base: http.DefaultTransport}}
	}

	rpcClient, err := rpc.DialHTTPWithClient(c.cfg.URL, httpClient)
	if err != nil {
		return nil, err
	}
	c.client = rpcClient
	return rpcClient, nil
}

// NewPayload submits an execution payload for validation.
func (c *Client) NewPayload(ctx context.Context, payload *ExecutionPayloadV1) (*PayloadStatusV1, error) {
	c.metricNewPayloadCalls.Inc()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	start := time.Now()
	defer func() { c.metricRPCLatency.Observe(time.Since(start).Seconds()) }()

	rpcClient, err := c.ensureClient(ctx)
	if err != nil {
		return nil, ErrTransport
	}

	var result PayloadStatusV1
	if err := rpcClient.CallContext(ctx, &result, "engine_newPayloadV1", payload); err != nil {
		c.log.Warn("newPayload transport error", "error", err)
		return nil, ErrTransport
	}
	return &result, nil
}

// ForkchoiceUpdated issues forkchoiceUpdated with a bounded timeout; a
// timeout produces a synthetic "syncing" status and is non-fatal, per
// spec.md §4.6.
func (c *Client) ForkchoiceUpdated(ctx context.Context, state ForkchoiceStateV1, attrs *PayloadAttributesV1) (*ForkchoiceUpdatedResult, error) {
	c.metricFCUCalls.Inc()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ForkchoiceUpdatedTimeout)
	defer cancel()

	start := time.Now()
	defer func() { c.metricRPCLatency.Observe(time.Since(start).Seconds()) }()

	rpcClient, err := c.ensureClient(ctx)
	if err != nil {
		return syncingForkchoiceResult(), nil
	}

	var result ForkchoiceUpdatedResult
	if err := rpcClient.CallContext(ctx, &result, "engine_forkchoiceUpdatedV1", state, attrs); err != nil {
		if ctx.Err() != nil {
			c.metricFCUTimeouts.Inc()
			c.log.Debug("forkchoiceUpdated timed out, treating as syncing")
			return syncingForkchoiceResult(), nil
		}
		c.log.Warn("forkchoiceUpdated transport error", "error", err)
		return syncingForkchoiceResult(), nil
	}
	return &result, nil
}

func syncingForkchoiceResult() *ForkchoiceUpdatedResult {
	return &ForkchoiceUpdatedResult{PayloadStatus: PayloadStatusV1{Status: StatusSyncing}}
}

// GetPayload retrieves a previously requested built payload by id.
func (c *Client) GetPayload(ctx context.Context, id PayloadID) (*ExecutionPayloadV1, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()

	rpcClient, err := c.ensureClient(ctx)
	if err != nil {
		return nil, ErrTransport
	}

	var result ExecutionPayloadV1
	if err := rpcClient.CallContext(ctx, &result, "engine_getPayloadV1", id); err != nil {
		c.log.Warn("getPayload transport error", "error", err)
		return nil, ErrTransport
	}
	return &result, nil
}

// Close tears down the underlying RPC connection, if any.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.client != nil {
		c.client.Close()
		c.client = nil
	}
}
