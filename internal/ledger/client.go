package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vcanchor/pkg/platform/circuit"
	"vcanchor/pkg/platform/sentinel"
)

const tracerName = "vcanchor/internal/ledger"

// JSON-RPC methods exposed by the ledger gateway sidecar.
const (
	rpcSubmit     = "ledger_submit"
	rpcGetReceipt = "ledger_getReceipt"
	rpcCall       = "ledger_call"
)

var errPending = errors.New("receipt pending")

// Client talks JSON-RPC 2.0 to the ledger gateway sidecar that holds the
// contract binding and the signing wallet.
type Client struct {
	endpoint       string
	httpClient     *http.Client
	breaker        *circuit.Breaker
	logger         *slog.Logger
	tracer         trace.Tracer
	receiptTimeout time.Duration
	pollInterval   time.Duration
	readRetries    uint64
	nextID         atomic.Uint64
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) {
		cl.logger = logger
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) {
		cl.breaker = b
	}
}

// WithReceiptTimeout bounds how long SubmitAndWait polls for a receipt.
func WithReceiptTimeout(d time.Duration) Option {
	return func(cl *Client) {
		cl.receiptTimeout = d
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(cl *Client) {
		cl.pollInterval = d
	}
}

// WithReadRetries sets how many times a read-only Call is retried on transport errors.
func WithReadRetries(n uint64) Option {
	return func(cl *Client) {
		cl.readRetries = n
	}
}

// NewClient constructs a ledger client for the given JSON-RPC endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:       endpoint,
		httpClient:     &http.Client{Timeout: 15 * time.Second},
		breaker:        circuit.New("ledger"),
		logger:         slog.Default(),
		tracer:         otel.Tracer(tracerName),
		receiptTimeout: 2 * time.Minute,
		pollInterval:   500 * time.Millisecond,
		readRetries:    2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type submitResult struct {
	TxHash string `json:"txHash"`
}

// SubmitAndWait submits method(args...) and polls for its receipt. Submission
// is never retried; a transaction that reverts is reported as ErrReverted with
// its hash.
func (c *Client) SubmitAndWait(ctx context.Context, method string, args ...any) (receipt *Receipt, err error) {
	ctx, span := c.tracer.Start(ctx, "ledger.submit", trace.WithAttributes(attribute.String("ledger.method", method)))
	start := time.Now()
	defer func() {
		observe(method, "submit", start, err)
		endSpan(span, err)
	}()

	var submitted submitResult
	if err := c.rpc(ctx, rpcSubmit, []any{method, args}, &submitted); err != nil {
		return nil, &Error{Method: method, Err: err}
	}
	if submitted.TxHash == "" {
		return nil, &Error{Method: method, Err: errors.New("gateway returned no transaction hash")}
	}
	span.SetAttributes(attribute.String("ledger.tx_hash", submitted.TxHash))

	receipt, err = c.waitForReceipt(ctx, submitted.TxHash)
	if err != nil {
		return nil, &Error{Method: method, TxHash: submitted.TxHash, Err: err}
	}
	if receipt.Status != StatusSuccess {
		return receipt, &Error{Method: method, TxHash: submitted.TxHash, Err: ErrReverted}
	}
	c.logger.DebugContext(ctx, "ledger transaction confirmed",
		"method", method,
		"tx_hash", receipt.TxHash,
		"block_number", receipt.BlockNumber,
	)
	return receipt, nil
}

func (c *Client) waitForReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.pollInterval
	policy.MaxInterval = 5 * c.pollInterval
	policy.MaxElapsedTime = c.receiptTimeout

	var receipt *Receipt
	op := func() error {
		var r *Receipt
		if err := c.rpc(ctx, rpcGetReceipt, []any{txHash}, &r); err != nil {
			if errors.Is(err, sentinel.ErrUnavailable) {
				return err
			}
			return backoff.Permanent(err)
		}
		if r == nil {
			return errPending
		}
		if r.TxHash == "" {
			r.TxHash = txHash
		}
		receipt = r
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		if errors.Is(err, errPending) {
			return nil, ErrReceiptTimeout
		}
		return nil, err
	}
	return receipt, nil
}

// Call performs a read-only contract call, retrying transport failures.
func (c *Client) Call(ctx context.Context, method string, args ...any) (result json.RawMessage, err error) {
	ctx, span := c.tracer.Start(ctx, "ledger.call", trace.WithAttributes(attribute.String("ledger.method", method)))
	start := time.Now()
	defer func() {
		observe(method, "call", start, err)
		endSpan(span, err)
	}()

	op := func() error {
		var raw json.RawMessage
		if err := c.rpc(ctx, rpcCall, []any{method, args}, &raw); err != nil {
			if errors.Is(err, sentinel.ErrUnavailable) {
				return err
			}
			return backoff.Permanent(err)
		}
		result = raw
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.readRetries)
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, &Error{Method: method, Err: err}
	}
	return result, nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// RPCError is an application-level error returned by the gateway, e.g. a
// contract revert during gas estimation or an unknown DID.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// CodeNotFound is returned by the gateway when a queried record does not exist.
const CodeNotFound = -32004

// rpc performs one JSON-RPC round trip. Transport failures are wrapped with
// sentinel.ErrUnavailable and counted by the breaker.
func (c *Client) rpc(ctx context.Context, method string, params []any, out any) error {
	if !c.breaker.Allow() {
		return fmt.Errorf("circuit %s open: %w", c.breaker.Name(), sentinel.ErrUnavailable)
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.recordFailure(ctx, err)
		return fmt.Errorf("%s: %v: %w", method, err, sentinel.ErrUnavailable)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		err := fmt.Errorf("%s: gateway status %d: %w", method, resp.StatusCode, sentinel.ErrUnavailable)
		c.recordFailure(ctx, err)
		return err
	}
	c.breaker.RecordSuccess()

	var decoded rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if decoded.Error != nil {
		if decoded.Error.Code == CodeNotFound {
			return fmt.Errorf("%w: %w", sentinel.ErrNotFound, decoded.Error)
		}
		return decoded.Error
	}
	if out == nil || len(decoded.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

func (c *Client) recordFailure(ctx context.Context, err error) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "ledger circuit opened", "error", err)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
