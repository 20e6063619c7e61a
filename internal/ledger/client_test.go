package ledger

//go:generate mockgen -source=gateway.go -destination=mocks/mocks.go -package=mocks Gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"vcanchor/pkg/platform/circuit"
	"vcanchor/pkg/platform/sentinel"
)

// fakeGateway is a scripted JSON-RPC ledger sidecar.
type fakeGateway struct {
	mu             sync.Mutex
	pendingPolls   int
	receiptStatus  uint64
	submitted      []string
	callResult     json.RawMessage
	callErr        *RPCError
	failStatus     int
	receiptQueries int
}

func (f *fakeGateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failStatus != 0 {
		w.WriteHeader(f.failStatus)
		return
	}
	var req struct {
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	resp := map[string]any{"jsonrpc": "2.0", "id": 1}
	switch req.Method {
	case rpcSubmit:
		var method string
		_ = json.Unmarshal(req.Params[0], &method)
		f.submitted = append(f.submitted, method)
		resp["result"] = map[string]string{"txHash": "0xabc"}
	case rpcGetReceipt:
		f.receiptQueries++
		if f.pendingPolls > 0 {
			f.pendingPolls--
			resp["result"] = nil
		} else {
			resp["result"] = Receipt{Status: f.receiptStatus, TxHash: "0xabc", BlockNumber: 42}
		}
	case rpcCall:
		if f.callErr != nil {
			resp["error"] = f.callErr
		} else {
			resp["result"] = f.callResult
		}
	}
	_ = json.NewEncoder(w).Encode(resp)
}

type ClientSuite struct {
	suite.Suite
	gateway *fakeGateway
	server  *httptest.Server
	client  *Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.gateway = &fakeGateway{receiptStatus: StatusSuccess}
	s.server = httptest.NewServer(s.gateway)
	s.client = NewClient(s.server.URL,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithPollInterval(time.Millisecond),
		WithReceiptTimeout(time.Second),
		WithBreaker(circuit.New("ledger-test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))),
	)
}

func (s *ClientSuite) TearDownTest() {
	s.server.Close()
}

func (s *ClientSuite) TestSubmitAndWait() {
	s.Run("waits for the receipt", func() {
		s.gateway.pendingPolls = 3
		receipt, err := s.client.SubmitAndWait(context.Background(), MethodIssueVC, "vc-1", "did:example:alice")
		s.Require().NoError(err)
		s.Equal("0xabc", receipt.TxHash)
		s.Equal(uint64(42), receipt.BlockNumber)
		s.Equal(4, s.gateway.receiptQueries)
		s.Equal([]string{MethodIssueVC}, s.gateway.submitted)
	})

	s.Run("reverted transaction carries its hash", func() {
		s.gateway.receiptStatus = 0
		_, err := s.client.SubmitAndWait(context.Background(), MethodRevokeVC, "vc-1")
		s.Require().Error(err)
		s.ErrorIs(err, ErrReverted)
		s.Equal("0xabc", TxHashOf(err))
	})
}

func (s *ClientSuite) TestSubmitAndWaitTimesOut() {
	s.gateway.pendingPolls = 1 << 30
	client := NewClient(s.server.URL,
		WithPollInterval(time.Millisecond),
		WithReceiptTimeout(20*time.Millisecond),
	)
	_, err := client.SubmitAndWait(context.Background(), MethodIssueVC, "vc-1")
	s.Require().Error(err)
	s.ErrorIs(err, ErrReceiptTimeout)
}

func (s *ClientSuite) TestCall() {
	s.Run("returns the raw result", func() {
		s.gateway.callResult = json.RawMessage(`{"publicKey":"0x04"}`)
		raw, err := s.client.Call(context.Background(), MethodGetDID, "did:example:alice")
		s.Require().NoError(err)
		s.JSONEq(`{"publicKey":"0x04"}`, string(raw))
	})

	s.Run("not found code maps to sentinel", func() {
		s.gateway.callErr = &RPCError{Code: CodeNotFound, Message: "unknown did"}
		_, err := s.client.Call(context.Background(), MethodGetDID, "did:example:nobody")
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.gateway.callErr = nil
	})

	s.Run("other rpc errors are not retried", func() {
		s.gateway.callErr = &RPCError{Code: -32000, Message: "execution reverted"}
		_, err := s.client.Call(context.Background(), MethodGetDID, "did:example:alice")
		var rpcErr *RPCError
		s.Require().True(errors.As(err, &rpcErr))
		s.Equal(-32000, rpcErr.Code)
		s.False(errors.Is(err, sentinel.ErrUnavailable))
		s.gateway.callErr = nil
	})
}

func (s *ClientSuite) TestBreakerOpensOnTransportFailures() {
	s.gateway.failStatus = http.StatusBadGateway
	client := NewClient(s.server.URL,
		WithReadRetries(0),
		WithBreaker(circuit.New("ledger-test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))),
	)

	for range 2 {
		_, err := client.Call(context.Background(), MethodGetDID, "did:example:alice")
		s.ErrorIs(err, sentinel.ErrUnavailable)
	}

	s.gateway.failStatus = 0
	_, err := client.Call(context.Background(), MethodGetDID, "did:example:alice")
	s.Require().Error(err)
	s.Contains(err.Error(), "circuit ledger-test open")
}
