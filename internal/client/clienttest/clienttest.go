// Package clienttest runs in-process indexer and full-node servers for tests.
package clienttest

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"sync"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// FullNodeServiceName mirrors client.FullNodeServiceName; it is duplicated to keep this
// package free of the client package.
const FullNodeServiceName = "tonvote.fullnode.v1.FullNode"

// Tx is a contract transaction as both fakes serve it.
type Tx struct {
	Lt      uint64
	Hash    string
	Utime   int64
	Source  string
	Comment string
}

// Chain is the shared state behind both fakes.
type Chain struct {
	mu           sync.Mutex
	transactions map[string][]Tx
	tonBalances  map[string]float64
	jettons      map[string]float64
	nfts         map[string]float64
}

func NewChain() *Chain {
	return &Chain{
		transactions: map[string][]Tx{},
		tonBalances:  map[string]float64{},
		jettons:      map[string]float64{},
		nfts:         map[string]float64{},
	}
}

func (c *Chain) AddTransactions(contract string, txs ...Tx) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transactions[contract] = append(c.transactions[contract], txs...)
}

func (c *Chain) SetTonBalance(owner string, balance float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tonBalances[owner] = balance
}

func (c *Chain) SetJettonBalance(owner, jetton string, balance float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.jettons[owner+"/"+jetton] = balance
}

func (c *Chain) SetNftCount(owner, collection string, count float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nfts[owner+"/"+collection] = count
}

// newestFirst returns a copy of the contract history ordered by descending lt.
func (c *Chain) newestFirst(contract string) []Tx {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]Tx(nil), c.transactions[contract]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Lt > out[j].Lt })
	return out
}

// Indexer is a toncenter-v2 style HTTP server backed by a Chain.
type Indexer struct {
	Server *httptest.Server

	chain  *Chain
	mu     sync.Mutex
	apiKey string
	hidden map[string]bool
	fail   bool
	calls  int
}

func StartIndexer(t testing.TB, chain *Chain) *Indexer {
	t.Helper()
	idx := &Indexer{chain: chain, hidden: map[string]bool{}}
	idx.Server = httptest.NewServer(http.HandlerFunc(idx.serve))
	t.Cleanup(idx.Server.Close)
	return idx
}

func (i *Indexer) URL() string { return i.Server.URL }

// RequireApiKey rejects requests without the given X-API-Key header.
func (i *Indexer) RequireApiKey(key string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.apiKey = key
}

// Hide simulates indexer lag: the transaction is left out of responses.
func (i *Indexer) Hide(hash string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.hidden[hash] = true
}

// SetFail makes every request answer with a 500.
func (i *Indexer) SetFail(fail bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.fail = fail
}

func (i *Indexer) Calls() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.calls
}

type indexerTx struct {
	TransactionID struct {
		Lt   string `json:"lt"`
		Hash string `json:"hash"`
	} `json:"transaction_id"`
	Utime int64 `json:"utime"`
	InMsg struct {
		Source  string `json:"source"`
		Message string `json:"message"`
	} `json:"in_msg"`
}

func (i *Indexer) serve(w http.ResponseWriter, r *http.Request) {
	i.mu.Lock()
	i.calls++
	fail, apiKey := i.fail, i.apiKey
	hidden := make(map[string]bool, len(i.hidden))
	for k, v := range i.hidden {
		hidden[k] = v
	}
	i.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if fail {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"ok":false,"error":"internal error","code":500}`))
		return
	}
	if apiKey != "" && r.Header.Get("X-API-Key") != apiKey {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"ok":false,"error":"API key does not exist","code":401}`))
		return
	}
	if r.URL.Path != "/getTransactions" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	q := r.URL.Query()
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}

	var visible []Tx
	for _, tx := range i.chain.newestFirst(q.Get("address")) {
		if !hidden[tx.Hash] {
			visible = append(visible, tx)
		}
	}

	start := 0
	if lt := q.Get("lt"); lt != "" {
		for idx, tx := range visible {
			if strconv.FormatUint(tx.Lt, 10) == lt && tx.Hash == q.Get("hash") {
				start = idx
				break
			}
		}
	}
	end := start + limit
	if end > len(visible) {
		end = len(visible)
	}

	page := make([]indexerTx, 0, end-start)
	for _, tx := range visible[start:end] {
		var out indexerTx
		out.TransactionID.Lt = strconv.FormatUint(tx.Lt, 10)
		out.TransactionID.Hash = tx.Hash
		out.Utime = tx.Utime
		out.InMsg.Source = tx.Source
		out.InMsg.Message = tx.Comment
		page = append(page, out)
	}
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"ok": true, "result": page})
}

// FullNode is an in-process gRPC full-node gateway backed by a Chain.
type FullNode struct {
	Endpoint string

	err      error
	chain    *Chain
	listener *bufconn.Listener
	mu       sync.Mutex
	calls    map[string]int
}

func StartFullNode(t testing.TB, chain *Chain) *FullNode {
	t.Helper()
	node := &FullNode{
		Endpoint: "passthrough:///bufnet",
		chain:    chain,
		listener: bufconn.Listen(1 << 20),
		calls:    map[string]int{},
	}
	srv := grpc.NewServer()
	srv.RegisterService(&fullNodeServiceDesc, node)
	go func() { _ = srv.Serve(node.listener) }()
	t.Cleanup(srv.Stop)
	return node
}

// DialOption routes client connections to the in-process listener.
func (n *FullNode) DialOption() grpc.DialOption {
	return grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return n.listener.DialContext(ctx)
	})
}

// SetErr makes every call fail with err until reset with nil.
func (n *FullNode) SetErr(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

func (n *FullNode) Calls(method string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[method]
}

var errUnknownMethod = errors.New("unknown method")

func (n *FullNode) handle(method string, in *structpb.Struct) (*structpb.Struct, error) {
	n.mu.Lock()
	n.calls[method]++
	failure := n.err
	n.mu.Unlock()
	if failure != nil {
		return nil, status.Error(codes.Unavailable, failure.Error())
	}

	fields := in.GetFields()
	switch method {
	case "GetTransactions":
		var list []interface{}
		for _, tx := range n.chain.newestFirst(fields["address"].GetStringValue()) {
			list = append(list, map[string]interface{}{
				"lt":      strconv.FormatUint(tx.Lt, 10),
				"hash":    tx.Hash,
				"utime":   float64(tx.Utime),
				"source":  tx.Source,
				"comment": tx.Comment,
			})
		}
		return structpb.NewStruct(map[string]interface{}{"transactions": list})
	case "GetAccountBalance":
		n.chain.mu.Lock()
		balance := n.chain.tonBalances[fields["address"].GetStringValue()]
		n.chain.mu.Unlock()
		return structpb.NewStruct(map[string]interface{}{"balance": strconv.FormatFloat(balance, 'f', -1, 64)})
	case "GetJettonBalance":
		n.chain.mu.Lock()
		balance := n.chain.jettons[fields["owner"].GetStringValue()+"/"+fields["jetton"].GetStringValue()]
		n.chain.mu.Unlock()
		return structpb.NewStruct(map[string]interface{}{"balance": strconv.FormatFloat(balance, 'f', -1, 64)})
	case "GetNftCount":
		n.chain.mu.Lock()
		count := n.chain.nfts[fields["owner"].GetStringValue()+"/"+fields["collection"].GetStringValue()]
		n.chain.mu.Unlock()
		return structpb.NewStruct(map[string]interface{}{"count": count})
	}
	return nil, status.Error(codes.Unimplemented, errUnknownMethod.Error())
}

func methodHandler(method string) grpc.MethodHandler {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, _ grpc.UnaryServerInterceptor) (interface{}, error) {
		in := &structpb.Struct{}
		if err := dec(in); err != nil {
			return nil, err
		}
		return srv.(*FullNode).handle(method, in)
	}
}

var fullNodeServiceDesc = grpc.ServiceDesc{
	ServiceName: FullNodeServiceName,
	HandlerType: (*interface{})(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetTransactions", Handler: methodHandler("GetTransactions")},
		{MethodName: "GetAccountBalance", Handler: methodHandler("GetAccountBalance")},
		{MethodName: "GetJettonBalance", Handler: methodHandler("GetJettonBalance")},
		{MethodName: "GetNftCount", Handler: methodHandler("GetNftCount")},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "tonvote/fullnode/v1/fullnode.proto",
}
