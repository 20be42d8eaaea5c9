package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ton-vote/verifier/internal/models"
	"github.com/ton-vote/verifier/internal/utils"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// FullNodeServiceName is the gRPC service exposed by the full-node gateway. Every method
// takes and returns a google.protobuf.Struct.
const FullNodeServiceName = "tonvote.fullnode.v1.FullNode"

const (
	getTransactionsMethod = "GetTransactions"
	tonBalanceMethod      = "GetAccountBalance"
	jettonBalanceMethod   = "GetJettonBalance"
	nftCountMethod        = "GetNftCount"
)

type FullNodeClient struct {
	conn    *grpc.ClientConn
	timeout time.Duration
}

// DialFullNode creates a client for endpoint. An https:// scheme or a :443 port selects TLS.
// Extra options are applied last and may override the transport credentials.
func DialFullNode(endpoint string, timeout time.Duration, opts ...grpc.DialOption) (*FullNodeClient, error) {
	target, creds := fullNodeTarget(endpoint)
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, opts...)
	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC client for %s: %w", endpoint, err)
	}
	return &FullNodeClient{conn: conn, timeout: timeout}, nil
}

func fullNodeTarget(endpoint string) (string, credentials.TransportCredentials) {
	switch {
	case strings.HasPrefix(endpoint, "https://"):
		return strings.TrimPrefix(endpoint, "https://"), credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	case strings.HasPrefix(endpoint, "http://"):
		return strings.TrimPrefix(endpoint, "http://"), insecure.NewCredentials()
	case strings.HasSuffix(endpoint, ":443"):
		return endpoint, credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	default:
		return endpoint, insecure.NewCredentials()
	}
}

func (c *FullNodeClient) Close() error {
	return c.conn.Close()
}

func (c *FullNodeClient) invoke(ctx context.Context, method string, params map[string]interface{}) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(params)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s request: %w", method, err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, "/"+FullNodeServiceName+"/"+method, in, out); err != nil {
		return nil, fmt.Errorf("full node %s failed: %w", method, err)
	}
	return out, nil
}

// GetTransactions returns the contract history as stored by the full node.
func (c *FullNodeClient) GetTransactions(ctx context.Context, address string) ([]models.Transaction, error) {
	resp, err := c.invoke(ctx, getTransactionsMethod, map[string]interface{}{"address": address})
	if err != nil {
		return nil, err
	}
	list, err := getNestedField(resp, "transactions")
	if err != nil {
		return nil, err
	}
	if list.GetListValue() == nil {
		return nil, fmt.Errorf("field 'transactions' is not a list")
	}

	values := list.GetListValue().GetValues()
	transactions := make([]models.Transaction, 0, len(values))
	for i, v := range values {
		raw := v.GetStructValue()
		if raw == nil {
			return nil, fmt.Errorf("transaction %d is not an object", i)
		}
		tx, err := decodeFullNodeTransaction(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decode transaction %d: %w", i, err)
		}
		transactions = append(transactions, tx)
	}
	return transactions, nil
}

func decodeFullNodeTransaction(raw *structpb.Struct) (models.Transaction, error) {
	fields := raw.GetFields()
	lt, err := utils.ParseLt(fields["lt"].GetStringValue())
	if err != nil {
		return models.Transaction{}, err
	}
	return models.Transaction{
		Lt:      lt,
		Hash:    fields["hash"].GetStringValue(),
		Utime:   int64(fields["utime"].GetNumberValue()),
		Source:  fields["source"].GetStringValue(),
		Payload: []byte(fields["comment"].GetStringValue()),
	}, nil
}

func (c *FullNodeClient) TonBalance(ctx context.Context, owner string, atUtime int64) (float64, error) {
	resp, err := c.invoke(ctx, tonBalanceMethod, map[string]interface{}{
		"address":  owner,
		"at_utime": float64(atUtime),
	})
	if err != nil {
		return 0, err
	}
	return numberField(resp, "balance")
}

func (c *FullNodeClient) JettonBalance(ctx context.Context, owner, jetton string, atUtime int64) (float64, error) {
	resp, err := c.invoke(ctx, jettonBalanceMethod, map[string]interface{}{
		"owner":    owner,
		"jetton":   jetton,
		"at_utime": float64(atUtime),
	})
	if err != nil {
		return 0, err
	}
	return numberField(resp, "balance")
}

func (c *FullNodeClient) NftCount(ctx context.Context, owner, collection string, atUtime int64) (float64, error) {
	resp, err := c.invoke(ctx, nftCountMethod, map[string]interface{}{
		"owner":      owner,
		"collection": collection,
		"at_utime":   float64(atUtime),
	})
	if err != nil {
		return 0, err
	}
	return numberField(resp, "count")
}

// getNestedField walks a dotted path ("account.balance") through nested structs.
func getNestedField(msg *structpb.Struct, fieldPath string) (*structpb.Value, error) {
	parts := strings.Split(fieldPath, ".")
	current := msg
	for i, part := range parts {
		value, ok := current.GetFields()[part]
		if !ok {
			return nil, fmt.Errorf("field '%s' not found", part)
		}
		if i == len(parts)-1 {
			return value, nil
		}
		next := value.GetStructValue()
		if next == nil {
			return nil, fmt.Errorf("field '%s' is not a message", part)
		}
		current = next
	}
	return nil, fmt.Errorf("empty field path")
}

// numberField accepts both JSON numbers and decimal strings, balances being served as strings.
func numberField(msg *structpb.Struct, fieldPath string) (float64, error) {
	value, err := getNestedField(msg, fieldPath)
	if err != nil {
		return 0, err
	}
	switch kind := value.GetKind().(type) {
	case *structpb.Value_NumberValue:
		return kind.NumberValue, nil
	case *structpb.Value_StringValue:
		f, err := strconv.ParseFloat(kind.StringValue, 64)
		if err != nil {
			return 0, fmt.Errorf("field '%s' is not numeric: %w", fieldPath, err)
		}
		return f, nil
	case *structpb.Value_NullValue:
		return 0, nil
	default:
		return 0, fmt.Errorf("field '%s' has unexpected type %T", fieldPath, kind)
	}
}
