package client

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/ton-vote/verifier/internal/models"
	"github.com/ton-vote/verifier/internal/utils"
)

const getTransactionsPath = "/getTransactions"

// IndexerClient talks to an indexer exposing the toncenter v2 HTTP API.
type IndexerClient struct {
	http     *resty.Client
	pageSize uint
}

func NewIndexerClient(endpoint, apiKey string, timeout time.Duration, pageSize uint) *IndexerClient {
	c := resty.New().
		SetBaseURL(endpoint).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		c.SetHeader("X-API-Key", apiKey)
	}
	return &IndexerClient{http: c, pageSize: pageSize}
}

type indexerTransaction struct {
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

type indexerResponse struct {
	Ok     bool                 `json:"ok"`
	Result []indexerTransaction `json:"result"`
	Error  string               `json:"error,omitempty"`
	Code   int                  `json:"code,omitempty"`
}

func (t indexerTransaction) toModel() (models.Transaction, error) {
	lt, err := utils.ParseLt(t.TransactionID.Lt)
	if err != nil {
		return models.Transaction{}, err
	}
	return models.Transaction{
		Lt:      lt,
		Hash:    t.TransactionID.Hash,
		Utime:   t.Utime,
		Source:  t.InMsg.Source,
		Payload: []byte(t.InMsg.Message),
	}, nil
}

// GetTransactions pages backwards through the contract history until a short page is
// returned. Transactions come back newest first. Pages after the first ask for one extra
// item since the indexer repeats the cursor transaction at their head.
func (c *IndexerClient) GetTransactions(ctx context.Context, address string) ([]models.Transaction, error) {
	var (
		all        []models.Transaction
		cursorLt   string
		cursorHash string
	)
	for {
		limit := c.pageSize
		if cursorLt != "" {
			limit++
		}
		var out indexerResponse
		req := c.http.R().
			SetContext(ctx).
			SetQueryParam("address", address).
			SetQueryParam("limit", strconv.FormatUint(uint64(limit), 10)).
			SetQueryParam("archival", "true").
			SetResult(&out).
			SetError(&out)
		if cursorLt != "" {
			req.SetQueryParam("lt", cursorLt).SetQueryParam("hash", cursorHash)
		}

		resp, err := req.Get(getTransactionsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to query indexer: %w", err)
		}
		if resp.IsError() || !out.Ok {
			return nil, fmt.Errorf("indexer returned status %d: %s", resp.StatusCode(), out.Error)
		}

		page := out.Result
		// The cursor transaction is repeated as the first item of the next page.
		if cursorLt != "" && len(page) > 0 &&
			page[0].TransactionID.Lt == cursorLt && page[0].TransactionID.Hash == cursorHash {
			page = page[1:]
		}
		for _, raw := range page {
			tx, err := raw.toModel()
			if err != nil {
				return nil, fmt.Errorf("failed to decode indexer transaction %s: %w", raw.TransactionID.Hash, err)
			}
			all = append(all, tx)
		}

		if len(page) == 0 || len(out.Result) < int(limit) {
			return all, nil
		}
		last := out.Result[len(out.Result)-1]
		cursorLt, cursorHash = last.TransactionID.Lt, last.TransactionID.Hash
	}
}
