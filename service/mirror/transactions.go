package mirror

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// tinybarsPerHbar converts fungible transfer amounts to display units.
const tinybarsPerHbar = 1e8

// TransactionsForAccount returns one page of the account's history, newest
// first. With a cursor the page it encodes is fetched; otherwise the first
// page. Every summary on the page is resolved concurrently into full records;
// a failed resolution contributes nothing rather than failing the page.
// When txType is non-empty only records of that type are returned.
func (c *Client) TransactionsForAccount(ctx context.Context, accountID, cursor, txType string) (*TransactionPage, error) {
	path := cursor
	if path == "" {
		path = "api/v1/transactions?account.id=" + url.QueryEscape(accountID)
	}

	var resp transactionsResponse
	if err := c.Get(ctx, path, &resp); err != nil {
		return nil, err
	}

	ids := uniqueTransactionIDs(resp.Transactions)
	if c.metrics != nil {
		c.metrics.RecordFanout(c.network, len(ids))
	}

	results := make([][]TransactionRecord, len(ids))
	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = c.transactionOrEmpty(ctx, id, accountID)
			return nil
		})
	}
	// Workers never return errors; failures are already mapped to empty results.
	_ = g.Wait()

	records := make([]TransactionRecord, 0, len(ids))
	for _, r := range results {
		for _, rec := range r {
			if txType != "" && rec.Type != txType {
				continue
			}
			records = append(records, rec)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Time.After(records[j].Time)
	})

	c.logger.DebugContext(ctx, "fetched transaction page",
		"account", accountID,
		"summaries", len(resp.Transactions),
		"records", len(records),
		"has_next", resp.Links.Next != nil,
	)

	return &TransactionPage{
		Transactions: records,
		NextPage:     nextCursor(resp.Links.Next),
	}, nil
}

// Transaction fetches every record sharing transactionID and normalizes them
// from the point of view of accountID.
func (c *Client) Transaction(ctx context.Context, transactionID, accountID string) ([]TransactionRecord, error) {
	var resp transactionsResponse
	if err := c.Get(ctx, "api/v1/transactions/"+url.PathEscape(transactionID), &resp); err != nil {
		return nil, err
	}
	records := make([]TransactionRecord, 0, len(resp.Transactions))
	for _, raw := range resp.Transactions {
		rec, err := normalizeTransaction(raw, accountID)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// transactionOrEmpty applies the per-transaction soft-fail policy.
func (c *Client) transactionOrEmpty(ctx context.Context, transactionID, accountID string) []TransactionRecord {
	records, err := c.Transaction(ctx, transactionID, accountID)
	if err != nil {
		c.logger.WarnContext(ctx, "transaction detail query failed, skipping",
			"transaction_id", transactionID,
			"error", err,
		)
		if c.metrics != nil {
			c.metrics.RecordSubqueryFailure(c.network)
		}
		return nil
	}
	return records
}

func normalizeTransaction(raw rawTransaction, accountID string) (TransactionRecord, error) {
	ts, err := parseTimestamp(raw.ConsensusTimestamp)
	if err != nil {
		return TransactionRecord{}, err
	}

	transfers := make([]Transfer, 0, len(raw.Transfers)+len(raw.TokenTransfers))
	for _, list := range [][]rawTransfer{raw.Transfers, raw.TokenTransfers} {
		for _, t := range list {
			if t.Account == accountID {
				continue
			}
			transfers = append(transfers, normalizeTransfer(t))
		}
	}

	nfts := raw.NFTTransfers
	if nfts == nil {
		nfts = []NFTTransfer{}
	}

	return TransactionRecord{
		Time:          ts,
		Transfers:     transfers,
		NFTTransfers:  nfts,
		Memo:          decodeMemo(raw.MemoBase64),
		TransactionID: raw.TransactionID,
		Fee:           raw.ChargedTxFee,
		Type:          raw.Name,
	}, nil
}

// normalizeTransfer rescales hbar amounts; token amounts stay in the token's
// smallest unit.
func normalizeTransfer(t rawTransfer) Transfer {
	amount := float64(t.Amount)
	if t.TokenID == "" {
		amount = toDisplayUnits(t.Amount)
	}
	return Transfer{Account: t.Account, Amount: amount, TokenID: t.TokenID}
}

func toDisplayUnits(tinybars int64) float64 {
	return float64(tinybars) / tinybarsPerHbar
}

// parseTimestamp parses "seconds.nanoseconds" consensus timestamps.
func parseTimestamp(s string) (time.Time, error) {
	secPart, nanoPart, _ := strings.Cut(s, ".")
	sec, err := strconv.ParseInt(secPart, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid consensus timestamp %q: %w", s, err)
	}
	var nsec int64
	if nanoPart != "" {
		nanoPart = (nanoPart + "000000000")[:9]
		nsec, err = strconv.ParseInt(nanoPart, 10, 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid consensus timestamp %q: %w", s, err)
		}
	}
	return time.Unix(sec, nsec).UTC(), nil
}

func decodeMemo(memoBase64 string) string {
	if memoBase64 == "" {
		return ""
	}
	b, err := base64.StdEncoding.DecodeString(memoBase64)
	if err != nil {
		return ""
	}
	return string(b)
}

func uniqueTransactionIDs(txs []rawTransaction) []string {
	seen := make(map[string]struct{}, len(txs))
	ids := make([]string, 0, len(txs))
	for _, tx := range txs {
		if _, ok := seen[tx.TransactionID]; ok {
			continue
		}
		seen[tx.TransactionID] = struct{}{}
		ids = append(ids, tx.TransactionID)
	}
	return ids
}

// nextCursor strips the leading separator from the mirror's pagination link.
func nextCursor(next *string) *string {
	if next == nil || *next == "" {
		return nil
	}
	cursor := strings.TrimPrefix(*next, "/")
	return &cursor
}
