package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/Mastero4ek/bull-diary-sub002/internal/domain/model"
)

const (
	bybitRecvWindow = "5000"
	bybitPageLimit  = "50"

	// Bybit API rate limit exceeded.
	bybitRetCodeRateLimit = 10006
)

// BybitAdapter speaks the Bybit v5 API. Pagination is a server-issued
// page token (nextPageCursor) passed through as the opaque cursor.
type BybitAdapter struct {
	client *resty.Client
	retry  RetryPolicy
	logger *slog.Logger
}

func NewBybitAdapter(baseURL string, retry RetryPolicy, logger *slog.Logger) *BybitAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BybitAdapter{
		client: newRestyClient(baseURL),
		retry:  retry,
		logger: logger,
	}
}

func (a *BybitAdapter) Name() string { return "bybit" }

type bybitEnvelope struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List           []map[string]string `json:"list"`
		NextPageCursor string              `json:"nextPageCursor"`
	} `json:"result"`
}

// FetchOrders pulls one page of closed-PnL records.
func (a *BybitAdapter) FetchOrders(ctx context.Context, creds model.Credential, window model.TimeRange, cursor Cursor) (*OrderPage, error) {
	params := map[string]string{
		"category":  "linear",
		"startTime": strconv.FormatInt(window.Start.UnixMilli(), 10),
		"endTime":   strconv.FormatInt(window.End.UnixMilli(), 10),
		"limit":     bybitPageLimit,
	}
	if cursor != "" {
		params["cursor"] = string(cursor)
	}

	env, err := a.get(ctx, creds, "/v5/position/closed-pnl", params)
	if err != nil {
		return nil, err
	}

	page := &OrderPage{NextCursor: Cursor(env.Result.NextPageCursor)}
	for _, raw := range env.Result.List {
		page.Orders = append(page.Orders, bybitOrder(raw))
	}
	return page, nil
}

// FetchTransactions pulls one page of the unified account transaction log.
func (a *BybitAdapter) FetchTransactions(ctx context.Context, creds model.Credential, window model.TimeRange, cursor Cursor) (*TransactionPage, error) {
	params := map[string]string{
		"accountType": "UNIFIED",
		"startTime":   strconv.FormatInt(window.Start.UnixMilli(), 10),
		"endTime":     strconv.FormatInt(window.End.UnixMilli(), 10),
		"limit":       bybitPageLimit,
	}
	if cursor != "" {
		params["cursor"] = string(cursor)
	}

	env, err := a.get(ctx, creds, "/v5/account/transaction-log", params)
	if err != nil {
		return nil, err
	}

	page := &TransactionPage{NextCursor: Cursor(env.Result.NextPageCursor)}
	for _, raw := range env.Result.List {
		page.Transactions = append(page.Transactions, bybitTransaction(raw))
	}
	return page, nil
}

// get performs one signed GET under the retry policy.
func (a *BybitAdapter) get(ctx context.Context, creds model.Credential, path string, params map[string]string) (*bybitEnvelope, error) {
	var env bybitEnvelope
	err := a.retry.Do(ctx, func() error {
		query := encodeQuery(params)
		timestamp := nowMillis()
		signature := signHMAC(creds.APISecret, timestamp+creds.APIKey+bybitRecvWindow+query)

		resp, err := a.client.R().
			SetContext(ctx).
			SetQueryString(query).
			SetHeader("X-BAPI-API-KEY", creds.APIKey).
			SetHeader("X-BAPI-TIMESTAMP", timestamp).
			SetHeader("X-BAPI-RECV-WINDOW", bybitRecvWindow).
			SetHeader("X-BAPI-SIGN", signature).
			SetResult(&env).
			Get(path)
		if err != nil {
			return Transient(err)
		}
		if err := classifyResponse(resp); err != nil {
			return err
		}
		if env.RetCode == bybitRetCodeRateLimit {
			return Transient(fmt.Errorf("bybit rate limit: %s", env.RetMsg))
		}
		if env.RetCode != 0 {
			return fmt.Errorf("bybit error %d: %s", env.RetCode, env.RetMsg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func bybitOrder(raw map[string]string) *model.Order {
	fee := bybitDecimal(raw["openFee"]).Add(bybitDecimal(raw["closeFee"]))
	return &model.Order{
		OrderID:    raw["orderId"],
		Symbol:     raw["symbol"],
		Side:       normalizeSide(raw["side"]),
		Quantity:   bybitDecimal(raw["qty"]),
		EntryPrice: bybitDecimal(raw["avgEntryPrice"]),
		ClosePrice: bybitDecimal(raw["avgExitPrice"]),
		Pnl:        bybitDecimal(raw["closedPnl"]),
		Fee:        fee.Abs().Neg(), // fees paid are a cash outflow
		OpenTime:   bybitTime(raw["createdTime"]),
		CloseTime:  bybitTime(raw["updatedTime"]),
	}
}

func bybitTransaction(raw map[string]string) *model.Transaction {
	return &model.Transaction{
		Type:            raw["type"],
		Symbol:          raw["symbol"],
		Amount:          bybitDecimal(raw["change"]), // already signed by the exchange
		Fee:             bybitDecimal(raw["fee"]).Abs().Neg(),
		Balance:         bybitDecimal(raw["cashBalance"]),
		TransactionTime: bybitTime(raw["transactionTime"]),
	}
}

func bybitDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func bybitTime(millis string) time.Time {
	ms, err := strconv.ParseInt(millis, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
