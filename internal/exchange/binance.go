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

const binancePageLimit = 1000

// BinanceAdapter speaks the Binance USD-M futures API. Trades paginate
// by trade id: the cursor carries the id right after the last trade
// seen and continuation requests use fromId, so a full page of
// same-millisecond fills cannot be skipped. The income endpoint has no
// id parameter, so its cursor is the millisecond timestamp right after
// the last record and each page narrows the window's start to it.
type BinanceAdapter struct {
	client *resty.Client
	retry  RetryPolicy
	logger *slog.Logger
}

func NewBinanceAdapter(baseURL string, retry RetryPolicy, logger *slog.Logger) *BinanceAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &BinanceAdapter{
		client: newRestyClient(baseURL),
		retry:  retry,
		logger: logger,
	}
}

func (a *BinanceAdapter) Name() string { return "binance" }

type binanceTrade struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"orderId"`
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Price       string `json:"price"`
	Qty         string `json:"qty"`
	RealizedPnl string `json:"realizedPnl"`
	Commission  string `json:"commission"`
	Time        int64  `json:"time"`
}

type binanceIncome struct {
	TranID     int64  `json:"tranId"`
	Symbol     string `json:"symbol"`
	IncomeType string `json:"incomeType"`
	Income     string `json:"income"`
	Asset      string `json:"asset"`
	Time       int64  `json:"time"`
}

// FetchOrders pulls one page of account trades.
func (a *BinanceAdapter) FetchOrders(ctx context.Context, creds model.Credential, window model.TimeRange, cursor Cursor) (*OrderPage, error) {
	params := map[string]string{
		"limit": strconv.Itoa(binancePageLimit),
	}
	if cursor == "" {
		params["startTime"] = strconv.FormatInt(window.Start.UnixMilli(), 10)
		params["endTime"] = strconv.FormatInt(window.End.UnixMilli(), 10)
	} else {
		// fromId ignores the time filters; the window end is enforced below.
		params["fromId"] = string(cursor)
	}

	var trades []binanceTrade
	if err := a.get(ctx, creds, "/fapi/v1/userTrades", params, &trades); err != nil {
		return nil, err
	}

	page := &OrderPage{}
	endMillis := window.End.UnixMilli()
	var lastID int64
	pastEnd := false
	for _, t := range trades {
		if t.Time > endMillis {
			pastEnd = true
			continue
		}
		page.Orders = append(page.Orders, binanceOrder(t))
		if t.ID > lastID {
			lastID = t.ID
		}
	}
	if len(trades) == binancePageLimit && !pastEnd {
		page.NextCursor = Cursor(strconv.FormatInt(lastID+1, 10))
	}
	return page, nil
}

// FetchTransactions pulls one time bucket of income history.
func (a *BinanceAdapter) FetchTransactions(ctx context.Context, creds model.Credential, window model.TimeRange, cursor Cursor) (*TransactionPage, error) {
	start := bucketStart(window, cursor)
	params := map[string]string{
		"startTime": strconv.FormatInt(start, 10),
		"endTime":   strconv.FormatInt(window.End.UnixMilli(), 10),
		"limit":     strconv.Itoa(binancePageLimit),
	}

	var incomes []binanceIncome
	if err := a.get(ctx, creds, "/fapi/v1/income", params, &incomes); err != nil {
		return nil, err
	}

	page := &TransactionPage{}
	var lastTime int64
	for _, in := range incomes {
		page.Transactions = append(page.Transactions, binanceTransaction(in))
		if in.Time > lastTime {
			lastTime = in.Time
		}
	}
	if len(incomes) == binancePageLimit {
		page.NextCursor = Cursor(strconv.FormatInt(lastTime+1, 10))
	}
	return page, nil
}

// get performs one signed GET under the retry policy. Binance signs the
// query string itself and appends the signature as a parameter.
func (a *BinanceAdapter) get(ctx context.Context, creds model.Credential, path string, params map[string]string, out any) error {
	return a.retry.Do(ctx, func() error {
		params["timestamp"] = nowMillis()
		query := encodeQuery(params)
		query += "&signature=" + signHMAC(creds.APISecret, query)

		resp, err := a.client.R().
			SetContext(ctx).
			SetQueryString(query).
			SetHeader("X-MBX-APIKEY", creds.APIKey).
			SetResult(out).
			Get(path)
		if err != nil {
			return Transient(err)
		}
		// Binance signals bans with 418 alongside the usual 429.
		if resp.StatusCode() == 418 {
			return Transient(fmt.Errorf("http 418: %s", resp.String()))
		}
		return classifyResponse(resp)
	})
}

func binanceOrder(t binanceTrade) *model.Order {
	price := binanceDecimal(t.Price)
	return &model.Order{
		OrderID:    strconv.FormatInt(t.ID, 10),
		Symbol:     t.Symbol,
		Side:       normalizeSide(t.Side),
		Quantity:   binanceDecimal(t.Qty),
		EntryPrice: price,
		ClosePrice: price, // fills report a single execution price
		Pnl:        binanceDecimal(t.RealizedPnl),
		Fee:        binanceDecimal(t.Commission).Abs().Neg(),
		OpenTime:   time.UnixMilli(t.Time).UTC(),
		CloseTime:  time.UnixMilli(t.Time).UTC(),
	}
}

func binanceTransaction(in binanceIncome) *model.Transaction {
	symbol := in.Symbol
	if symbol == "" {
		symbol = in.Asset
	}
	return &model.Transaction{
		Type:            in.IncomeType,
		Symbol:          symbol,
		Amount:          binanceDecimal(in.Income), // already signed by the exchange
		Fee:             decimal.Zero,
		Balance:         decimal.Zero,
		TransactionTime: time.UnixMilli(in.Time).UTC(),
	}
}

func binanceDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// bucketStart picks the window start for the current bucket: the
// original window start on the first call, the cursor afterwards.
func bucketStart(window model.TimeRange, cursor Cursor) int64 {
	if cursor == "" {
		return window.Start.UnixMilli()
	}
	ms, err := strconv.ParseInt(string(cursor), 10, 64)
	if err != nil {
		return window.Start.UnixMilli()
	}
	return ms
}
