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

const mexcPageSize = 50

// MexcAdapter speaks the MEXC contract API. Pagination is a numeric
// page counter encoded into the cursor; a short page ends the stream.
type MexcAdapter struct {
	client *resty.Client
	retry  RetryPolicy
	logger *slog.Logger
}

func NewMexcAdapter(baseURL string, retry RetryPolicy, logger *slog.Logger) *MexcAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &MexcAdapter{
		client: newRestyClient(baseURL),
		retry:  retry,
		logger: logger,
	}
}

func (a *MexcAdapter) Name() string { return "mexc" }

type mexcPosition struct {
	PositionID         int64   `json:"positionId"`
	Symbol             string  `json:"symbol"`
	PositionType       int     `json:"positionType"` // 1 long, 2 short
	HoldVol            float64 `json:"holdVol"`
	OpenAvgPrice       float64 `json:"openAvgPrice"`
	CloseAvgPrice      float64 `json:"closeAvgPrice"`
	Realised           float64 `json:"realised"`
	PositionCommission float64 `json:"positionCommission"`
	CreateTime         int64   `json:"createTime"`
	UpdateTime         int64   `json:"updateTime"`
}

type mexcOrdersEnvelope struct {
	Success bool           `json:"success"`
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    []mexcPosition `json:"data"`
}

type mexcTransfer struct {
	ID         int64   `json:"id"`
	Currency   string  `json:"currency"`
	Amount     float64 `json:"amount"`
	Type       string  `json:"type"` // IN / OUT
	CreateTime int64   `json:"createTime"`
}

type mexcTransfersEnvelope struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		CurrentPage int            `json:"currentPage"`
		TotalPage   int            `json:"totalPage"`
		ResultList  []mexcTransfer `json:"resultList"`
	} `json:"data"`
}

// FetchOrders pulls one page of closed position history.
func (a *MexcAdapter) FetchOrders(ctx context.Context, creds model.Credential, window model.TimeRange, cursor Cursor) (*OrderPage, error) {
	pageNum := cursorPage(cursor)
	params := map[string]string{
		"page_num":   strconv.Itoa(pageNum),
		"page_size":  strconv.Itoa(mexcPageSize),
		"start_time": strconv.FormatInt(window.Start.UnixMilli(), 10),
		"end_time":   strconv.FormatInt(window.End.UnixMilli(), 10),
	}

	var env mexcOrdersEnvelope
	if err := a.get(ctx, creds, "/api/v1/private/position/list/history_positions", params, &env, func() (bool, int, string) {
		return env.Success, env.Code, env.Message
	}); err != nil {
		return nil, err
	}

	page := &OrderPage{}
	for _, p := range env.Data {
		page.Orders = append(page.Orders, mexcOrder(p))
	}
	// No page count on this endpoint: a full page means there may be more.
	if len(env.Data) == mexcPageSize {
		page.NextCursor = Cursor(strconv.Itoa(pageNum + 1))
	}
	return page, nil
}

// FetchTransactions pulls one page of the asset transfer record.
func (a *MexcAdapter) FetchTransactions(ctx context.Context, creds model.Credential, window model.TimeRange, cursor Cursor) (*TransactionPage, error) {
	pageNum := cursorPage(cursor)
	params := map[string]string{
		"page_num":   strconv.Itoa(pageNum),
		"page_size":  strconv.Itoa(mexcPageSize),
		"start_time": strconv.FormatInt(window.Start.UnixMilli(), 10),
		"end_time":   strconv.FormatInt(window.End.UnixMilli(), 10),
	}

	var env mexcTransfersEnvelope
	if err := a.get(ctx, creds, "/api/v1/private/account/transfer_record", params, &env, func() (bool, int, string) {
		return env.Success, env.Code, env.Message
	}); err != nil {
		return nil, err
	}

	page := &TransactionPage{}
	for _, t := range env.Data.ResultList {
		page.Transactions = append(page.Transactions, mexcTransaction(t))
	}
	if env.Data.CurrentPage < env.Data.TotalPage {
		page.NextCursor = Cursor(strconv.Itoa(pageNum + 1))
	}
	return page, nil
}

// get performs one signed GET under the retry policy. check reads the
// envelope's application-level status after decoding.
func (a *MexcAdapter) get(ctx context.Context, creds model.Credential, path string, params map[string]string, out any, check func() (bool, int, string)) error {
	return a.retry.Do(ctx, func() error {
		query := encodeQuery(params)
		timestamp := nowMillis()
		signature := signHMAC(creds.APISecret, creds.APIKey+timestamp+query)

		resp, err := a.client.R().
			SetContext(ctx).
			SetQueryString(query).
			SetHeader("ApiKey", creds.APIKey).
			SetHeader("Request-Time", timestamp).
			SetHeader("Signature", signature).
			SetResult(out).
			Get(path)
		if err != nil {
			return Transient(err)
		}
		if err := classifyResponse(resp); err != nil {
			return err
		}
		if ok, code, msg := check(); !ok {
			return fmt.Errorf("mexc error %d: %s", code, msg)
		}
		return nil
	})
}

func mexcOrder(p mexcPosition) *model.Order {
	return &model.Order{
		OrderID:    strconv.FormatInt(p.PositionID, 10),
		Symbol:     p.Symbol,
		Side:       normalizeSide(strconv.Itoa(p.PositionType)),
		Quantity:   decimal.NewFromFloat(p.HoldVol),
		EntryPrice: decimal.NewFromFloat(p.OpenAvgPrice),
		ClosePrice: decimal.NewFromFloat(p.CloseAvgPrice),
		Pnl:        decimal.NewFromFloat(p.Realised),
		Fee:        decimal.NewFromFloat(p.PositionCommission).Abs().Neg(),
		OpenTime:   time.UnixMilli(p.CreateTime).UTC(),
		CloseTime:  time.UnixMilli(p.UpdateTime).UTC(),
	}
}

func mexcTransaction(t mexcTransfer) *model.Transaction {
	amount := decimal.NewFromFloat(t.Amount)
	if t.Type == "OUT" {
		amount = amount.Abs().Neg()
	}
	return &model.Transaction{
		Type:            "TRANSFER_" + t.Type,
		Symbol:          t.Currency,
		Amount:          amount,
		Fee:             decimal.Zero,
		Balance:         decimal.Zero, // not reported by this endpoint
		TransactionTime: time.UnixMilli(t.CreateTime).UTC(),
	}
}

// cursorPage decodes a numeric page cursor, defaulting to the first page.
func cursorPage(cursor Cursor) int {
	if cursor == "" {
		return 1
	}
	n, err := strconv.Atoi(string(cursor))
	if err != nil || n < 1 {
		return 1
	}
	return n
}
