package exchange_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/Mastero4ek/bull-diary-sub002/internal/exchange"
)

func binanceTradeRow(id int64, tsMillis int64) map[string]any {
	return map[string]any{
		"id":          id,
		"orderId":     id * 10,
		"symbol":      "BTCUSDT",
		"side":        "SELL",
		"price":       "61000",
		"qty":         "0.1",
		"realizedPnl": "25.5",
		"commission":  "0.02",
		"time":        tsMillis,
	}
}

func TestBinanceOrderPaginationByTradeID(t *testing.T) {
	window := testWindow()
	startMillis := window.Start.UnixMilli()

	// A full page whose trades all share one millisecond: an id cursor
	// must still reach the records beyond the page boundary.
	var gotQueries []map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/userTrades" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		q := r.URL.Query()
		gotQueries = append(gotQueries, map[string]string{
			"startTime": q.Get("startTime"),
			"fromId":    q.Get("fromId"),
		})

		w.Header().Set("Content-Type", "application/json")
		if q.Get("fromId") == "" {
			rows := make([]map[string]any, 1000)
			for i := range rows {
				rows[i] = binanceTradeRow(int64(i+1), startMillis)
			}
			json.NewEncoder(w).Encode(rows)
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{binanceTradeRow(1001, startMillis)})
	}))
	defer server.Close()

	adapter := exchange.NewBinanceAdapter(server.URL, exchange.RetryPolicy{MaxAttempts: 1}, nil)

	first, err := adapter.FetchOrders(context.Background(), testCreds(), window, "")
	if err != nil {
		t.Fatalf("first page failed: %v", err)
	}
	if len(first.Orders) != 1000 {
		t.Fatalf("expected 1000 orders, got %d", len(first.Orders))
	}
	if first.NextCursor != "1001" {
		t.Fatalf("cursor: got %q, want one past the last trade id", first.NextCursor)
	}

	second, err := adapter.FetchOrders(context.Background(), testCreds(), window, first.NextCursor)
	if err != nil {
		t.Fatalf("second page failed: %v", err)
	}
	if len(second.Orders) != 1 || second.NextCursor != "" {
		t.Fatalf("unexpected second page: %d orders, cursor %q", len(second.Orders), second.NextCursor)
	}
	if second.Orders[0].OrderID != "1001" {
		t.Errorf("same-millisecond trade beyond the page boundary was lost: got %q", second.Orders[0].OrderID)
	}

	// First request filters by time, the continuation switches to fromId.
	if gotQueries[0]["startTime"] != strconv.FormatInt(startMillis, 10) || gotQueries[0]["fromId"] != "" {
		t.Errorf("first request query: %v", gotQueries[0])
	}
	if gotQueries[1]["fromId"] != "1001" || gotQueries[1]["startTime"] != "" {
		t.Errorf("second request query: %v", gotQueries[1])
	}
}

func TestBinanceOrderContinuationStopsAtWindowEnd(t *testing.T) {
	window := testWindow()
	endMillis := window.End.UnixMilli()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// A full continuation page whose tail spills past the window.
		rows := make([]map[string]any, 1000)
		for i := range rows {
			ts := endMillis - 10 + int64(i)
			rows[i] = binanceTradeRow(int64(i+1), ts)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(rows)
	}))
	defer server.Close()

	adapter := exchange.NewBinanceAdapter(server.URL, exchange.RetryPolicy{MaxAttempts: 1}, nil)

	page, err := adapter.FetchOrders(context.Background(), testCreds(), window, "500")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	// 11 trades fall inside [end-10, end]; the rest are out of window.
	if len(page.Orders) != 11 {
		t.Errorf("expected 11 in-window orders, got %d", len(page.Orders))
	}
	if page.NextCursor != "" {
		t.Errorf("stream must end once the window end is reached, got cursor %q", page.NextCursor)
	}
}

func TestBinanceIncomeTimeBucketPagination(t *testing.T) {
	window := testWindow()
	startMillis := window.Start.UnixMilli()

	incomeRow := func(id, ts int64) map[string]any {
		return map[string]any{
			"tranId":     id,
			"symbol":     "BTCUSDT",
			"incomeType": "REALIZED_PNL",
			"income":     "1.0",
			"asset":      "USDT",
			"time":       ts,
		}
	}

	var lastTime int64
	var gotStarts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/income" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotStarts = append(gotStarts, r.URL.Query().Get("startTime"))

		w.Header().Set("Content-Type", "application/json")
		if len(gotStarts) == 1 {
			rows := make([]map[string]any, 1000)
			for i := range rows {
				ts := startMillis + int64(i)*1000
				rows[i] = incomeRow(int64(i+1), ts)
				lastTime = ts
			}
			json.NewEncoder(w).Encode(rows)
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{incomeRow(2000, lastTime+5000)})
	}))
	defer server.Close()

	adapter := exchange.NewBinanceAdapter(server.URL, exchange.RetryPolicy{MaxAttempts: 1}, nil)

	first, err := adapter.FetchTransactions(context.Background(), testCreds(), window, "")
	if err != nil {
		t.Fatalf("first bucket failed: %v", err)
	}
	if len(first.Transactions) != 1000 {
		t.Fatalf("expected 1000 transactions, got %d", len(first.Transactions))
	}
	wantCursor := exchange.Cursor(strconv.FormatInt(lastTime+1, 10))
	if first.NextCursor != wantCursor {
		t.Fatalf("cursor: got %q, want %q", first.NextCursor, wantCursor)
	}

	second, err := adapter.FetchTransactions(context.Background(), testCreds(), window, first.NextCursor)
	if err != nil {
		t.Fatalf("second bucket failed: %v", err)
	}
	if len(second.Transactions) != 1 || second.NextCursor != "" {
		t.Fatalf("unexpected second bucket: %d transactions, cursor %q", len(second.Transactions), second.NextCursor)
	}

	// The second request must narrow the window start to the cursor.
	if gotStarts[1] != string(wantCursor) {
		t.Errorf("second startTime: got %s, want %s", gotStarts[1], wantCursor)
	}
}

func TestBinanceSignatureInQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("signature") == "" {
			t.Error("missing signature query parameter")
		}
		if q.Get("timestamp") == "" {
			t.Error("missing timestamp query parameter")
		}
		if got := r.Header.Get("X-MBX-APIKEY"); got != "test-key" {
			t.Errorf("api key header: %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{})
	}))
	defer server.Close()

	adapter := exchange.NewBinanceAdapter(server.URL, exchange.RetryPolicy{MaxAttempts: 1}, nil)
	if _, err := adapter.FetchOrders(context.Background(), testCreds(), testWindow(), ""); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
}

func TestBinanceTreats418AsTransient(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(418)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{binanceTradeRow(1, testWindow().Start.UnixMilli())})
	}))
	defer server.Close()

	policy := exchange.RetryPolicy{
		MaxAttempts: 2,
		Backoff:     func(int) time.Duration { return time.Millisecond },
	}
	adapter := exchange.NewBinanceAdapter(server.URL, policy, nil)

	page, err := adapter.FetchOrders(context.Background(), testCreds(), testWindow(), "")
	if err != nil {
		t.Fatalf("expected recovery after 418, got %v", err)
	}
	if len(page.Orders) != 1 {
		t.Errorf("expected 1 order, got %d", len(page.Orders))
	}
}

func TestBinanceIncomeNormalization(t *testing.T) {
	row := map[string]any{
		"tranId":     int64(77),
		"symbol":     "",
		"incomeType": "FUNDING_FEE",
		"income":     "-1.25",
		"asset":      "USDT",
		"time":       int64(1709290000000),
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/income" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{row})
	}))
	defer server.Close()

	adapter := exchange.NewBinanceAdapter(server.URL, exchange.RetryPolicy{MaxAttempts: 1}, nil)
	page, err := adapter.FetchTransactions(context.Background(), testCreds(), testWindow(), "")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	tx := page.Transactions[0]
	if tx.Type != "FUNDING_FEE" {
		t.Errorf("type: %q", tx.Type)
	}
	// The asset fills in when no symbol is reported.
	if tx.Symbol != "USDT" {
		t.Errorf("symbol: %q", tx.Symbol)
	}
	if tx.Amount.String() != "-1.25" {
		t.Errorf("amount must keep the exchange's sign, got %s", tx.Amount)
	}
}
