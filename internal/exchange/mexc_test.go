package exchange_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/Mastero4ek/bull-diary-sub002/internal/exchange"
)

func mexcPositionRow(id int64) map[string]any {
	return map[string]any{
		"positionId":         id,
		"symbol":             "BTC_USDT",
		"positionType":       2, // short
		"holdVol":            1.5,
		"openAvgPrice":       60000.0,
		"closeAvgPrice":      59000.0,
		"realised":           1500.0,
		"positionCommission": 0.75,
		"createTime":         int64(1709290000000),
		"updateTime":         int64(1709293600000),
	}
}

func writeMexcOrdersPage(w http.ResponseWriter, count int, firstID int64) {
	rows := make([]map[string]any, count)
	for i := range rows {
		rows[i] = mexcPositionRow(firstID + int64(i))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"success": true,
		"code":    0,
		"data":    rows,
	})
}

func TestMexcFullPageContinuesShortPageStops(t *testing.T) {
	var gotPages []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/private/position/list/history_positions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		page := r.URL.Query().Get("page_num")
		gotPages = append(gotPages, page)

		// Page 1 is full (50 rows), page 2 is short.
		if page == "1" {
			writeMexcOrdersPage(w, 50, 1)
			return
		}
		writeMexcOrdersPage(w, 3, 51)
	}))
	defer server.Close()

	adapter := exchange.NewMexcAdapter(server.URL, exchange.RetryPolicy{MaxAttempts: 1}, nil)

	first, err := adapter.FetchOrders(context.Background(), testCreds(), testWindow(), "")
	if err != nil {
		t.Fatalf("first page failed: %v", err)
	}
	if len(first.Orders) != 50 || first.NextCursor != "2" {
		t.Fatalf("unexpected first page: %d orders, cursor %q", len(first.Orders), first.NextCursor)
	}

	second, err := adapter.FetchOrders(context.Background(), testCreds(), testWindow(), first.NextCursor)
	if err != nil {
		t.Fatalf("second page failed: %v", err)
	}
	if len(second.Orders) != 3 || second.NextCursor != "" {
		t.Fatalf("unexpected second page: %d orders, cursor %q", len(second.Orders), second.NextCursor)
	}

	if len(gotPages) != 2 || gotPages[0] != "1" || gotPages[1] != "2" {
		t.Errorf("server saw pages %v", gotPages)
	}
}

func TestMexcSignsRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, header := range []string{"ApiKey", "Request-Time", "Signature"} {
			if r.Header.Get(header) == "" {
				t.Errorf("missing header %s", header)
			}
		}
		writeMexcOrdersPage(w, 0, 1)
	}))
	defer server.Close()

	adapter := exchange.NewMexcAdapter(server.URL, exchange.RetryPolicy{MaxAttempts: 1}, nil)
	if _, err := adapter.FetchOrders(context.Background(), testCreds(), testWindow(), ""); err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
}

func TestMexcEnvelopeFailureIsPermanent(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success": false,
			"code":    602,
			"message": "signature verification failed",
		})
	}))
	defer server.Close()

	adapter := exchange.NewMexcAdapter(server.URL, exchange.RetryPolicy{MaxAttempts: 3}, nil)

	_, err := adapter.FetchOrders(context.Background(), testCreds(), testWindow(), "")
	if err == nil {
		t.Fatal("expected an error for a failed envelope")
	}
	if calls != 1 {
		t.Errorf("application-level rejection was retried %d times", calls)
	}
}

func TestMexcOrderNormalization(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeMexcOrdersPage(w, 1, 42)
	}))
	defer server.Close()

	adapter := exchange.NewMexcAdapter(server.URL, exchange.RetryPolicy{MaxAttempts: 1}, nil)
	page, err := adapter.FetchOrders(context.Background(), testCreds(), testWindow(), "")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}

	order := page.Orders[0]
	if order.OrderID != "42" {
		t.Errorf("order id: %q", order.OrderID)
	}
	// Position type 2 is a short.
	if order.Side != "sell" {
		t.Errorf("side: %q", order.Side)
	}
	if order.Fee.String() != "-0.75" {
		t.Errorf("fee must be an outflow, got %s", order.Fee)
	}
}

func TestMexcTransferPagingUsesTotalPage(t *testing.T) {
	writeTransfers := func(w http.ResponseWriter, current, total int, transferType string) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"code":    0,
			"data": map[string]any{
				"currentPage": current,
				"totalPage":   total,
				"resultList": []map[string]any{{
					"id":         int64(current),
					"currency":   "USDT",
					"amount":     250.0,
					"type":       transferType,
					"createTime": int64(1709290000000),
				}},
			},
		})
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/private/account/transfer_record" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		page, _ := strconv.Atoi(r.URL.Query().Get("page_num"))
		if page == 1 {
			writeTransfers(w, 1, 2, "IN")
			return
		}
		writeTransfers(w, 2, 2, "OUT")
	}))
	defer server.Close()

	adapter := exchange.NewMexcAdapter(server.URL, exchange.RetryPolicy{MaxAttempts: 1}, nil)

	first, err := adapter.FetchTransactions(context.Background(), testCreds(), testWindow(), "")
	if err != nil {
		t.Fatalf("first page failed: %v", err)
	}
	if first.NextCursor != "2" {
		t.Fatalf("expected a continuation while currentPage < totalPage, got %q", first.NextCursor)
	}
	if first.Transactions[0].Type != "TRANSFER_IN" || first.Transactions[0].Amount.String() != "250" {
		t.Errorf("inflow normalization: %+v", first.Transactions[0])
	}

	second, err := adapter.FetchTransactions(context.Background(), testCreds(), testWindow(), first.NextCursor)
	if err != nil {
		t.Fatalf("second page failed: %v", err)
	}
	if second.NextCursor != "" {
		t.Errorf("expected end of stream on the last page, got %q", second.NextCursor)
	}
	if second.Transactions[0].Type != "TRANSFER_OUT" || second.Transactions[0].Amount.String() != "-250" {
		t.Errorf("outflow normalization: %+v", second.Transactions[0])
	}
}
