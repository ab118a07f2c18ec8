package exchange

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultRequestTimeout = 30 * time.Second

// newRestyClient builds the shared HTTP client used by every adapter.
// Retries are driven by the injected RetryPolicy, so resty's own retry
// loop stays off.
func newRestyClient(baseURL string) *resty.Client {
	return resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultRequestTimeout).
		SetHeader("Accept", "application/json")
}

// signHMAC returns the lowercase hex HMAC-SHA256 of payload.
func signHMAC(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// encodeQuery renders params as a canonical query string with sorted
// keys, the form most exchange signatures are computed over.
func encodeQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	v := url.Values{}
	for _, k := range keys {
		v.Set(k, params[k])
	}
	return v.Encode()
}

// classifyResponse turns a non-2xx response into an error, marking rate
// limits and server faults as transient so the retry policy absorbs them.
func classifyResponse(resp *resty.Response) error {
	code := resp.StatusCode()
	if code >= 200 && code < 300 {
		return nil
	}
	err := fmt.Errorf("http %d: %s", code, resp.String())
	if code == 429 || code >= 500 {
		return Transient(err)
	}
	return err
}

func nowMillis() string {
	return fmt.Sprintf("%d", time.Now().UnixMilli())
}

// normalizeSide maps venue-native side markers onto buy/sell.
func normalizeSide(side string) string {
	switch strings.ToLower(side) {
	case "buy", "1", "long":
		return "buy"
	case "sell", "2", "short":
		return "sell"
	default:
		return strings.ToLower(side)
	}
}
