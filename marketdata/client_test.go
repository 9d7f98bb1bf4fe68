package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func testScanRequest() ScanRequest {
	var req ScanRequest
	req.Symbols.Tickers = []string{"BINANCE:BTCUSDT", "BINANCE:ETHUSDT"}
	req.Columns = []string{"close", "volume"}
	return req
}

func TestScanReshapesRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var got ScanRequest
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode forwarded request: %v", err)
		}
		if len(got.Symbols.Tickers) != 2 || len(got.Columns) != 2 {
			t.Errorf("request not forwarded verbatim: %+v", got)
		}
		_, _ = w.Write([]byte(`{"data":[
			{"s":"BINANCE:BTCUSDT","d":[97000.5, 12345.0]},
			{"s":"BINANCE:ETHUSDT","d":[3500.25, 67890.0]}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	rows, err := c.Scan(context.Background(), testScanRequest())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0].Symbol != "BINANCE:BTCUSDT" {
		t.Fatalf("row 0 symbol = %q", rows[0].Symbol)
	}
	if rows[0].Data["close"] != 97000.5 {
		t.Fatalf("row 0 close = %v", rows[0].Data["close"])
	}
	if rows[1].Data["volume"] != 67890.0 {
		t.Fatalf("row 1 volume = %v", rows[1].Data["volume"])
	}
}

func TestScanExtraValuesBeyondColumnsDropped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"s":"X","d":[1, 2, 3]}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	rows, err := c.Scan(context.Background(), testScanRequest())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(rows[0].Data) != 2 {
		t.Fatalf("row has %d values, want 2", len(rows[0].Data))
	}
}

func TestScanRejectsInvalidPayload(t *testing.T) {
	c := NewClient("http://scanner.invalid", nil)

	var noTickers ScanRequest
	noTickers.Columns = []string{"close"}
	if _, err := c.Scan(context.Background(), noTickers); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("missing tickers: err = %v", err)
	}

	var noColumns ScanRequest
	noColumns.Symbols.Tickers = []string{"X"}
	if _, err := c.Scan(context.Background(), noColumns); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("missing columns: err = %v", err)
	}
}

func TestScanUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, srv.Client())
	if _, err := c.Scan(context.Background(), testScanRequest()); err == nil {
		t.Fatal("expected upstream error")
	}
}
