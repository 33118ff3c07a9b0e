package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"expensetracker/internal/codec"
	"expensetracker/internal/core"
	"expensetracker/internal/ledger"
	"expensetracker/internal/log"
	"expensetracker/internal/storage/memory"
)

type fakeLedger struct {
	result   core.RecordResult
	err      error
	expenses []core.Expense
	pingErr  error

	recorded []*codec.Object
	dates    []string
}

func (f *fakeLedger) Record(_ context.Context, expense *codec.Object) (core.RecordResult, error) {
	f.recorded = append(f.recorded, expense)
	return f.result, f.err
}

func (f *fakeLedger) ExpensesOn(_ context.Context, date string) ([]core.Expense, error) {
	f.dates = append(f.dates, date)
	return f.expenses, f.err
}

func (f *fakeLedger) Ping(context.Context) error { return f.pingErr }

func newTestServer(t *testing.T, l Ledger, opts Options) *Server {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = log.New(log.Config{Output: io.Discard})
	}
	srv := NewServer(":0", l, opts)
	t.Cleanup(func() { srv.Shutdown(context.Background()) })
	return srv
}

func do(srv *Server, method, target, contentType, accept, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthAndReady(t *testing.T) {
	fl := &fakeLedger{}
	srv := newTestServer(t, fl, Options{})

	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(srv, http.MethodGet, path, "", "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	fl.pingErr = core.ErrStorageUnavailable
	if rr := do(srv, http.MethodGet, "/readyz", "", "", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing storage status=%d", rr.Code)
	}
}

func TestCreateExpenseResponses(t *testing.T) {
	tests := []struct {
		name        string
		ledger      *fakeLedger
		contentType string
		body        string
		wantStatus  int
		wantType    string
		wantBody    string
	}{
		{
			name:        "recorded json",
			ledger:      &fakeLedger{result: core.Recorded{ExpenseID: 7}},
			contentType: "application/json",
			body:        `{"payee":"Store","amount":5.75,"date":"2024-03-01"}`,
			wantStatus:  http.StatusOK,
			wantType:    "application/json",
			wantBody:    `{"expense_id":7}`,
		},
		{
			name:        "recorded xml",
			ledger:      &fakeLedger{result: core.Recorded{ExpenseID: 3}},
			contentType: "text/xml; charset=utf-8",
			body:        "<h><s>payee</s><s>Store</s><s>amount</s><f>5.75</f><s>date</s><s>2024-03-01</s></h>",
			wantStatus:  http.StatusOK,
			wantType:    "text/xml",
			wantBody:    "<h>\n  <s>expense_id</s>\n  <i>3</i>\n</h>\n",
		},
		{
			name:        "rejected",
			ledger:      &fakeLedger{result: core.Rejected{Message: "Invalid expense: `payee` is required"}},
			contentType: "application/json",
			body:        `{"amount":1,"date":"2024-03-01"}`,
			wantStatus:  http.StatusUnprocessableEntity,
			wantType:    "application/json",
			wantBody:    "{\"error\":\"Invalid expense: `payee` is required\"}",
		},
		{
			name:        "malformed json",
			ledger:      &fakeLedger{},
			contentType: "application/json",
			body:        `{"payee":`,
			wantStatus:  http.StatusBadRequest,
			wantType:    "application/json",
			wantBody:    `{"error":"malformed request body"}`,
		},
		{
			name:        "malformed xml",
			ledger:      &fakeLedger{},
			contentType: "text/xml",
			body:        "<h><s>payee</s>",
			wantStatus:  http.StatusBadRequest,
			wantType:    "text/xml",
			wantBody:    "<h>\n  <s>error</s>\n  <s>malformed request body</s>\n</h>\n",
		},
		{
			name:        "top level sequence",
			ledger:      &fakeLedger{},
			contentType: "application/json",
			body:        `[1,2]`,
			wantStatus:  http.StatusBadRequest,
			wantType:    "application/json",
			wantBody:    `{"error":"malformed request body"}`,
		},
		{
			name:        "storage failure",
			ledger:      &fakeLedger{err: core.ErrStorageUnavailable},
			contentType: "application/json",
			body:        `{"payee":"Store","amount":1,"date":"2024-03-01"}`,
			wantStatus:  http.StatusInternalServerError,
			wantType:    "application/json",
			wantBody:    `{"error":"internal error"}`,
		},
		{
			name:        "unknown content type falls back to json",
			ledger:      &fakeLedger{result: core.Recorded{ExpenseID: 1}},
			contentType: "application/x-yaml",
			body:        `{"payee":"Store","amount":1,"date":"2024-03-01"}`,
			wantStatus:  http.StatusOK,
			wantType:    "application/json",
			wantBody:    `{"expense_id":1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.ledger, Options{})
			rr := do(srv, http.MethodPost, "/expenses", tt.contentType, "text/xml", tt.body)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %q)", rr.Code, tt.wantStatus, rr.Body.String())
			}
			if got := rr.Header().Get("Content-Type"); got != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", got, tt.wantType)
			}
			if rr.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", rr.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestCreateExpenseBodyTooLarge(t *testing.T) {
	fl := &fakeLedger{result: core.Recorded{ExpenseID: 1}}
	srv := newTestServer(t, fl, Options{})

	big := `{"payee":"` + strings.Repeat("x", maxBodyBytes) + `"}`
	rr := do(srv, http.MethodPost, "/expenses", "application/json", "", big)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rr.Code)
	}
	if len(fl.recorded) != 0 {
		t.Fatal("oversized body reached the ledger")
	}
}

func TestListExpensesNegotiation(t *testing.T) {
	fields := codec.NewObject().
		Set("payee", "Store").
		Set("amount", codec.Number("5.75")).
		Set("date", "2024-03-01")
	fl := &fakeLedger{expenses: []core.Expense{{ID: 1, Fields: fields}}}
	srv := newTestServer(t, fl, Options{})

	tests := []struct {
		accept   string
		wantType string
		wantBody string
	}{
		{"", "application/json", `[{"id":1,"payee":"Store","amount":5.75,"date":"2024-03-01"}]`},
		{"*/*", "application/json", `[{"id":1,"payee":"Store","amount":5.75,"date":"2024-03-01"}]`},
		{"text/xml, application/json", "text/xml", "<a>\n  <h>\n    <s>id</s>\n    <i>1</i>\n    <s>payee</s>\n    <s>Store</s>\n    <s>amount</s>\n    <f>5.75</f>\n    <s>date</s>\n    <s>2024-03-01</s>\n  </h>\n</a>\n"},
		{"application/json;q=0.1, text/xml", "application/json", `[{"id":1,"payee":"Store","amount":5.75,"date":"2024-03-01"}]`},
	}
	for _, tt := range tests {
		rr := do(srv, http.MethodGet, "/expenses/2024-03-01", "", tt.accept, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("Accept %q: status %d", tt.accept, rr.Code)
		}
		if got := rr.Header().Get("Content-Type"); got != tt.wantType {
			t.Errorf("Accept %q: Content-Type = %q, want %q", tt.accept, got, tt.wantType)
		}
		if rr.Body.String() != tt.wantBody {
			t.Errorf("Accept %q: body = %q, want %q", tt.accept, rr.Body.String(), tt.wantBody)
		}
	}
	if fl.dates[0] != "2024-03-01" {
		t.Fatalf("ledger queried for %q", fl.dates[0])
	}
}

func TestListExpensesEmpty(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{expenses: []core.Expense{}}, Options{})

	if rr := do(srv, http.MethodGet, "/expenses/1999-01-01", "", "application/json", ""); rr.Body.String() != "[]" {
		t.Fatalf("json body = %q, want []", rr.Body.String())
	}
	if rr := do(srv, http.MethodGet, "/expenses/1999-01-01", "", "text/xml", ""); rr.Body.String() != "<a/>\n" {
		t.Fatalf("xml body = %q, want <a/>", rr.Body.String())
	}
}

func TestListExpensesStorageFailure(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{err: errors.New("disk gone")}, Options{})

	rr := do(srv, http.MethodGet, "/expenses/2024-03-01", "", "", "")
	if rr.Code != http.StatusInternalServerError || rr.Body.String() != `{"error":"internal error"}` {
		t.Fatalf("got %d %q", rr.Code, rr.Body.String())
	}
}

func TestRoutingErrors(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{}, Options{})

	if rr := do(srv, http.MethodGet, "/nope", "", "", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown path status = %d", rr.Code)
	}
	if rr := do(srv, http.MethodDelete, "/expenses", "", "", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE /expenses status = %d", rr.Code)
	}
}

func TestRateLimitOnPost(t *testing.T) {
	fl := &fakeLedger{result: core.Recorded{ExpenseID: 1}}
	srv := newTestServer(t, fl, Options{RateLimitPerMinute: 2})

	body := `{"payee":"Store","amount":1,"date":"2024-03-01"}`
	for i := 0; i < 2; i++ {
		if rr := do(srv, http.MethodPost, "/expenses", "application/json", "", body); rr.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i+1, rr.Code)
		}
	}
	rr := do(srv, http.MethodPost, "/expenses", "application/json", "", body)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("Retry-After missing")
	}
	if rr.Body.String() != `{"error":"rate limit exceeded"}` {
		t.Fatalf("body = %q", rr.Body.String())
	}

	if rr := do(srv, http.MethodGet, "/expenses/2024-03-01", "", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("GET must not be rate limited, got %d", rr.Code)
	}
}

func TestResponseHeaders(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{expenses: []core.Expense{}}, Options{})

	rr := do(srv, http.MethodGet, "/expenses/2024-03-01", "", "", "")
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &fakeLedger{result: core.Recorded{ExpenseID: 1}}, Options{RateLimitPerMinute: 1})
	do(srv, http.MethodPost, "/expenses", "application/json", "", `{"payee":"a","amount":1,"date":"2024-03-01"}`)
	do(srv, http.MethodPost, "/expenses", "application/json", "", `{"payee":"a","amount":1,"date":"2024-03-01"}`)

	rr := do(srv, http.MethodGet, "/metrics", "", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	for _, name := range []string{
		"expenses_recorded_total",
		"expense_http_requests_total",
		"expense_rate_limit_clients 1",
		"expense_rate_limit_rejected_requests 1",
	} {
		if !strings.Contains(rr.Body.String(), name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

// TestRecordThenListThroughLedger drives the real ledger over the memory store.
func TestRecordThenListThroughLedger(t *testing.T) {
	l := ledger.New(memory.New(), ledger.WithDayCache(16, time.Minute))
	srv := newTestServer(t, l, Options{RateLimitPerMinute: 100})

	// Warm the day cache so the posts below must invalidate it.
	if rr := do(srv, http.MethodGet, "/expenses/2024-03-01", "", "", ""); rr.Body.String() != "[]" {
		t.Fatalf("initial GET body = %q", rr.Body.String())
	}

	posts := []struct {
		contentType string
		body        string
		want        string
	}{
		{"application/json", `{"payee":"Bakery","amount":3.5,"date":"2024-03-01","note":"bread"}`, `{"expense_id":1}`},
		{"text/xml", "<h><s>payee</s><s>Cafe</s><s>amount</s><i>2</i><s>date</s><s>2024-03-01</s></h>", "<h>\n  <s>expense_id</s>\n  <i>2</i>\n</h>\n"},
		{"application/json", `{"payee":"Cinema","amount":9,"date":"2024-03-02"}`, `{"expense_id":3}`},
	}
	for _, p := range posts {
		rr := do(srv, http.MethodPost, "/expenses", p.contentType, "", p.body)
		if rr.Code != http.StatusOK || rr.Body.String() != p.want {
			t.Fatalf("POST %s: %d %q, want %q", p.body, rr.Code, rr.Body.String(), p.want)
		}
	}

	if rr := do(srv, http.MethodPost, "/expenses", "application/json", "", `{"payee":"x","date":"2024-03-01"}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("missing amount status = %d", rr.Code)
	}

	rr := do(srv, http.MethodGet, "/expenses/2024-03-01", "", "application/json", "")
	want := `[{"id":1,"payee":"Bakery","amount":3.5,"date":"2024-03-01","note":"bread"},{"id":2,"payee":"Cafe","amount":2,"date":"2024-03-01"}]`
	if rr.Body.String() != want {
		t.Fatalf("GET body = %q, want %q", rr.Body.String(), want)
	}

	got, err := codec.Decode(bytes.Clone(rr.Body.Bytes()), codec.JSON)
	if err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if items, ok := got.([]codec.Value); !ok || len(items) != 2 {
		t.Fatalf("decoded %v", codec.Text(got))
	}
}

func TestListXMLAfterJSONOnlyValues(t *testing.T) {
	srv := newTestServer(t, ledger.New(memory.New()), Options{})

	rr := do(srv, http.MethodPost, "/expenses", "application/json", "", `{"payee":"x","amount":1e400,"date":"2017-06-10"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("POST: %d %q", rr.Code, rr.Body.String())
	}

	rr = do(srv, http.MethodGet, "/expenses/2017-06-10", "", "text/xml", "")
	want := "<a>\n  <h>\n    <s>id</s>\n    <i>1</i>\n    <s>payee</s>\n    <s>x</s>\n    <s>amount</s>\n    <f>1e400</f>\n    <s>date</s>\n    <s>2017-06-10</s>\n  </h>\n</a>\n"
	if rr.Code != http.StatusOK || rr.Body.String() != want {
		t.Fatalf("GET xml: %d %q", rr.Code, rr.Body.String())
	}

	rr = do(srv, http.MethodPost, "/expenses", "text/xml", "", "<h><s>payee</s><s>y</s><s>amount</s><f>1e400</f><s>date</s><s>2017-06-10</s></h>")
	if rr.Code != http.StatusOK {
		t.Fatalf("POST xml echo: %d %q", rr.Code, rr.Body.String())
	}

	// A payee XML cannot carry is refused rather than altered.
	rr = do(srv, http.MethodPost, "/expenses", "application/json", "", `{"payee":"a\u0001b","amount":1,"date":"2017-06-11"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("POST control char: %d %q", rr.Code, rr.Body.String())
	}
	if rr = do(srv, http.MethodGet, "/expenses/2017-06-11", "", "application/json", ""); !strings.Contains(rr.Body.String(), `"payee":"a\u0001b"`) {
		t.Fatalf("GET json body = %q", rr.Body.String())
	}
	if rr = do(srv, http.MethodGet, "/expenses/2017-06-11", "", "text/xml", ""); rr.Code != http.StatusInternalServerError {
		t.Fatalf("GET xml status = %d, want 500", rr.Code)
	}
}

func TestStarbucksScenario(t *testing.T) {
	srv := newTestServer(t, ledger.New(memory.New()), Options{})

	rr := do(srv, http.MethodPost, "/expenses", "application/json", "", `{"payee":"Starbucks","amount":5.75,"date":"2017-06-10"}`)
	if rr.Code != http.StatusOK || rr.Body.String() != `{"expense_id":1}` {
		t.Fatalf("POST: %d %q", rr.Code, rr.Body.String())
	}

	rr = do(srv, http.MethodGet, "/expenses/2017-06-10", "", "", "")
	if !strings.Contains(rr.Body.String(), `"id":1`) || !strings.Contains(rr.Body.String(), `"payee":"Starbucks"`) {
		t.Fatalf("GET body = %q", rr.Body.String())
	}

	rr = do(srv, http.MethodPost, "/expenses", "application/json", "", `{"some":"data"}`)
	if rr.Code != http.StatusUnprocessableEntity || rr.Body.String() != "{\"error\":\"Invalid expense: `payee` is required\"}" {
		t.Fatalf("POST incomplete: %d %q", rr.Code, rr.Body.String())
	}

	rr = do(srv, http.MethodGet, "/expenses/2017-06-12", "", "", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "[]" {
		t.Fatalf("GET empty day: %d %q", rr.Code, rr.Body.String())
	}

	xmlBody := "<h>\n  <s>payee</s>\n  <s>Starbucks</s>\n  <s>amount</s>\n  <f>5.75</f>\n  <s>date</s>\n  <s>2017-06-10</s>\n</h>\n"
	rr = do(srv, http.MethodPost, "/expenses", "text/xml", "", xmlBody)
	if rr.Code != http.StatusOK || rr.Body.String() != "<h>\n  <s>expense_id</s>\n  <i>2</i>\n</h>\n" {
		t.Fatalf("POST xml: %d %q", rr.Code, rr.Body.String())
	}

	rr = do(srv, http.MethodPost, "/expenses", "text/xml", "", "<h>\n  <s>some</s>\n  <s>data</s>\n</h>\n")
	want := "<h>\n  <s>error</s>\n  <s>Invalid expense: `payee` is required</s>\n</h>\n"
	if rr.Code != http.StatusUnprocessableEntity || rr.Body.String() != want {
		t.Fatalf("POST xml incomplete: %d %q", rr.Code, rr.Body.String())
	}
}
