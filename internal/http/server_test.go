package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"ricorrenze/internal/core"
	"ricorrenze/internal/log"
	"ricorrenze/internal/services"
	"ricorrenze/internal/storage"
)

type failingKV struct{}

func (failingKV) Get(context.Context, string) ([]byte, error) { return nil, storage.ErrNotFound }
func (failingKV) Put(context.Context, string, []byte) error   { return errors.New("disk full") }

func newTestServer(t *testing.T, kv storage.KV) *Server {
	t.Helper()
	store := services.NewExpenseStore(kv, "", nil)
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	srv := NewServer(":0", store, log.New(log.Config{Output: io.Discard}))
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, srv *Server, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func mustMoney(t *testing.T, s string) core.Money {
	t.Helper()
	m, err := core.ParseAmount(s)
	if err != nil {
		t.Fatalf("ParseAmount(%q): %v", s, err)
	}
	return m
}

func createExpense(t *testing.T, srv *Server, form url.Values) expenseView {
	t.Helper()
	rr := do(t, srv, http.MethodPost, "/api/expenses", "application/x-www-form-urlencoded", form.Encode())
	if rr.Code != http.StatusOK {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	resp := decode[mutationResponse](t, rr)
	if resp.Expense == nil {
		t.Fatalf("create response without expense: %s", rr.Body.String())
	}
	return *resp.Expense
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryKV())
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := do(t, srv, http.MethodGet, path, "", "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestCreateAndGroupByMonth(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryKV())

	gym := createExpense(t, srv, url.Values{
		"name": {"gym"}, "amount": {"500"}, "first_date": {"2024-01-15"}, "end_date": {"2024-03-15"},
	})
	if !gym.Recurring || gym.Day != 15 {
		t.Errorf("gym view = %+v", gym)
	}
	createExpense(t, srv, url.Values{"name": {"rent"}, "amount": {"1000.50"}, "first_date": {"2024-02-01"}})

	rr := do(t, srv, http.MethodGet, "/api/months", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("months status=%d", rr.Code)
	}
	months := decode[[]monthView](t, rr)
	if len(months) != 3 {
		t.Fatalf("got %d months, want 3: %s", len(months), rr.Body.String())
	}
	feb := months[1]
	if feb.Month != "2024-02" || feb.Label != "2024年02月" {
		t.Errorf("feb = %s %s", feb.Month, feb.Label)
	}
	if len(feb.Expenses) != 2 || feb.Expenses[0].Name != "rent" || feb.Expenses[1].Name != "gym" {
		t.Errorf("feb expenses not ordered by day: %+v", feb.Expenses)
	}
	if !feb.Total.Equal(mustMoney(t, "1500.50")) {
		t.Errorf("feb total = %s", feb.Total)
	}

	rr = do(t, srv, http.MethodGet, "/api/months?from=2024-02&to=2024-02", "", "")
	if got := decode[[]monthView](t, rr); len(got) != 1 || got[0].Month != "2024-02" {
		t.Errorf("window = %s", rr.Body.String())
	}
}

func TestCreateFromJSON(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryKV())
	rr := do(t, srv, http.MethodPost, "/api/expenses", "application/json",
		`{"name":"phone","amount":29.9,"firstDate":"2024-05-31","endDate":null}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	resp := decode[mutationResponse](t, rr)
	if resp.Expense == nil || !resp.Expense.Amount.Equal(mustMoney(t, "29.9")) || resp.Expense.Recurring {
		t.Errorf("response = %s", rr.Body.String())
	}
	if resp.Message == "" {
		t.Error("expected a feedback message")
	}
}

func TestCreateValidation(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryKV())

	tests := []struct {
		name   string
		form   url.Values
		fields []string
	}{
		{"all missing", url.Values{}, []string{"name", "amount", "firstDate"}},
		{"bad amount", url.Values{"name": {"x"}, "amount": {"abc"}, "first_date": {"2024-01-01"}}, []string{"amount"}},
		{"negative amount", url.Values{"name": {"x"}, "amount": {"-5"}, "first_date": {"2024-01-01"}}, []string{"amount"}},
		{"bad dates", url.Values{"name": {"x"}, "amount": {"5"}, "first_date": {"2024-13-01"}, "end_date": {"soon"}}, []string{"firstDate", "endDate"}},
		{"blank name", url.Values{"name": {"   "}, "amount": {"5"}, "first_date": {"2024-01-01"}}, []string{"name"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodPost, "/api/expenses", "application/x-www-form-urlencoded", tt.form.Encode())
			if rr.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			resp := decode[errorResponse](t, rr)
			var got []string
			for _, f := range resp.Fields {
				got = append(got, f.Field)
			}
			if strings.Join(got, ",") != strings.Join(tt.fields, ",") {
				t.Errorf("fields = %v, want %v", got, tt.fields)
			}
		})
	}

	if n := len(srv.store.List()); n != 0 {
		t.Errorf("rejected input mutated the store: %d records", n)
	}
}

func TestMalformedBody(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryKV())
	rr := do(t, srv, http.MethodPost, "/api/expenses", "application/json", `{"name":`)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status=%d, want 400", rr.Code)
	}
}

func TestOversizedBodyRejected(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryKV())
	long := strings.Repeat("a", 70000)

	for _, body := range []string{
		"amount=1000&first_date=2024-01-15&name=" + long,
		"name=" + long + "&amount=1000&first_date=2024-01-15",
	} {
		rr := do(t, srv, http.MethodPost, "/api/expenses", "application/x-www-form-urlencoded", body)
		if rr.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status=%d, want 413: %s", rr.Code, rr.Body.String())
		}
	}
	if n := len(srv.store.List()); n != 0 {
		t.Errorf("oversized body created %d records", n)
	}
}

func TestEditFlow(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryKV())
	e := createExpense(t, srv, url.Values{
		"name": {"gym"}, "amount": {"500"}, "first_date": {"2024-01-10"}, "end_date": {"2024-04-10"},
	})
	id := strings.TrimSpace(jsonID(e.ID))

	rr := do(t, srv, http.MethodPost, "/api/expenses/hide?id="+id+"&month=2024-02", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("hide status=%d", rr.Code)
	}

	rr = do(t, srv, http.MethodPost, "/api/expenses/edit?id="+id, "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("begin edit status=%d", rr.Code)
	}
	if resp := decode[mutationResponse](t, rr); resp.Editing != e.ID || resp.Expense == nil || resp.Expense.Name != "gym" {
		t.Errorf("begin edit = %s", rr.Body.String())
	}

	form := url.Values{"name": {"gym plus"}, "amount": {"600"}, "first_date": {"2024-01-10"}, "end_date": {"2024-04-10"}}
	rr = do(t, srv, http.MethodPost, "/api/expenses?edit="+id, "application/x-www-form-urlencoded", form.Encode())
	if rr.Code != http.StatusOK {
		t.Fatalf("update status=%d body=%s", rr.Code, rr.Body.String())
	}
	updated := decode[mutationResponse](t, rr).Expense
	if updated == nil || updated.ID != e.ID || updated.Name != "gym plus" {
		t.Fatalf("updated = %+v", updated)
	}
	if len(updated.HiddenMonths) != 1 || updated.HiddenMonths[0] != "2024-02" {
		t.Errorf("hidden months lost on update: %v", updated.HiddenMonths)
	}

	if rr := do(t, srv, http.MethodPost, "/api/expenses/edit?id=42", "", ""); rr.Code != http.StatusNotFound {
		t.Errorf("begin edit unknown status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodPost, "/api/expenses?edit=42", "application/x-www-form-urlencoded", form.Encode()); rr.Code != http.StatusNotFound {
		t.Errorf("update unknown status=%d", rr.Code)
	}
}

func TestHideAndDelete(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryKV())
	e := createExpense(t, srv, url.Values{
		"name": {"gym"}, "amount": {"500"}, "first_date": {"2024-01-10"}, "end_date": {"2024-03-10"},
	})
	id := jsonID(e.ID)

	do(t, srv, http.MethodPost, "/api/expenses/hide?id="+id+"&month=2024-02", "", "")
	months := decode[[]monthView](t, do(t, srv, http.MethodGet, "/api/months", "", ""))
	if len(months) != 2 || months[0].Month != "2024-01" || months[1].Month != "2024-03" {
		t.Errorf("months after hide = %+v", months)
	}

	if rr := do(t, srv, http.MethodPost, "/api/expenses/hide?id="+id+"&month=02-2024", "", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad month status=%d", rr.Code)
	}

	rr := do(t, srv, http.MethodDelete, "/api/expenses?id="+id, "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("delete status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/expenses/item?id="+id, "", ""); rr.Code != http.StatusNotFound {
		t.Errorf("get deleted status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/api/expenses?id="+id, "", ""); rr.Code != http.StatusOK {
		t.Errorf("repeated delete status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodDelete, "/api/expenses?id=abc", "", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad id status=%d", rr.Code)
	}
}

func TestPersistenceFailureWarns(t *testing.T) {
	srv := newTestServer(t, failingKV{})
	form := url.Values{"name": {"gym"}, "amount": {"500"}, "first_date": {"2024-01-10"}}
	rr := do(t, srv, http.MethodPost, "/api/expenses", "application/x-www-form-urlencoded", form.Encode())
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	resp := decode[mutationResponse](t, rr)
	if resp.Warning == "" || resp.Expense == nil {
		t.Errorf("response = %s", rr.Body.String())
	}
	if n := len(srv.store.List()); n != 1 {
		t.Errorf("store has %d records, want the unsaved one", n)
	}
}

func TestCurrentMonth(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryKV())
	srv.now = func() time.Time { return time.Date(2024, 2, 12, 9, 0, 0, 0, time.UTC) }

	createExpense(t, srv, url.Values{"name": {"rent"}, "amount": {"1000"}, "first_date": {"2024-01-05"}, "end_date": {"2024-12-05"}})
	createExpense(t, srv, url.Values{"name": {"gym"}, "amount": {"50"}, "first_date": {"2024-01-20"}, "end_date": {"2024-12-20"}})

	cur := decode[monthView](t, do(t, srv, http.MethodGet, "/api/months/current", "", ""))
	if cur.Month != "2024-02" || len(cur.Expenses) != 2 {
		t.Fatalf("current = %+v", cur)
	}
	if cur.Expenses[0].Due == nil || !*cur.Expenses[0].Due {
		t.Errorf("rent should be due on the 12th")
	}
	if cur.Expenses[1].Due == nil || *cur.Expenses[1].Due {
		t.Errorf("gym should not be due yet")
	}

	srv.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	empty := decode[monthView](t, do(t, srv, http.MethodGet, "/api/months/current", "", ""))
	if empty.Month != "2030-01" || len(empty.Expenses) != 0 || !empty.Total.Equal(core.Money{}) {
		t.Errorf("empty current = %+v", empty)
	}
}

func TestMethodAndQueryErrors(t *testing.T) {
	srv := newTestServer(t, storage.NewMemoryKV())
	if rr := do(t, srv, http.MethodPut, "/api/expenses", "", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/expenses/hide?id=1&month=2024-01", "", ""); rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET hide status=%d", rr.Code)
	}
	if rr := do(t, srv, http.MethodGet, "/api/months?from=2024-1x", "", ""); rr.Code != http.StatusBadRequest {
		t.Errorf("bad from status=%d", rr.Code)
	}
	rr := do(t, srv, http.MethodGet, "/api/expenses", "", "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("empty list = %d %q", rr.Code, rr.Body.String())
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func jsonID(id int64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
