package credit_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/petspeakapp/petspeak/internal/credit"
)

// creditAPI is a minimal in-process stand-in for the server's credit routes.
func creditAPI(t *testing.T, balances map[string]int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/credits/reserve", func(w http.ResponseWriter, r *http.Request) {
		uid := r.Header.Get("X-User-ID")
		ok := balances[uid] > 0
		if ok {
			balances[uid]--
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": ok, "remaining": balances[uid]})
	})
	mux.HandleFunc("POST /api/credits/refund", func(w http.ResponseWriter, r *http.Request) {
		uid := r.Header.Get("X-User-ID")
		if _, known := balances[uid]; !known {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		balances[uid]++
		json.NewEncoder(w).Encode(map[string]bool{"ok": true})
	})
	mux.HandleFunc("GET /api/credits", func(w http.ResponseWriter, r *http.Request) {
		uid := r.Header.Get("X-User-ID")
		remaining, known := balances[uid]
		if !known {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]int{"remaining": remaining})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestRemoteLedger_ReserveAndBalance(t *testing.T) {
	t.Parallel()
	srv := creditAPI(t, map[string]int{"u1": 2})

	ledger, err := credit.NewRemoteLedger(srv.URL)
	if err != nil {
		t.Fatalf("new remote ledger: %v", err)
	}
	ctx := context.Background()

	ok, err := ledger.ReserveOne(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("ReserveOne = %v, %v; want reserved", ok, err)
	}
	remaining, err := ledger.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if remaining != 1 {
		t.Errorf("remaining = %d, want 1", remaining)
	}
}

func TestRemoteLedger_DeniedWhenExhausted(t *testing.T) {
	t.Parallel()
	srv := creditAPI(t, map[string]int{"u1": 0})

	ledger, err := credit.NewRemoteLedger(srv.URL)
	if err != nil {
		t.Fatalf("new remote ledger: %v", err)
	}

	ok, err := ledger.ReserveOne(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ReserveOne: %v", err)
	}
	if ok {
		t.Error("reservation must be denied at zero balance")
	}
}

func TestRemoteLedger_RefundRoundTrip(t *testing.T) {
	t.Parallel()
	srv := creditAPI(t, map[string]int{"u1": 1})

	ledger, err := credit.NewRemoteLedger(srv.URL)
	if err != nil {
		t.Fatalf("new remote ledger: %v", err)
	}
	ctx := context.Background()

	if ok, err := ledger.ReserveOne(ctx, "u1"); err != nil || !ok {
		t.Fatalf("ReserveOne = %v, %v", ok, err)
	}
	if err := ledger.Refund(ctx, "u1"); err != nil {
		t.Fatalf("Refund: %v", err)
	}
	remaining, err := ledger.Balance(ctx, "u1")
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if remaining != 1 {
		t.Errorf("remaining = %d, want 1 after refund", remaining)
	}
}

func TestRemoteLedger_UnknownUser(t *testing.T) {
	t.Parallel()
	srv := creditAPI(t, map[string]int{})

	ledger, err := credit.NewRemoteLedger(srv.URL)
	if err != nil {
		t.Fatalf("new remote ledger: %v", err)
	}

	if _, err := ledger.Balance(context.Background(), "ghost"); !errors.Is(err, credit.ErrUnknownUser) {
		t.Errorf("Balance error = %v, want ErrUnknownUser", err)
	}
	if err := ledger.Refund(context.Background(), "ghost"); !errors.Is(err, credit.ErrUnknownUser) {
		t.Errorf("Refund error = %v, want ErrUnknownUser", err)
	}
}

func TestRemoteLedger_GrantUnsupported(t *testing.T) {
	t.Parallel()
	ledger, err := credit.NewRemoteLedger("http://localhost:0")
	if err != nil {
		t.Fatalf("new remote ledger: %v", err)
	}
	if err := ledger.Grant(context.Background(), "u1", 5); err == nil {
		t.Error("Grant must not be available remotely")
	}
}
