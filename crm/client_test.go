// ABOUTME: Tests for the CRM client against a fake CRM server
// ABOUTME: Covers the handshake lifecycle, token caching, pagination, and reconciliation
package crm

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/opspulse/opspulse/config"
	"github.com/opspulse/opspulse/db"
	"github.com/opspulse/opspulse/models"
)

// fakeCRM is a minimal CRM server with counted endpoints.
type fakeCRM struct {
	server *httptest.Server

	logins  atomic.Int64
	tokens  atomic.Int64
	queries atomic.Int64

	expiresIn int64
	pages     [][]RemoteCompany
	queryFail bool
}

func newFakeCRM(t *testing.T, pages [][]RemoteCompany) *fakeCRM {
	t.Helper()

	f := &fakeCRM{expiresIn: 3600, pages: pages}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		f.logins.Add(1)
		var creds map[string]string
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds["client_id"] != "test-id" || creds["client_secret"] != "test-secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"session_id": "sess-1"})
	})
	mux.HandleFunc("/api/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokens.Add(1)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["session_id"] != "sess-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-abc",
			"expires_in":   f.expiresIn,
		})
	})
	mux.HandleFunc("/api/query", func(w http.ResponseWriter, r *http.Request) {
		f.queries.Add(1)
		if r.Header.Get("Authorization") != "Bearer tok-abc" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if f.queryFail {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		var req queryRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		page := req.Page - 1
		if page < 0 || page >= len(f.pages) {
			_ = json.NewEncoder(w).Encode(queryResponse{})
			return
		}
		_ = json.NewEncoder(w).Encode(queryResponse{
			Companies: f.pages[page],
			HasMore:   page < len(f.pages)-1,
		})
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func newTestClient(t *testing.T, serverURL string) (*Client, *sql.DB, *time.Time) {
	t.Helper()

	database, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	if err := db.InitSchema(database); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}

	cfg := config.CRMConfig{
		BaseURL:      serverURL,
		ClientID:     "test-id",
		ClientSecret: "test-secret",
	}

	now := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	client := NewClient(cfg, database).
		WithTokenPath(filepath.Join(t.TempDir(), "token.json")).
		WithClock(func() time.Time { return now })
	client.token = nil // ignore anything loaded from disk

	return client, database, &now
}

func TestFetchCompaniesPaginates(t *testing.T) {
	fake := newFakeCRM(t, [][]RemoteCompany{
		{{ID: "co-1", Name: "Acme"}, {ID: "co-2", Name: "Globex"}},
		{{ID: "co-3", Name: "Initech"}},
	})
	client, _, _ := newTestClient(t, fake.server.URL)

	companies, err := client.FetchCompanies(context.Background())
	if err != nil {
		t.Fatalf("FetchCompanies failed: %v", err)
	}

	if len(companies) != 3 {
		t.Errorf("Expected 3 companies across pages, got %d", len(companies))
	}
	if got := fake.queries.Load(); got != 2 {
		t.Errorf("Expected 2 query requests, got %d", got)
	}
}

func TestTokenIsCachedAcrossFetches(t *testing.T) {
	fake := newFakeCRM(t, [][]RemoteCompany{{{ID: "co-1", Name: "Acme"}}})
	client, _, _ := newTestClient(t, fake.server.URL)

	for i := 0; i < 3; i++ {
		if _, err := client.FetchCompanies(context.Background()); err != nil {
			t.Fatalf("FetchCompanies failed: %v", err)
		}
	}

	if got := fake.logins.Load(); got != 1 {
		t.Errorf("Expected exactly 1 sign-in for a fresh token, got %d", got)
	}
	if got := fake.tokens.Load(); got != 1 {
		t.Errorf("Expected exactly 1 token exchange, got %d", got)
	}
}

func TestTokenRefreshedNearExpiry(t *testing.T) {
	fake := newFakeCRM(t, [][]RemoteCompany{{{ID: "co-1", Name: "Acme"}}})
	client, _, now := newTestClient(t, fake.server.URL)

	if _, err := client.FetchCompanies(context.Background()); err != nil {
		t.Fatalf("FetchCompanies failed: %v", err)
	}

	// Move to 30s before expiry, inside the 60s safety margin
	*now = now.Add(3600*time.Second - 30*time.Second)

	if _, err := client.FetchCompanies(context.Background()); err != nil {
		t.Fatalf("FetchCompanies failed: %v", err)
	}

	if got := fake.logins.Load(); got != 2 {
		t.Errorf("Expected a second handshake inside the expiry margin, got %d sign-ins", got)
	}
}

func TestTokenReusedOutsideMargin(t *testing.T) {
	fake := newFakeCRM(t, [][]RemoteCompany{{{ID: "co-1", Name: "Acme"}}})
	client, _, now := newTestClient(t, fake.server.URL)

	if _, err := client.FetchCompanies(context.Background()); err != nil {
		t.Fatalf("FetchCompanies failed: %v", err)
	}

	// Still 90s of validity left, more than the 60s margin
	*now = now.Add(3600*time.Second - 90*time.Second)

	if _, err := client.FetchCompanies(context.Background()); err != nil {
		t.Fatalf("FetchCompanies failed: %v", err)
	}

	if got := fake.logins.Load(); got != 1 {
		t.Errorf("Expected cached token to be reused, got %d sign-ins", got)
	}
}

func TestSyncReconcilesDeals(t *testing.T) {
	fake := newFakeCRM(t, [][]RemoteCompany{{
		{
			ID: "co-1", Name: "Acme",
			Opportunities: []RemoteOpportunity{
				{ID: "opp-1", Name: "Expansion", Stage: "Proposal", Amount: 75000_00},
			},
		},
		{ID: "co-2", Name: "Globex"},
	}})
	client, database, _ := newTestClient(t, fake.server.URL)

	// A manually entered deal must survive reconciliation
	manual := &models.PipelineDeal{CompanyName: "Hand Entered", Stage: models.StageLead, Source: "manual"}
	if err := db.CreateDeal(database, manual); err != nil {
		t.Fatalf("CreateDeal failed: %v", err)
	}

	count, err := client.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 mirrored deals, got %d", count)
	}

	// Running again against identical remote state converges
	if _, err := client.Sync(context.Background()); err != nil {
		t.Fatalf("Second sync failed: %v", err)
	}

	crmDeals, err := db.FindDeals(database, models.SourceCRM, "", 0)
	if err != nil {
		t.Fatalf("FindDeals failed: %v", err)
	}
	if len(crmDeals) != 2 {
		t.Errorf("Expected 2 CRM deals after repeated sync, got %d", len(crmDeals))
	}

	manualDeals, err := db.FindDeals(database, "manual", "", 0)
	if err != nil {
		t.Fatalf("FindDeals failed: %v", err)
	}
	if len(manualDeals) != 1 {
		t.Errorf("Manual deal did not survive reconciliation")
	}

	state, err := db.GetSyncState(database, models.SourceNameCRM)
	if err != nil {
		t.Fatalf("GetSyncState failed: %v", err)
	}
	if state == nil || state.Status != models.SyncOK {
		t.Errorf("Expected ok sync state, got %+v", state)
	}
}

func TestSyncFailureLeavesMirrorIntact(t *testing.T) {
	fake := newFakeCRM(t, [][]RemoteCompany{{
		{ID: "co-1", Name: "Acme", Opportunities: []RemoteOpportunity{
			{ID: "opp-1", Name: "Deal", Stage: "Qualified", Amount: 10000_00},
		}},
	}})
	client, database, _ := newTestClient(t, fake.server.URL)

	if _, err := client.Sync(context.Background()); err != nil {
		t.Fatalf("Initial sync failed: %v", err)
	}

	fake.queryFail = true
	if _, err := client.Sync(context.Background()); err == nil {
		t.Fatal("Expected sync to fail when the query endpoint errors")
	}

	// Previous mirror stays untouched on failure
	deals, err := db.FindDeals(database, models.SourceCRM, "", 0)
	if err != nil {
		t.Fatalf("FindDeals failed: %v", err)
	}
	if len(deals) != 1 {
		t.Errorf("Expected previous mirror intact, got %d deals", len(deals))
	}

	state, err := db.GetSyncState(database, models.SourceNameCRM)
	if err != nil {
		t.Fatalf("GetSyncState failed: %v", err)
	}
	if state == nil || state.Status != models.SyncError {
		t.Errorf("Expected error sync state, got %+v", state)
	}
}

func TestSyncUnconfigured(t *testing.T) {
	database, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory db: %v", err)
	}
	defer database.Close()
	if err := db.InitSchema(database); err != nil {
		t.Fatalf("InitSchema failed: %v", err)
	}

	client := NewClient(config.CRMConfig{}, database).WithTokenPath("")
	if _, err := client.Sync(context.Background()); err == nil {
		t.Error("Expected error for unconfigured CRM")
	}
}
