package verify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/marbec/linkmesh/internal/link"
	"github.com/marbec/linkmesh/internal/node"
	"github.com/marbec/linkmesh/internal/storage"
)

func testStore(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.OpenDB(filepath.Join(t.TempDir(), "verify.db"))
	if err != nil {
		t.Fatalf("OpenDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	err = db.PutNode(&node.Node{
		ID: "a", Platform: "cyclado", Country: "FR", Language: "fr",
		Type: node.TypeStandard, Status: node.StatusPublished, Content: "Body.",
	})
	if err != nil {
		t.Fatalf("PutNode() error = %v", err)
	}
	return db
}

func serve(t *testing.T, handler http.HandlerFunc) string {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func seedDomain(t *testing.T, db *storage.DB, domain string) {
	t.Helper()
	err := db.PutDomain(&link.AuthorityDomain{
		Domain: domain, Type: link.SourceOrganization, Authority: 70, Active: true,
	})
	if err != nil {
		t.Fatalf("PutDomain() error = %v", err)
	}
	err = db.InsertExternalEdge(&link.ExternalEdge{
		SourceID: "a", Domain: domain, Authority: 70,
		Type: link.SourceOrganization,
	})
	if err != nil {
		t.Fatalf("InsertExternalEdge() error = %v", err)
	}
}

func TestVerifyDomain_AliveMarksEdgesActive(t *testing.T) {
	db := testStore(t)
	domain := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	seedDomain(t, db, domain)

	v := New(db, WithScheme("http"), WithRateLimit(1000))
	result, err := v.VerifyDomain(context.Background(), domain)
	if err != nil {
		t.Fatalf("VerifyDomain() error = %v", err)
	}
	if !result.Alive {
		t.Fatalf("result = %+v, want alive", result)
	}

	edges, err := db.ExternalEdges("a")
	if err != nil {
		t.Fatalf("ExternalEdges() error = %v", err)
	}
	if len(edges) != 1 || edges[0].Status != link.VerifyActive {
		t.Errorf("edges = %+v, want one active edge", edges)
	}
	if edges[0].Verified == "" {
		t.Error("verification timestamp not set")
	}
}

func TestVerifyDomain_HeadRejectedFallsBackToGet(t *testing.T) {
	db := testStore(t)
	var gets atomic.Int32
	domain := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		gets.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	seedDomain(t, db, domain)

	v := New(db, WithScheme("http"), WithRateLimit(1000))
	result, err := v.VerifyDomain(context.Background(), domain)
	if err != nil {
		t.Fatalf("VerifyDomain() error = %v", err)
	}
	if !result.Alive || gets.Load() != 1 {
		t.Errorf("result = %+v with %d GETs, want alive via one GET", result, gets.Load())
	}
}

func TestVerifyDomain_FailuresDeactivateDomain(t *testing.T) {
	db := testStore(t)
	domain := serve(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	seedDomain(t, db, domain)

	v := New(db, WithScheme("http"), WithRateLimit(1000))
	for i := 0; i < 3; i++ {
		result, err := v.VerifyDomain(context.Background(), domain)
		if err != nil {
			t.Fatalf("VerifyDomain() #%d error = %v", i+1, err)
		}
		if result.Alive {
			t.Fatalf("check #%d reported alive for a 500 response", i+1)
		}
	}

	d, err := db.GetDomain(domain)
	if err != nil {
		t.Fatalf("GetDomain() error = %v", err)
	}
	if d.Active {
		t.Error("domain still active after three consecutive failures")
	}

	edges, _ := db.ExternalEdges("a")
	if edges[0].Status != link.VerifyBroken {
		t.Errorf("edge status = %s, want broken", edges[0].Status)
	}
}

func TestVerifyAll_SuccessReactivatesDomain(t *testing.T) {
	db := testStore(t)
	var healthy atomic.Bool
	domain := serve(t, func(w http.ResponseWriter, r *http.Request) {
		if healthy.Load() {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})
	seedDomain(t, db, domain)

	v := New(db, WithScheme("http"), WithRateLimit(1000))
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := v.VerifyDomain(ctx, domain); err != nil {
			t.Fatalf("VerifyDomain() error = %v", err)
		}
	}

	// The sweep still visits deactivated entries, so a recovered domain
	// comes back without manual intervention.
	healthy.Store(true)
	report, err := v.VerifyAll(ctx)
	if err != nil {
		t.Fatalf("VerifyAll() error = %v", err)
	}
	if report.Checked != 1 || report.Alive != 1 {
		t.Errorf("report = %+v, want one alive check", report)
	}

	d, _ := db.GetDomain(domain)
	if !d.Active || d.Failures != 0 {
		t.Errorf("domain = %+v, want active with failures reset", d)
	}
}

func TestVerifyDomain_UnreachableHost(t *testing.T) {
	db := testStore(t)
	seedDomain(t, db, "127.0.0.1:1")

	v := New(db, WithScheme("http"), WithRateLimit(1000))
	result, err := v.VerifyDomain(context.Background(), "127.0.0.1:1")
	if err != nil {
		t.Fatalf("VerifyDomain() error = %v", err)
	}
	if result.Alive || result.Error == "" {
		t.Errorf("result = %+v, want dead with error detail", result)
	}
}
