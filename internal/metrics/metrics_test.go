package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/rosterimport/internal/core"
)

func scrape(t *testing.T, m *Manager) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestManager_ObserveReconcile(t *testing.T) {
	m := NewManager(WithNamespace("test"))
	m.ObserveReconcile(&core.ReconcileReport{
		Summary: core.ReconcileSummary{Total: 4, New: 2, Matched: 1, Error: 1},
	}, 20*time.Millisecond, nil)
	m.ObserveReconcile(nil, time.Millisecond, &core.HeaderError{Missing: []string{"dob"}})

	out := scrape(t, m)
	for _, want := range []string{
		`test_reconcile_rows_total{status="new"} 2`,
		`test_reconcile_rows_total{status="matched"} 1`,
		`test_reconcile_rows_total{status="error"} 1`,
		`test_reconcile_runs_total{result="success"} 1`,
		`test_reconcile_runs_total{result="rejected"} 1`,
		`test_reconcile_duration_seconds_count 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestManager_ObserveCommit(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantResult string
	}{
		{"success", nil, ResultSuccess},
		{"aborted", &core.CommitAbortError{RowIndex: 2, Reason: "division assignment missing"}, ResultAborted},
		{
			"transient",
			&core.CommitAbortError{Err: &core.TransientStoreError{Op: "insert", Err: errors.New("eof")}},
			ResultTransient,
		},
		{"unauthorized", &core.AuthorizationError{}, ResultRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager()
			m.ObserveCommit(&core.CommitReport{Details: []core.CommitDetail{
				{Outcome: "created"}, {Outcome: "created"}, {Outcome: "already-registered"},
			}}, time.Second, tt.err)

			out := scrape(t, m)
			if want := `roster_commit_runs_total{result="` + tt.wantResult + `"} 1`; !strings.Contains(out, want) {
				t.Errorf("exposition missing %q", want)
			}
			if want := `roster_commit_rows_total{outcome="created"} 2`; !strings.Contains(out, want) {
				t.Errorf("exposition missing %q", want)
			}
		})
	}
}

func TestManager_ObserveBootstrap(t *testing.T) {
	m := NewManager()
	m.ObserveBootstrap(1, 2, nil)
	m.ObserveBootstrap(2, 0, &core.DivisionBootstrapError{EventID: 2, Missing: []string{"FEMALE"}})

	out := scrape(t, m)
	for _, want := range []string{
		`roster_divisions_bootstraps_total{result="success"} 1`,
		`roster_divisions_bootstraps_total{result="aborted"} 1`,
		`roster_divisions_linked_total 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestManager_ObserveHTTP(t *testing.T) {
	m := NewManager()
	m.ObserveHTTP("/api/events/{eventID}/reconcile", "POST", 200, 5*time.Millisecond)

	out := scrape(t, m)
	want := `roster_http_requests_total{method="POST",route="/api/events/{eventID}/reconcile",status_code="200"} 1`
	if !strings.Contains(out, want) {
		t.Errorf("exposition missing %q", want)
	}
}

func TestManager_PrivateRegistries(t *testing.T) {
	// Two managers must not collide on registration.
	a := NewManager()
	b := NewManager()
	if a.Registry() == b.Registry() {
		t.Error("managers share a registry")
	}
}
