package main

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// runCLI executes the root command against a fake API and returns stdout.
func runCLI(t *testing.T, handler http.HandlerFunc, args ...string) (string, error) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--url", srv.URL}, args...))

	err := cmd.Execute()
	return out.String(), err
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("expected short unchanged, got %q", got)
	}

	if got := truncate("longerstring", 6); got != "lon..." {
		t.Fatalf("expected lon..., got %q", got)
	}

	if got := truncate("abcdef", 2); got != "ab" {
		t.Fatalf("expected hard cut for tiny limits, got %q", got)
	}
}

func TestPrintJSON(t *testing.T) {
	var out bytes.Buffer
	printJSON(&out, []byte(`{"a":1}`))

	expected := "{\n  \"a\": 1\n}\n"
	if out.String() != expected {
		t.Fatalf("unexpected json output:\n%s", out.String())
	}

	out.Reset()
	printJSON(&out, []byte("not json"))
	if out.String() != "not json\n" {
		t.Fatalf("expected raw passthrough, got %q", out.String())
	}
}

func TestLedgerConsistency(t *testing.T) {
	out, err := runCLI(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/ledger/consistency" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"consistent":true,"entries_checked":3}`))
	}, "ledger", "consistency")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "PASSED") {
		t.Fatalf("expected PASSED, got %q", out)
	}
}

func TestLedgerConsistencyFailure(t *testing.T) {
	out, err := runCLI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"consistent":false,"violations":[{"entry_id":2}]}`))
	}, "ledger", "consistency")
	if err == nil {
		t.Fatal("expected an inconsistent ledger to fail the command")
	}
	if !strings.Contains(out, `"entry_id": 2`) {
		t.Fatalf("expected the report to be printed, got %q", out)
	}
}

func TestLedgerTailAndRebuild(t *testing.T) {
	var methods []string
	handler := func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		_, _ = w.Write([]byte(`{"tail_balance":"700"}`))
	}

	out, err := runCLI(t, handler, "ledger", "tail")
	if err != nil {
		t.Fatalf("tail: %v", err)
	}
	if !strings.Contains(out, `"tail_balance": "700"`) {
		t.Fatalf("unexpected tail output %q", out)
	}

	if _, err := runCLI(t, handler, "ledger", "rebuild"); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	if len(methods) != 2 || methods[0] != "GET /api/v1/ledger/tail" || methods[1] != "POST /api/v1/ledger/rebuild" {
		t.Fatalf("unexpected calls %v", methods)
	}
}

func TestLedgerEntriesQuery(t *testing.T) {
	var query string
	_, err := runCLI(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"entries":[]}`))
	}, "ledger", "entries", "--from", "2026-03-01", "--limit", "10")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if query != "limit=10&from=2026-03-01" {
		t.Fatalf("unexpected query %q", query)
	}
}

func TestCurrencyList(t *testing.T) {
	out, err := runCLI(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[
			{"code":"KRW","name":"South Korean Won","exchange_rate":"1","is_base":true,"is_active":true},
			{"code":"USD","name":"US Dollar","exchange_rate":"1350.5","is_base":false,"is_active":false}
		]`))
	}, "currency", "list")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header and two rows, got %q", out)
	}
	if !strings.HasPrefix(lines[1], "KRW") || !strings.HasSuffix(lines[1], "base") {
		t.Fatalf("unexpected base row %q", lines[1])
	}
	if !strings.Contains(lines[2], "1350.5") || !strings.HasSuffix(lines[2], "inactive") {
		t.Fatalf("unexpected inactive row %q", lines[2])
	}
}

func TestCurrencySetRate(t *testing.T) {
	var gotPath, gotBody string
	_, err := runCLI(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		_, _ = w.Write([]byte(`{"code":"USD"}`))
	}, "currency", "set-rate", "usd", "1400")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "PUT /api/v1/currencies/USD/rate" {
		t.Fatalf("unexpected request %s", gotPath)
	}
	if gotBody != `{"exchange_rate":"1400"}` {
		t.Fatalf("unexpected body %s", gotBody)
	}
}

func TestAPIErrorIsReported(t *testing.T) {
	_, err := runCLI(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"failed to refresh rates","class":"internal","message":"feed down"}`))
	}, "currency", "refresh")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "status 503") || !strings.Contains(err.Error(), "feed down") {
		t.Fatalf("unexpected error %v", err)
	}
}

type fakeMigrator struct {
	calls   []string
	version uint
	err     error
}

func (f *fakeMigrator) Up() error   { f.calls = append(f.calls, "up"); return f.err }
func (f *fakeMigrator) Down() error { f.calls = append(f.calls, "down"); return f.err }
func (f *fakeMigrator) Version() (uint, bool, error) {
	f.calls = append(f.calls, "version")
	return f.version, false, f.err
}

func TestMigrateCommands(t *testing.T) {
	fake := &fakeMigrator{version: 4}
	orig := newMigrator
	newMigrator = func() (migrator, error) { return fake, nil }
	t.Cleanup(func() { newMigrator = orig })

	for _, sub := range []string{"up", "down", "version"} {
		cmd := newRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs([]string{"migrate", sub})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("migrate %s: %v", sub, err)
		}
		if sub == "version" && out.String() != "version: 4 dirty: false\n" {
			t.Fatalf("unexpected version output %q", out.String())
		}
	}

	if strings.Join(fake.calls, ",") != "up,down,version" {
		t.Fatalf("unexpected migrator calls %v", fake.calls)
	}
}

func TestMigrateReportsErrors(t *testing.T) {
	orig := newMigrator
	newMigrator = func() (migrator, error) { return &fakeMigrator{err: errors.New("dirty database")}, nil }
	t.Cleanup(func() { newMigrator = orig })

	cmd := newRootCmd()
	cmd.SetOut(io.Discard)
	cmd.SetArgs([]string{"migrate", "up"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "dirty database") {
		t.Fatalf("expected migrator error, got %v", err)
	}
}
