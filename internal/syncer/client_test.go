package syncer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"

	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/clip"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/errors"
)

func fastPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.Sleep = noSleep
	return p
}

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	return NewClient(srv.URL, WithRetryPolicy(fastPolicy())), srv
}

func TestFetchFolderNames(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/folders" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`["Email Templates","Code Snippets"]`))
	}))
	defer srv.Close()

	names, err := client.FetchFolderNames(context.Background())
	if err != nil {
		t.Fatalf("FetchFolderNames failed: %v", err)
	}
	if len(names) != 2 || names[0] != "Email Templates" {
		t.Errorf("names = %v, want ordered backend list", names)
	}
}

func TestFetchFolderNames_RetriesServerError(t *testing.T) {
	calls := 0
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`["A"]`))
	}))
	defer srv.Close()

	names, err := client.FetchFolderNames(context.Background())
	if err != nil {
		t.Fatalf("FetchFolderNames failed: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3 (two 503s retried)", calls)
	}
	if len(names) != 1 {
		t.Errorf("names = %v, want [A]", names)
	}
}

func TestFetchFolderNames_UnparseableBodyRetries(t *testing.T) {
	calls := 0
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`[[[not json`))
	}))
	defer srv.Close()

	_, err := client.FetchFolderNames(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != DefaultMaxAttempts {
		t.Errorf("calls = %d, want %d (unparseable body treated as transient)", calls, DefaultMaxAttempts)
	}
}

func TestFetchFolderNames_WrongShapeFailsFast(t *testing.T) {
	calls := 0
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"folders": []}`))
	}))
	defer srv.Close()

	_, err := client.FetchFolderNames(context.Background())
	if !errors.Is(err, errors.ErrDecoding) {
		t.Fatalf("err = %v, want decoding error", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (decoding errors do not retry)", calls)
	}
}

func TestCreateFolder_Body(t *testing.T) {
	var got map[string]string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/folders" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	if err := client.CreateFolder(context.Background(), "Work"); err != nil {
		t.Fatalf("CreateFolder failed: %v", err)
	}
	if got["folder_name"] != "Work" {
		t.Errorf("body = %v, want folder_name=Work", got)
	}
}

func TestRenameFolder_KeyedByOldName(t *testing.T) {
	var gotPath string
	var got map[string]string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
	}))
	defer srv.Close()

	if err := client.RenameFolder(context.Background(), "Old Name", "New"); err != nil {
		t.Fatalf("RenameFolder failed: %v", err)
	}
	if gotPath != "/api/folders/Old%20Name" {
		t.Errorf("path = %q, want escaped old name", gotPath)
	}
	if got["new_name"] != "New" {
		t.Errorf("body = %v, want new_name=New", got)
	}
}

func TestDeleteFolder_NotFoundPropagates(t *testing.T) {
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := client.DeleteFolder(context.Background(), "Ghost")
	if !errors.StatusNotFound(err) {
		t.Errorf("err = %v, want a 404 protocol error", err)
	}
}

func TestCreateSnippet_Body(t *testing.T) {
	var got map[string]any
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/snippets" {
			t.Errorf("path = %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	snippet := clip.Snippet{
		ID:      clip.NewID(),
		Name:    "Sig",
		Content: "regards",
		Tags:    []string{"email"},
	}
	if err := client.CreateSnippet(context.Background(), snippet, "Email Templates"); err != nil {
		t.Fatalf("CreateSnippet failed: %v", err)
	}
	if got["name"] != "Sig" || got["folder"] != "Email Templates" {
		t.Errorf("body = %v", got)
	}
}

func TestUpdateSnippet_PartialBody(t *testing.T) {
	var gotPath, gotBody string
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	}))
	defer srv.Close()

	content := "new content"
	err := client.UpdateSnippet(context.Background(), "Work", "01abcdef", SnippetPatch{Content: &content})
	if err != nil {
		t.Fatalf("UpdateSnippet failed: %v", err)
	}
	if gotPath != "/api/snippets/Work/01abcdef" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody != `{"content":"new content"}` {
		t.Errorf("body = %q, want only the changed field", gotBody)
	}
}

func TestClient_TransportErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	calls := 0
	policy := fastPolicy()
	client := NewClient(srv.URL, WithRetryPolicy(policy))

	err := ExecuteWithRetry(context.Background(), policy, "probe", func(ctx context.Context) error {
		calls++
		return client.Health(ctx)
	})
	if !errors.Is(err, errors.ErrTransport) {
		t.Fatalf("err = %v, want transport error", err)
	}
	if calls != DefaultMaxAttempts {
		t.Errorf("calls = %d, want %d", calls, DefaultMaxAttempts)
	}
}

func TestHealth_SingleShot(t *testing.T) {
	calls := 0
	client, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/health" {
			t.Errorf("path = %q, want /health", r.URL.Path)
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := client.Health(context.Background()); err == nil {
		t.Fatal("expected error from unhealthy backend")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (health never retries)", calls)
	}
}
