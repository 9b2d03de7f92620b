package instance

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"wtsync/internal/cache"
)

func TestClient_Worktrees(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/worktrees" && r.Method == "GET" && r.URL.Query().Get("scope") == "workspace" {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`[{"path":"/r/app","name":"app","isMain":true,"root":"/r/app","label":"app"}]`))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	items, err := NewClient(srv.URL).Worktrees(cache.Workspace)
	if err != nil {
		t.Fatalf("Worktrees() error: %v", err)
	}
	if len(items) != 1 || items[0].Path != "/r/app" || !items[0].IsMain || items[0].Label != "app" {
		t.Fatalf("Worktrees() = %+v", items)
	}
}

func TestClient_ServerError(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"json error", `{"error":"unknown cache scope \"x\""}`, `unknown cache scope "x"`},
		{"plain body", "internal error", "internal error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).Folders()
			if err == nil {
				t.Fatal("Folders() should fail on server error")
			}
			if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want status and %q", err, tt.want)
			}
		})
	}
}

func TestClient_Refresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.Write([]byte(`{"scope":"global","count":4}`))
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL).Refresh(cache.Global)
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if res.Scope != "global" || res.Count != 4 {
		t.Errorf("Refresh() = %+v", res)
	}
}

func TestClient_SetWorkspace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.Header.Get("Content-Type") != "application/json" {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			Folders []string `json:"folders"`
		}
		data, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(data, &req); err != nil || len(req.Folders) != 2 || req.Folders[1] != "/r/app.worktrees/x" {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"unexpected folders"}`))
			return
		}
		w.Write([]byte(`{"mainFolders":["/r/app"]}`))
	}))
	defer srv.Close()

	mains, err := NewClient(srv.URL).SetWorkspace([]string{"/r/app/sub", "/r/app.worktrees/x"})
	if err != nil {
		t.Fatalf("SetWorkspace() error: %v", err)
	}
	if len(mains) != 1 || mains[0] != "/r/app" {
		t.Errorf("main folders = %v", mains)
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1").Folders()
	if err == nil || !strings.Contains(err.Error(), "failed to connect") {
		t.Fatalf("error = %v, want connection failure", err)
	}
}
