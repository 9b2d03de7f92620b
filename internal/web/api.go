// pattern: Imperative Shell

package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"wtsync/internal/cache"
	"wtsync/internal/folders"
)

// RefreshResponse is returned by POST /api/refresh.
type RefreshResponse struct {
	Scope string `json:"scope"`
	Count int    `json:"count"`
}

// WorkspaceRequest is the body of PUT /api/workspace.
type WorkspaceRequest struct {
	Folders []string `json:"folders"`
}

// WorkspaceResponse lists the resolved main folders of the workspace.
type WorkspaceResponse struct {
	MainFolders []string `json:"mainFolders"`
}

// writeJSON writes v as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func scopeParam(w http.ResponseWriter, r *http.Request) (cache.Scope, bool) {
	scope, err := cache.ParseScope(r.URL.Query().Get("scope"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return scope, true
}

// handleWorktrees handles GET /api/worktrees?scope=global|workspace.
func (s *Server) handleWorktrees(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeParam(w, r)
	if !ok {
		return
	}
	items := s.deps.Cache.Get(scope)
	if items == nil {
		items = []cache.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// handleRefresh handles POST /api/refresh?scope=. It waits for the rebuild.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeParam(w, r)
	if !ok {
		return
	}
	if err := s.deps.Cache.Refresh(r.Context(), scope); err != nil {
		if errors.Is(err, cache.ErrClosed) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		s.logger.Warn("refresh failed", "scope", string(scope), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, RefreshResponse{Scope: string(scope), Count: len(s.deps.Cache.Get(scope))})
}

// handleFolders handles GET /api/folders.
func (s *Server) handleFolders(w http.ResponseWriter, r *http.Request) {
	list, err := s.deps.Folders.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if list == nil {
		list = []folders.GitFolder{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handleFavorites handles GET /api/favorites.
func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	s.writeItems(w, s.deps.Folders.Favorites)
}

// handleRecents handles GET /api/recents.
func (s *Server) handleRecents(w http.ResponseWriter, r *http.Request) {
	s.writeItems(w, s.deps.Folders.Recents)
}

func (s *Server) writeItems(w http.ResponseWriter, get func() ([]folders.Item, error)) {
	items, err := get()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if items == nil {
		items = []folders.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// handleGetWorkspace handles GET /api/workspace.
func (s *Server) handleGetWorkspace(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, WorkspaceResponse{MainFolders: nonNil(s.deps.Cache.MainFolders())})
}

// handleSetWorkspace handles PUT /api/workspace. An editor calls it when its
// open folders change; the workspace snapshot is rebuilt in the background.
func (s *Server) handleSetWorkspace(w http.ResponseWriter, r *http.Request) {
	var req WorkspaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.deps.Cache.SetWorkspaceFolders(r.Context(), req.Folders); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, WorkspaceResponse{MainFolders: nonNil(s.deps.Cache.MainFolders())})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
