package web

import (
	"net/http"

	"github.com/JonMunkholm/csvshare/internal/catalog"
)

// handleListUsers lists every principal. Admin only.
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	callerID, ctx, ok := caller(w, r)
	if !ok {
		return
	}

	users, err := s.service.ListPrincipals(ctx, callerID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if users == nil {
		users = []catalog.Principal{}
	}
	writeJSON(w, map[string]any{"success": true, "users": users})
}

// handleListUserFiles lists one principal's records. Admin only.
func (s *Server) handleListUserFiles(w http.ResponseWriter, r *http.Request) {
	callerID, ctx, ok := caller(w, r)
	if !ok {
		return
	}
	userID, ok := idParam(r, "userId")
	if !ok {
		respondBadRequest(w, r, "Invalid user id")
		return
	}

	recs, err := s.service.ListRecordsFor(ctx, callerID, userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if recs == nil {
		recs = []catalog.Record{}
	}
	writeJSON(w, map[string]any{"success": true, "files": recs})
}

// handlePurgeUser deletes a principal with all of their records and
// content. Admin only.
func (s *Server) handlePurgeUser(w http.ResponseWriter, r *http.Request) {
	callerID, ctx, ok := caller(w, r)
	if !ok {
		return
	}
	userID, ok := idParam(r, "userId")
	if !ok {
		respondBadRequest(w, r, "Invalid user id")
		return
	}

	n, err := s.service.PurgePrincipal(ctx, callerID, userID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"success":      true,
		"message":      "User and their files deleted successfully",
		"deletedFiles": n,
	})
}
