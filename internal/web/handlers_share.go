package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/csvshare/internal/access"
	"github.com/JonMunkholm/csvshare/internal/core"
)

// decodeJSON reads a bounded JSON body into v. It writes the 400 itself and
// reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondBadRequest(w, r, "Request body must be a JSON object")
		return false
	}
	return true
}

// flexID accepts a record id sent as a JSON number or a numeric string.
type flexID int64

func (id *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s", b)
	}
	*id = flexID(n)
	return nil
}

type changeAccessBody struct {
	AccessType string `json:"accessType"`
}

type changeAccessResponse struct {
	Success    bool         `json:"success"`
	Message    string       `json:"message"`
	AccessType access.Level `json:"accessType"`
}

// handleChangeAccess sets a record's general access level. Owner only.
func (s *Server) handleChangeAccess(w http.ResponseWriter, r *http.Request) {
	callerID, ctx, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r, "fileId")
	if !ok {
		respondBadRequest(w, r, "Invalid file id")
		return
	}

	var body changeAccessBody
	if !decodeJSON(w, r, &body) {
		return
	}

	level, err := s.service.ChangeAccess(ctx, id, callerID, body.AccessType)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, changeAccessResponse{
		Success:    true,
		Message:    "Access updated successfully",
		AccessType: level,
	})
}

type shareLinkResponse struct {
	Success bool   `json:"success"`
	Link    string `json:"link"`
}

// handleShareLink returns the deep link for a record.
func (s *Server) handleShareLink(w http.ResponseWriter, r *http.Request) {
	_, ctx, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r, "fileId")
	if !ok {
		respondBadRequest(w, r, "Invalid file id")
		return
	}

	link, err := s.service.BuildShareLink(ctx, id)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, shareLinkResponse{Success: true, Link: link})
}

type shareEmailBody struct {
	FileID         flexID `json:"fileId"`
	RecipientEmail string `json:"recipientEmail"`
	SenderName     string `json:"senderName"`
	Message        string `json:"message"`
	FileName       string `json:"fileName"`
}

type shareEmailResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Link    string `json:"link,omitempty"`
	Code    string `json:"code,omitempty"`
}

// handleShareEmail mails a share link. When delivery fails the response is
// 502 but still carries the link, so the sender can pass it on by hand.
func (s *Server) handleShareEmail(w http.ResponseWriter, r *http.Request) {
	_, ctx, ok := caller(w, r)
	if !ok {
		return
	}

	var body shareEmailBody
	if !decodeJSON(w, r, &body) {
		return
	}
	if body.FileID <= 0 {
		respondBadRequest(w, r, "fileId is required")
		return
	}

	link, err := s.service.NotifyByEmail(ctx, core.ShareRequest{
		RecordID:   int64(body.FileID),
		Recipient:  body.RecipientEmail,
		SenderName: body.SenderName,
		Note:       body.Message,
		FileName:   body.FileName,
	})
	if errors.Is(err, core.ErrNotificationFailed) && link != "" {
		uerr := core.NewUserError(err)
		logRequestError(r, http.StatusBadGateway, uerr)
		writeJSONStatus(w, http.StatusBadGateway, shareEmailResponse{
			Success: false,
			Message: uerr.User.Message,
			Link:    link,
			Code:    uerr.User.Code,
		})
		return
	}
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, shareEmailResponse{
		Success: true,
		Message: "Email sent successfully",
		Link:    link,
	})
}
