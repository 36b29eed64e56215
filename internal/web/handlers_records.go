package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/JonMunkholm/csvshare/internal/catalog"
	"github.com/JonMunkholm/csvshare/internal/core"
	"github.com/JonMunkholm/csvshare/internal/tabular"
)

// multipartOverhead is allowed on top of the file size for boundaries and
// the other form fields.
const multipartOverhead = 64 << 10

// maxJSONBody bounds JSON bodies that carry no file content.
const maxJSONBody = 64 << 10

// UploadResponse is returned by a successful upload.
type UploadResponse struct {
	Success      bool            `json:"success"`
	Message      string          `json:"message"`
	File         *catalog.Record `json:"file"`
	TotalRecords int             `json:"totalRecords"`
	Headers      []string        `json:"headers"`
	Data         []tabular.Row   `json:"data"`
}

// FileResponse is returned when reading a record.
type FileResponse struct {
	Success bool            `json:"success"`
	File    *catalog.Record `json:"fileMetadata"`
	Headers []string        `json:"headers"`
	Data    []tabular.Row   `json:"data"`
	IsOwner bool            `json:"isOwner"`
	CanEdit bool            `json:"canEdit"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// handleUpload stores a multipart CSV upload. The file part is csvFile;
// optional fields are access and storageName.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	callerID, ctx, ok := caller(w, r)
	if !ok {
		return
	}

	maxSize := s.service.MaxFileSize()
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, fmt.Errorf("upload body: %w", core.ErrPayloadTooLarge))
			return
		}
		respondBadRequest(w, r, "Request must be multipart/form-data")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("csvFile")
	if errors.Is(err, http.ErrMissingFile) {
		s.respondError(w, r, core.ErrNoFile)
		return
	}
	if err != nil {
		respondBadRequest(w, r, "Could not read the uploaded file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respondBadRequest(w, r, "Could not read the uploaded file")
		return
	}

	res, err := s.service.Ingest(ctx, callerID, core.UploadedFile{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		StorageName: r.FormValue("storageName"),
	}, r.FormValue("access"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	msg := "File uploaded successfully"
	if !res.Created {
		msg = "File re-uploaded successfully"
	}
	writeJSON(w, UploadResponse{
		Success:      true,
		Message:      msg,
		File:         res.Record,
		TotalRecords: res.TotalRecords,
		Headers:      res.Headers,
		Data:         res.Rows,
	})
}

// updateBody is the JSON form of an update. data may be CSV text, a field
// object, or an array of field objects of which the first is used.
type updateBody struct {
	Data    json.RawMessage `json:"data"`
	CSVData string          `json:"csvData"`
}

// handleUpdate replaces a record's row. The body is raw text/csv or JSON.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	callerID, ctx, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r, "fileId")
	if !ok {
		respondBadRequest(w, r, "Invalid file id")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.service.MaxFileSize())
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, r, fmt.Errorf("update body: %w", core.ErrPayloadTooLarge))
			return
		}
		respondBadRequest(w, r, "Could not read the request body")
		return
	}

	values, err := decodeFieldValues(r.Header.Get("Content-Type"), body)
	if err != nil {
		respondBadRequest(w, r, err.Error())
		return
	}

	if err := s.service.Update(ctx, id, callerID, values); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, messageResponse{Success: true, Message: "File updated successfully"})
}

// decodeFieldValues turns an update body into core.FieldValues.
func decodeFieldValues(contentType string, body []byte) (core.FieldValues, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "text/csv", "text/plain":
		return core.FieldValues{CSV: body}, nil
	case "application/json", "":
	default:
		return core.FieldValues{}, fmt.Errorf("unsupported content type %q", mediaType)
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return core.FieldValues{}, nil
	}

	var ub updateBody
	if err := json.Unmarshal(body, &ub); err != nil {
		return core.FieldValues{}, errors.New("request body is not valid JSON")
	}
	if ub.CSVData != "" {
		return core.FieldValues{CSV: []byte(ub.CSVData)}, nil
	}

	data := bytes.TrimSpace(ub.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return core.FieldValues{}, nil
	}

	switch data[0] {
	case '"':
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return core.FieldValues{}, errors.New("data must be CSV text or an object")
		}
		return core.FieldValues{CSV: []byte(text)}, nil
	case '[':
		var rows []map[string]any
		if err := json.Unmarshal(data, &rows); err != nil {
			return core.FieldValues{}, errors.New("data array must hold objects")
		}
		if len(rows) == 0 {
			return core.FieldValues{}, nil
		}
		return core.FieldValues{Fields: stringify(rows[0])}, nil
	case '{':
		var row map[string]any
		if err := json.Unmarshal(data, &row); err != nil {
			return core.FieldValues{}, errors.New("data must be CSV text or an object")
		}
		return core.FieldValues{Fields: stringify(row)}, nil
	}
	return core.FieldValues{}, errors.New("data must be CSV text or an object")
}

// stringify renders JSON scalar values the way they would appear in a CSV
// cell. null becomes empty.
func stringify(row map[string]any) map[string]string {
	out := make(map[string]string, len(row))
	for k, v := range row {
		switch t := v.(type) {
		case nil:
			out[k] = ""
		case string:
			out[k] = t
		default:
			b, _ := json.Marshal(t)
			out[k] = string(b)
		}
	}
	return out
}

// handleListFiles lists the caller's own records.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	callerID, ctx, ok := caller(w, r)
	if !ok {
		return
	}

	recs, err := s.service.List(ctx, callerID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	if recs == nil {
		recs = []catalog.Record{}
	}
	writeJSON(w, map[string]any{"success": true, "data": recs})
}

// handleGetFile returns a record with its parsed rows.
func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	callerID, ctx, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r, "fileId")
	if !ok {
		respondBadRequest(w, r, "Invalid file id")
		return
	}

	view, err := s.service.Get(ctx, id, callerID)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, FileResponse{
		Success: true,
		File:    view.Record,
		Headers: view.Headers,
		Data:    view.Rows,
		IsOwner: view.IsOwner,
		CanEdit: view.CanEdit,
	})
}

// handleDeleteFile removes a record and its content. Owner only.
func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	callerID, ctx, ok := caller(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r, "fileId")
	if !ok {
		respondBadRequest(w, r, "Invalid file id")
		return
	}

	if err := s.service.Delete(ctx, id, callerID); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, messageResponse{Success: true, Message: "File deleted successfully"})
}
