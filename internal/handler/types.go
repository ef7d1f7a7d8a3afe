package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/buger/jsonparser"
)

// errUnsupportedMediaType marks a request body that is not JSON.
var errUnsupportedMediaType = errors.New("content type must be application/json")

// PreviewRequest is the body of POST /api/preview.
type PreviewRequest struct {
	UploadID string
	Message  string
	Row      int // 1-based over loaded contacts, 0 means the first
}

// RunRequest is the body of POST /api/runs.
type RunRequest struct {
	UploadID     string
	Message      string
	DelaySeconds int // 0 selects the configured delay
	StartRow     int
	EndRow       int
}

// readJSONBody reads a size-limited JSON object body.
func readJSONBody(r *http.Request) ([]byte, error) {
	contentType := r.Header.Get("Content-Type")
	// Handle Content-Type case-insensitively and allow charset parameters
	if !strings.HasPrefix(strings.ToLower(contentType), "application/json") {
		return nil, errUnsupportedMediaType
	}
	defer func() { _ = r.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(body) > maxBodySize {
		return nil, errors.New("request body too large")
	}
	if _, dataType, _, err := jsonparser.Get(body); err != nil || dataType != jsonparser.Object {
		return nil, errors.New("request body must be a JSON object")
	}
	return body, nil
}

func parsePreviewRequest(body []byte) (PreviewRequest, error) {
	var (
		req PreviewRequest
		err error
	)
	if req.UploadID, err = optString(body, "upload_id"); err != nil {
		return req, err
	}
	if req.Message, err = optString(body, "message"); err != nil {
		return req, err
	}
	if req.Row, err = optInt(body, "row"); err != nil {
		return req, err
	}
	return req, nil
}

func parseRunRequest(body []byte) (RunRequest, error) {
	var (
		req RunRequest
		err error
	)
	if req.UploadID, err = optString(body, "upload_id"); err != nil {
		return req, err
	}
	if req.Message, err = optString(body, "message"); err != nil {
		return req, err
	}
	if req.DelaySeconds, err = optInt(body, "delay_seconds"); err != nil {
		return req, err
	}
	if req.StartRow, err = optInt(body, "start_row"); err != nil {
		return req, err
	}
	if req.EndRow, err = optInt(body, "end_row"); err != nil {
		return req, err
	}
	return req, nil
}

// optString returns "" for a missing key and an error for a non-string value.
func optString(body []byte, key string) (string, error) {
	v, err := jsonparser.GetString(body, key)
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%s must be a string", key)
	}
	return v, nil
}

// optInt returns 0 for a missing key and an error for a non-integer value.
func optInt(body []byte, key string) (int, error) {
	v, err := jsonparser.GetInt(body, key)
	if errors.Is(err, jsonparser.KeyPathNotFoundError) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return int(v), nil
}
