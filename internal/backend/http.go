package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxResponseBytes bounds backend response bodies.
const maxResponseBytes = 4 << 20

// errorBody covers the error shapes used by Replicate (detail) and the relay (error).
type errorBody struct {
	Detail string `json:"detail"`
	Error  string `json:"error"`
	Title  string `json:"title"`
}

// doJSON sends a JSON request and decodes a JSON response into out.
// Non-2xx answers become *APIError, everything else is a transport failure.
func doJSON(ctx context.Context, client *http.Client, method, endpoint string, header http.Header, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(raw)}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorDetail(raw []byte) string {
	var decoded errorBody
	if err := json.Unmarshal(raw, &decoded); err == nil {
		switch {
		case decoded.Detail != "":
			return decoded.Detail
		case decoded.Error != "":
			return decoded.Error
		case decoded.Title != "":
			return decoded.Title
		}
	}
	return strings.TrimSpace(string(raw))
}
