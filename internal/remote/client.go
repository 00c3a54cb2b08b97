// Package remote talks to a dataloom analysis service and falls back to the
// in-process engine when the service cannot answer.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/dataloom-cli/internal/analysis"
)

// DefaultTimeout bounds one upload round trip.
const DefaultTimeout = 120 * time.Second

// StatusError is a non-2xx reply from the service.
type StatusError struct {
	Code   int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("remote analysis failed: HTTP %d", e.Code)
	}
	return e.Detail
}

// Client uploads files to POST {BaseURL}/analyze.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	// Retries is how many extra attempts follow a network error or 5xx reply.
	Retries   int
	BaseDelay time.Duration
}

// NewClient returns a client with the default timeout and one retry.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: timeout},
		Retries:    1,
		BaseDelay:  500 * time.Millisecond,
	}
}

// Analyze posts body as the multipart field "file" and decodes the result.
func (c *Client) Analyze(ctx context.Context, filename string, body []byte) (*analysis.Result, error) {
	if c.BaseURL == "" {
		return nil, errors.New("remote: base URL is empty")
	}
	payload, contentType, err := multipartBody(filename, body)
	if err != nil {
		return nil, err
	}
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, c.BaseDelay<<(attempt-1)); err != nil {
				return nil, err
			}
		}
		res, retry, err := c.post(ctx, hc, payload, contentType)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) post(ctx context.Context, hc *http.Client, payload []byte, contentType string) (*analysis.Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("remote: build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		var nerr net.Error
		retry := errors.As(err, &nerr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
		return nil, retry, fmt.Errorf("remote: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, resp.StatusCode >= 500, readStatusError(resp)
	}
	var res analysis.Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, false, fmt.Errorf("remote: decode result: %w", err)
	}
	return &res, false, nil
}

func readStatusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	se := &StatusError{Code: resp.StatusCode}
	var body struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Detail != nil {
		switch d := body.Detail.(type) {
		case string:
			se.Detail = d
		default:
			b, _ := json.Marshal(d)
			se.Detail = string(b)
		}
	} else if s := strings.TrimSpace(string(raw)); s != "" {
		se.Detail = s
	}
	return se
}

func multipartBody(filename string, body []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreatePart(fileHeader(filename))
	if err != nil {
		return nil, "", fmt.Errorf("remote: create form file: %w", err)
	}
	if _, err := part.Write(body); err != nil {
		return nil, "", fmt.Errorf("remote: write form file: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("remote: close form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// fileHeader builds the part header for the "file" field with a content type
// the service accepts.
func fileHeader(filename string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	name := strings.NewReplacer("\\", "\\\\", `"`, "\\\"").Replace(filepath.Base(filename))
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, name))
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		h.Set("Content-Type", "text/csv")
	case ".xls":
		h.Set("Content-Type", "application/vnd.ms-excel")
	case ".xlsx":
		h.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	default:
		h.Set("Content-Type", "application/octet-stream")
	}
	return h
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
