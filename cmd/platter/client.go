package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"syscall"
	"time"

	"platter/internal/config"
)

// apiClient talks to a running daemon over its HTTP bind address.
type apiClient struct {
	base string
	http *http.Client
}

var errDaemonUnreachable = errors.New("daemon is not reachable")

func newAPIClient(cfg *config.Config) *apiClient {
	return &apiClient{
		base: "http://" + cfg.Paths.APIBind,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) get(path string, out any) error {
	resp, err := c.http.Get(c.base + path)
	if err != nil {
		return wrapTransportError(err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *apiClient) post(path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	resp, err := c.http.Post(c.base+path, "application/json", body)
	if err != nil {
		return wrapTransportError(err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 400 {
		message, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &httpStatusError{code: resp.StatusCode, message: string(bytes.TrimSpace(message))}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func wrapTransportError(err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT) {
		return fmt.Errorf("%w: start it with `platter run`", errDaemonUnreachable)
	}
	return err
}

type httpStatusError struct {
	code    int
	message string
}

func (e *httpStatusError) Error() string {
	if e.message == "" {
		return fmt.Sprintf("daemon returned status %d", e.code)
	}
	return fmt.Sprintf("daemon returned status %d: %s", e.code, e.message)
}
