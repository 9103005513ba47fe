// Package httpclient implements analysis.Gateway over the scoring service's
// HTTP contract.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hay-kot/tradeoff/internal/core/analysis"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 4 << 20

// Options configures a Client.
type Options struct {
	BaseURL     string
	AnalyzePath string
	VerifyPath  string
	Timeout     time.Duration
	HTTPClient  *http.Client
	Logger      zerolog.Logger
}

// Client talks to a remote scoring service. Every call is a single attempt.
type Client struct {
	baseURL     string
	analyzePath string
	verifyPath  string
	http        *http.Client
	log         zerolog.Logger
}

var _ analysis.Gateway = (*Client)(nil)

// New creates a Client. Empty paths fall back to the canonical ones.
func New(opts Options) *Client {
	if opts.AnalyzePath == "" {
		opts.AnalyzePath = analysis.PathAnalyze
	}
	if opts.VerifyPath == "" {
		opts.VerifyPath = analysis.PathVerify
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		analyzePath: opts.AnalyzePath,
		verifyPath:  opts.VerifyPath,
		http:        hc,
		log:         opts.Logger,
	}
}

// AnalyzeText posts text to the analyze endpoint.
func (c *Client) AnalyzeText(ctx context.Context, text string) (analysis.Result, error) {
	var resp analysis.AnalyzeResponse
	if err := c.post(ctx, c.analyzePath, analysis.AnalyzeRequest{Text: text}, &resp); err != nil {
		return analysis.Result{}, err
	}
	return resp.Normalize()
}

// VerifyImage posts a data URI and prompt to the verify endpoint.
func (c *Client) VerifyImage(ctx context.Context, image, prompt string) (analysis.Verification, error) {
	var resp analysis.VerifyResponse
	if err := c.post(ctx, c.verifyPath, analysis.VerifyRequest{Image: image, Prompt: prompt}, &resp); err != nil {
		return analysis.Verification{}, err
	}
	return resp.Normalize()
}

// Health checks the service is reachable.
func (c *Client) Health(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+analysis.PathHealth, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	var resp analysis.HealthResponse
	if err := c.do(req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

func (c *Client) post(ctx context.Context, path string, body, dest any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug().Ctx(req.Context()).Err(err).Str("url", req.URL.String()).Msg("scoring request failed")
		return analysis.NetworkError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	c.log.Debug().
		Ctx(req.Context()).
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("scoring request")

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return analysis.NetworkError(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr analysis.ErrorResponse
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return analysis.ServerErrorf("status %d: %s", resp.StatusCode, apiErr.Error)
		}
		return analysis.ServerErrorf("status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, dest); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return analysis.ServerErrorf("malformed response body at offset %d", syntaxErr.Offset)
		}
		return analysis.ServerErrorf("decode response: %v", err)
	}

	return nil
}
