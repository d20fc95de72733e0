// Command webhook-lambda is the public edge for the voice vendor. It runs
// behind API Gateway, optionally checks a shared secret, and relays tool-call
// webhooks to the intake API, which owns the sessions.
package main

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"

	"github.com/wolfman30/voice-intake/pkg/logging"
)

const (
	toolCallPath  = "/webhooks/voice/tool-call"
	secretHeader  = "x-webhook-secret"
	maxBodyBytes  = 1 << 20
	defaultRelayT = 25 * time.Second
)

type relay struct {
	upstream string
	secret   string
	client   *http.Client
	logger   *logging.Logger
}

func newRelayFromEnv(logger *logging.Logger) (*relay, error) {
	upstream := strings.TrimRight(strings.TrimSpace(os.Getenv("INTAKE_API_URL")), "/")
	if upstream == "" {
		return nil, errors.New("INTAKE_API_URL is required")
	}
	timeout := defaultRelayT
	if raw := strings.TrimSpace(os.Getenv("RELAY_TIMEOUT")); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid RELAY_TIMEOUT: %w", err)
		}
		timeout = parsed
	}
	return &relay{
		upstream: upstream,
		secret:   os.Getenv("WEBHOOK_SHARED_SECRET"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger,
	}, nil
}

func main() {
	logger := logging.New(os.Getenv("LOG_LEVEL"))
	r, err := newRelayFromEnv(logger)
	if err != nil {
		logger.Error("webhook relay misconfigured", "error", err)
		os.Exit(1)
	}
	lambda.Start(r.handle)
}

func (r *relay) handle(ctx context.Context, evt events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	path := evt.RawPath
	if path == "" {
		path = evt.RequestContext.HTTP.Path
	}
	method := strings.ToUpper(evt.RequestContext.HTTP.Method)

	switch {
	case path == "/health":
		return plain(http.StatusOK, "ok"), nil
	case path != toolCallPath:
		return plain(http.StatusNotFound, "not found"), nil
	case method != http.MethodPost:
		return plain(http.StatusMethodNotAllowed, "method not allowed"), nil
	}

	if r.secret != "" {
		got := header(evt.Headers, secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(r.secret)) != 1 {
			r.logger.Warn("webhook rejected: bad shared secret", "source_ip", evt.RequestContext.HTTP.SourceIP)
			return plain(http.StatusUnauthorized, "unauthorized"), nil
		}
	}

	body, err := requestBody(evt)
	if err != nil {
		return plain(http.StatusBadRequest, "invalid body"), nil
	}
	if len(body) > maxBodyBytes {
		return plain(http.StatusRequestEntityTooLarge, "body too large"), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.upstream+toolCallPath, bytes.NewReader(body))
	if err != nil {
		return plain(http.StatusInternalServerError, "relay error"), nil
	}
	req.Header.Set("Content-Type", "application/json")
	if id := evt.RequestContext.RequestID; id != "" {
		req.Header.Set("X-Request-Id", id)
	}
	if ip := evt.RequestContext.HTTP.SourceIP; ip != "" {
		req.Header.Set("X-Forwarded-For", ip)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("webhook relay failed", "error", err)
		return plain(http.StatusBadGateway, "upstream error"), nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	out := events.APIGatewayV2HTTPResponse{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
		Headers:    map[string]string{},
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		out.Headers["content-type"] = ct
	}
	return out, nil
}

func requestBody(evt events.APIGatewayV2HTTPRequest) ([]byte, error) {
	if !evt.IsBase64Encoded {
		return []byte(evt.Body), nil
	}
	return base64.StdEncoding.DecodeString(evt.Body)
}

// header looks a name up case-insensitively; API Gateway lowercases names
// but test events and other proxies may not.
func header(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func plain(status int, body string) events.APIGatewayV2HTTPResponse {
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Body:       body,
		Headers:    map[string]string{"content-type": "text/plain; charset=utf-8"},
	}
}
