// Package remote provides a plan.Generator that asks a remote text
// generation service for snippets.
// Any service that accepts the JSON request below and answers with the
// JSON response works: a model gateway, a proxy, or a local stub.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonwraymond/taskexec/code"
	"github.com/jonwraymond/taskexec/plan"
)

// Errors for remote generation.
var (
	// ErrClientNotConfigured is returned when no client is configured.
	ErrClientNotConfigured = errors.New("remote generation client not configured")

	// ErrGenerationFailed is returned when the service reports an error or
	// answers without text.
	ErrGenerationFailed = errors.New("remote generation failed")
)

// Client sends one generation request.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: Generate must honor cancellation and deadlines.
type Client interface {
	Generate(ctx context.Context, req Request) (Response, error)
}

// EndpointProvider optionally exposes the configured endpoint for diagnostics.
type EndpointProvider interface {
	Endpoint() string
}

// Request is the wire request to the generation service.
type Request struct {
	Model       string  `json:"model,omitempty"`
	Prompt      string  `json:"prompt"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature"`
}

// Response is the wire response from the generation service.
type Response struct {
	Text  string       `json:"text,omitempty"`
	Error *RemoteError `json:"error,omitempty"`
}

// RemoteError describes an error reported by the service.
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Config configures a Generator.
type Config struct {
	// Client sends the requests.
	// Required.
	Client Client

	// Model is passed through to the service.
	Model string

	// MaxTokens caps the answer length. Default: 2000.
	MaxTokens int

	// Timeout bounds one generation. Default: 60s.
	Timeout time.Duration

	// Logger is an optional logger.
	Logger code.Logger
}

// Generator implements plan.Generator over a Client.
type Generator struct {
	client    Client
	model     string
	maxTokens int
	timeout   time.Duration
	logger    code.Logger
}

var _ plan.Generator = (*Generator)(nil)

// New creates a generator with the given configuration.
func New(cfg Config) *Generator {
	g := &Generator{
		client:    cfg.Client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		timeout:   cfg.Timeout,
		logger:    cfg.Logger,
	}
	if g.maxTokens == 0 {
		g.maxTokens = 2000
	}
	if g.timeout == 0 {
		g.timeout = 60 * time.Second
	}
	return g
}

// Model returns the configured model name.
func (g *Generator) Model() string { return g.model }

// Endpoint returns the client endpoint when the client exposes one.
func (g *Generator) Endpoint() string {
	if p, ok := g.client.(EndpointProvider); ok {
		return p.Endpoint()
	}
	return ""
}

// Generate sends prompt at temperature 0 and returns the answer text.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	if g.client == nil {
		return "", ErrClientNotConfigured
	}
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Generate(ctx, Request{
		Model:     g.model,
		Prompt:    prompt,
		MaxTokens: g.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", fmt.Errorf("%w: %s: %s", ErrGenerationFailed, resp.Error.Code, resp.Error.Message)
	}
	if strings.TrimSpace(resp.Text) == "" {
		return "", fmt.Errorf("%w: empty answer", ErrGenerationFailed)
	}
	if g.logger != nil {
		g.logger.Logf("remote generation: %d chars in %s", len(resp.Text), time.Since(start).Round(time.Millisecond))
	}
	return resp.Text, nil
}
