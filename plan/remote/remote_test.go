package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type mockClient struct {
	resp Response
	err  error
	got  Request
}

func (m *mockClient) Generate(_ context.Context, req Request) (Response, error) {
	m.got = req
	return m.resp, m.err
}

func TestGeneratorDefaults(t *testing.T) {
	g := New(Config{Client: &mockClient{}})
	if g.maxTokens != 2000 {
		t.Errorf("maxTokens = %d, want 2000", g.maxTokens)
	}
	if g.timeout != 60*time.Second {
		t.Errorf("timeout = %v, want 60s", g.timeout)
	}
	if g.Endpoint() != "" {
		t.Errorf("Endpoint() = %q, want empty", g.Endpoint())
	}
}

func TestGeneratorRequiresClient(t *testing.T) {
	_, err := New(Config{}).Generate(context.Background(), "p")
	if !errors.Is(err, ErrClientNotConfigured) {
		t.Errorf("Generate() error = %v, want %v", err, ErrClientNotConfigured)
	}
}

func TestGeneratorGenerate(t *testing.T) {
	client := &mockClient{resp: Response{Text: "<execute_python>result = 1</execute_python>"}}
	g := New(Config{Client: client, Model: "small", MaxTokens: 50})

	text, err := g.Generate(context.Background(), "count tasks")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != client.resp.Text {
		t.Errorf("Generate() = %q", text)
	}
	if client.got.Model != "small" || client.got.Prompt != "count tasks" || client.got.MaxTokens != 50 {
		t.Errorf("request = %+v", client.got)
	}
}

func TestGeneratorErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *mockClient
		want   error
	}{
		{"remote error", &mockClient{resp: Response{Error: &RemoteError{Code: "overloaded", Message: "try later"}}}, ErrGenerationFailed},
		{"empty text", &mockClient{resp: Response{Text: "  "}}, ErrGenerationFailed},
		{"transport", &mockClient{err: ErrConnectionFailed}, ErrConnectionFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Config{Client: tt.client}).Generate(context.Background(), "p")
			if !errors.Is(err, tt.want) {
				t.Errorf("Generate() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHTTPClient(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %q", got)
		}
		var req Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(Response{Text: "echo: " + req.Prompt})
	}))
	defer srv.Close()

	g := New(Config{Client: NewHTTPClient(srv.URL, WithToken("secret"), WithMaxRetries(1))})
	if g.Endpoint() != srv.URL {
		t.Errorf("Endpoint() = %q", g.Endpoint())
	}
	text, err := g.Generate(context.Background(), "hi")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if text != "echo: hi" {
		t.Errorf("Generate() = %q", text)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
}

func TestHTTPClientClientError(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"bad_prompt","message":"prompt too long"}}`))
	}))
	defer srv.Close()

	_, err := New(Config{Client: NewHTTPClient(srv.URL)}).Generate(context.Background(), "hi")
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("Generate() error = %v, want %v", err, ErrGenerationFailed)
	}
	if hits.Load() != 1 {
		t.Errorf("hits = %d, want 1", hits.Load())
	}
}

func TestHTTPClientRequiresEndpoint(t *testing.T) {
	_, err := NewHTTPClient("").Generate(context.Background(), Request{})
	if !errors.Is(err, ErrClientNotConfigured) {
		t.Errorf("Generate() error = %v", err)
	}
}
