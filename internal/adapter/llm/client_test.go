package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func fastRetry(max int) RetryConfig {
	return RetryConfig{MaxRetries: max, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

func reply(content string) string {
	b, _ := json.Marshal(chatResponse{Choices: []chatChoice{{Message: chatMessage{Role: "assistant", Content: content}}}})
	return string(b)
}

func TestClientGenerateWithSystem(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Write([]byte(reply("hello")))
	}))
	defer srv.Close()

	c := NewClient("secret", "deepseek-chat", srv.URL, ClientOptions{Retry: fastRetry(2)})
	out, err := c.GenerateWithSystem(context.Background(), "sys", "user")
	if err != nil {
		t.Fatal(err)
	}
	if out != "hello" {
		t.Errorf("output = %q", out)
	}
	if got.Model != "deepseek-chat" || len(got.Messages) != 2 || got.Messages[0].Role != "system" {
		t.Errorf("unexpected request: %+v", got)
	}
	if calls, failures := c.Stats(); calls != 1 || failures != 0 {
		t.Errorf("stats = %d/%d", calls, failures)
	}
}

func TestClientRetriesTransientStatus(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(reply("ok")))
	}))
	defer srv.Close()

	c := NewClient("k", "m", srv.URL, ClientOptions{Retry: fastRetry(2)})
	out, err := c.Generate(context.Background(), "p")
	if err != nil {
		t.Fatal(err)
	}
	if out != "ok" || hits.Load() != 3 {
		t.Errorf("out=%q hits=%d", out, hits.Load())
	}
}

func TestClientGivesUpAfterRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient("k", "m", srv.URL, ClientOptions{Retry: fastRetry(2)})
	_, err := c.Generate(context.Background(), "p")
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 StatusError, got %v", err)
	}
	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
	if _, failures := c.Stats(); failures != 1 {
		t.Errorf("failures = %d", failures)
	}
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := NewClient("k", "m", srv.URL, ClientOptions{Retry: fastRetry(2)})
	if _, err := c.Generate(context.Background(), "p"); err == nil {
		t.Fatal("expected error")
	}
	if hits.Load() != 1 {
		t.Errorf("401 must not be retried, got %d attempts", hits.Load())
	}
}

func TestClientHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient("k", "m", srv.URL, ClientOptions{Retry: RetryConfig{MaxRetries: 2, InitialBackoff: time.Hour, MaxBackoff: time.Hour}})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Generate(ctx, "p")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("backoff ignored context cancellation")
	}
}

func TestCalculateBackoff(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second}
	want := []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}
	for i, w := range want {
		if got := calculateBackoff(i, cfg); got != w {
			t.Errorf("attempt %d: got %v, want %v", i, got, w)
		}
	}
}

func TestClassifierAndUnderstanderWithMock(t *testing.T) {
	m := NewMockLLM().
		On("Split the results", twoGroups).
		On("User query", `{"brand":"RedRock","model":null,"component":"fuse","ecuType":null,"queryType":null}`)

	cls, err := NewClassifier(m).Classify(context.Background(), []string{"1. a (x)", "Total 12 documents. Brand counts: RedRock: 12"}, "redrock")
	if err != nil {
		t.Fatal(err)
	}
	if len(cls.Groups) != 2 || cls.Prompt != "Which series?" {
		t.Errorf("unexpected classification: %+v", cls)
	}

	info, err := NewUnderstander(m).Understand(context.Background(), " redrock fuse ")
	if err != nil {
		t.Fatal(err)
	}
	if info.Brand != "RedRock" || info.Component != "fuse" || info.OriginalQuery != "redrock fuse" {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestClassifierPropagatesFailure(t *testing.T) {
	m := NewMockLLM().Fail(errors.New("boom"))
	if _, err := NewClassifier(m).Classify(context.Background(), []string{"x"}, "q"); err == nil {
		t.Error("expected error")
	}
	m = NewMockLLM().Default("not json at all")
	if _, err := NewClassifier(m).Classify(context.Background(), []string{"x"}, "q"); !errors.Is(err, ErrUnparseable) {
		t.Errorf("expected ErrUnparseable, got %v", err)
	}
}

func TestCountEntries(t *testing.T) {
	if n := countEntries([]string{"1. a", "Total 73 documents. Brand counts: X: 1"}); n != 73 {
		t.Errorf("got %d", n)
	}
	if n := countEntries([]string{"1. a", "2. b"}); n != 2 {
		t.Errorf("got %d", n)
	}
	if !strings.Contains(classifyPrompt, "%q") {
		t.Error("prompt must quote the query")
	}
}
