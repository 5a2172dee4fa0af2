package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"roofsite-go/internal/config"
)

func upstream(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.LLMConfig{BaseURL: srv.URL, APIKey: "k", Model: "m", IdleTimeoutSeconds: 5})
}

func TestStreamChatMessagesForwardsDeltas(t *testing.T) {
	var got chatRequest
	c := upstream(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" || r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("unexpected request %s %s", r.URL.Path, r.Header.Get("Authorization"))
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, ": ping\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"role":"assistant"}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"Hello"}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":" there"}}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var deltas []string
	err := c.StreamChatMessages(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil, DeltaWriterFunc(func(s string) error {
		deltas = append(deltas, s)
		return nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(deltas, []string{"Hello", " there"}) {
		t.Fatalf("deltas = %v", deltas)
	}
	if !got.Stream || got.Model != "m" || len(got.Messages) != 1 {
		t.Fatalf("request = %+v", got)
	}
}

func TestNon200ReturnsStatusError(t *testing.T) {
	c := upstream(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"error":"credits exhausted"}`)
	})
	_, err := c.Complete(context.Background(), []Message{{Role: "user", Content: "hi"}}, nil)
	var se *StatusError
	if !errors.As(err, &se) || se.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("err = %v", err)
	}
}

func TestCompleteJoinsDeltas(t *testing.T) {
	c := upstream(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"a"}}]}`+"\n\n")
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"b"}}]}`+"\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	out, err := c.Complete(context.Background(), nil, nil)
	if err != nil || out != "ab" {
		t.Fatalf("out = %q, err = %v", out, err)
	}
}

func TestIdleTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `data: {"choices":[{"delta":{"content":"a"}}]}`+"\n\n")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	defer srv.Close()

	c := &openAIClient{cfg: config.LLMConfig{BaseURL: srv.URL, IdleTimeoutSeconds: 1}, client: &http.Client{}}
	err := c.StreamChatMessages(context.Background(), nil, nil, DeltaWriterFunc(func(string) error { return nil }))
	if !errors.Is(err, ErrIdleTimeout) {
		t.Fatalf("err = %v, want ErrIdleTimeout", err)
	}
}

func TestDefaultGenerationParams(t *testing.T) {
	if DefaultGenerationParams(config.LLMGenerationConfig{}) != nil {
		t.Fatal("expected nil for zero config")
	}
	gp := DefaultGenerationParams(config.LLMGenerationConfig{MaxTokens: 100})
	if gp == nil || gp.MaxTokens == nil || *gp.MaxTokens != 100 || gp.Temperature != nil {
		t.Fatalf("gp = %+v", gp)
	}
}
