package sitechat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"roofsite-go/pkg/sse"
)

// streamServer answers every chat request with the given raw pieces, flushing after each.
func streamServer(t *testing.T, check func(chatBody), pieces ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body chatBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if check != nil {
			check(body)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		f := w.(http.Flusher)
		for _, p := range pieces {
			w.Write([]byte(p))
			f.Flush()
		}
	}))
}

func frames(t *testing.T, deltas ...string) []string {
	t.Helper()
	out := make([]string, 0, len(deltas)+1)
	for _, d := range deltas {
		b, err := sse.DeltaFrame(d)
		if err != nil {
			t.Fatal(err)
		}
		out = append(out, string(b))
	}
	return append(out, string(sse.DoneFrame()))
}

func TestOnboardingHappyPath(t *testing.T) {
	srv := streamServer(t, func(b chatBody) {
		if len(b.Messages) != 1 || b.Messages[0].Content != "ABC Roofing" || b.Messages[0].Role != "user" {
			t.Errorf("messages = %+v", b.Messages)
		}
		if b.CurrentConfig != nil {
			t.Errorf("onboarding should not send currentConfig")
		}
	}, frames(t, "Great, thanks! ", "<site_", `config>{"businessName":`, `"ABC Roofing"}</site_config>`, " Anything else?")...)
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	var configEvents int
	var states []State
	turn, err := c.Send(context.Background(), Request{Text: "ABC Roofing"}, func(u Update) {
		if u.Config != nil {
			configEvents++
			if u.Config.BusinessName() != "ABC Roofing" {
				t.Errorf("config = %v", u.Config)
			}
		}
		if strings.Contains(u.Display, "<site") || strings.Contains(u.Display, "businessName") {
			t.Errorf("display leaked markup: %q", u.Display)
		}
		if len(states) == 0 || states[len(states)-1] != u.State {
			states = append(states, u.State)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if configEvents != 1 {
		t.Errorf("config events = %d, want 1", configEvents)
	}
	if turn.State != Complete || c.State() != Complete {
		t.Errorf("state = %v / %v", turn.State, c.State())
	}
	want := []State{Sending, Streaming, Complete}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
	if turn.Display != "Great, thanks!  Anything else?" {
		t.Errorf("display = %q", turn.Display)
	}
	msgs := c.Messages()
	if len(msgs) != 2 || msgs[1].Role != "assistant" || msgs[1].Content != turn.Display {
		t.Errorf("transcript = %+v", msgs)
	}
	if c.Config().BusinessName() != "ABC Roofing" {
		t.Errorf("client config = %v", c.Config())
	}
}

func TestEditModeCompleteDocumentAndChanges(t *testing.T) {
	srv := streamServer(t, func(b chatBody) {
		if b.Mode != "edit" || b.CurrentConfig["phone"] != "555-1111" {
			t.Errorf("request = %+v", b)
		}
	}, frames(t,
		"Updating your phone number.",
		`<site_config>{"businessName":"ABC","phone":"555-2222"}</site_config>`,
		"<changes>\n- Updated phone number\n</changes>",
	)...)
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	var changes []string
	turn, err := c.Send(context.Background(), Request{
		Text:          "change my phone to 555-2222",
		Mode:          "edit",
		CurrentConfig: map[string]any{"businessName": "ABC", "phone": "555-1111"},
	}, func(u Update) {
		if u.Changes != nil {
			changes = u.Changes
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if turn.Config["businessName"] != "ABC" || turn.Config["phone"] != "555-2222" {
		t.Errorf("config = %v", turn.Config)
	}
	if len(changes) != 1 || changes[0] != "Updated phone number" {
		t.Errorf("changes = %v", changes)
	}
	if strings.Contains(turn.Display, "changes") || strings.Contains(turn.Display, "555-2222") {
		t.Errorf("display = %q", turn.Display)
	}
}

func TestSplitJSONLineAppendedOnce(t *testing.T) {
	line, _ := sse.DeltaFrame("héllo")
	s := string(line)
	cut := strings.Index(s, "llo")
	srv := streamServer(t, nil, s[:cut], s[cut:], string(sse.DoneFrame()))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	turn, err := c.Send(context.Background(), Request{Text: "hi"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if turn.Display != "héllo" {
		t.Errorf("display = %q", turn.Display)
	}
	if turn.State != StreamedNoConfig {
		t.Errorf("state = %v", turn.State)
	}
}

func TestFinalLineWithoutNewlineIsFlushed(t *testing.T) {
	srv := streamServer(t, nil, `data: {"choices":[{"delta":{"content":"Hi"}}]}`+"\n\n", `data: {"choices":[{"delta":{"content":" there"}}]}`)
	defer srv.Close()

	turn, err := New(Options{BaseURL: srv.URL}).Send(context.Background(), Request{Text: "hi"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if turn.Display != "Hi there" {
		t.Errorf("display = %q", turn.Display)
	}
}

func errorServer(status int, body string, header map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range header {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		header     map[string]string
		sentinel   error
		retryAfter int
		detail     string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":"Too many requests. Please try again later.","retryAfter":42}`, map[string]string{"Retry-After": "42"}, ErrRateLimited, 42, ""},
		{"retry header only", http.StatusTooManyRequests, `{"error":"slow down"}`, map[string]string{"Retry-After": "7"}, ErrRateLimited, 7, ""},
		{"quota", http.StatusPaymentRequired, `{"code":402,"message":"quota/credits exhausted"}`, nil, ErrQuotaExhausted, 0, ""},
		{"generic", http.StatusBadGateway, `{"code":502,"message":"AI service is temporarily unavailable: boom"}`, nil, nil, 0, "AI service is temporarily unavailable: boom"},
		{"plain text", http.StatusInternalServerError, "oops", nil, nil, 0, "oops"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := errorServer(tt.status, tt.body, tt.header)
			defer srv.Close()

			c := New(Options{BaseURL: srv.URL})
			turn, err := c.Send(context.Background(), Request{Text: "hello"}, nil)
			var reqErr *RequestError
			if !errors.As(err, &reqErr) {
				t.Fatalf("err = %v, want *RequestError", err)
			}
			if reqErr.StatusCode != tt.status {
				t.Errorf("status = %d", reqErr.StatusCode)
			}
			if tt.sentinel != nil && !errors.Is(err, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false", err, tt.sentinel)
			}
			if tt.sentinel == nil && (errors.Is(err, ErrRateLimited) || errors.Is(err, ErrQuotaExhausted)) {
				t.Errorf("generic error matched a specific sentinel: %v", err)
			}
			if reqErr.RetryAfter != tt.retryAfter {
				t.Errorf("retryAfter = %d, want %d", reqErr.RetryAfter, tt.retryAfter)
			}
			if tt.detail != "" && reqErr.Detail != tt.detail {
				t.Errorf("detail = %q, want %q", reqErr.Detail, tt.detail)
			}
			if turn.State != Errored || c.State() != Errored {
				t.Errorf("state = %v", turn.State)
			}
			msgs := c.Messages()
			if len(msgs) != 1 || msgs[0].Role != "user" {
				t.Errorf("transcript = %+v", msgs)
			}
		})
	}
}

func TestIdleTimeoutRetractsPlaceholder(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		frame, _ := sse.DeltaFrame("thinking")
		w.Write(frame)
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(Options{BaseURL: srv.URL, IdleTimeout: 100 * time.Millisecond})
	var sawStreaming bool
	_, err := c.Send(context.Background(), Request{Text: "hi"}, func(u Update) {
		if u.State == Streaming {
			sawStreaming = true
		}
	})
	if !errors.Is(err, ErrIdleTimeout) {
		t.Fatalf("err = %v, want ErrIdleTimeout", err)
	}
	if !sawStreaming {
		t.Error("turn never reached Streaming")
	}
	msgs := c.Messages()
	if len(msgs) != 1 || msgs[0].Role != "user" {
		t.Errorf("placeholder not retracted: %+v", msgs)
	}
}

func TestCancelAbortsStream(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(Options{BaseURL: srv.URL}).Send(ctx, Request{Text: "hi"}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestEditUsesAccumulatedConfig(t *testing.T) {
	var second chatBody
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var body chatBody
		json.NewDecoder(r.Body).Decode(&body)
		if calls == 2 {
			second = body
		}
		w.Header().Set("Content-Type", "text/event-stream")
		frame, _ := sse.DeltaFrame(`<site_config>{"businessName":"ABC"}</site_config>`)
		w.Write(frame)
		w.Write(sse.DoneFrame())
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL})
	if _, err := c.Send(context.Background(), Request{Text: "ABC"}, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Send(context.Background(), Request{Text: "add a tagline", Mode: "edit"}, nil); err != nil {
		t.Fatal(err)
	}
	if second.CurrentConfig.BusinessName() != "ABC" {
		t.Errorf("second request currentConfig = %v", second.CurrentConfig)
	}
	if len(second.Messages) != 3 || second.Messages[1].Role != "assistant" {
		t.Errorf("second request messages = %+v", second.Messages)
	}
}

func TestConcurrentSendIsRejectedWhileBusy(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("Content-Type", "text/event-stream")
		frame, _ := sse.DeltaFrame("ok")
		w.Write(frame)
		w.Write(sse.DoneFrame())
	}))
	defer srv.Close()

	const n = 8
	c := New(Options{BaseURL: srv.URL})
	start := make(chan struct{})
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			<-start
			_, err := c.Send(context.Background(), Request{Text: "hi"}, nil)
			results <- err
		}()
	}
	close(start)

	for i := 0; i < n-1; i++ {
		select {
		case err := <-results:
			if !errors.Is(err, ErrBusy) {
				close(release)
				t.Fatalf("concurrent send: err = %v, want ErrBusy", err)
			}
		case <-time.After(2 * time.Second):
			close(release)
			t.Fatal("concurrent sends were not rejected")
		}
	}
	close(release)
	if err := <-results; err != nil {
		t.Fatalf("winning send: %v", err)
	}
	msgs := c.Messages()
	if len(msgs) != 2 || msgs[0].Role != "user" || msgs[1].Content != "ok" {
		t.Errorf("transcript = %+v", msgs)
	}
}
