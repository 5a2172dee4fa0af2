// Package sitechat is a client for the streaming site-builder chat endpoint.
//
// A Client holds one conversation. Each Send is a turn that moves through
// Idle → Sending → Streaming → {Complete | StreamedNoConfig | Errored}.
// While streaming, the last transcript entry is an assistant placeholder whose
// content is replaced with the cleaned display text after every delta; on
// error the placeholder is retracted.
package sitechat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"roofsite-go/pkg/log"
	"roofsite-go/pkg/siteconfig"
	"roofsite-go/pkg/sse"
)

// DefaultIdleTimeout aborts a stream when no chunk arrives for this long.
const DefaultIdleTimeout = 30 * time.Second

// State is the per-turn state.
type State int

const (
	Idle State = iota
	Sending
	Streaming
	Complete
	StreamedNoConfig
	Errored
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Sending:
		return "sending"
	case Streaming:
		return "streaming"
	case Complete:
		return "complete"
	case StreamedNoConfig:
		return "streamed_no_config"
	case Errored:
		return "errored"
	}
	return "unknown"
}

var (
	// ErrRateLimited matches a 429 RequestError.
	ErrRateLimited = errors.New("rate limited, retry shortly")
	// ErrQuotaExhausted matches a 402 RequestError.
	ErrQuotaExhausted = errors.New("quota/credits exhausted")
	// ErrIdleTimeout is returned when the stream stays silent past the idle timeout.
	ErrIdleTimeout = errors.New("chat stream idle timeout")
	// ErrBusy is returned when Send is called while another turn is in flight.
	ErrBusy = errors.New("a turn is already in flight")
)

// RequestError is a non-2xx answer from the chat endpoint.
type RequestError struct {
	StatusCode int
	Detail     string
	// RetryAfter is the server-provided delay in seconds for 429 answers.
	RetryAfter int
}

func (e *RequestError) Error() string {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return fmt.Sprintf("%s (retry after %ds)", ErrRateLimited, e.RetryAfter)
	case http.StatusPaymentRequired:
		return ErrQuotaExhausted.Error()
	}
	if e.Detail != "" {
		return fmt.Sprintf("chat request failed (%d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("chat request failed (%d)", e.StatusCode)
}

func (e *RequestError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return ErrRateLimited
	case http.StatusPaymentRequired:
		return ErrQuotaExhausted
	}
	return nil
}

// Message is one transcript entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request describes one user turn.
type Request struct {
	Text string
	// Mode is "onboarding" (default) or "edit".
	Mode string
	// CurrentConfig seeds edit mode. When nil in edit mode the client's
	// accumulated config is used.
	CurrentConfig siteconfig.SiteConfig
	SiteID        uint
}

// Update is delivered to the Send callback after every state change and delta.
// Config and Changes are set only on the update where they were first extracted.
type Update struct {
	State   State
	Display string
	Config  siteconfig.SiteConfig
	Changes []string
}

// Turn is the outcome of one Send.
type Turn struct {
	State   State
	Display string
	Raw     string
	Config  siteconfig.SiteConfig
	Changes []string
}

// Options configures a Client.
type Options struct {
	BaseURL     string
	Token       string
	IdleTimeout time.Duration
	HTTPClient  *http.Client
}

// Client drives one conversation against POST {BaseURL}/api/v1/chat.
type Client struct {
	endpoint    string
	token       string
	idleTimeout time.Duration
	http        *http.Client

	mu       sync.Mutex
	messages []Message
	state    State
	config   siteconfig.SiteConfig
}

// New returns a Client in the Idle state with an empty transcript.
func New(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	idle := opts.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	return &Client{
		endpoint:    strings.TrimSuffix(opts.BaseURL, "/") + "/api/v1/chat",
		token:       opts.Token,
		idleTimeout: idle,
		http:        hc,
	}
}

// Messages returns a copy of the transcript.
func (c *Client) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// State returns the state of the current or last turn.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Config returns every extracted config merged in order, or nil.
func (c *Client) Config() siteconfig.SiteConfig {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.config
}

type chatBody struct {
	Messages      []Message             `json:"messages"`
	Mode          string                `json:"mode,omitempty"`
	CurrentConfig siteconfig.SiteConfig `json:"currentConfig,omitempty"`
	SiteID        uint                  `json:"siteId,omitempty"`
}

// Send appends req.Text as a user message, streams the assistant reply and
// returns the finished turn. onUpdate may be nil. On error the assistant
// placeholder is retracted and the turn ends in Errored.
func (c *Client) Send(ctx context.Context, req Request, onUpdate func(Update)) (*Turn, error) {
	if onUpdate == nil {
		onUpdate = func(Update) {}
	}

	c.mu.Lock()
	if c.state == Sending || c.state == Streaming {
		c.mu.Unlock()
		return nil, ErrBusy
	}
	// 在同一临界区内进入 Sending，并发的 Send 会在上面的检查中被拒绝。
	c.state = Sending
	c.messages = append(c.messages, Message{Role: "user", Content: req.Text})
	body := chatBody{
		Messages: append([]Message(nil), c.messages...),
		Mode:     req.Mode,
		SiteID:   req.SiteID,
	}
	if req.Mode == "edit" {
		body.CurrentConfig = req.CurrentConfig
		if body.CurrentConfig == nil {
			body.CurrentConfig = c.config
		}
		if body.CurrentConfig == nil {
			body.CurrentConfig = siteconfig.SiteConfig{}
		}
	}
	c.mu.Unlock()

	onUpdate(Update{State: Sending})

	turn, err := c.stream(ctx, body, req.Mode == "edit", onUpdate)
	if err != nil {
		c.retract()
		c.setState(Errored)
		onUpdate(Update{State: Errored})
		return &Turn{State: Errored}, err
	}
	return turn, nil
}

func (c *Client) stream(ctx context.Context, body chatBody, edit bool, onUpdate func(Update)) (*Turn, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, readRequestError(resp)
	}

	c.mu.Lock()
	c.messages = append(c.messages, Message{Role: "assistant"})
	c.state = Streaming
	c.mu.Unlock()
	onUpdate(Update{State: Streaming})

	dec := sse.NewDecoder()
	ext := siteconfig.NewExtractor(edit)
	apply := func(deltas []string) {
		for _, d := range deltas {
			u := ext.Feed(d)
			c.setPlaceholder(u.Display)
			onUpdate(Update{State: Streaming, Display: u.Display, Config: u.Config, Changes: u.Changes})
		}
	}

	chunks := readChunks(ctx, resp.Body)
	timer := time.NewTimer(c.idleTimeout)
	defer timer.Stop()

read:
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, ErrIdleTimeout
		case ch, ok := <-chunks:
			if !ok {
				break read
			}
			if ch.err != nil {
				if errors.Is(ch.err, io.EOF) {
					break read
				}
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				return nil, fmt.Errorf("failed to read chat stream: %w", ch.err)
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(c.idleTimeout)

			apply(dec.Feed(ch.data))
			if dec.Done() {
				break read
			}
		}
	}
	apply(dec.Flush())

	final := ext.Finish()
	c.setPlaceholder(final.Display)

	turn := &Turn{
		State:   StreamedNoConfig,
		Display: ext.Display(),
		Raw:     ext.Raw(),
		Config:  ext.Config(),
		Changes: ext.Changes(),
	}
	if turn.Config != nil {
		turn.State = Complete
	}

	c.mu.Lock()
	if turn.Config != nil {
		c.config = siteconfig.Merge(c.config, turn.Config)
	}
	c.state = turn.State
	c.mu.Unlock()

	onUpdate(Update{State: turn.State, Display: turn.Display})
	return turn, nil
}

type chunk struct {
	data []byte
	err  error
}

// readChunks copies body into a channel until EOF, an error or ctx is done.
func readChunks(ctx context.Context, body io.Reader) <-chan chunk {
	out := make(chan chunk)
	go func() {
		defer close(out)
		buf := make([]byte, 4096)
		for {
			n, err := body.Read(buf)
			if n > 0 {
				select {
				case out <- chunk{data: append([]byte(nil), buf[:n]...)}:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				select {
				case out <- chunk{err: err}:
				case <-ctx.Done():
				}
				return
			}
		}
	}()
	return out
}

func readRequestError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	reqErr := &RequestError{StatusCode: resp.StatusCode}

	var body struct {
		Error      string `json:"error"`
		Message    string `json:"message"`
		RetryAfter int    `json:"retryAfter"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		reqErr.Detail = body.Error
		if reqErr.Detail == "" {
			reqErr.Detail = body.Message
		}
		reqErr.RetryAfter = body.RetryAfter
	} else {
		reqErr.Detail = strings.TrimSpace(string(raw))
	}
	if reqErr.RetryAfter == 0 {
		reqErr.RetryAfter, _ = strconv.Atoi(resp.Header.Get("Retry-After"))
	}
	log.Warnf("chat request rejected: status=%d detail=%s", resp.StatusCode, reqErr.Detail)
	return reqErr
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) setPlaceholder(display string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.messages); n > 0 && c.messages[n-1].Role == "assistant" {
		c.messages[n-1].Content = display
	}
}

// retract removes the assistant placeholder added by the failed turn.
func (c *Client) retract() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.messages); n > 0 && c.messages[n-1].Role == "assistant" {
		c.messages = c.messages[:n-1]
	}
}
