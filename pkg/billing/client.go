// Package billing provides a thin client for the payment processor's customer portal API.
package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"roofsite-go/internal/config"
	"roofsite-go/pkg/log"
	"strconv"
	"strings"
)

// Client defines the interface for a billing client.
type Client interface {
	// CreateCustomer registers a customer for the given account and returns its id.
	CreateCustomer(ctx context.Context, name string, userID uint) (string, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
}

type portalClient struct {
	cfg    config.BillingConfig
	client *http.Client
}

// NewClient creates a new billing client from config.
func NewClient(cfg config.BillingConfig) Client {
	return &portalClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

type customerResponse struct {
	ID string `json:"id"`
}

type portalSessionResponse struct {
	URL string `json:"url"`
}

// CreateCustomer creates a customer tagged with the user id in its metadata.
func (c *portalClient) CreateCustomer(ctx context.Context, name string, userID uint) (string, error) {
	form := url.Values{}
	form.Set("name", name)
	form.Set("metadata[user_id]", strconv.FormatUint(uint64(userID), 10))

	var customer customerResponse
	if err := c.post(ctx, "/v1/customers", form, &customer); err != nil {
		return "", err
	}
	if customer.ID == "" {
		return "", fmt.Errorf("billing api returned an empty customer id")
	}
	return customer.ID, nil
}

// CreatePortalSession creates a customer-portal session and returns its URL.
func (c *portalClient) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	form := url.Values{}
	form.Set("customer", customerID)
	if c.cfg.ReturnURL != "" {
		form.Set("return_url", c.cfg.ReturnURL)
	}

	var session portalSessionResponse
	if err := c.post(ctx, "/v1/billing_portal/sessions", form, &session); err != nil {
		return "", err
	}
	if session.URL == "" {
		return "", fmt.Errorf("billing api returned an empty portal url")
	}
	return session.URL, nil
}

func (c *portalClient) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(c.cfg.APIBaseURL, "/")+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create billing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	resp, err := c.client.Do(req)
	if err != nil {
		log.Errorf("[BillingClient] 调用 %s 失败, error: %v", path, err)
		return fmt.Errorf("failed to call billing api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		log.Errorf("[BillingClient] %s 返回非 200 状态码: %s", path, resp.Status)
		return fmt.Errorf("billing api returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode billing response: %w", err)
	}
	return nil
}
