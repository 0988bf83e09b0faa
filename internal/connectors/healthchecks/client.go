package healthchecks

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/xela07ax/mmonit-hub/internal/connectors"
)

const (
	pathChecks     = "/api/v3/checks/"
	headerAPIKey   = "X-Api-Key"
	DefaultTimeout = 12 * time.Second

	maxResponseBytes = 8 * 1024 * 1024
)

// Check — элемент ответа /api/v3/checks/.
// С read-only ключом Healthchecks не отдает id, зато отдает unique_key.
type Check struct {
	ID        CheckID `json:"id"`
	Name      string  `json:"name"`
	Slug      string  `json:"slug"`
	Status    string  `json:"status"`
	Tags      string  `json:"tags"` // Теги через пробел
	UniqueKey string  `json:"unique_key"`
}

// CheckID — id проверки как есть: строка, либо текст числа, если upstream прислал число.
type CheckID string

func (id *CheckID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*id = ""
		return nil
	}
	if b[0] != '"' {
		*id = CheckID(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*id = CheckID(s)
	return nil
}

type checksResponse struct {
	Checks []Check `json:"checks"`
}

// Query — параметры запроса одного проекта.
type Query struct {
	APIBase   string
	APIKey    string
	Tags      []string // Несколько тегов — логическое AND на стороне Healthchecks
	VerifySSL bool
}

// Client — общий клиент Healthchecks API. Проекты различаются ключом и TLS-режимом,
// поэтому держим два http.Client: с проверкой сертификата и без.
type Client struct {
	timeout time.Duration

	once     sync.Once
	secure   *http.Client
	insecure *http.Client
}

func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{timeout: timeout}
}

func (c *Client) init() {
	c.once.Do(func() {
		secureTransport := http.DefaultTransport.(*http.Transport).Clone()
		insecureTransport := http.DefaultTransport.(*http.Transport).Clone()
		insecureTransport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec

		c.secure = &http.Client{Timeout: c.timeout, Transport: secureTransport}
		c.insecure = &http.Client{Timeout: c.timeout, Transport: insecureTransport}
	})
}

// ListChecks запрашивает проверки проекта. Одна попытка, без ретраев.
func (c *Client) ListChecks(ctx context.Context, q Query) ([]Check, error) {
	c.init()

	params := url.Values{}
	for _, tag := range q.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			params.Add("tag", tag)
		}
	}

	target := strings.TrimRight(q.APIBase, "/") + pathChecks
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set(headerAPIKey, q.APIKey)
	req.Header.Set("Accept", "application/json")

	httpClient := c.secure
	if !q.VerifySSL {
		httpClient = c.insecure
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, connectors.Classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, connectors.Classify(fmt.Errorf("read body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &connectors.APIError{Endpoint: pathChecks, StatusCode: resp.StatusCode}
	}

	var payload checksResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &connectors.ParseError{Endpoint: pathChecks, Cause: err}
	}
	return payload.Checks, nil
}
