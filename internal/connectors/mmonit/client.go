package mmonit

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/xela07ax/mmonit-hub/internal/connectors"
	"golang.org/x/time/rate"
)

const (
	pathBootstrap  = "/index.csp"
	pathLogin      = "/z_security_check"
	pathHostList   = "/api/%s/status/hosts/list"
	pathHostDetail = "/api/%s/status/hosts/get"

	DefaultTimeout   = 12 * time.Second
	DefaultListLimit = 1000

	maxResponseBytes = 16 * 1024 * 1024
)

// Config — параметры подключения к одному инстансу M/Monit.
type Config struct {
	BaseURL        string
	Username       string
	Password       string
	APIVersion     string
	VerifySSL      bool
	RequestTimeout time.Duration
	ListLimit      int           // Мягкий лимит: берем только первую страницу
	Limiter        *rate.Limiter // Опционально: ограничение исходящих запросов
}

// Client — фабрика сессий для одного арендатора. Транспорт общий, cookie — у каждой сессии свои.
type Client struct {
	cfg       Config
	transport http.RoundTripper
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("mmonit: base url is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2"
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = DefaultTimeout
	}
	if cfg.ListLimit <= 0 {
		cfg.ListLimit = DefaultListLimit
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: !cfg.VerifySSL, //nolint:gosec
	}

	return &Client{cfg: cfg, transport: transport}, nil
}

// BaseURL возвращает адрес инстанса без слэша в конце
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// HostViewURL — ссылка на карточку хоста в админке M/Monit
func (c *Client) HostViewURL(id string) string {
	return fmt.Sprintf("%s/admin/hosts/get?id=%s", c.cfg.BaseURL, url.QueryEscape(id))
}

// Login открывает аутентифицированную сессию:
// 1. GET /index.csp — получаем session cookie
// 2. POST /z_security_check — логин с выключенной CSRF-защитой (особенность API M/Monit)
func (c *Client) Login(ctx context.Context) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("mmonit: cookie jar: %w", err)
	}

	s := &Session{
		client: c,
		http: &http.Client{
			Timeout:   c.cfg.RequestTimeout,
			Transport: c.transport,
			Jar:       jar,
		},
	}

	if _, _, err := s.do(ctx, http.MethodGet, pathBootstrap, nil, nil); err != nil {
		return nil, err
	}

	form := url.Values{
		"z_username":        {c.cfg.Username},
		"z_password":        {c.cfg.Password},
		"z_csrf_protection": {"off"},
	}
	status, _, err := s.do(ctx, http.MethodPost, pathLogin, nil, form)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &connectors.AuthError{StatusCode: status}
	}

	return s, nil
}

// Session — залогиненная сессия. Переиспользуется для списка и всех деталей в рамках одного прохода.
type Session struct {
	client *Client
	http   *http.Client
}

// ListHosts запрашивает список хостов (одна страница размером ListLimit).
func (s *Session) ListHosts(ctx context.Context) ([]HostSummary, error) {
	path := fmt.Sprintf(pathHostList, s.client.cfg.APIVersion)
	query := url.Values{"results": {fmt.Sprint(s.client.cfg.ListLimit)}}

	status, body, err := s.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &connectors.APIError{Endpoint: path, StatusCode: status}
	}

	hosts, err := ParseHostList(body)
	if err != nil {
		return nil, &connectors.ParseError{Endpoint: path, Cause: err}
	}
	return hosts, nil
}

// GetHostDetail возвращает сырое тело детальной карточки хоста.
func (s *Session) GetHostDetail(ctx context.Context, id string) ([]byte, error) {
	path := fmt.Sprintf(pathHostDetail, s.client.cfg.APIVersion)
	query := url.Values{"id": {id}}

	status, body, err := s.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &connectors.APIError{Endpoint: path, StatusCode: status}
	}
	return body, nil
}

// do выполняет один запрос без ретраев. Ошибки транспорта классифицируются в Timeout/Connect.
func (s *Session) do(ctx context.Context, method, path string, query url.Values, form url.Values) (int, []byte, error) {
	if l := s.client.cfg.Limiter; l != nil {
		if err := l.Wait(ctx); err != nil {
			return 0, nil, connectors.Classify(fmt.Errorf("rate limit wait: %w", err))
		}
	}

	target := s.client.cfg.BaseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, nil, connectors.Classify(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, connectors.Classify(fmt.Errorf("read body: %w", err))
	}
	return resp.StatusCode, data, nil
}
