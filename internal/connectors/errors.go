package connectors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
)

// AuthError — upstream отклонил логин (любой ответ кроме 200).
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("Login failed: HTTP %d", e.StatusCode)
}

// APIError — не-2xx ответ на эндпоинте с данными.
type APIError struct {
	Endpoint   string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
}

// ParseError — тело ответа не разбирается как ожидаемый JSON.
type ParseError struct {
	Endpoint string
	Cause    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("Invalid response: %v", e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// TimeoutError — запрос не уложился в таймаут.
type TimeoutError struct {
	Cause error
}

func (e *TimeoutError) Error() string {
	return "Connection timeout"
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// ConnectError — DNS, отказ в соединении, TLS и прочие проблемы транспорта.
type ConnectError struct {
	Cause error
}

func (e *ConnectError) Error() string {
	return "Connection failed"
}

func (e *ConnectError) Unwrap() error { return e.Cause }

// Classify превращает ошибку транспорта net/http в TimeoutError или ConnectError.
// Уже типизированные ошибки возвращаются как есть.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var (
		authErr  *AuthError
		apiErr   *APIError
		parseErr *ParseError
		toErr    *TimeoutError
		connErr  *ConnectError
	)
	if errors.As(err, &authErr) || errors.As(err, &apiErr) || errors.As(err, &parseErr) ||
		errors.As(err, &toErr) || errors.As(err, &connErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Cause: err}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &ConnectError{Cause: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &ConnectError{Cause: err}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &ConnectError{Cause: err}
	}

	return err
}

// Kind — короткая метка класса ошибки для метрик
func Kind(err error) string {
	var (
		authErr  *AuthError
		apiErr   *APIError
		parseErr *ParseError
		toErr    *TimeoutError
		connErr  *ConnectError
	)
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &authErr):
		return "auth"
	case errors.As(err, &apiErr):
		return "api"
	case errors.As(err, &parseErr):
		return "parse"
	case errors.As(err, &toErr):
		return "timeout"
	case errors.As(err, &connErr):
		return "connect"
	default:
		return "other"
	}
}
