// Package tourvisor provides an SDK for the Tourvisor API behind eto.travel.
//
// Architecture:
//
// Like the Wildberries SDK this is an **API SDK**, not a "dumb" HTTP client:
//   - HTTP client with retry, rate limiting, and error classification
//   - Browser-like headers, session and referrer params Tourvisor insists on
//   - Long polling of search results (modresult.php) until the search finishes
//
// Usage pattern:
//   - pkg/tourvisor - SDK (knows endpoints and payload quirks)
//   - pkg/dictionary - parses the raw dictionary payload into strict entities
//   - pkg/tools/travel - thin wrappers exposed to the assistant
package tourvisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ilkoid/eto-travel-mcp/pkg/config"
	"github.com/ilkoid/eto-travel-mcp/pkg/utils"
	"golang.org/x/time/rate"
)

// ErrorType представляет тип ошибки при работе с Tourvisor API.
type ErrorType int

const (
	ErrUnknown ErrorType = iota
	ErrAuthFailed
	ErrTimeout
	ErrNetwork
	ErrRateLimit
	ErrBadResponse
)

// String возвращает строковое представление типа ошибки.
func (e ErrorType) String() string {
	switch e {
	case ErrAuthFailed:
		return "authentication_failed"
	case ErrTimeout:
		return "timeout"
	case ErrNetwork:
		return "network_error"
	case ErrRateLimit:
		return "rate_limit"
	case ErrBadResponse:
		return "bad_response"
	default:
		return "unknown"
	}
}

// HumanMessage возвращает человекочитаемое сообщение для типа ошибки.
func (e ErrorType) HumanMessage() string {
	switch e {
	case ErrAuthFailed:
		return "Tourvisor отклонил сессию. Проверьте tourvisor.session (TOURVISOR_SESSION) в конфигурации."
	case ErrTimeout:
		return "Превышено время ожидания. Tourvisor не отвечает или проблемы с сетью."
	case ErrNetwork:
		return "Tourvisor недоступен. Проверьте подключение к интернету."
	case ErrRateLimit:
		return "Превышен лимит запросов. Подождите перед следующей попыткой."
	case ErrBadResponse:
		return "Tourvisor вернул ответ неожиданного формата."
	default:
		return "Неизвестная ошибка при обращении к Tourvisor."
	}
}

// StatusError — ответ upstream с кодом, отличным от 200.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	body := e.Body
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("tourvisor api error: status %d, body: %s", e.Code, body)
}

// HTTPClient интерфейс для выполнения HTTP запросов.
//
// Позволяет мокировать HTTP клиент в тестах.
// Стандартный *http.Client реализует этот интерфейс.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client — клиент Tourvisor API.
type Client struct {
	cfg        config.TourvisorConfig
	httpClient HTTPClient

	mu       sync.Mutex
	limiters map[string]*rate.Limiter // endpoint ID → limiter
}

// NewFromConfig создает новый клиент из конфигурации.
//
// Поля с нулевыми значениями используют дефолтные значения через GetDefaults().
func NewFromConfig(cfg config.TourvisorConfig) (*Client, error) {
	cfg = cfg.GetDefaults()

	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil {
		return nil, fmt.Errorf("invalid tourvisor.timeout format: %w", err)
	}

	return NewWithHTTPClient(cfg, &http.Client{Timeout: timeout}), nil
}

// NewWithHTTPClient создает клиент с заданным HTTP клиентом (для тестов).
func NewWithHTTPClient(cfg config.TourvisorConfig, httpClient HTTPClient) *Client {
	return &Client{
		cfg:        cfg.GetDefaults(),
		httpClient: httpClient,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Config возвращает эффективную конфигурацию клиента.
func (c *Client) Config() config.TourvisorConfig {
	return c.cfg
}

// ClassifyError классифицирует ошибку по типу для лучшей диагностики.
func (c *Client) ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrUnknown
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Code == http.StatusUnauthorized || statusErr.Code == http.StatusForbidden:
			return ErrAuthFailed
		case statusErr.Code == http.StatusTooManyRequests:
			return ErrRateLimit
		}
		return ErrUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout
	}

	errMsg := err.Error()
	errMsgLower := strings.ToLower(errMsg)

	if strings.Contains(errMsgLower, "timeout") {
		return ErrTimeout
	}

	if strings.Contains(errMsg, "connection refused") ||
		strings.Contains(errMsg, "no such host") {
		return ErrNetwork
	}

	if strings.Contains(errMsgLower, "unmarshal") ||
		strings.Contains(errMsgLower, "unexpected payload") {
		return ErrBadResponse
	}

	return ErrUnknown
}

// withSession добавляет referrer и session, без которых Tourvisor отвечает пусто.
func (c *Client) withSession(params url.Values) url.Values {
	if params == nil {
		params = url.Values{}
	}
	if c.cfg.Referrer != "" && params.Get("referrer") == "" {
		params.Set("referrer", c.cfg.Referrer)
	}
	if c.cfg.Session != "" {
		params.Set("session", c.cfg.Session)
	}
	return params
}

// refererOrigin возвращает origin из referrer (https://eto.travel/).
func (c *Client) refererOrigin() string {
	u, err := url.Parse(c.cfg.Referrer)
	if err != nil || u.Host == "" {
		return c.cfg.Referrer
	}
	return u.Scheme + "://" + u.Host + "/"
}

// get выполняет GET запрос с retry логикой и rate limiting и возвращает тело ответа.
//
// Параметры:
//   - ctx: контекст для отмены
//   - endpointID: идентификатор endpoint для выбора limiter (например, "listdev_dictionary")
//   - rawURL: полный URL без query
//   - params: query параметры (session и referrer добавляются автоматически)
func (c *Client) get(ctx context.Context, endpointID string, rawURL string, params url.Values) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	u.RawQuery = c.withSession(params).Encode()
	reqURL := u.String()

	limiter := c.getOrCreateLimiter(endpointID)

	var lastErr error

	for i := 0; i < c.cfg.RetryAttempts; i++ {
		// Ждем разрешения от лимитера (блокирует горутину, если превысили лимит)
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
		httpReq.Header.Set("Referer", c.refererOrigin())
		httpReq.Header.Set("Accept", "application/json, text/plain, */*")

		utils.Debug("Tourvisor request", "endpoint", endpointID, "url", utils.MaskURL(reqURL), "attempt", i+1)

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue // Сетевая ошибка, пробуем еще
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = fmt.Errorf("read body: %w", readErr)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = &StatusError{Code: resp.StatusCode, Body: string(body)}
			retryAfter := 1 * time.Second
			if s := resp.Header.Get("Retry-After"); s != "" {
				if sec, err := strconv.Atoi(s); err == nil {
					retryAfter = time.Duration(sec) * time.Second
				}
			}

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryAfter):
				continue
			}
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			lastErr = &StatusError{Code: resp.StatusCode, Body: string(body)}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
		}

		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded, last error: %w", lastErr)
}

// getOrCreateLimiter возвращает существующий limiter для endpointID или создаёт новый.
//
// rate_limit в запросах/минуту → rate.Limit в запросах/секунду.
func (c *Client) getOrCreateLimiter(endpointID string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	if limiter, exists := c.limiters[endpointID]; exists {
		return limiter
	}

	ratePerSec := float64(c.cfg.RateLimit) / 60.0
	limiter := rate.NewLimiter(rate.Limit(ratePerSec), c.cfg.BurstLimit)
	c.limiters[endpointID] = limiter

	return limiter
}
