package tourvisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ilkoid/eto-travel-mcp/pkg/utils"
)

// DateLayout — формат дат, который принимает list.php (dd.mm.yyyy).
const DateLayout = "02.01.2006"

// ErrInvalidSearch — параметры поиска не прошли валидацию.
var ErrInvalidSearch = errors.New("invalid search parameters")

// ErrNoRequestID — Tourvisor не вернул идентификатор поиска.
var ErrNoRequestID = errors.New("unexpected payload: no request id in search response")

// SearchParams — параметры запуска поиска туров.
type SearchParams struct {
	CountryID   int
	DepartureID int
	DateFrom    string // dd.mm.yyyy
	DateTo      string // dd.mm.yyyy
	NightsFrom  int
	NightsTo    int
	Adults      int
	Children    int
	RegionIDs   []int
	HotelIDs    []int
}

// Validate проверяет параметры поиска.
func (p SearchParams) Validate() error {
	if p.CountryID <= 0 {
		return fmt.Errorf("%w: country_id must be positive", ErrInvalidSearch)
	}
	if p.DepartureID <= 0 {
		return fmt.Errorf("%w: departure_id must be positive", ErrInvalidSearch)
	}

	from, err := time.Parse(DateLayout, p.DateFrom)
	if err != nil {
		return fmt.Errorf("%w: date_from must be DD.MM.YYYY, got %q", ErrInvalidSearch, p.DateFrom)
	}
	to, err := time.Parse(DateLayout, p.DateTo)
	if err != nil {
		return fmt.Errorf("%w: date_to must be DD.MM.YYYY, got %q", ErrInvalidSearch, p.DateTo)
	}
	if to.Before(from) {
		return fmt.Errorf("%w: date_to %s is before date_from %s", ErrInvalidSearch, p.DateTo, p.DateFrom)
	}

	if p.NightsFrom < 1 || p.NightsTo < p.NightsFrom {
		return fmt.Errorf("%w: nights range %d..%d is invalid", ErrInvalidSearch, p.NightsFrom, p.NightsTo)
	}
	if p.Adults < 1 {
		return fmt.Errorf("%w: adults must be at least 1", ErrInvalidSearch)
	}
	if p.Children < 0 {
		return fmt.Errorf("%w: children must not be negative", ErrInvalidSearch)
	}

	return nil
}

// query собирает параметры list.php в формате формы поиска eto.travel.
func (p SearchParams) query() url.Values {
	q := url.Values{}
	q.Set("ts_dosearch", "1")
	q.Set("s_form_mode", "0")
	q.Set("s_flyfrom", strconv.Itoa(p.DepartureID))
	q.Set("s_country", strconv.Itoa(p.CountryID))
	q.Set("s_nights_from", strconv.Itoa(p.NightsFrom))
	q.Set("s_nights_to", strconv.Itoa(p.NightsTo))
	q.Set("s_j_date_from", p.DateFrom)
	q.Set("s_j_date_to", p.DateTo)
	q.Set("s_adults", strconv.Itoa(p.Adults))
	q.Set("s_regular", "1")
	q.Set("s_currency", "0")
	q.Set("format", "json")

	if p.Children > 0 {
		q.Set("s_kids", strconv.Itoa(p.Children))
	}
	if len(p.RegionIDs) > 0 {
		q.Set("s_region_to", joinInts(p.RegionIDs))
	}
	if len(p.HotelIDs) > 0 {
		q.Set("s_hotels", joinInts(p.HotelIDs))
	}
	return q
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.Itoa(id)
	}
	return strings.Join(parts, ",")
}

// requestIDPattern вытаскивает requestid из HTML/JS, если list.php ответил не JSON.
var requestIDPattern = regexp.MustCompile(`requestid["']?\s*[:=]\s*["']?(\d+)`)

// extractRequestID ищет requestid в result.requestid, data.requestid или в тексте.
func extractRequestID(body []byte) string {
	var resp struct {
		Result struct {
			RequestID json.RawMessage `json:"requestid"`
		} `json:"result"`
		Data struct {
			RequestID json.RawMessage `json:"requestid"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err == nil {
		for _, raw := range []json.RawMessage{resp.Result.RequestID, resp.Data.RequestID} {
			if id := strings.Trim(strings.TrimSpace(string(raw)), `"`); id != "" && id != "null" && id != "0" {
				return id
			}
		}
	}

	if m := requestIDPattern.FindSubmatch(body); m != nil {
		return string(m[1])
	}
	return ""
}

// StartSearch запускает поиск и возвращает его requestid.
func (c *Client) StartSearch(ctx context.Context, p SearchParams) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	body, err := c.get(ctx, "search_start", c.cfg.BaseURL+"/xml/list.php", p.query())
	if err != nil {
		return "", fmt.Errorf("start search: %w", err)
	}

	id := extractRequestID(body)
	if id == "" {
		preview := string(body)
		if len(preview) > 100 {
			preview = preview[:100]
		}
		return "", fmt.Errorf("%w: %s", ErrNoRequestID, preview)
	}
	return id, nil
}

// PollResults забирает следующую порцию результатов после блока lastBlock.
func (c *Client) PollResults(ctx context.Context, requestID string, lastBlock int) (*SearchPage, error) {
	params := url.Values{}
	params.Set("requestid", requestID)
	params.Set("lastblock", strconv.Itoa(lastBlock))
	params.Set("format", "json")

	body, err := c.get(ctx, "search_poll", c.cfg.SearchURL+"/modresult.php", params)
	if err != nil {
		return nil, fmt.Errorf("poll results: %w", err)
	}

	var resp struct {
		Data SearchPage `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("poll results: unmarshal error: %w", err)
	}
	return &resp.Data, nil
}

// SearchTours запускает поиск и опрашивает результаты (long polling).
//
// Опрос прекращается, когда Tourvisor сообщает finished / progress=100,
// либо когда исчерпан бюджет tourvisor.poll_attempts. Во втором случае
// возвращаются частичные результаты с Finished=false.
// Ошибка опроса после того как часть блоков уже получена тоже не фатальна.
func (c *Client) SearchTours(ctx context.Context, p SearchParams) (*SearchResult, error) {
	requestID, err := c.StartSearch(ctx, p)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{RequestID: requestID}
	lastBlock := 0

	for attempt := 0; attempt < c.cfg.PollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(c.cfg.PollInterval):
			}
		}

		page, err := c.PollResults(ctx, requestID, lastBlock)
		result.Polls++
		if err != nil {
			if len(result.Blocks) > 0 {
				utils.Warn("Search poll failed, returning partial results",
					"request_id", requestID, "poll", result.Polls,
					"blocks", len(result.Blocks), "error", err)
				return result, nil
			}
			return nil, err
		}

		maxID := 0
		for _, b := range page.Blocks {
			result.Blocks = append(result.Blocks, b)
			maxID = max(maxID, int(b.ID))
		}
		if maxID > 0 {
			lastBlock = max(lastBlock, maxID)
		} else {
			// Блоки без id: двигаем курсор на количество полученных
			lastBlock += len(page.Blocks)
		}

		if page.Done() {
			result.Finished = true
			break
		}
	}

	return result, nil
}
