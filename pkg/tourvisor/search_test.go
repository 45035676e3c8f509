package tourvisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/eto-travel-mcp/pkg/utils"
)

func validParams() SearchParams {
	return SearchParams{
		CountryID:   4,
		DepartureID: 1,
		DateFrom:    "01.07.2026",
		DateTo:      "10.07.2026",
		NightsFrom:  7,
		NightsTo:    14,
		Adults:      2,
	}
}

func TestSearchParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *SearchParams)
		ok     bool
	}{
		{"valid", func(p *SearchParams) {}, true},
		{"same day", func(p *SearchParams) { p.DateTo = p.DateFrom }, true},
		{"no country", func(p *SearchParams) { p.CountryID = 0 }, false},
		{"no departure", func(p *SearchParams) { p.DepartureID = 0 }, false},
		{"iso date", func(p *SearchParams) { p.DateFrom = "2026-07-01" }, false},
		{"reversed dates", func(p *SearchParams) { p.DateFrom, p.DateTo = p.DateTo, p.DateFrom }, false},
		{"reversed nights", func(p *SearchParams) { p.NightsFrom, p.NightsTo = 14, 7 }, false},
		{"zero nights", func(p *SearchParams) { p.NightsFrom = 0 }, false},
		{"no adults", func(p *SearchParams) { p.Adults = 0 }, false},
		{"negative children", func(p *SearchParams) { p.Children = -1 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrInvalidSearch), "got %v", err)
			}
		})
	}
}

func TestSearchParams_Query(t *testing.T) {
	p := validParams()
	p.Children = 1
	p.RegionIDs = []int{5, 7}
	p.HotelIDs = []int{17659}

	q := p.query()
	assert.Equal(t, "4", q.Get("s_country"))
	assert.Equal(t, "1", q.Get("s_flyfrom"))
	assert.Equal(t, "01.07.2026", q.Get("s_j_date_from"))
	assert.Equal(t, "1", q.Get("s_kids"))
	assert.Equal(t, "5,7", q.Get("s_region_to"))
	assert.Equal(t, "17659", q.Get("s_hotels"))
}

func TestExtractRequestID(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"result object", `{"result":{"requestid":"123456"}}`, "123456"},
		{"numeric data", `{"data":{"requestid":98765}}`, "98765"},
		{"html fallback", `<script>var cfg = {requestid: "4242"};</script>`, "4242"},
		{"missing", `{"result":{}}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractRequestID([]byte(tt.body)))
		})
	}
}

func TestSearchTours_PollsUntilFinished(t *testing.T) {
	var polls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/xml/list.php":
			assert.Equal(t, "1", r.URL.Query().Get("ts_dosearch"))
			fmt.Fprint(w, `{"result":{"requestid":"555"}}`)
		case "/search/modresult.php":
			assert.Equal(t, "555", r.URL.Query().Get("requestid"))
			switch polls.Add(1) {
			case 1:
				assert.Equal(t, "0", r.URL.Query().Get("lastblock"))
				fmt.Fprint(w, `{"data":{"status":{"progress":40},"block":[{"id":3,"hotel":[{"id":"10","price":"50000","tour":[{"price":50000,"nights":7}]}]}]}}`)
			default:
				assert.Equal(t, "3", r.URL.Query().Get("lastblock"))
				fmt.Fprint(w, `{"data":{"status":{"finished":1,"progress":100},"block":[{"id":4,"hotel":[{"id":11,"price":42000,"tour":[]}]}]}}`)
			}
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	res, err := client.SearchTours(context.Background(), validParams())
	require.NoError(t, err)

	assert.Equal(t, "555", res.RequestID)
	assert.True(t, res.Finished)
	assert.Equal(t, 2, res.Polls)
	require.Len(t, res.Blocks, 2)
	assert.EqualValues(t, 10, res.Blocks[0].Hotels[0].ID)
	assert.EqualValues(t, 42000, res.Blocks[1].Hotels[0].Price)
}

func TestSearchTours_PollBudgetExhausted(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/xml/list.php" {
			fmt.Fprint(w, `{"data":{"requestid":"1"}}`)
			return
		}
		fmt.Fprint(w, `{"data":{"status":{"progress":10},"block":[]}}`)
	})

	res, err := client.SearchTours(context.Background(), validParams())
	require.NoError(t, err)
	assert.False(t, res.Finished)
	assert.Equal(t, 5, res.Polls)
	assert.Empty(t, res.Blocks)
}

func TestSearchTours_PollErrorAfterBlocksIsLogged(t *testing.T) {
	logDir := t.TempDir()
	require.NoError(t, utils.InitLogger(logDir, false))
	t.Cleanup(utils.Close)

	var polls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/xml/list.php" {
			fmt.Fprint(w, `{"data":{"requestid":"77"}}`)
			return
		}
		if polls.Add(1) == 1 {
			fmt.Fprint(w, `{"data":{"status":{"progress":30},"block":[{"id":1,"hotel":[{"id":10,"price":30000}]}]}}`)
			return
		}
		w.WriteHeader(http.StatusForbidden)
	})

	res, err := client.SearchTours(context.Background(), validParams())
	require.NoError(t, err)
	assert.False(t, res.Finished)
	assert.Equal(t, 2, res.Polls)
	require.Len(t, res.Blocks, 1)

	utils.Close()
	files, err := filepath.Glob(filepath.Join(logDir, "eto-travel-*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "WARN: Search poll failed, returning partial results request_id=77 poll=2 blocks=1")
}

func TestSearchTours_NoRequestID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"result":{"error":"bad session"}}`)
	})

	_, err := client.SearchTours(context.Background(), validParams())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoRequestID))
	assert.Equal(t, ErrBadResponse, client.ClassifyError(err))
}

func TestSearchTours_InvalidParamsSkipUpstream(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	p := validParams()
	p.Adults = 0
	_, err := client.SearchTours(context.Background(), p)
	assert.True(t, errors.Is(err, ErrInvalidSearch))
	assert.Zero(t, calls.Load())
}
