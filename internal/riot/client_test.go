package riot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...ClientOption) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts = append([]ClientOption{
		WithAPIKey("RGAPI-test-key"),
		WithBaseURLs(server.URL, server.URL),
		WithRetryInterval(time.Millisecond),
		WithRateLimits(0, 0),
	}, opts...)
	c, err := NewClient(opts...)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return c
}

// TestNewClient_APIKeyFromEnv tests the environment fallbacks for the key
func TestNewClient_APIKeyFromEnv(t *testing.T) {
	t.Setenv("RIOT_API_KEY", "")
	t.Setenv("RIOT-DEV-KEY", "")
	if _, err := NewClient(); err == nil {
		t.Error("Expected error without an API key")
	}

	t.Setenv("RIOT-DEV-KEY", "RGAPI-dev")
	c, err := NewClient(WithPlatform("na1"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if c.apiKey != "RGAPI-dev" {
		t.Errorf("apiKey = %s, want RGAPI-dev", c.apiKey)
	}
	if c.regionalURL != "https://americas.api.riotgames.com" || c.platformURL != "https://na1.api.riotgames.com" {
		t.Errorf("Unexpected hosts %s %s", c.platformURL, c.regionalURL)
	}
}

// TestRegionFor tests platform to region routing
func TestRegionFor(t *testing.T) {
	tests := []struct {
		platform string
		want     string
		wantErr  bool
	}{
		{"euw1", RegionEurope, false},
		{"NA1", RegionAmericas, false},
		{"kr", RegionAsia, false},
		{"oc1", RegionSEA, false},
		{"pbe1", "", true},
	}
	for _, tt := range tests {
		got, err := RegionFor(tt.platform)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("RegionFor(%s) = %q, %v; want %q", tt.platform, got, err, tt.want)
		}
	}
	if accountRegion(RegionSEA) != RegionAsia {
		t.Error("account-v1 has no SEA cluster")
	}
}

// TestGetAccountByRiotID tests path escaping of non-ASCII riot ids
func TestGetAccountByRiotID(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/riot/account/v1/accounts/by-riot-id/H%C3%A8rm%C3%A9s/NA1" {
			t.Errorf("Unexpected path %s", r.URL.EscapedPath())
		}
		w.Write([]byte(`{"puuid":"p-1","gameName":"Hèrmés","tagLine":"NA1"}`))
	}))

	acc, err := c.GetAccountByRiotID(context.Background(), "Hèrmés", "NA1")
	if err != nil {
		t.Fatalf("GetAccountByRiotID failed: %v", err)
	}
	if acc.PUUID != "p-1" {
		t.Errorf("PUUID = %s", acc.PUUID)
	}
}

// TestGetMatchHistory_QueryAndPaging tests window parameters and page continuation
func TestGetMatchHistory_QueryAndPaging(t *testing.T) {
	start := time.Date(2021, 4, 28, 0, 0, 0, 0, time.UTC)
	end := time.Date(2021, 5, 12, 0, 0, 0, 0, time.UTC)

	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		q := r.URL.Query()
		if q.Get("startTime") != strconv.FormatInt(start.Unix(), 10) || q.Get("endTime") != strconv.FormatInt(end.Unix(), 10) {
			t.Errorf("Unexpected window %s..%s", q.Get("startTime"), q.Get("endTime"))
		}
		if q.Get("queue") != "420" {
			t.Errorf("queue = %s", q.Get("queue"))
		}
		offset, _ := strconv.Atoi(q.Get("start"))
		count, _ := strconv.Atoi(q.Get("count"))
		if count > maxPageSize {
			t.Errorf("count %d exceeds page size", count)
		}

		// 130 matches in total
		var ids []string
		for i := offset; i < offset+count && i < 130; i++ {
			ids = append(ids, `"EUW1_`+strconv.Itoa(i)+`"`)
		}
		body := "["
		for i, id := range ids {
			if i > 0 {
				body += ","
			}
			body += id
		}
		w.Write([]byte(body + "]"))
	}))

	ids, err := c.GetMatchHistory(context.Background(), "p-1", MatchQuery{StartTime: start, EndTime: end, Queue: 420, Count: 1000})
	if err != nil {
		t.Fatalf("GetMatchHistory failed: %v", err)
	}
	if len(ids) != 130 {
		t.Errorf("Expected 130 ids, got %d", len(ids))
	}
	if ids[129] != "EUW1_129" {
		t.Errorf("Last id = %s", ids[129])
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("Expected 2 pages, got %d requests", calls)
	}
}

// TestGetMatch_RetryPolicy tests which statuses are retried
func TestGetMatch_RetryPolicy(t *testing.T) {
	tests := []struct {
		name      string
		failures  []int
		wantCalls int32
		wantErr   error
		wantOK    bool
	}{
		{"ok", nil, 1, nil, true},
		{"429 then ok", []int{429}, 2, nil, true},
		{"5xx twice then ok", []int{502, 503}, 3, nil, true},
		{"404 gives up", []int{404}, 1, ErrNotFound, false},
		{"400 gives up", []int{400}, 1, ErrNotFound, false},
		{"403 gives up", []int{403}, 1, ErrForbidden, false},
		{"401 gives up", []int{401}, 1, ErrForbidden, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				n := atomic.AddInt32(&calls, 1)
				if int(n) <= len(tt.failures) {
					w.Header().Set("Retry-After", "0")
					w.WriteHeader(tt.failures[n-1])
					return
				}
				w.Write([]byte(`{"metadata":{"matchId":"EUW1_1"},"info":{"queueId":420,"gameDuration":1834,"participants":[{"participantId":1,"puuid":"p-1","championId":22}]}}`))
			}))

			match, err := c.GetMatch(context.Background(), "EUW1_1")
			if tt.wantOK {
				if err != nil {
					t.Fatalf("GetMatch failed: %v", err)
				}
				if match.Info.QueueID != 420 || match.Info.Participants[0].ChampionID != 22 {
					t.Errorf("Unexpected match %+v", match.Info)
				}
			} else if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if got := atomic.LoadInt32(&calls); got != tt.wantCalls {
				t.Errorf("calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

// TestGetMatch_RetriesExhausted tests that persistent server errors give up
func TestGetMatch_RetriesExhausted(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}), WithMaxRetries(2))

	_, err := c.GetMatch(context.Background(), "EUW1_1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("Expected APIError 500, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 attempts, got %d", calls)
	}
}

// TestGetTimeline_KeepsRawInfo tests that the timeline info is not decoded
func TestGetTimeline_KeepsRawInfo(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/lol/match/v5/matches/EUW1_1/timeline" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"metadata":{"matchId":"EUW1_1"},"info":{"frames":[{"timestamp":0,"events":[{"type":"ITEM_UNDO","participantId":3,"beforeId":3031,"afterId":0}]}]}}`))
	}))

	tl, err := c.GetTimeline(context.Background(), "EUW1_1")
	if err != nil {
		t.Fatalf("GetTimeline failed: %v", err)
	}
	if tl.Metadata.MatchID != "EUW1_1" || len(tl.Info) == 0 {
		t.Errorf("Unexpected timeline %+v", tl)
	}
}

// TestRateLimiter tests that the short window blocks until a slot frees up
func TestRateLimiter(t *testing.T) {
	l := newRateLimiter(2, 0)
	now := time.Now()

	if l.reserve(now) != 0 || l.reserve(now) != 0 {
		t.Fatal("First two requests should pass")
	}
	if wait := l.reserve(now); wait <= 0 || wait > 1200*time.Millisecond {
		t.Errorf("Third request wait = %v", wait)
	}
	if l.reserve(now.Add(1100*time.Millisecond)) != 0 {
		t.Error("Request after the window should pass")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l = newRateLimiter(1, 0)
	l.reserve(time.Now())
	if err := l.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
