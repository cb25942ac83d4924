// Package leetcode queries the LeetCode GraphQL API for per-difficulty
// solved counts and normalizes the answer into a models.StatRecord.
package leetcode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/lcleaderboard/backend/internal/logging"
	"github.com/lcleaderboard/backend/internal/models"
)

// DefaultEndpoint is the public LeetCode GraphQL endpoint.
const DefaultEndpoint = "https://leetcode.com/graphql"

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
	userAgent        = "lcleaderboard/1.0"
)

const profileQuery = `query getUserProfile($username: String!) {
  matchedUser(username: $username) {
    submitStats {
      acSubmissionNum {
        difficulty
        count
      }
    }
  }
}`

// Difficulty tier names as reported by LeetCode.
const (
	TierAll    = "All"
	TierEasy   = "Easy"
	TierMedium = "Medium"
	TierHard   = "Hard"
)

// TierCounts holds accepted-submission counts per difficulty tier.
type TierCounts struct {
	All    int
	Easy   int
	Medium int
	Hard   int
}

// Record converts the counts into the leaderboard representation.
func (c TierCounts) Record(username string) models.StatRecord {
	return models.StatRecord{
		Username:    username,
		TotalSolved: c.All,
		Easy:        c.Easy,
		Medium:      c.Medium,
		Hard:        c.Hard,
	}
}

// Client issues profile queries against a LeetCode-compatible GraphQL endpoint.
type Client struct {
	Endpoint string
	HTTP     *http.Client
	// Timeout bounds a single lookup including the wait for a rate limit token.
	Timeout time.Duration
	// Limiter paces outbound requests across all callers. Nil disables pacing.
	Limiter *rate.Limiter
}

// NewClient constructs a Client. Empty endpoint and non-positive timeout fall
// back to the public endpoint and ten seconds.
func NewClient(endpoint string, timeout time.Duration, limiter *rate.Limiter) *Client {
	if strings.TrimSpace(endpoint) == "" {
		endpoint = DefaultEndpoint
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		Endpoint: endpoint,
		HTTP:     &http.Client{},
		Timeout:  timeout,
		Limiter:  limiter,
	}
}

// NewLimiter builds the shared outbound limiter. A non-positive rps disables pacing.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Fetch looks up username and never fails: every error is reported as the
// degraded record with Failed set and all counts zero.
func (c *Client) Fetch(ctx context.Context, username string) models.StatRecord {
	ctx, span := logging.StartSpan(ctx, "leetcode.fetch")

	counts, err := c.Query(ctx, username)
	if err != nil {
		outcome := OutcomeOf(err)
		logging.FromContext(ctx).Warn("leetcode lookup degraded",
			"username", username,
			"outcome", outcome.String(),
			"error", err,
		)
		span.End(slog.String("outcome", outcome.String()))
		return models.DegradedStatRecord(username)
	}

	span.End(slog.String("outcome", OutcomeSuccess.String()))
	return counts.Record(username)
}

// Query performs one profile lookup. Failures are returned as *FetchError.
func (c *Client) Query(ctx context.Context, username string) (TierCounts, error) {
	if c == nil {
		return TierCounts{}, &FetchError{Username: username, Outcome: OutcomeNetworkFailure, Err: errors.New("client not configured")}
	}
	if strings.TrimSpace(username) == "" {
		return TierCounts{}, &FetchError{Username: username, Outcome: OutcomeNotFound, Err: ErrUserNotFound}
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fail := func(outcome Outcome, err error) (TierCounts, error) {
		return TierCounts{}, &FetchError{Username: username, Outcome: outcome, Err: err}
	}

	if c.Limiter != nil {
		if err := c.Limiter.Wait(callCtx); err != nil {
			return fail(OutcomeTimeout, fmt.Errorf("wait for rate limit: %w", err))
		}
	}

	body, err := json.Marshal(graphQLRequest{
		Query:     profileQuery,
		Variables: map[string]string{"username": username},
	})
	if err != nil {
		return fail(OutcomeMalformed, fmt.Errorf("encode query: %w", err))
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fail(OutcomeNetworkFailure, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", "https://leetcode.com")
	req.Header.Set("User-Agent", userAgent)

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fail(classifyTransportError(callCtx, err), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fail(OutcomeRateLimited, fmt.Errorf("unexpected status %d", resp.StatusCode))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fail(OutcomeBadStatus, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var payload profileResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		if callCtx.Err() != nil {
			return fail(OutcomeTimeout, err)
		}
		return fail(OutcomeMalformed, fmt.Errorf("decode response: %w", err))
	}

	counts, outcome, err := payload.tierCounts()
	if err != nil {
		return fail(outcome, err)
	}
	return counts, nil
}

func classifyTransportError(ctx context.Context, err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout
	}
	return OutcomeNetworkFailure
}

type graphQLRequest struct {
	Query     string            `json:"query"`
	Variables map[string]string `json:"variables"`
}

type profileResponse struct {
	Data *struct {
		MatchedUser *struct {
			SubmitStats *struct {
				ACSubmissionNum []tierCount `json:"acSubmissionNum"`
			} `json:"submitStats"`
		} `json:"matchedUser"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type tierCount struct {
	Difficulty string `json:"difficulty"`
	Count      *int   `json:"count"`
}

func (p profileResponse) tierCounts() (TierCounts, Outcome, error) {
	if p.Data == nil || p.Data.MatchedUser == nil {
		if len(p.Errors) > 0 || p.Data != nil {
			return TierCounts{}, OutcomeNotFound, fmt.Errorf("%w: %s", ErrUserNotFound, p.errorMessage())
		}
		return TierCounts{}, OutcomeMalformed, errors.New("response has no data")
	}

	stats := p.Data.MatchedUser.SubmitStats
	if stats == nil {
		return TierCounts{}, OutcomeMalformed, errors.New("response has no submit stats")
	}

	byTier := make(map[string]int, len(stats.ACSubmissionNum))
	for _, entry := range stats.ACSubmissionNum {
		if entry.Count == nil {
			continue
		}
		if *entry.Count < 0 {
			return TierCounts{}, OutcomeMalformed, fmt.Errorf("negative count %d for tier %q", *entry.Count, entry.Difficulty)
		}
		if _, seen := byTier[entry.Difficulty]; !seen {
			byTier[entry.Difficulty] = *entry.Count
		}
	}

	var counts TierCounts
	for _, tier := range []struct {
		name string
		dst  *int
	}{
		{TierAll, &counts.All},
		{TierEasy, &counts.Easy},
		{TierMedium, &counts.Medium},
		{TierHard, &counts.Hard},
	} {
		count, ok := byTier[tier.name]
		if !ok {
			return TierCounts{}, OutcomeMalformed, fmt.Errorf("tier %q missing from response", tier.name)
		}
		*tier.dst = count
	}

	return counts, OutcomeSuccess, nil
}

func (p profileResponse) errorMessage() string {
	if len(p.Errors) == 0 {
		return "matchedUser is null"
	}
	messages := make([]string, 0, len(p.Errors))
	for _, e := range p.Errors {
		messages = append(messages, e.Message)
	}
	return strings.Join(messages, "; ")
}
