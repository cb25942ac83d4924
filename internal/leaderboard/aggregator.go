// Package leaderboard fans out stat lookups for a friend list and merges the
// answers into a ranked leaderboard.
package leaderboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lcleaderboard/backend/internal/logging"
	"github.com/lcleaderboard/backend/internal/models"
)

const defaultCallTimeout = 10 * time.Second

// Fetcher returns stats for one username. Implementations must not fail:
// lookup problems are reported through a degraded record.
type Fetcher interface {
	Fetch(ctx context.Context, username string) models.StatRecord
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, username string) models.StatRecord

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, username string) models.StatRecord {
	return f(ctx, username)
}

// Aggregator builds leaderboards by querying every friend concurrently.
type Aggregator struct {
	fetcher      Fetcher
	callTimeout  time.Duration
	buildTimeout time.Duration
	concurrency  int
}

// NewAggregator constructs an Aggregator. callTimeout bounds each lookup;
// concurrency caps in-flight lookups per build, zero meaning unlimited.
func NewAggregator(fetcher Fetcher, callTimeout time.Duration, concurrency int) *Aggregator {
	if fetcher == nil {
		panic("leaderboard: fetcher is required")
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	if concurrency < 0 {
		concurrency = 0
	}
	return &Aggregator{fetcher: fetcher, callTimeout: callTimeout, concurrency: concurrency}
}

// WithBuildTimeout bounds a whole build. Lookups still queued behind the
// concurrency limit when it expires are reported as degraded without being
// attempted. Zero leaves builds bounded only by the caller's context.
func (a *Aggregator) WithBuildTimeout(d time.Duration) *Aggregator {
	if d < 0 {
		d = 0
	}
	a.buildTimeout = d
	return a
}

// Build returns one record per distinct friend, ranked by total solved
// descending and username ascending. A failing friend yields a degraded
// record and never affects the others.
func (a *Aggregator) Build(ctx context.Context, friends []string) []models.StatRecord {
	ctx, span := logging.StartSpan(ctx, "leaderboard.build")
	start := time.Now()

	if a.buildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.buildTimeout)
		defer cancel()
	}

	names := distinct(friends)
	records := make([]models.StatRecord, len(names))

	var group errgroup.Group
	if a.concurrency > 0 {
		group.SetLimit(a.concurrency)
	}
	for i, name := range names {
		group.Go(func() error {
			records[i] = a.fetchOne(ctx, name)
			return nil
		})
	}
	_ = group.Wait()

	Rank(records)

	failed := 0
	for _, record := range records {
		if record.Failed {
			failed++
		}
	}

	logging.FromContext(ctx).Info("leaderboard built",
		"friends", len(names),
		"failed", failed,
		"duration", time.Since(start),
	)
	span.End(slog.Int("friends", len(names)), slog.Int("failed", failed))

	return records
}

// fetchOne waits for the fetcher at most callTimeout. A fetcher that ignores
// its context is abandoned and the friend is reported as degraded.
func (a *Aggregator) fetchOne(ctx context.Context, username string) models.StatRecord {
	if err := ctx.Err(); err != nil {
		logging.FromContext(ctx).Warn("stat lookup skipped",
			"username", username,
			"error", err,
		)
		return models.DegradedStatRecord(username)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	result := make(chan models.StatRecord, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logging.FromContext(ctx).Error("stat lookup panicked",
					"username", username,
					"panic", fmt.Sprint(r),
				)
				result <- models.DegradedStatRecord(username)
			}
		}()
		result <- a.fetcher.Fetch(callCtx, username)
	}()

	select {
	case record := <-result:
		return sanitize(username, record)
	case <-callCtx.Done():
		logging.FromContext(ctx).Warn("stat lookup abandoned",
			"username", username,
			"error", callCtx.Err(),
		)
		return models.DegradedStatRecord(username)
	}
}

// Rank sorts records by total solved descending, then username ascending.
func Rank(records []models.StatRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].TotalSolved != records[j].TotalSolved {
			return records[i].TotalSolved > records[j].TotalSolved
		}
		return records[i].Username < records[j].Username
	})
}

func sanitize(username string, record models.StatRecord) models.StatRecord {
	record.Username = username
	if record.Failed || record.TotalSolved < 0 || record.Easy < 0 || record.Medium < 0 || record.Hard < 0 {
		return models.DegradedStatRecord(username)
	}
	return record
}

func distinct(friends []string) []string {
	seen := make(map[string]struct{}, len(friends))
	names := make([]string, 0, len(friends))
	for _, friend := range friends {
		friend = strings.TrimSpace(friend)
		if friend == "" {
			continue
		}
		if _, ok := seen[friend]; ok {
			continue
		}
		seen[friend] = struct{}{}
		names = append(names, friend)
	}
	return names
}
