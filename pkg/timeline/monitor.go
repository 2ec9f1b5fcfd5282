package timeline

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"imomaru/pkg/progression"
	"imomaru/pkg/xapi"
)

// APIClient is the slice of the X client the monitor needs.
type APIClient interface {
	UserTweets(ctx context.Context, userID, sinceID string, maxResults int) ([]xapi.Tweet, error)
	UserTweetsWithMetrics(ctx context.Context, userID string, maxResults int) ([]xapi.Tweet, error)
}

// Observation pairs a classified activity event with the tweet that
// produced it, so downstream posting still has the original text.
type Observation struct {
	Event progression.ActivityEvent
	Tweet xapi.Tweet
}

// Monitor watches the target and group timelines and the bot's own
// engagement metrics, and classifies everything into activity events at
// the boundary. The core never sees an unclassified tweet.
type Monitor struct {
	api          APIClient
	targetUserID string
	groupUserID  string
	botUserID    string
	maxResults   int
	now          func() time.Time
}

func NewMonitor(api APIClient, targetUserID, groupUserID, botUserID string, maxResults int) *Monitor {
	if maxResults <= 0 {
		maxResults = 50
	}
	return &Monitor{
		api:          api,
		targetUserID: targetUserID,
		groupUserID:  groupUserID,
		botUserID:    botUserID,
		maxResults:   maxResults,
		now:          time.Now,
	}
}

// SetClock overrides the monitor's clock. Tests only.
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

// CheckTarget returns classified observations from the target account's
// timeline since the watermark.
func (m *Monitor) CheckTarget(ctx context.Context, sinceID string) ([]Observation, error) {
	return m.checkTimeline(ctx, m.targetUserID, progression.RoleTarget, sinceID)
}

// CheckGroup returns classified observations from the group account's
// timeline since the watermark.
func (m *Monitor) CheckGroup(ctx context.Context, sinceID string) ([]Observation, error) {
	return m.checkTimeline(ctx, m.groupUserID, progression.RoleGroup, sinceID)
}

func (m *Monitor) checkTimeline(ctx context.Context, userID string, role progression.Role, sinceID string) ([]Observation, error) {
	tweets, err := m.api.UserTweets(ctx, userID, sinceID, m.maxResults)
	if err != nil {
		return nil, fmt.Errorf("check %s timeline: %w", role, err)
	}

	observed := m.now().UTC()
	out := make([]Observation, 0, len(tweets))
	for _, tw := range tweets {
		kind, ok := Classify(tw)
		if !ok {
			continue // replies stay out of the core entirely
		}
		out = append(out, Observation{
			Event: progression.ActivityEvent{
				EventID:    progression.EventID(tw.ID, kind, role),
				Role:       role,
				Kind:       kind,
				ObservedAt: observed,
			},
			Tweet: tw,
		})
	}
	return out, nil
}

// Classify maps a tweet onto an activity kind. Replies are excluded
// (second return false); a retweet wins over a quote if the API ever
// reports both references.
func Classify(tw xapi.Tweet) (progression.Kind, bool) {
	isQuote := false
	for _, ref := range tw.ReferencedTweets {
		switch ref.Type {
		case "replied_to":
			return "", false
		case "retweeted":
			return progression.KindRepost, true
		case "quoted":
			isQuote = true
		}
	}
	if isQuote {
		return progression.KindQuoteRepost, true
	}
	return progression.KindOriginalPost, true
}

// EngagementDeltas reads public metrics on the bot's own recent posts and
// synthesizes one self event per newly counted like/repost. The event ids
// are deterministic per (tweet, unit index), so a re-fetch reproduces the
// same ids and the ledger screens out everything already rewarded.
func (m *Monitor) EngagementDeltas(ctx context.Context) ([]progression.ActivityEvent, int, int, error) {
	if m.botUserID == "" {
		return nil, 0, 0, nil
	}

	tweets, err := m.api.UserTweetsWithMetrics(ctx, m.botUserID, m.maxResults)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("check engagement: %w", err)
	}

	observed := m.now().UTC()
	var events []progression.ActivityEvent
	totalLikes, totalReposts := 0, 0
	for _, tw := range tweets {
		if tw.PublicMetrics == nil {
			continue
		}
		totalLikes += tw.PublicMetrics.LikeCount
		totalReposts += tw.PublicMetrics.RetweetCount
		for n := 1; n <= tw.PublicMetrics.LikeCount; n++ {
			events = append(events, progression.ActivityEvent{
				EventID:    fmt.Sprintf("%s-like-%d", tw.ID, n),
				Role:       progression.RoleSelf,
				Kind:       progression.KindLike,
				ObservedAt: observed,
			})
		}
		for n := 1; n <= tw.PublicMetrics.RetweetCount; n++ {
			events = append(events, progression.ActivityEvent{
				EventID:    fmt.Sprintf("%s-repost-%d", tw.ID, n),
				Role:       progression.RoleSelf,
				Kind:       progression.KindRepost,
				ObservedAt: observed,
			})
		}
	}

	if len(events) > 0 {
		log.Printf("[Timeline] Engagement snapshot: %d likes, %d reposts across %d posts", totalLikes, totalReposts, len(tweets))
	}
	return events, totalLikes, totalReposts, nil
}

// PopularTargetPost returns the target's recent original post with the
// most likes, for the weekly translation. Reposts and replies are not
// translation material.
func (m *Monitor) PopularTargetPost(ctx context.Context) (xapi.Tweet, int, error) {
	tweets, err := m.api.UserTweetsWithMetrics(ctx, m.targetUserID, m.maxResults)
	if err != nil {
		return xapi.Tweet{}, 0, fmt.Errorf("find popular target post: %w", err)
	}

	var best xapi.Tweet
	bestLikes := -1
	for _, tw := range tweets {
		if kind, ok := Classify(tw); !ok || kind == progression.KindRepost {
			continue
		}
		likes := 0
		if tw.PublicMetrics != nil {
			likes = tw.PublicMetrics.LikeCount
		}
		if likes > bestLikes {
			best = tw
			bestLikes = likes
		}
	}
	if bestLikes < 0 {
		return xapi.Tweet{}, 0, nil
	}
	return best, bestLikes, nil
}

// LatestID returns the numerically largest tweet id between the current
// watermark and the observations.
func LatestID(current string, observations []Observation) string {
	latest := current
	latestNum, _ := strconv.ParseInt(current, 10, 64)
	for _, obs := range observations {
		if n, err := strconv.ParseInt(obs.Tweet.ID, 10, 64); err == nil && n > latestNum {
			latestNum = n
			latest = obs.Tweet.ID
		}
	}
	return latest
}
