package timeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imomaru/pkg/progression"
	"imomaru/pkg/xapi"
)

type mockAPI struct {
	tweets  []xapi.Tweet
	metrics []xapi.Tweet
	sinceID string
	err     error
}

func (m *mockAPI) UserTweets(_ context.Context, _, sinceID string, _ int) ([]xapi.Tweet, error) {
	m.sinceID = sinceID
	return m.tweets, m.err
}

func (m *mockAPI) UserTweetsWithMetrics(_ context.Context, _ string, _ int) ([]xapi.Tweet, error) {
	return m.metrics, m.err
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		refs []xapi.ReferencedRef
		kind progression.Kind
		ok   bool
	}{
		{"original", nil, progression.KindOriginalPost, true},
		{"quote", []xapi.ReferencedRef{{Type: "quoted", ID: "1"}}, progression.KindQuoteRepost, true},
		{"repost", []xapi.ReferencedRef{{Type: "retweeted", ID: "1"}}, progression.KindRepost, true},
		{"reply", []xapi.ReferencedRef{{Type: "replied_to", ID: "1"}}, "", false},
		{"reply quoting", []xapi.ReferencedRef{{Type: "quoted", ID: "1"}, {Type: "replied_to", ID: "2"}}, "", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			kind, ok := Classify(xapi.Tweet{ID: "100", ReferencedTweets: tc.refs})
			assert.Equal(t, tc.ok, ok)
			if ok {
				assert.Equal(t, tc.kind, kind)
			}
		})
	}
}

func TestCheckTarget_BuildsStableEventIDs(t *testing.T) {
	api := &mockAPI{tweets: []xapi.Tweet{
		{ID: "100", Text: "original"},
		{ID: "101", Text: "reply", ReferencedTweets: []xapi.ReferencedRef{{Type: "replied_to", ID: "99"}}},
		{ID: "102", Text: "rt", ReferencedTweets: []xapi.ReferencedRef{{Type: "retweeted", ID: "98"}}},
	}}
	m := NewMonitor(api, "target-user", "group-user", "bot-user", 50)

	obs, err := m.CheckTarget(context.Background(), "90")
	require.NoError(t, err)
	assert.Equal(t, "90", api.sinceID)

	// The reply is filtered out entirely.
	require.Len(t, obs, 2)
	assert.Equal(t, "100-original_post-target", obs[0].Event.EventID)
	assert.Equal(t, progression.RoleTarget, obs[0].Event.Role)
	assert.Equal(t, "original", obs[0].Tweet.Text)
	assert.Equal(t, "102-repost-target", obs[1].Event.EventID)
	assert.Equal(t, progression.KindRepost, obs[1].Event.Kind)
}

func TestCheckGroup_TagsGroupRole(t *testing.T) {
	api := &mockAPI{tweets: []xapi.Tweet{{ID: "200", Text: "group post"}}}
	m := NewMonitor(api, "target-user", "group-user", "bot-user", 50)

	obs, err := m.CheckGroup(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, obs, 1)
	assert.Equal(t, "200-original_post-group", obs[0].Event.EventID)
	assert.Equal(t, progression.RoleGroup, obs[0].Event.Role)
}

func TestCheckTarget_APIErrorWraps(t *testing.T) {
	api := &mockAPI{err: errors.New("rate limited")}
	m := NewMonitor(api, "target-user", "group-user", "bot-user", 50)

	_, err := m.CheckTarget(context.Background(), "")
	assert.ErrorContains(t, err, "check target timeline")
}

func TestEngagementDeltas_PerUnitIDs(t *testing.T) {
	api := &mockAPI{metrics: []xapi.Tweet{
		{ID: "500", PublicMetrics: &xapi.TweetMetrics{LikeCount: 2, RetweetCount: 1}},
		{ID: "501", PublicMetrics: &xapi.TweetMetrics{LikeCount: 1}},
		{ID: "502"}, // no metrics returned
	}}
	m := NewMonitor(api, "target-user", "group-user", "bot-user", 50)

	events, likes, reposts, err := m.EngagementDeltas(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, likes)
	assert.Equal(t, 1, reposts)

	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.EventID
		assert.Equal(t, progression.RoleSelf, ev.Role)
	}
	assert.Equal(t, []string{"500-like-1", "500-like-2", "500-repost-1", "501-like-1"}, ids)

	// A re-fetch with the same counts reproduces the exact ids.
	again, _, _, err := m.EngagementDeltas(context.Background())
	require.NoError(t, err)
	require.Len(t, again, len(events))
	for i := range events {
		assert.Equal(t, events[i].EventID, again[i].EventID)
	}
}

func TestEngagementDeltas_SkipsWithoutBotUser(t *testing.T) {
	api := &mockAPI{metrics: []xapi.Tweet{{ID: "500", PublicMetrics: &xapi.TweetMetrics{LikeCount: 5}}}}
	m := NewMonitor(api, "target-user", "group-user", "", 50)

	events, likes, reposts, err := m.EngagementDeltas(context.Background())
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Zero(t, likes)
	assert.Zero(t, reposts)
}

func TestPopularTargetPost(t *testing.T) {
	api := &mockAPI{metrics: []xapi.Tweet{
		{ID: "600", Text: "普通の投稿", PublicMetrics: &xapi.TweetMetrics{LikeCount: 10}},
		{ID: "601", Text: "バズった投稿", PublicMetrics: &xapi.TweetMetrics{LikeCount: 50}},
		{ID: "602", Text: "RT", PublicMetrics: &xapi.TweetMetrics{LikeCount: 99},
			ReferencedTweets: []xapi.ReferencedRef{{Type: "retweeted", ID: "1"}}},
		{ID: "603", Text: "metricsなし"},
	}}
	m := NewMonitor(api, "target-user", "group-user", "bot-user", 50)

	tw, likes, err := m.PopularTargetPost(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "601", tw.ID)
	assert.Equal(t, 50, likes)
}

func TestPopularTargetPost_Empty(t *testing.T) {
	m := NewMonitor(&mockAPI{}, "target-user", "group-user", "bot-user", 50)

	tw, likes, err := m.PopularTargetPost(context.Background())
	require.NoError(t, err)
	assert.Empty(t, tw.ID)
	assert.Zero(t, likes)
}

func TestLatestID(t *testing.T) {
	obs := []Observation{
		{Tweet: xapi.Tweet{ID: "105"}},
		{Tweet: xapi.Tweet{ID: "99"}},
		{Tweet: xapi.Tweet{ID: "110"}},
	}

	assert.Equal(t, "110", LatestID("100", obs))
	assert.Equal(t, "200", LatestID("200", obs))
	assert.Equal(t, "110", LatestID("", obs))
	assert.Equal(t, "100", LatestID("100", nil))
}
