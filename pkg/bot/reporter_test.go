package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imomaru/pkg/search"
	"imomaru/pkg/state"
)

func jstTime(hour int) time.Time {
	return time.Date(2026, 8, 31, hour, 30, 0, 0, JST)
}

func TestShouldPostDailyReport(t *testing.T) {
	r := NewReporter(&mockPoster{}, &mockSearcher{}, 21, 7)
	st := state.NewBotState()

	assert.False(t, r.ShouldPostDailyReport(st, jstTime(20)), "before the report hour")
	assert.True(t, r.ShouldPostDailyReport(st, jstTime(21)))
	assert.True(t, r.ShouldPostDailyReport(st, jstTime(23)))

	st.LastDailyReportDate = "2026-08-31"
	assert.False(t, r.ShouldPostDailyReport(st, jstTime(22)), "already posted today")

	st.LastDailyReportDate = "2026-08-30"
	assert.True(t, r.ShouldPostDailyReport(st, jstTime(21)))
}

func TestShouldPostDailyReport_JSTDateBoundary(t *testing.T) {
	r := NewReporter(&mockPoster{}, &mockSearcher{}, 21, 7)
	st := state.NewBotState()
	st.LastDailyReportDate = "2026-08-31"

	// 13:00 UTC on Aug 31 is 22:00 JST the same day: still gated.
	utcEvening := time.Date(2026, 8, 31, 13, 0, 0, 0, time.UTC)
	assert.False(t, r.ShouldPostDailyReport(st, utcEvening))

	// 13:00 UTC on Sep 1 is a new JST date.
	assert.True(t, r.ShouldPostDailyReport(st, utcEvening.Add(24*time.Hour)))
}

func TestDailyReportText(t *testing.T) {
	r := NewReporter(&mockPoster{}, &mockSearcher{}, 21, 7)

	st := state.NewBotState()
	st.Level = 3
	st.DailyTargetCount = 2
	st.DailyGroupCount = 1
	st.DailyLikeCount = 5
	st.DailyRepostCount = 3
	st.DailyXP = 14.0

	text := r.DailyReportText(st, 36)
	assert.Contains(t, text, "今日の活動報告ｲﾓ🍠")
	assert.Contains(t, text, "じゅりちゃんの投稿：2回")
	assert.Contains(t, text, "グループの投稿：1回")
	assert.Contains(t, text, "みんなからのいいね：5回")
	assert.Contains(t, text, "みんなのリポスト：3回")
	assert.Contains(t, text, "今日の獲得XP：14.0 XP")
	assert.Contains(t, text, "現在Lv.3 → 次まで36 XP")
	assert.Contains(t, text, "#さつまいもの民 #びっくえんじぇる")
}

func TestPostDailyReport_FailureLeavesGateOpen(t *testing.T) {
	poster := &mockPoster{failPosts: true}
	r := NewReporter(poster, &mockSearcher{}, 21, 7)

	ok := r.PostDailyReport(context.Background(), state.NewBotState(), 100)
	assert.False(t, ok)
	assert.Empty(t, poster.posts)
}

func TestShouldPostMorningContent(t *testing.T) {
	r := NewReporter(&mockPoster{}, &mockSearcher{}, 21, 7)
	st := state.NewBotState()

	assert.False(t, r.ShouldPostMorningContent(st, jstTime(6)))
	assert.True(t, r.ShouldPostMorningContent(st, jstTime(7)))

	st.LastMorningContentDate = "2026-08-31"
	assert.False(t, r.ShouldPostMorningContent(st, jstTime(8)))
}

func TestPostMorningContent_PostsVideo(t *testing.T) {
	poster := &mockPoster{}
	searcher := &mockSearcher{videos: []search.Video{{ID: "dQw4w9WgXcQ", Title: "新曲MV"}}}
	r := NewReporter(poster, searcher, 21, 7)

	ok := r.PostMorningContent(context.Background())
	assert.True(t, ok)
	require.Len(t, poster.posts, 1)
	assert.Contains(t, poster.posts[0].Text, "新曲MV")
	assert.Contains(t, poster.posts[0].Text, "https://youtu.be/dQw4w9WgXcQ")
	assert.Contains(t, poster.posts[0].Text, "#さつまいもの民 #びっくえんじぇる")
}

func TestPostMorningContent_NoVideosStillDone(t *testing.T) {
	poster := &mockPoster{}
	r := NewReporter(poster, &mockSearcher{}, 21, 7)

	ok := r.PostMorningContent(context.Background())
	assert.True(t, ok, "nothing new still closes the gate for today")
	assert.Empty(t, poster.posts)
}

func TestPostMorningContent_SearchErrorRetriesLater(t *testing.T) {
	r := NewReporter(&mockPoster{}, &mockSearcher{err: errors.New("blocked")}, 21, 7)

	ok := r.PostMorningContent(context.Background())
	assert.False(t, ok)
}

func TestShouldPostTranslation(t *testing.T) {
	r := NewReporter(&mockPoster{}, &mockSearcher{}, 21, 7)

	sunday := time.Date(2026, 8, 30, 7, 0, 0, 0, JST)
	assert.True(t, r.ShouldPostTranslation(sunday))
	assert.False(t, r.ShouldPostTranslation(sunday.AddDate(0, 0, 1)), "Monday")
	assert.False(t, r.ShouldPostTranslation(sunday.AddDate(0, 0, -1)), "Saturday")
}

func TestPostTranslation(t *testing.T) {
	poster := &mockPoster{}
	r := NewReporter(poster, &mockSearcher{}, 21, 7)

	ok := r.PostTranslation(context.Background(), "I had a great live!", 50)
	assert.True(t, ok)

	require.Len(t, poster.posts, 1)
	assert.Contains(t, poster.posts[0].Text, "今週の人気ポストを翻訳したｲﾓ🍠")
	assert.Contains(t, poster.posts[0].Text, "🌎 I had a great live!")
	assert.Contains(t, poster.posts[0].Text, "いいね50件の人気ポストｲﾓ～🍠")
	assert.Contains(t, poster.posts[0].Text, "#さつまいもの民")
}
