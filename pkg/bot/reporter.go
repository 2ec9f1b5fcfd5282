package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"imomaru/pkg/state"
)

const dailyReportTemplate = `今日の活動報告ｲﾓ🍠
じゅりちゃんの投稿：%d回
グループの投稿：%d回
みんなからのいいね：%d回
みんなのリポスト：%d回
今日の獲得XP：%.1f XP
現在Lv.%d → 次まで%.0f XP
#さつまいもの民 #びっくえんじぇる`

const morningSearchQuery = "甘木ジュリ びっくえんじぇる"

const translationTemplate = `今週の人気ポストを翻訳したｲﾓ🍠
🌎 %s
いいね%d件の人気ポストｲﾓ～🍠
#さつまいもの民 #びっくえんじぇる`

// Reporter posts the nightly activity report and the morning video
// check. Both are gated to once per JST date through state watermarks.
type Reporter struct {
	poster      Poster
	videos      VideoSearcher
	reportHour  int
	morningHour int
}

func NewReporter(poster Poster, videos VideoSearcher, reportHour, morningHour int) *Reporter {
	return &Reporter{
		poster:      poster,
		videos:      videos,
		reportHour:  reportHour,
		morningHour: morningHour,
	}
}

// TodayJST formats t as a JST calendar date.
func (r *Reporter) TodayJST(t time.Time) string {
	return t.In(JST).Format("2006-01-02")
}

// ShouldPostDailyReport is true from the report hour onwards, once per
// JST date.
func (r *Reporter) ShouldPostDailyReport(st state.BotState, now time.Time) bool {
	jst := now.In(JST)
	return jst.Hour() >= r.reportHour && st.LastDailyReportDate != r.TodayJST(now)
}

// DailyReportText renders the nightly summary.
func (r *Reporter) DailyReportText(st state.BotState, nextLevelXP float64) string {
	return fmt.Sprintf(dailyReportTemplate,
		st.DailyTargetCount,
		st.DailyGroupCount,
		st.DailyLikeCount,
		st.DailyRepostCount,
		st.DailyXP,
		st.Level,
		nextLevelXP,
	)
}

// PostDailyReport sends the nightly summary. A failed post returns
// false so the caller leaves the date watermark untouched and the next
// invocation retries.
func (r *Reporter) PostDailyReport(ctx context.Context, st state.BotState, nextLevelXP float64) bool {
	text := r.DailyReportText(st, nextLevelXP)
	id, err := r.poster.PostTweet(ctx, text, "", nil)
	if err != nil {
		log.Printf("[Reporter] Daily report post failed: %v", err)
		return false
	}
	log.Printf("[Reporter] Daily report posted: %s", id)
	return true
}

// ShouldPostMorningContent is true during the morning hour, once per
// JST date.
func (r *Reporter) ShouldPostMorningContent(st state.BotState, now time.Time) bool {
	jst := now.In(JST)
	return jst.Hour() >= r.morningHour && st.LastMorningContentDate != r.TodayJST(now)
}

// PostMorningContent searches for a freshly uploaded video and posts a
// pointer to it. No hit means nothing to say, which still counts as
// done for the day.
func (r *Reporter) PostMorningContent(ctx context.Context) bool {
	videos, err := r.videos.SearchLatest(ctx, morningSearchQuery, 1)
	if err != nil {
		log.Printf("[Reporter] Video search failed: %v", err)
		return false
	}
	if len(videos) == 0 {
		log.Println("[Reporter] No new videos this morning")
		return true
	}

	v := videos[0]
	text := fmt.Sprintf("じゅりちゃんの新着動画を見つけたｲﾓ🍠\n📺 %s\n🔗 %s\n#さつまいもの民 #びっくえんじぇる", v.Title, v.URL())
	id, err := r.poster.PostTweet(ctx, text, "", nil)
	if err != nil {
		log.Printf("[Reporter] Morning post failed: %v", err)
		return false
	}
	log.Printf("[Reporter] Morning video posted: %s", id)
	return true
}

// ShouldPostTranslation is true on JST Sundays. The weekly translation
// rides the morning content slot, so the once-per-date gate there keeps
// it to one post.
func (r *Reporter) ShouldPostTranslation(now time.Time) bool {
	return now.In(JST).Weekday() == time.Sunday
}

// PostTranslation posts the English rendering of the week's most liked
// target post.
func (r *Reporter) PostTranslation(ctx context.Context, translated string, likeCount int) bool {
	text := fmt.Sprintf(translationTemplate, translated, likeCount)
	id, err := r.poster.PostTweet(ctx, text, "", nil)
	if err != nil {
		log.Printf("[Reporter] Translation post failed: %v", err)
		return false
	}
	log.Printf("[Reporter] Weekly translation posted: %s", id)
	return true
}
