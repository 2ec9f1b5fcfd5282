package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"imomaru/pkg/ai"
	"imomaru/pkg/progression"
	"imomaru/pkg/state"
	"imomaru/pkg/timeline"
)

// JST is the bot's home timezone; report dates and profile months are
// computed in it regardless of where the process runs.
var JST = time.FixedZone("JST", 9*60*60)

// Mode selects which side effects a cycle performs. Core-time runs are
// frequent and cheap: target timeline only, plus the morning post.
// Daily runs add the group timeline, the engagement check and the
// nightly report.
type Mode string

const (
	ModeDailyReport Mode = "daily_report"
	ModeCoreTime    Mode = "core_time"
)

// CycleReport is what one handler invocation did.
type CycleReport struct {
	CycleID           string  `json:"cycle_id"`
	Mode              Mode    `json:"mode"`
	EventsObserved    int     `json:"events_observed"`
	XPGained          float64 `json:"xp_gained"`
	QuotesPosted      int     `json:"quotes_posted"`
	LeveledUp         bool    `json:"leveled_up"`
	NewLevel          int     `json:"new_level"`
	DailyReportPosted bool    `json:"daily_report_posted"`
	MorningPosted     bool    `json:"morning_posted"`
	TranslationPosted bool    `json:"translation_posted"`
}

// Handler wires the timeline, the progression engine and the posting
// surfaces into one scheduled cycle.
type Handler struct {
	store     state.Store
	rewards   *progression.RewardTable
	monitor   TimelineSource
	generator Generator
	poster    Poster
	images    ImageSource
	reporter  *Reporter
	profile   *ProfileUpdater
	now       func() time.Time
}

func NewHandler(store state.Store, rewards *progression.RewardTable, monitor TimelineSource, generator Generator, poster Poster, images ImageSource, reporter *Reporter, profile *ProfileUpdater) *Handler {
	return &Handler{
		store:     store,
		rewards:   rewards,
		monitor:   monitor,
		generator: generator,
		poster:    poster,
		images:    images,
		reporter:  reporter,
		profile:   profile,
		now:       time.Now,
	}
}

// SetClock overrides the handler's clock. Tests only.
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

// RunCycle executes one scheduled invocation. Observation failures
// degrade to empty batches so one flaky fetch never blocks the rest of
// the cycle; storage failures abort, the next invocation retries.
func (h *Handler) RunCycle(ctx context.Context, mode Mode) (*CycleReport, error) {
	st, err := h.store.LoadState(ctx)
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}

	entries, err := h.store.LoadGrowthTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("load growth table: %w", err)
	}
	growth, err := progression.NewGrowthTable(entries)
	if err != nil {
		return nil, fmt.Errorf("invalid growth table: %w", err)
	}

	report := &CycleReport{Mode: mode, NewLevel: st.Level}

	// Observe. Each source fails independently.
	targetObs, err := h.monitor.CheckTarget(ctx, st.LatestTweetID)
	if err != nil {
		log.Printf("[Handler] Target timeline check failed: %v", err)
		targetObs = nil
	}

	var groupObs []timeline.Observation
	var engagement []progression.ActivityEvent
	if mode != ModeCoreTime {
		groupObs, err = h.monitor.CheckGroup(ctx, st.LatestTweetID)
		if err != nil {
			log.Printf("[Handler] Group timeline check failed: %v", err)
			groupObs = nil
		}

		var likes, reposts int
		engagement, likes, reposts, err = h.monitor.EngagementDeltas(ctx)
		if err != nil {
			log.Printf("[Handler] Engagement check failed: %v", err)
			engagement = nil
		} else {
			st.TotalReceivedLikes = likes
			st.TotalReceivedReposts = reposts
		}
	}

	events := make([]progression.ActivityEvent, 0, len(targetObs)+len(groupObs)+len(engagement))
	byEventID := make(map[string]timeline.Observation, len(targetObs)+len(groupObs))
	for _, obs := range append(targetObs, groupObs...) {
		events = append(events, obs.Event)
		byEventID[obs.Event.EventID] = obs
	}
	events = append(events, engagement...)
	report.EventsObserved = len(events)

	// Reward. The committer binds the engine's character writes to the
	// full state row so counters never get clobbered.
	engine := progression.NewEngine(h.rewards, progression.NewLevelResolver(growth), h.store, state.NewCommitter(h.store, &st))
	engine.SetClock(h.now)

	newChar, result, err := engine.RunCycle(ctx, st.CharacterState, events)
	if err != nil {
		return nil, fmt.Errorf("run progression cycle: %w", err)
	}
	st.CharacterState = newChar
	st.Tally(result.Rewarded)
	// XP recovered from a crashed cycle never got counted either.
	st.Tally(result.Recovered)
	st.LatestTweetID = timeline.LatestID(st.LatestTweetID, append(targetObs, groupObs...))

	report.CycleID = result.CycleID
	report.XPGained = result.XPGained
	report.LeveledUp = result.LeveledUp
	report.NewLevel = result.NewLevel

	// Post. Everything from here is downstream of the committed reward:
	// a crash now loses at most a post, never XP.
	report.QuotesPosted = h.postQuotes(ctx, &st, result.Rewarded, byEventID)

	if result.LeveledUp {
		h.profile.HandleLevelUp(ctx, &st, st.XPBreakdown(h.rewards), growth.XPToNext(st.Level, st.TotalXP))
	}

	now := h.now()
	if mode != ModeCoreTime && h.reporter.ShouldPostDailyReport(st, now) {
		if h.reporter.PostDailyReport(ctx, st, growth.XPToNext(st.Level, st.TotalXP)) {
			st.LastDailyReportDate = h.reporter.TodayJST(now)
			st.ResetDailyCounts()
			report.DailyReportPosted = true
		}
	}

	if mode == ModeCoreTime && h.reporter.ShouldPostMorningContent(st, now) {
		if h.reporter.PostMorningContent(ctx) {
			st.LastMorningContentDate = h.reporter.TodayJST(now)
			report.MorningPosted = true
		}
		if h.reporter.ShouldPostTranslation(now) {
			report.TranslationPosted = h.postTranslation(ctx)
		}
	}

	st.LastUpdated = now.UTC()
	if err := h.store.SaveState(ctx, st); err != nil {
		return nil, fmt.Errorf("save state: %w", err)
	}

	return report, nil
}

// postQuotes announces each rewarded timeline event as a quote post.
// Engagement events have no tweet to quote and are skipped.
func (h *Handler) postQuotes(ctx context.Context, st *state.BotState, rewarded []progression.RewardedEvent, byEventID map[string]timeline.Observation) int {
	posted := 0
	for _, r := range rewarded {
		obs, ok := byEventID[r.Event.EventID]
		if !ok {
			continue
		}

		postType := postTypeFor(r.Event)
		var text string
		if r.Event.Kind == progression.KindRepost {
			text = h.generator.RepostResponse(postType)
		} else {
			text = h.generator.GenerateResponse(ctx, obs.Tweet.Text, postType)
		}

		var mediaIDs []string
		if r.Event.Role == progression.RoleTarget && !st.DailyImagePosted {
			if mediaID := h.emotionMediaID(ctx, text); mediaID != "" {
				mediaIDs = []string{mediaID}
				st.DailyImagePosted = true
			}
		}

		if _, err := h.poster.PostTweet(ctx, text, obs.Tweet.ID, mediaIDs); err != nil {
			log.Printf("[Handler] Quote post for %s failed: %v", r.Event.EventID, err)
			continue
		}
		posted++
	}
	return posted
}

// postTranslation translates the week's most liked target post and
// posts it. Any failure just skips the post until next Sunday.
func (h *Handler) postTranslation(ctx context.Context) bool {
	tweet, likes, err := h.monitor.PopularTargetPost(ctx)
	if err != nil {
		log.Printf("[Handler] Popular post lookup failed: %v", err)
		return false
	}
	if tweet.ID == "" {
		log.Println("[Handler] No popular post to translate this week")
		return false
	}

	translated, err := h.generator.Translate(ctx, tweet.Text)
	if err != nil {
		log.Printf("[Handler] Translation failed: %v", err)
		return false
	}
	return h.reporter.PostTranslation(ctx, translated, likes)
}

// emotionMediaID classifies the post text, fetches the matching image
// and uploads it. Any failure means posting without an image.
func (h *Handler) emotionMediaID(ctx context.Context, text string) string {
	key := h.generator.ClassifyEmotion(ctx, text)
	if key == "" {
		return ""
	}

	filename, err := h.store.EmotionImage(ctx, key)
	if err != nil || filename == "" {
		log.Printf("[Handler] No emotion image for %q: %v", key, err)
		return ""
	}

	data, err := h.images.EmotionImage(filename)
	if err != nil {
		log.Printf("[Handler] Load emotion image %s failed: %v", filename, err)
		return ""
	}

	mediaID, err := h.poster.UploadMedia(ctx, data)
	if err != nil {
		log.Printf("[Handler] Upload emotion image failed: %v", err)
		return ""
	}
	log.Printf("[Handler] Emotion image attached: %s (%s)", key, filename)
	return mediaID
}

func postTypeFor(ev progression.ActivityEvent) ai.PostType {
	switch {
	case ev.Role == progression.RoleTarget && ev.Kind == progression.KindRepost:
		return ai.PostTargetRepost
	case ev.Role == progression.RoleTarget:
		return ai.PostTarget
	case ev.Kind == progression.KindRepost:
		return ai.PostGroupRepost
	default:
		return ai.PostGroup
	}
}
