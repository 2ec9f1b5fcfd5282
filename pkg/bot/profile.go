package bot

import (
	"context"
	"fmt"
	"log"
	"time"

	"imomaru/pkg/state"
)

const profileNameTemplate = "ほくほくいも丸くん🍠Lv.%d"

const levelUpTemplate = `レベルが%dにあがったｲﾓ🍠
じゅりちゃんの投稿：%.1f XP
グループの投稿：%.1f XP
みんなからのいいね：%.1f XP
みんなのリポスト：%.1f XP
次のレベルまで: %.0f XP
#さつまいもの民 #びっくえんじぇる`

// ProfileUpdater announces level ups and keeps the profile name and
// image in step with the current level. Profile writes go through the
// v1.1 endpoints, which are tightly rate limited, so they run at most
// once per JST month; the announcement itself posts on every level up.
type ProfileUpdater struct {
	poster Poster
	images ImageSource
	now    func() time.Time
}

func NewProfileUpdater(poster Poster, images ImageSource) *ProfileUpdater {
	return &ProfileUpdater{
		poster: poster,
		images: images,
		now:    time.Now,
	}
}

// SetClock overrides the updater's clock. Tests only.
func (p *ProfileUpdater) SetClock(now func() time.Time) {
	p.now = now
}

// CurrentMonthJST returns the JST calendar month, YYYY-MM.
func (p *ProfileUpdater) CurrentMonthJST() string {
	return p.now().In(JST).Format("2006-01")
}

// ShouldUpdateProfile is true when the profile has not been touched
// this JST month.
func (p *ProfileUpdater) ShouldUpdateProfile(lastUpdateMonth string) bool {
	return lastUpdateMonth != p.CurrentMonthJST()
}

// ProfileName renders the display name for a level.
func (p *ProfileUpdater) ProfileName(level int) string {
	return fmt.Sprintf(profileNameTemplate, level)
}

// LevelUpText renders the announcement with the lifetime XP breakdown.
func (p *ProfileUpdater) LevelUpText(level int, breakdown map[string]float64, nextLevelXP float64) string {
	return fmt.Sprintf(levelUpTemplate,
		level,
		breakdown["target_post"],
		breakdown["group_post"],
		breakdown["like"],
		breakdown["repost"],
		nextLevelXP,
	)
}

// HandleLevelUp posts the announcement and, when the monthly window is
// open, refreshes the profile name and image. Partial failures are
// logged and absorbed: a level up must never fail the cycle.
func (p *ProfileUpdater) HandleLevelUp(ctx context.Context, st *state.BotState, breakdown map[string]float64, nextLevelXP float64) {
	if p.ShouldUpdateProfile(st.LastProfileUpdateMonth) {
		updated := false

		if data, err := p.images.LevelImage(st.Level); err != nil {
			log.Printf("[Profile] Level image compositing failed: %v", err)
		} else if err := p.poster.UpdateProfileImage(ctx, data); err != nil {
			log.Printf("[Profile] Profile image update failed: %v", err)
		} else {
			updated = true
		}

		if err := p.poster.UpdateProfileName(ctx, p.ProfileName(st.Level)); err != nil {
			log.Printf("[Profile] Profile name update failed: %v", err)
		} else {
			updated = true
		}

		if updated {
			st.LastProfileUpdateMonth = p.CurrentMonthJST()
		}
	} else {
		log.Printf("[Profile] Skipping profile update, already updated %s", st.LastProfileUpdateMonth)
	}

	text := p.LevelUpText(st.Level, breakdown, nextLevelXP)
	if _, err := p.poster.PostTweet(ctx, text, "", nil); err != nil {
		log.Printf("[Profile] Level up announcement failed: %v", err)
		return
	}
	log.Printf("[Profile] Level up announcement posted: Lv.%d", st.Level)
}
