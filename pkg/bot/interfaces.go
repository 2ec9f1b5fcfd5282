package bot

import (
	"context"

	"imomaru/pkg/ai"
	"imomaru/pkg/progression"
	"imomaru/pkg/search"
	"imomaru/pkg/timeline"
	"imomaru/pkg/xapi"
)

// Poster is the slice of the X client the bot writes through.
type Poster interface {
	PostTweet(ctx context.Context, text, quoteTweetID string, mediaIDs []string) (string, error)
	UploadMedia(ctx context.Context, data []byte) (string, error)
	UpdateProfileName(ctx context.Context, name string) error
	UpdateProfileImage(ctx context.Context, image []byte) error
}

// Generator produces post text, emotion tags and translations.
type Generator interface {
	GenerateResponse(ctx context.Context, postContent string, postType ai.PostType) string
	RepostResponse(postType ai.PostType) string
	ClassifyEmotion(ctx context.Context, text string) string
	Translate(ctx context.Context, text string) (string, error)
}

// TimelineSource feeds classified activity into a cycle.
type TimelineSource interface {
	CheckTarget(ctx context.Context, sinceID string) ([]timeline.Observation, error)
	CheckGroup(ctx context.Context, sinceID string) ([]timeline.Observation, error)
	EngagementDeltas(ctx context.Context) ([]progression.ActivityEvent, int, int, error)
	PopularTargetPost(ctx context.Context) (xapi.Tweet, int, error)
}

// ImageSource provides profile and emotion image data.
type ImageSource interface {
	LevelImage(level int) ([]byte, error)
	EmotionImage(filename string) ([]byte, error)
}

// VideoSearcher finds recent uploads for the morning post.
type VideoSearcher interface {
	SearchLatest(ctx context.Context, query string, maxResults int) ([]search.Video, error)
}
