package bot

import (
	"context"
	"errors"
	"fmt"

	"imomaru/pkg/ai"
	"imomaru/pkg/progression"
	"imomaru/pkg/search"
	"imomaru/pkg/timeline"
	"imomaru/pkg/xapi"
)

type postedTweet struct {
	Text         string
	QuoteTweetID string
	MediaIDs     []string
}

type mockPoster struct {
	posts        []postedTweet
	uploads      [][]byte
	profileName  string
	profileImage []byte
	nextID       int
	failPosts    bool
}

func (m *mockPoster) PostTweet(_ context.Context, text, quoteTweetID string, mediaIDs []string) (string, error) {
	if m.failPosts {
		return "", errors.New("post rejected")
	}
	m.posts = append(m.posts, postedTweet{Text: text, QuoteTweetID: quoteTweetID, MediaIDs: mediaIDs})
	m.nextID++
	return fmt.Sprintf("post-%d", m.nextID), nil
}

func (m *mockPoster) UploadMedia(_ context.Context, data []byte) (string, error) {
	m.uploads = append(m.uploads, data)
	return fmt.Sprintf("media-%d", len(m.uploads)), nil
}

func (m *mockPoster) UpdateProfileName(_ context.Context, name string) error {
	m.profileName = name
	return nil
}

func (m *mockPoster) UpdateProfileImage(_ context.Context, image []byte) error {
	m.profileImage = image
	return nil
}

type mockGenerator struct{}

func (mockGenerator) GenerateResponse(_ context.Context, postContent string, postType ai.PostType) string {
	return "generated: " + postContent
}

func (mockGenerator) RepostResponse(postType ai.PostType) string {
	return ai.FallbackFor(postType)
}

func (mockGenerator) ClassifyEmotion(_ context.Context, _ string) string {
	return "joy"
}

func (mockGenerator) Translate(_ context.Context, text string) (string, error) {
	return "translated: " + text, nil
}

type mockMonitor struct {
	target       []timeline.Observation
	group        []timeline.Observation
	engagement   []progression.ActivityEvent
	likes        int
	reposts      int
	targetErr    error
	groupCalls   int
	engCalls     int
	popular      xapi.Tweet
	popularLikes int
}

func (m *mockMonitor) CheckTarget(_ context.Context, _ string) ([]timeline.Observation, error) {
	return m.target, m.targetErr
}

func (m *mockMonitor) CheckGroup(_ context.Context, _ string) ([]timeline.Observation, error) {
	m.groupCalls++
	return m.group, nil
}

func (m *mockMonitor) EngagementDeltas(_ context.Context) ([]progression.ActivityEvent, int, int, error) {
	m.engCalls++
	return m.engagement, m.likes, m.reposts, nil
}

func (m *mockMonitor) PopularTargetPost(_ context.Context) (xapi.Tweet, int, error) {
	return m.popular, m.popularLikes, nil
}

type mockImages struct {
	levelImage []byte
}

func (m *mockImages) LevelImage(level int) ([]byte, error) {
	if m.levelImage == nil {
		return nil, errors.New("no base image")
	}
	return m.levelImage, nil
}

func (m *mockImages) EmotionImage(filename string) ([]byte, error) {
	return []byte("image:" + filename), nil
}

type mockSearcher struct {
	videos []search.Video
	err    error
}

func (m *mockSearcher) SearchLatest(_ context.Context, _ string, _ int) ([]search.Video, error) {
	return m.videos, m.err
}

func observation(id, text string, role progression.Role, kind progression.Kind) timeline.Observation {
	return timeline.Observation{
		Event: progression.ActivityEvent{
			EventID: progression.EventID(id, kind, role),
			Role:    role,
			Kind:    kind,
		},
		Tweet: xapi.Tweet{ID: id, Text: text},
	}
}
