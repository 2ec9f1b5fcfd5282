package ai

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

const (
	// Posts must fit the platform limit including the trailing hashtags.
	MaxTextLength = 140

	Hashtags = "#さつまいもの民 #びっくえんじぇる"
)

// Fallback responses used when the completion API is unavailable.
const (
	FallbackTarget       = "じゅりちゃんの投稿を見つけたｲﾓ🍠✨ #さつまいもの民 #びっくえんじぇる"
	FallbackGroup        = "グループの投稿を見つけたｲﾓ🍠✨ #さつまいもの民 #びっくえんじぇる"
	FallbackTargetRepost = "甘木ジュリちゃんがリポストしたｲﾓ🍠✨ #さつまいもの民 #びっくえんじぇる"
	FallbackGroupRepost  = "びっくえんじぇるがリポストしたｲﾓ🍠✨ #さつまいもの民 #びっくえんじぇる"
)

const promptTemplate = `あなたは「ほくほくいも丸くん🍠」というキャラクターです。
甘木ジュリさん(@juri_bigangel)の熱心なファンで、常に語尾に「◯◯ｲﾓ🍠」をつけて話します。

以下の投稿に対して、キャラクターに合った応答を生成してください：

%s

制約:
- 適切な絵文字を使用すること
- 文末に必ず「#さつまいもの民 #びっくえんじぇる」を含めること
- ハッシュタグを含めて140文字以内に収めること
- 語尾は必ず「◯◯ｲﾓ🍠」の形式にすること（例：「嬉しいｲﾓ🍠」「最高ｲﾓ🍠」）
- 推しの名前は「甘木ジュリ」です。「天木」ではありません。必ず「甘木」と書いてください。

応答:`

// EmotionKeys are the image categories a generated post can be tagged with.
var EmotionKeys = []string{
	"passion",
	"cheer",
	"gratitude_hug",
	"reverence",
	"excitement_move",
	"support_financial",
	"infatuation",
	"deeply_moved",
	"kindness",
	"joy",
}

// PostType selects which fallback response is used when generation fails.
type PostType string

const (
	PostTarget       PostType = "target"
	PostGroup        PostType = "group"
	PostTargetRepost PostType = "target_repost"
	PostGroupRepost  PostType = "group_repost"
)

// Generator produces in-character quote post text via the chat completion
// API and degrades to fixed fallback responses on any failure.
type Generator struct {
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
}

func NewGenerator(apiKey, model string, temperature float64, maxTokens int) *Generator {
	if apiKey == "" {
		log.Println("Warning: No OpenAI API key provided, only fallback responses available")
	}
	return &Generator{
		client:      openai.NewClient(option.WithAPIKey(apiKey)),
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
	}
}

// GenerateResponse builds a quoted reply for the given post. It never
// returns an error: failures fall back to a fixed response for the post
// type so a cycle is not lost to a flaky completion API.
func (g *Generator) GenerateResponse(ctx context.Context, postContent string, postType PostType) string {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(fmt.Sprintf(promptTemplate, postContent)),
		},
		Temperature: openai.Float(g.temperature),
		MaxTokens:   openai.Int(int64(g.maxTokens)),
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		log.Printf("[AI] Generation failed, using fallback: %v", err)
		return FallbackFor(postType)
	}
	if resp == nil || len(resp.Choices) == 0 {
		log.Println("[AI] Empty completion, using fallback")
		return FallbackFor(postType)
	}

	text := TruncateText(strings.TrimSpace(resp.Choices[0].Message.Content), MaxTextLength)
	log.Printf("[AI] Generated %s response (%d chars)", postType, len([]rune(text)))
	return text
}

// RepostResponse returns the fixed text for announcing a repost. Reposts
// carry no original text worth quoting, so no completion call is made.
func (g *Generator) RepostResponse(postType PostType) string {
	if postType == PostTarget || postType == PostTargetRepost {
		return FallbackTargetRepost
	}
	return FallbackGroupRepost
}

// Translate renders a Japanese post into casual English for the weekly
// popular-post translation. Unlike GenerateResponse there is no useful
// fallback text, so failures surface as errors and the caller skips the
// post.
func (g *Generator) Translate(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	prompt := fmt.Sprintf(
		"次の日本語の投稿を、海外のファンにも伝わる自然でカジュアルな英語に翻訳してください。翻訳文のみを出力してください。\n\n%s",
		text,
	)

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.3),
		MaxTokens:   openai.Int(int64(g.maxTokens)),
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("translate post: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("translate post: empty completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ClassifyEmotion maps generated text onto one of the emotion keys, or ""
// when classification fails. The caller treats "" as "post without image".
func (g *Generator) ClassifyEmotion(ctx context.Context, text string) string {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	prompt := fmt.Sprintf(
		"次の投稿の感情を以下のキーから1つだけ選んで、キーのみを出力してください。\nキー: %s\n\n投稿:\n%s",
		strings.Join(EmotionKeys, ", "), text,
	)

	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.0),
		MaxTokens:   openai.Int(16),
	}

	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		log.Printf("[AI] Emotion classification failed: %v", err)
		return ""
	}
	if resp == nil || len(resp.Choices) == 0 {
		return ""
	}

	key := strings.TrimSpace(strings.ToLower(resp.Choices[0].Message.Content))
	for _, k := range EmotionKeys {
		if key == k {
			return k
		}
	}
	log.Printf("[AI] Unknown emotion key %q, skipping image", key)
	return ""
}

// FallbackFor returns the fixed response for a post type.
func FallbackFor(postType PostType) string {
	switch postType {
	case PostTarget:
		return FallbackTarget
	case PostTargetRepost:
		return FallbackTargetRepost
	case PostGroupRepost:
		return FallbackGroupRepost
	default:
		return FallbackGroup
	}
}

// TruncateText shortens text to maxLen runes while keeping the trailing
// hashtags intact. Counting is rune-based since posts are Japanese.
func TruncateText(text string, maxLen int) string {
	if len([]rune(text)) <= maxLen {
		return text
	}

	contentMax := maxLen - len([]rune(Hashtags)) - 1
	content := strings.TrimSpace(strings.ReplaceAll(text, Hashtags, ""))

	runes := []rune(content)
	if len(runes) > contentMax {
		runes = runes[:contentMax-3]
		return fmt.Sprintf("%s... %s", string(runes), Hashtags)
	}
	return fmt.Sprintf("%s %s", content, Hashtags)
}
