package xapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dghubble/oauth1"
)

const (
	defaultAPIBase    = "https://api.twitter.com"
	defaultUploadBase = "https://upload.twitter.com"
)

// Credentials holds the OAuth1 user-context keys. Write endpoints (posting,
// profile updates, media upload) only work with user context, not app-only
// bearer tokens.
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	AccessToken    string
	AccessSecret   string
}

type Client struct {
	client     *http.Client
	apiBase    string
	uploadBase string
}

// APIError captures non-2xx responses to allow inspection of the status code.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("x api status %d: %s", e.StatusCode, e.Body)
}

func NewClient(creds Credentials) *Client {
	oauthConfig := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)

	httpClient := oauthConfig.Client(oauth1.NoContext, token)
	httpClient.Timeout = 30 * time.Second

	return &Client{
		client:     httpClient,
		apiBase:    defaultAPIBase,
		uploadBase: defaultUploadBase,
	}
}

// SetBaseURLs overrides the API hosts. Tests only.
func (c *Client) SetBaseURLs(apiBase, uploadBase string) {
	c.apiBase = apiBase
	c.uploadBase = uploadBase
}

// Tweet is one item of a v2 timeline response.
type Tweet struct {
	ID               string          `json:"id"`
	Text             string          `json:"text"`
	AuthorID         string          `json:"author_id"`
	CreatedAt        string          `json:"created_at"`
	ReferencedTweets []ReferencedRef `json:"referenced_tweets,omitempty"`
	PublicMetrics    *TweetMetrics   `json:"public_metrics,omitempty"`
}

type ReferencedRef struct {
	Type string `json:"type"` // "quoted", "replied_to", "retweeted"
	ID   string `json:"id"`
}

type TweetMetrics struct {
	LikeCount    int `json:"like_count"`
	RetweetCount int `json:"retweet_count"`
}

type timelineResponse struct {
	Data []Tweet `json:"data"`
	Meta struct {
		NewestID    string `json:"newest_id"`
		ResultCount int    `json:"result_count"`
	} `json:"meta"`
}

// UserTweets fetches a user's recent tweets, newest first, with the
// referenced-tweet expansion needed to tell originals from reposts.
// sinceID may be empty on the first run.
func (c *Client) UserTweets(ctx context.Context, userID, sinceID string, maxResults int) ([]Tweet, error) {
	params := url.Values{}
	params.Set("tweet.fields", "created_at,author_id,referenced_tweets")
	params.Set("max_results", strconv.Itoa(maxResults))
	if sinceID != "" {
		params.Set("since_id", sinceID)
	}

	var resp timelineResponse
	endpoint := fmt.Sprintf("%s/2/users/%s/tweets?%s", c.apiBase, userID, params.Encode())
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("fetch user tweets: %w", err)
	}
	return resp.Data, nil
}

// UserTweetsWithMetrics fetches the bot's own tweets with public metrics
// for the engagement delta check.
func (c *Client) UserTweetsWithMetrics(ctx context.Context, userID string, maxResults int) ([]Tweet, error) {
	params := url.Values{}
	params.Set("tweet.fields", "public_metrics")
	params.Set("max_results", strconv.Itoa(maxResults))

	var resp timelineResponse
	endpoint := fmt.Sprintf("%s/2/users/%s/tweets?%s", c.apiBase, userID, params.Encode())
	if err := c.getJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("fetch tweets with metrics: %w", err)
	}
	return resp.Data, nil
}

type postTweetRequest struct {
	Text         string          `json:"text"`
	QuoteTweetID string          `json:"quote_tweet_id,omitempty"`
	Media        *postTweetMedia `json:"media,omitempty"`
}

type postTweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type postTweetResponse struct {
	Data struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	} `json:"data"`
}

// PostTweet posts a tweet, optionally quoting another and attaching media.
// Returns the new tweet's id.
func (c *Client) PostTweet(ctx context.Context, text, quoteTweetID string, mediaIDs []string) (string, error) {
	reqBody := postTweetRequest{Text: text, QuoteTweetID: quoteTweetID}
	if len(mediaIDs) > 0 {
		reqBody.Media = &postTweetMedia{MediaIDs: mediaIDs}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/2/tweets", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp postTweetResponse
	if err := c.doJSON(req, &resp); err != nil {
		return "", fmt.Errorf("post tweet: %w", err)
	}
	return resp.Data.ID, nil
}

type mediaUploadResponse struct {
	MediaIDString string `json:"media_id_string"`
}

// UploadMedia uploads image bytes via the v1.1 media endpoint and returns
// the media id for attachment.
func (c *Client) UploadMedia(ctx context.Context, image []byte) (string, error) {
	form := url.Values{}
	form.Set("media_data", base64.StdEncoding.EncodeToString(image))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.uploadBase+"/1.1/media/upload.json", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp mediaUploadResponse
	if err := c.doJSON(req, &resp); err != nil {
		return "", fmt.Errorf("upload media: %w", err)
	}
	return resp.MediaIDString, nil
}

// UpdateProfileName sets the account's display name (v1.1).
func (c *Client) UpdateProfileName(ctx context.Context, name string) error {
	form := url.Values{}
	form.Set("name", name)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/1.1/account/update_profile.json", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if err := c.doJSON(req, nil); err != nil {
		return fmt.Errorf("update profile name: %w", err)
	}
	return nil
}

// UpdateProfileImage sets the account's profile image from raw bytes (v1.1).
func (c *Client) UpdateProfileImage(ctx context.Context, image []byte) error {
	form := url.Values{}
	form.Set("image", base64.StdEncoding.EncodeToString(image))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/1.1/account/update_profile_image.json", bytes.NewBufferString(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if err := c.doJSON(req, nil); err != nil {
		return fmt.Errorf("update profile image: %w", err)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.doJSON(req, dest)
}

func (c *Client) doJSON(req *http.Request, dest interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	if dest == nil {
		return nil
	}
	return json.Unmarshal(body, dest)
}
