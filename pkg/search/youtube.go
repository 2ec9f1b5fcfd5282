package search

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Video is one search hit from YouTube results.
type Video struct {
	ID    string
	Title string
}

// URL returns the short-form watch link.
func (v Video) URL() string {
	return "https://youtu.be/" + v.ID
}

// YouTubeClient scrapes YouTube search results for recent uploads.
// Result pages render from an inline ytInitialData blob, so the client
// pulls video ids and titles out of the script tags.
type YouTubeClient struct {
	client     *http.Client
	baseURL    string
	userAgents []string
}

func NewYouTubeClient() *YouTubeClient {
	return &YouTubeClient{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: "https://www.youtube.com",
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
		},
	}
}

// SetBaseURL points the client at a different host. Tests only.
func (c *YouTubeClient) SetBaseURL(base string) {
	c.baseURL = base
}

var (
	videoIDRegex = regexp.MustCompile(`"videoRenderer":\{"videoId":"([a-zA-Z0-9_-]{11})"`)
	titleRegex   = regexp.MustCompile(`"videoRenderer":\{"videoId":"[a-zA-Z0-9_-]{11}".*?"title":\{"runs":\[\{"text":"((?:[^"\\]|\\.)*)"`)
)

// SearchLatest returns the most recent uploads matching the query,
// newest first, at most maxResults.
func (c *YouTubeClient) SearchLatest(ctx context.Context, query string, maxResults int) ([]Video, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	params := url.Values{}
	params.Set("search_query", query)
	params.Set("sp", "CAI=") // sort by upload date; Encode escapes it

	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/results?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgents[rand.Intn(len(c.userAgents))])
	req.Header.Set("Accept-Language", "ja-JP,ja;q=0.9")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	var data string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if strings.Contains(text, "ytInitialData") {
			data = text
			return false
		}
		return true
	})
	if data == "" {
		return nil, fmt.Errorf("no ytInitialData in response")
	}

	return parseVideos(data, maxResults), nil
}

func parseVideos(data string, maxResults int) []Video {
	ids := videoIDRegex.FindAllStringSubmatch(data, -1)
	titles := titleRegex.FindAllStringSubmatch(data, -1)

	seen := make(map[string]bool)
	var videos []Video
	for i, m := range ids {
		if len(videos) >= maxResults {
			break
		}
		id := m[1]
		if seen[id] {
			continue
		}
		seen[id] = true

		title := ""
		if i < len(titles) {
			title = unescapeJSON(titles[i][1])
		}
		videos = append(videos, Video{ID: id, Title: title})
	}
	return videos
}

func unescapeJSON(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\\`, `\`)
	s = strings.ReplaceAll(s, `\n`, "\n")
	return s
}
