package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const redditBaseURL = "https://www.reddit.com"

// RedditClient reads local subreddit hot listings through the public
// JSON endpoints. No auth token is used, so it stays well under the
// anonymous rate limit by fetching one page per subreddit.
type RedditClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewRedditClient builds a client with the given per-request timeout.
func NewRedditClient(timeout time.Duration, logger *zap.Logger) *RedditClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedditClient{
		baseURL:    redditBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		now:        time.Now,
	}
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Title      string  `json:"title"`
	SelfText   string  `json:"selftext"`
	Permalink  string  `json:"permalink"`
	CreatedUTC float64 `json:"created_utc"`
	Stickied   bool    `json:"stickied"`
}

// FetchSubreddit returns up to limit hot posts as articles tagged with
// the given county. Stickied posts are skipped; they are usually
// subreddit rules rather than local news.
func (c *RedditClient) FetchSubreddit(ctx context.Context, county, subreddit string, limit int) ([]Article, error) {
	if limit <= 0 {
		limit = 10
	}
	url := fmt.Sprintf("%s/r/%s/hot.json?limit=%d", c.baseURL, subreddit, limit+5)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", scraperUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("decoding listing: %w", err)
	}

	fetched := c.now()
	var articles []Article
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied || post.Title == "" {
			continue
		}
		articles = append(articles, Article{
			ID:          uuid.NewString(),
			County:      county,
			Source:      "r/" + subreddit,
			Title:       post.Title,
			URL:         redditBaseURL + post.Permalink,
			Summary:     truncate(post.SelfText, 300),
			PublishedAt: time.Unix(int64(post.CreatedUTC), 0).UTC(),
			FetchedAt:   fetched,
		})
		if len(articles) >= limit {
			break
		}
	}
	return articles, nil
}
