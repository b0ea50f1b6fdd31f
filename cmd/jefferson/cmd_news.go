package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"jefferson/internal/news"
)

var (
	newsCounty     string
	includeReddit  bool
	redditPerSub   int
	printNewsBlock bool
)

// scrapeNewsCmd gathers recent local coverage for a county
var scrapeNewsCmd = &cobra.Command{
	Use:   "scrape-news",
	Short: "Scrape recent local news for a county",
	Long: `Fetches headlines from the county's configured outlets and, with
--reddit, hot posts from its local subreddits. Stored articles inside
the recency window become the news context block in poll prompts.

Example:
  jefferson scrape-news --county "San Francisco" --reddit`,
	RunE: runScrapeNews,
}

func init() {
	scrapeNewsCmd.Flags().StringVar(&newsCounty, "county", "", "County to scrape (required)")
	scrapeNewsCmd.Flags().BoolVar(&includeReddit, "reddit", false, "Also fetch local subreddit posts")
	scrapeNewsCmd.Flags().IntVar(&redditPerSub, "reddit-limit", 10, "Posts per subreddit")
	scrapeNewsCmd.Flags().BoolVar(&printNewsBlock, "show-context", false, "Print the rendered news context block")
	_ = scrapeNewsCmd.MarkFlagRequired("county")
}

func runScrapeNews(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	timeout := cfg.GetNewsRequestTimeout()
	scraper := news.NewScraper(cfg.News, timeout, logger)
	articles, err := scraper.ScrapeCounty(cmd.Context(), newsCounty)
	if err != nil {
		return err
	}

	if includeReddit {
		reddit := news.NewRedditClient(timeout, logger)
		for _, sub := range cfg.News.Subreddits[newsCounty] {
			posts, err := reddit.FetchSubreddit(cmd.Context(), newsCounty, sub, redditPerSub)
			if err != nil {
				logger.Warn("reddit fetch failed", zap.String("subreddit", sub), zap.Error(err))
				continue
			}
			articles = append(articles, posts...)
		}
	}

	if len(articles) == 0 {
		fmt.Println("No articles found.")
		return nil
	}

	if err := st.SaveArticles(cmd.Context(), articles); err != nil {
		return fmt.Errorf("saving articles: %w", err)
	}

	logger.Info("news scrape complete",
		zap.String("county", newsCounty),
		zap.Int("articles", len(articles)))
	fmt.Printf("Stored %d articles for %s\n", len(articles), newsCounty)

	if printNewsBlock {
		block, err := newsContextForCounty(cmd, st, cfg, newsCounty)
		if err != nil {
			return err
		}
		fmt.Println()
		fmt.Println(block)
	}
	return nil
}
