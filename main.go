package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"imomaru/pkg/ai"
	"imomaru/pkg/bot"
	"imomaru/pkg/cache"
	"imomaru/pkg/config"
	"imomaru/pkg/images"
	"imomaru/pkg/progression"
	"imomaru/pkg/search"
	"imomaru/pkg/state"
	"imomaru/pkg/surreal"
	"imomaru/pkg/timeline"
	"imomaru/pkg/xapi"
)

func main() {
	root := &cobra.Command{
		Use:   "imomaru",
		Short: "Scheduled fan bot with XP progression",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newInitXPTableCmd())
	root.AddCommand(newInitEmotionImagesCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	var mode string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one scheduled cycle",
		Run: func(cmd *cobra.Command, args []string) {
			runCycle(bot.Mode(mode))
		},
	}
	cmd.Flags().StringVar(&mode, "mode", string(bot.ModeDailyReport), "Execution mode: daily_report or core_time")
	return cmd
}

func newInitXPTableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-xp-table",
		Short: "Seed the growth table into the store",
		Run: func(cmd *cobra.Command, args []string) {
			store, cleanup := buildStore()
			defer cleanup()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			entries := progression.DefaultGrowthCurve()
			if err := store.SeedGrowthTable(ctx, entries); err != nil {
				log.Fatalf("Failed to seed growth table: %v", err)
			}
			log.Printf("Growth table seeded: %d levels", len(entries))
		},
	}
}

func newInitEmotionImagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-emotion-images",
		Short: "Seed the emotion image mapping into the store",
		Run: func(cmd *cobra.Command, args []string) {
			store, cleanup := buildStore()
			defer cleanup()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := store.SeedEmotionImages(ctx, defaultEmotionImages); err != nil {
				log.Fatalf("Failed to seed emotion images: %v", err)
			}
			log.Printf("Emotion images seeded: %d entries", len(defaultEmotionImages))
		},
	}
}

var defaultEmotionImages = map[string]string{
	"passion":           "imomaru_oshi.png",
	"cheer":             "imomaru_cheer.png",
	"gratitude_hug":     "imomaru_thanks.png",
	"reverence":         "imomaru_toutoi.png",
	"excitement_move":   "imomaru_chari.png",
	"support_financial": "imomaru_superchat.png",
	"infatuation":       "imomaru_love.png",
	"deeply_moved":      "imomaru_moved.png",
	"kindness":          "imomaru_kindness.png",
	"joy":               "imomaru_joy.png",
}

func runCycle(mode bot.Mode) {
	cfg, err := config.LoadConfig("config.yml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	creds := xapi.Credentials{
		ConsumerKey:    os.Getenv("X_CONSUMER_KEY"),
		ConsumerSecret: os.Getenv("X_CONSUMER_SECRET"),
		AccessToken:    os.Getenv("X_ACCESS_TOKEN"),
		AccessSecret:   os.Getenv("X_ACCESS_SECRET"),
	}
	if creds.ConsumerKey == "" {
		log.Fatal("Missing required environment variable: X_CONSUMER_KEY")
	}
	if creds.ConsumerSecret == "" {
		log.Fatal("Missing required environment variable: X_CONSUMER_SECRET")
	}
	if creds.AccessToken == "" {
		log.Fatal("Missing required environment variable: X_ACCESS_TOKEN")
	}
	if creds.AccessSecret == "" {
		log.Fatal("Missing required environment variable: X_ACCESS_SECRET")
	}

	targetUserID := os.Getenv("TARGET_USER_ID")
	if targetUserID == "" {
		log.Fatal("Missing required environment variable: TARGET_USER_ID")
	}
	groupUserID := os.Getenv("GROUP_USER_ID")
	botUserID := os.Getenv("BOT_USER_ID")

	openaiKey := os.Getenv("OPENAI_API_KEY")
	if openaiKey == "" {
		log.Println("OPENAI_API_KEY not set, posts will use fallback responses")
	}

	store, cleanup := buildStore()
	defer cleanup()

	xClient := xapi.NewClient(creds)
	monitor := timeline.NewMonitor(xClient, targetUserID, groupUserID, botUserID, cfg.Timeline.MaxResults)
	generator := ai.NewGenerator(openaiKey, cfg.ModelSettings.Model, cfg.ModelSettings.Temperature, cfg.ModelSettings.MaxTokens)
	compositor := images.NewCompositor(cfg.Assets.Dir)
	reporter := bot.NewReporter(xClient, search.NewYouTubeClient(), cfg.Schedule.DailyReportHour, cfg.Schedule.MorningHour)
	profile := bot.NewProfileUpdater(xClient, compositor)

	handler := bot.NewHandler(store, progression.DefaultRewardTable(), monitor, generator, xClient, compositor, reporter, profile)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	report, err := handler.RunCycle(ctx, mode)
	if err != nil {
		log.Fatalf("Cycle failed: %v", err)
	}

	out, _ := json.Marshal(report)
	log.Printf("Cycle complete: %s", out)
}

// buildStore connects SurrealDB and, when a Redis URL is configured,
// wraps it with the cache decorator.
func buildStore() (state.Store, func()) {
	surrealHost := os.Getenv("SURREAL_DB_HOST")
	surrealUser := os.Getenv("SURREAL_DB_USER")
	surrealPass := os.Getenv("SURREAL_DB_PASS")
	surrealNS := os.Getenv("SURREAL_DB_NAMESPACE")
	surrealDB := os.Getenv("SURREAL_DB_DATABASE")

	if surrealHost == "" {
		log.Fatal("Missing required environment variable: SURREAL_DB_HOST")
	}
	if surrealUser == "" {
		log.Fatal("Missing required environment variable: SURREAL_DB_USER")
	}
	if surrealPass == "" {
		log.Fatal("Missing required environment variable: SURREAL_DB_PASS")
	}
	if surrealNS == "" {
		surrealNS = "imomaru"
	}
	if surrealDB == "" {
		surrealDB = "bot"
	}

	if !strings.HasPrefix(surrealHost, "ws://") && !strings.HasPrefix(surrealHost, "wss://") {
		surrealHost = "wss://" + surrealHost + "/rpc"
	}

	log.Printf("Connecting to SurrealDB at %s (NS: %s, DB: %s)", surrealHost, surrealNS, surrealDB)
	surrealClient, err := surreal.NewClient(surrealHost, surrealUser, surrealPass, surrealNS, surrealDB)
	if err != nil {
		log.Fatalf("Failed to connect to SurrealDB: %v", err)
	}

	var store state.Store = state.NewSurrealStore(surrealClient)
	cleanup := func() { surrealClient.Close() }

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		log.Println("REDIS_URL not set, running without cache")
		return store, cleanup
	}

	redisCache, err := cache.NewRedisCache(redisURL, "imomaru")
	if err != nil {
		log.Printf("Redis unavailable, running without cache: %v", err)
		return store, cleanup
	}

	log.Println("Redis cache enabled")
	return state.NewCachedStore(store, redisCache), func() {
		redisCache.Close()
		surrealClient.Close()
	}
}
