// Command sift answers questions from live web search results.
//
//	sift "when did the james webb telescope launch"
//	sift chat
//
// Configuration comes from flags or the environment (a .env file is loaded
// when present): SIFT_LLM_ENDPOINT, SIFT_LLM_KEY, SIFT_LLM_MODEL,
// SIFT_SEARCH_PROVIDER, BRAVE_API_KEY, TAVILY_API_KEY.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/smhanov/sift"
	"github.com/smhanov/sift/cache"
	"github.com/smhanov/sift/fetch"
	"github.com/smhanov/sift/llm"
	"github.com/smhanov/sift/search"
)

var (
	flagEndpoint   string
	flagModel      string
	flagProvider   string
	flagTimeout    time.Duration
	flagEnrich     int
	flagMultiAgent bool
	flagVerbose    bool
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "sift [query]",
		Short: "Answer a question from live web search results, with citations",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			return runOnce(cmd.Context(), strings.Join(args, " "))
		},
	}
	root.PersistentFlags().StringVar(&flagEndpoint, "endpoint", envOr("SIFT_LLM_ENDPOINT", "https://api.openai.com"), "OpenAI-compatible completion endpoint")
	root.PersistentFlags().StringVar(&flagModel, "model", envOr("SIFT_LLM_MODEL", "gpt-4o-mini"), "completion model name")
	root.PersistentFlags().StringVar(&flagProvider, "provider", envOr("SIFT_SEARCH_PROVIDER", "duckduckgo"), "search provider: duckduckgo, brave, tavily")
	root.PersistentFlags().DurationVar(&flagTimeout, "call-timeout", 30*time.Second, "deadline for each provider call")
	root.PersistentFlags().IntVar(&flagEnrich, "enrich", 0, "fetch page content for the top N results")
	root.PersistentFlags().BoolVar(&flagMultiAgent, "multi-agent", false, "use the multi-reviewer conflict resolution prompt")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	chatCmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive session; conversation context persists via the cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd.Context())
		},
	}
	root.AddCommand(chatCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newLogger() *zap.Logger {
	if flagVerbose {
		logger, _ := zap.NewDevelopment()
		return logger
	}
	return zap.NewNop()
}

func newPipeline(logger *zap.Logger) (*sift.Pipeline, error) {
	var searcher sift.SearchProvider
	switch flagProvider {
	case "duckduckgo":
		searcher = search.NewDuckDuckGo()
	case "brave":
		searcher = search.NewBrave(os.Getenv("BRAVE_API_KEY"))
	case "tavily":
		searcher = search.NewTavily(os.Getenv("TAVILY_API_KEY"), "basic")
	default:
		return nil, fmt.Errorf("unknown search provider: %s", flagProvider)
	}

	model := llm.NewOpenAI(flagEndpoint, os.Getenv("SIFT_LLM_KEY"), flagModel)

	opts := []sift.Option{
		sift.WithCompletionModel(model),
		sift.WithSearchProvider(searcher),
		sift.WithLogger(logger),
		sift.WithCallTimeout(flagTimeout),
		sift.WithMultiAgentResolution(flagMultiAgent),
	}
	if flagEnrich > 0 {
		opts = append(opts, sift.WithFetchProvider(fetch.NewHTTP()), sift.WithEnrichment(flagEnrich))
	}
	return sift.New(opts...), nil
}

func runOnce(ctx context.Context, query string) error {
	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	pipeline, err := newPipeline(logger)
	if err != nil {
		return err
	}

	result, err := pipeline.Answer(ctx, query)
	if err != nil {
		return err
	}
	printResult(result)
	return nil
}

func runChat(ctx context.Context) error {
	logger := newLogger()
	defer logger.Sync() //nolint:errcheck

	pipeline, err := newPipeline(logger)
	if err != nil {
		return err
	}

	store := cache.New(cache.WithLogger(logger))
	sessionID := uuid.NewString()
	fmt.Printf("session %s - type a question, 'stats', or 'quit'\n", sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "quit", "exit":
			return store.Clear(ctx, sessionID)
		case "stats":
			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("full=%d chunked=%d sessions=%d\n", stats.Full.Items, stats.Chunked.Items, stats.Sessions)
			continue
		}

		query := line
		if snap, err := store.Get(ctx, sessionID); err != nil {
			logger.Warn("cache read failed", zap.Error(err))
		} else if snap != nil {
			if snap.Partial {
				fmt.Println("(note: part of the conversation context has expired)")
			}
			query = contextualQuery(snap.Context, line)
		}

		result, err := pipeline.Answer(ctx, query)
		if err != nil {
			return err
		}
		printResult(result)

		snap, _ := store.Get(ctx, sessionID)
		conv := cache.Context{}
		if snap != nil {
			conv = snap.Context
		}
		conv.Messages = append(conv.Messages,
			cache.Message{Role: "user", Content: line},
			cache.Message{Role: "assistant", Content: result.Text},
		)
		if err := store.Store(ctx, sessionID, conv); err != nil {
			logger.Warn("cache write failed", zap.Error(err))
		}
	}
	return scanner.Err()
}

// contextualQuery prefixes a follow-up question with recent conversation
// turns so the planner can resolve pronouns and references.
func contextualQuery(conv cache.Context, question string) string {
	start := len(conv.Messages) - 6
	if start < 0 {
		start = 0
	}
	var b strings.Builder
	b.WriteString("Conversation so far:\n")
	for _, m := range conv.Messages[start:] {
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}
	b.WriteString("\nNew question: ")
	b.WriteString(question)
	return b.String()
}

func printResult(result sift.Result) {
	fmt.Println()
	fmt.Println(result.Text)
	if len(result.Citations) > 0 {
		fmt.Println()
		for _, c := range result.Citations {
			fmt.Printf("  [%d] %s - %s\n", c.ID, c.Title, c.URL)
		}
	}
	if t := result.Thinking; t != nil {
		fmt.Printf("\nconfidence %.2f, %d unique domains, %d searches\n",
			t.Confidence, t.SourceDiversity.UniqueDomains, len(t.SearchQueries))
	}
}
