package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"jawabbot/pkg/answer"
	"jawabbot/pkg/config"
	"jawabbot/pkg/logger"
	"jawabbot/pkg/ui/ask"

	"github.com/spf13/cobra"
)

var (
	questionText string
	askInline    bool
	askPlain     bool
	askSeed      uint64
)

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Preview the answer for a question",
	Long: "Runs a question through the Brainly lookup and answer formatting exactly as the bot " +
		"would, and renders the resulting messages or inline results. Without a question it " +
		"opens an interactive preview.",
	Run: func(cmd *cobra.Command, args []string) {
		query := resolveQuery(args)

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		// The TUI owns the terminal, so logs only go out in plain mode.
		log := slog.New(slog.NewTextHandler(io.Discard, nil))
		if askPlain {
			log, err = logger.New(cfg.Logging)
			if err != nil {
				fmt.Printf("failed to initialize logger: %v\n", err)
				return
			}
		}

		pipeline, err := buildPipeline(cfg, seedSource(askSeed), log)
		if err != nil {
			fmt.Printf("failed to initialize answer pipeline: %v\n", err)
			return
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		askFn := newAskFunc(pipeline, askInline)
		info := ask.Info{Mode: askModeName(askInline), Corpus: cfg.Corpus.BaseURL}

		switch {
		case askPlain:
			if query == "" {
				fmt.Println("plain mode needs a question")
				return
			}
			result, err := askFn(ctx, query)
			printResult(result, err)
		case query != "":
			if err := ask.RunOneShot(ctx, askFn, query, info); err != nil {
				fmt.Printf("preview failed: %v\n", err)
			}
		default:
			if err := ask.RunInteractive(ctx, askFn, info); err != nil {
				fmt.Printf("preview failed: %v\n", err)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&questionText, "question", "q", "", "question text to look up")
	askCmd.Flags().BoolVar(&askInline, "inline", false, "render inline query results instead of chat messages")
	askCmd.Flags().BoolVar(&askPlain, "plain", false, "print results without the interactive preview")
	askCmd.Flags().Uint64Var(&askSeed, "seed", 0, "seed for answer selection (0 picks randomly)")
}

func resolveQuery(args []string) string {
	if value := strings.TrimSpace(questionText); value != "" {
		return value
	}

	return strings.TrimSpace(strings.Join(args, " "))
}

func seedSource(seed uint64) rand.Source {
	if seed == 0 {
		return nil
	}

	return rand.NewPCG(seed, seed)
}

func askModeName(inline bool) string {
	if inline {
		return "inline"
	}

	return "reply"
}

// newAskFunc adapts the pipeline to the preview's single-question callback.
func newAskFunc(pipeline *answer.Pipeline, inline bool) ask.AskFunc {
	if inline {
		return func(ctx context.Context, query string) (ask.Result, error) {
			items, err := pipeline.Inline(ctx, query)
			return ask.Result{Question: query, Inline: items}, err
		}
	}

	return func(ctx context.Context, query string) (ask.Result, error) {
		reply, err := pipeline.Reply(ctx, query)
		return ask.Result{Question: reply.Question, Payloads: reply.Payloads}, err
	}
}

func printResult(result ask.Result, err error) {
	if err != nil {
		fmt.Printf("🚨 [%s] %v\n", answer.ErrorKind(err), err)
		return
	}

	lines := resultLines(result)
	if len(lines) == 0 {
		fmt.Println("Tidak ada hasil.")
		return
	}

	for _, line := range lines {
		fmt.Println(line)
	}
}

// resultLines renders payloads or inline results as plain text blocks separated by blank lines.
func resultLines(result ask.Result) []string {
	var lines []string
	appendBlock := func(title, body, media string) {
		if len(lines) > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, title)
		if trimmed := strings.TrimSpace(body); trimmed != "" {
			lines = append(lines, strings.Split(trimmed, "\n")...)
		}
		if media != "" {
			lines = append(lines, "🖼 "+media)
		}
	}

	for i, payload := range result.Payloads {
		appendBlock(fmt.Sprintf("📨 %d/%d (%s)", i+1, len(result.Payloads), payload.Mode), payload.Text, payload.MediaURL)
	}

	for _, item := range result.Inline {
		switch item.Kind {
		case answer.InlinePhoto:
			appendBlock(fmt.Sprintf("#%s photo", item.ID), item.Caption, item.PhotoURL)
		default:
			appendBlock(fmt.Sprintf("#%s %s", item.ID, item.Title), item.Body, "")
		}
	}

	return lines
}
