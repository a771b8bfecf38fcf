package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"jawabbot/pkg/answer"
	"jawabbot/pkg/channel"
	"jawabbot/pkg/channel/telegram"
	"jawabbot/pkg/config"
	"jawabbot/pkg/corpus/brainly"
	"jawabbot/pkg/gateway"
	"jawabbot/pkg/logger"

	"github.com/spf13/cobra"
)

const telegramChannelName = "telegram"

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the Telegram bot gateway",
	Long:  "Runs Jawabbot against Telegram with health and readiness endpoints.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.gateway")

		pipeline, err := buildPipeline(cfg, nil, appLogger)
		if err != nil {
			log.Error("Failed to initialize answer pipeline", "error", err)
			return
		}

		adapters, err := enabledAdapters(cfg, appLogger)
		if err != nil {
			log.Error("Gateway configuration invalid", "error", err)
			return
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := gateway.NewService(cfg, pipeline, adapters, appLogger)
		if err != nil {
			log.Error("Failed to initialize gateway service", "error", err)
			return
		}

		limits := pipeline.Options()
		log.Info("Gateway started",
			"channels", enabledChannelNames(adapters),
			"corpus", cfg.Corpus.BaseURL,
			"reply_limit", limits.ReplyLimit,
			"inline_limit", limits.InlineLimit,
			"caption_limit", limits.CaptionLimit,
		)
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Gateway runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(gatewayCmd)
}

// buildPipeline wires the Brainly client and a selector into the answer pipeline.
// A nil src seeds selection from the clock.
func buildPipeline(cfg *config.Config, src rand.Source, log *slog.Logger) (*answer.Pipeline, error) {
	client, err := brainly.New(cfg.Corpus, log)
	if err != nil {
		return nil, fmt.Errorf("configure corpus client: %w", err)
	}

	return answer.NewPipeline(client, answer.NewSelector(src), answer.Options{
		ReplyLimit:   cfg.Answer.ReplyLimit,
		InlineLimit:  cfg.Answer.InlineLimit,
		CaptionLimit: cfg.Answer.CaptionLimit,
	}, log)
}

func enabledAdapters(cfg *config.Config, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 1)

	if cfg.Channels.Telegram.Enabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, cfg.Bot, cfg.Answer, log)
		if err != nil {
			return nil, fmt.Errorf("configure %s channel: %w", telegramChannelName, err)
		}
		adapters = append(adapters, adapter)
	}

	if len(adapters) == 0 {
		return nil, errors.New("no channels are enabled")
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}
