/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"botloop/pkg/config"
	"botloop/pkg/dispatch"
	"botloop/pkg/engine"
	"botloop/pkg/event"
	"botloop/pkg/logger"
	"botloop/pkg/transport"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the dispatch engine",
	Long:  "Loads configuration, connects to Telegram, registers the built-in demo handlers, and polls until interrupted.",
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
		log := slog.Default().With("component", "cmd.run")

		source, err := transport.NewTelegram(cfg.Telegram.Token, cfg.Telegram.Proxy, appLogger)
		if err != nil {
			log.Error("Failed to initialize transport", "error", err)
			return
		}
		sender := transport.NewSender(source.Bot(), appLogger)

		eng := engine.New(source, engine.Options{
			PollTimeout:       cfg.Poll.Timeout(),
			RetryIncrement:    cfg.Poll.RetryIncrement(),
			MaxRetryDelay:     cfg.Poll.MaxRetryDelay(),
			SkipBacklog:       cfg.Poll.SkipBacklog,
			ReplyCacheSize:    cfg.Caches.ReplySubscriptions,
			NextStepCacheSize: cfg.Caches.NextStepHandlers,
		}, appLogger)

		if err := registerHandlers(eng, sender, appLogger); err != nil {
			log.Error("Failed to register handlers", "error", err)
			return
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if addr := statusAddr(cfg.Status); addr != "" {
			go func() {
				if err := eng.ServeStatus(runCtx, addr); err != nil {
					log.Error("Status server failed", "error", err)
				}
			}()
		}

		log.Info("Engine started", "skip_backlog", cfg.Poll.SkipBacklog)
		if err := eng.Run(runCtx); err != nil {
			log.Error("Engine exited with error", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// registerHandlers wires the built-in demo handlers. They double as a usage
// reference for the registration surface.
func registerHandlers(eng *engine.Engine, sender *transport.Sender, log *slog.Logger) error {
	log = log.With("component", "cmd.handlers")

	eng.RegisterPrehandler(func(msg *event.Message) {
		log.Debug("Message received",
			"chat_id", msg.ChatID(), "message_id", msg.MessageID, "content_type", string(msg.ContentType))
	})

	err := eng.RegisterMessageHandler(func(ctx context.Context, msg *event.Message) error {
		_, err := sender.ReplyTo(ctx, msg, "Hi! Send /name to introduce yourself, or any text to get it echoed.")
		return err
	}, dispatch.WithCommands("start", "help"))
	if err != nil {
		return err
	}

	// Two-step dialog: /name asks, the next message from the chat answers.
	err = eng.RegisterMessageHandler(func(ctx context.Context, msg *event.Message) error {
		if _, err := sender.SendMessage(ctx, msg.ChatID(), "What's your name?"); err != nil {
			return err
		}
		eng.RegisterNextChatHandler(msg.ChatID(), func(ctx context.Context, answer *event.Message) error {
			_, err := sender.ReplyTo(ctx, answer, "Nice to meet you, "+strings.TrimSpace(answer.Text)+"!")
			return err
		})
		return nil
	}, dispatch.WithCommands("name"))
	if err != nil {
		return err
	}

	err = eng.RegisterMessageHandler(func(ctx context.Context, msg *event.Message) error {
		_, err := sender.ReplyTo(ctx, msg, msg.Text)
		return err
	}, dispatch.WithPredicate(func(msg *event.Message) bool { return !dispatch.IsCommand(msg.Text) }))
	if err != nil {
		return err
	}

	return eng.SetKindHandler(event.KindCallbackQuery, func(ctx context.Context, upd *event.Update) error {
		return sender.AnswerCallbackQuery(ctx, upd.CallbackQuery.ID, "")
	})
}

// statusAddr builds the status bind address; empty disables the server.
func statusAddr(cfg config.StatusConfig) string {
	if cfg.Port <= 0 {
		return ""
	}

	host := strings.TrimSpace(cfg.Host)
	if host == "" {
		host = "0.0.0.0"
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.Port))
}
