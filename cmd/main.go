package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"channel-assistant/handler"
	"channel-assistant/internal/dispatch"
	"channel-assistant/internal/integrations/openai"
	"channel-assistant/internal/integrations/paramstore"
	"channel-assistant/internal/integrations/telegram"
	"channel-assistant/internal/repository"
	"channel-assistant/internal/session"
	"channel-assistant/internal/usecase"
)

func main() {
	// A missing .env is the normal case outside local development.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Configuration (read only here) ----
	runtime := envString("RUNTIME", "lambda")
	storeBackend := envString("STORE_BACKEND", "dynamodb")
	paramPrefix := mustEnv("PARAM_PREFIX")
	openaiModel := envString("OPENAI_MODEL", "gpt-4o-mini")
	openaiBaseURL := os.Getenv("OPENAI_BASE_URL")
	aiTimeout := envDuration("AI_TIMEOUT", 60*time.Second)
	sessionIdleTTL := envDuration("SESSION_IDLE_TTL", 0)
	sessionCacheSize := envInt("SESSION_CACHE_SIZE", 1024)
	webhookSecret := os.Getenv("WEBHOOK_SECRET")

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Secrets ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	telegramParam := paramPrefix + "/telegram-token"
	secrets := paramstore.Fallback{
		paramstore.NewStatic(map[string]string{
			telegramParam:                  os.Getenv("TELEGRAM_TOKEN"),
			paramPrefix + "/open-ai-token": os.Getenv("OPENAI_API_KEY"),
		}),
		ssmClient,
	}

	// ---- Storage ----
	var (
		drafts       usecase.DraftStore
		sessionStore session.Store
	)
	switch storeBackend {
	case "dynamodb":
		dynamo, err := repository.New(awsdynamodb.NewFromConfig(cfg), mustEnv("STATE_TABLE"))
		if err != nil {
			slog.Error("failed to create state client", "err", err)
			os.Exit(1)
		}
		records, err := session.NewRecordStore(dynamo, sessionIdleTTL)
		if err != nil {
			slog.Error("failed to create session store", "err", err)
			os.Exit(1)
		}
		sessionStore, err = sessionStoreFor(runtime, records, sessionCacheSize)
		if err != nil {
			slog.Error("failed to create session cache", "err", err)
			os.Exit(1)
		}
		drafts = dynamo
	case "postgres":
		pg, err := repository.NewPostgres(ctx, mustEnv("DATABASE_URL"))
		if err != nil {
			slog.Error("failed to open postgres", "err", err)
			os.Exit(1)
		}
		defer pg.Close()
		drafts, sessionStore = pg, session.NewMemoryStore()
	case "memory":
		drafts, sessionStore = repository.NewMemory(), session.NewMemoryStore()
	default:
		slog.Error("unknown store backend", "STORE_BACKEND", storeBackend)
		os.Exit(1)
	}

	sessions, err := session.NewManager(sessionStore, session.WithIdleTTL(sessionIdleTTL))
	if err != nil {
		slog.Error("failed to create session manager", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	openaiClient, err := openai.NewClient(secrets, paramPrefix,
		openai.WithModel(openaiModel),
		openai.WithBaseURL(openaiBaseURL),
	)
	if err != nil {
		slog.Error("failed to create OpenAI client", "err", err)
		os.Exit(1)
	}

	token, err := paramstore.Token(ctx, secrets, telegramParam)
	if err != nil {
		slog.Error("failed to resolve telegram token", "err", err)
		os.Exit(1)
	}
	bot, err := telegram.NewBotAPI(token, "", &http.Client{Timeout: 70 * time.Second})
	if err != nil {
		slog.Error("failed to connect to telegram", "err", err)
		os.Exit(1)
	}
	transport, err := telegram.New(bot)
	if err != nil {
		slog.Error("failed to create telegram transport", "err", err)
		os.Exit(1)
	}

	// ---- Routing ----
	router, err := dispatch.NewRouter(sessions, logger)
	if err != nil {
		slog.Error("failed to create router", "err", err)
		os.Exit(1)
	}
	assistant, err := usecase.NewBot(transport, openaiClient, drafts, sessions, usecase.Config{
		AITimeout: aiTimeout,
		Logger:    logger,
	})
	if err != nil {
		slog.Error("failed to create bot", "err", err)
		os.Exit(1)
	}
	assistant.Register(router)

	h, err := handler.NewHandler(router, handler.WithSecret(webhookSecret), handler.WithLogger(logger))
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	slog.Info("starting", "runtime", runtime, "store", storeBackend, "bot", bot.Self.UserName)
	switch runtime {
	case "lambda":
		lambda.Start(h.Handle)
	case "webhook":
		if err := serve(ctx, ":"+envString("PORT", "8080"), handler.NewRouter(h)); err != nil {
			slog.Error("webhook server failed", "err", err)
			os.Exit(1)
		}
	case "polling":
		telegram.Poll(ctx, bot, 30, func(ctx context.Context, u tgbotapi.Update) {
			ev, ok := telegram.ToEvent(u)
			if !ok {
				return
			}
			_, _ = router.Dispatch(ctx, ev)
		})
	default:
		slog.Error("unknown runtime", "RUNTIME", runtime)
		os.Exit(1)
	}
}

// sessionStoreFor caches session records only in polling mode. Telegram
// allows one getUpdates consumer per bot, so that process is the only writer.
// Webhook and Lambda deployments can run several instances and always read
// through.
func sessionStoreFor(runtime string, records session.Store, cacheSize int) (session.Store, error) {
	if runtime != "polling" {
		return records, nil
	}
	cached, err := session.NewCachedStore(records, cacheSize)
	if err != nil {
		return nil, err
	}
	return cached, nil
}

func serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return fmt.Errorf("listen %s: %w", addr, err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
