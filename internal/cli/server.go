package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/config"
	"quiz-session-service/internal/domain"
	"quiz-session-service/internal/infra/amqp"
	"quiz-session-service/internal/infra/memory"
	pgstore "quiz-session-service/internal/infra/postgres"
	redisstore "quiz-session-service/internal/infra/redis"
	transport "quiz-session-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz session server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// attemptBackend records attempts and lists them back for eligibility.
type attemptBackend interface {
	app.AttemptRecorder
	app.AttemptHistory
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgstore.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisstore.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var attempts attemptBackend
	if pool != nil {
		attempts = pgstore.NewAttemptStore(pool, quizRepo)
	} else {
		attempts = memory.NewAttemptLedger(quizRepo)
	}

	var snapshots app.SnapshotStore
	if redisClient != nil {
		snapshots = redisstore.NewSnapshotStore(redisClient, config.TTLDuration(cfg.Session.SnapshotTTL, 7*24*time.Hour))
	} else {
		snapshots = memory.NewSnapshotStore()
	}

	publisher, err := amqp.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange)
	if err != nil {
		return err
	}
	defer publisher.Close()

	service := app.NewQuizService(
		snapshots,
		memory.NewSessionRegistry(),
		app.NewCatalogProvider(quizRepo, attempts),
		attempts,
		app.WithSettings(sessionSettings(cfg)),
		app.WithPublisher(publisher),
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", transport.NewWSHandler(service).ServeWS)
	mux.HandleFunc("/result", transport.NewResultHandler(service).ServeResult)
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: it would cut long-lived websocket connections
	}

	go func() {
		log.Printf("starting quiz session service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func sessionSettings(cfg config.Config) app.Settings {
	d := app.DefaultSettings()
	retries := d.SubmitRetries
	if cfg.Session.SubmitRetries > 0 {
		retries = cfg.Session.SubmitRetries
	}
	return app.Settings{
		TickInterval:  config.TTLDuration(cfg.Session.TickInterval, d.TickInterval),
		SubmitTimeout: config.TTLDuration(cfg.Session.SubmitTimeout, d.SubmitTimeout),
		SubmitRetries: retries,
		SubmitBackoff: config.TTLDuration(cfg.Session.SubmitBackoff, d.SubmitBackoff),
		SubmitGrace:   config.TTLDuration(cfg.Session.SubmitGrace, d.SubmitGrace),
	}
}

// sampleQuizzes serves a demo quiz when no Postgres is configured.
func sampleQuizzes() map[string]domain.QuizDefinition {
	return map[string]domain.QuizDefinition{
		"quiz-1": {
			ID:               "quiz-1",
			Title:            "Warm-up arithmetic",
			TimeLimitMinutes: 5,
			Questions: []domain.Question{
				{
					ID:                 "q1",
					Text:               "What is 2 + 2?",
					Options:            []string{"3", "4", "5"},
					CorrectAnswerIndex: 1,
					Explanation:        "Two pairs make four.",
					Points:             1,
				},
				{
					ID:                 "q2",
					Text:               "What is 3 x 3?",
					Options:            []string{"6", "9", "12"},
					CorrectAnswerIndex: 1,
					Explanation:        "Three threes are nine.",
					Points:             2,
				},
			},
			Features: domain.Features{
				Randomize:        true,
				ShowProgress:     true,
				AllowRetakes:     true,
				ShowExplanations: true,
				InstantFeedback:  true,
			},
			Reward: domain.Reward{XP: 30, MaxScore: 3},
		},
	}
}
