package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"quiz-guard-service/internal/app"
	"quiz-guard-service/internal/backend"
	"quiz-guard-service/internal/config"
	"quiz-guard-service/internal/infra/memory"
	"quiz-guard-service/internal/infra/postgres"
	redisinfra "quiz-guard-service/internal/infra/redis"
	"quiz-guard-service/internal/integrity"
)

// deps holds the collaborators shared by the start and flush commands.
type deps struct {
	client   *backend.Client
	redis    *redis.Client
	pool     *pgxpool.Pool
	quizzes  app.QuizRepository
	sessions app.SessionRepository
	outbox   app.Outbox
}

func newDeps(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*deps, error) {
	if cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("backend baseURL not configured")
	}
	d := &deps{
		client: backend.New(backend.Config{
			BaseURL: cfg.Backend.BaseURL,
			Timeout: config.TTLDuration(cfg.Backend.Timeout, 10*time.Second),
		}),
	}

	if cfg.Redis.Addr != "" {
		d.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			d.close()
			return nil, err
		}
		d.pool = pool
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)
	if d.redis != nil {
		d.quizzes = redisinfra.NewQuizRepository(d.redis, d.client, quizTTL, log)
		d.sessions = redisinfra.NewSessionStore(d.redis, redisTTL, log)
	} else {
		d.quizzes = memory.NewQuizRepository(d.client, quizTTL)
		d.sessions = memory.NewSessionStore()
	}

	switch {
	case d.pool != nil:
		d.outbox = postgres.NewOutbox(d.pool)
	case d.redis != nil:
		d.outbox = redisinfra.NewOutbox(d.redis)
	default:
		log.Warn("no redis or postgres configured; parked submissions will not survive a restart")
		d.outbox = memory.NewOutbox()
	}
	return d, nil
}

func (d *deps) close() {
	if d.pool != nil {
		d.pool.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
}

// flusher builds an outbox flusher that re-posts on the player's behalf with the service token.
func (d *deps) flusher(cfg config.Config, log logrus.FieldLogger) *app.OutboxFlusher {
	token := cfg.Backend.ServiceToken
	prepare := func(ctx context.Context, userID string) context.Context {
		return backend.WithToken(backend.WithOnBehalfOf(ctx, userID), token)
	}
	return app.NewOutboxFlusher(d.outbox, d.client, prepare, log)
}

func sessionOptions(cfg config.Config) app.SessionOptions {
	def := app.DefaultSessionOptions()
	opts := app.SessionOptions{
		FeedbackMode:     app.FeedbackMode(cfg.Session.FeedbackMode),
		FeedbackDelay:    config.TTLDuration(cfg.Session.FeedbackDelay, def.FeedbackDelay),
		TickInterval:     config.TTLDuration(cfg.Session.TickInterval, def.TickInterval),
		LowTimeThreshold: config.TTLDuration(cfg.Session.LowTime, def.LowTimeThreshold),
	}
	if opts.FeedbackMode != app.FeedbackNone {
		opts.FeedbackMode = app.FeedbackLocal
	}
	return opts
}

func integrityConfig(cfg config.Config) integrity.Config {
	def := integrity.DefaultConfig()
	c := integrity.Config{
		TabSwitchMin:      config.TTLDuration(cfg.Integrity.TabSwitchMin, def.TabSwitchMin),
		ScreenshotBlipMin: config.TTLDuration(cfg.Integrity.ScreenshotBlipMin, def.ScreenshotBlipMin),
		AFKThreshold:      config.TTLDuration(cfg.Integrity.AFKThreshold, def.AFKThreshold),
		AFKPoll:           config.TTLDuration(cfg.Integrity.AFKPoll, def.AFKPoll),
		TouchBlurWindow:   config.TTLDuration(cfg.Integrity.TouchBlurWindow, def.TouchBlurWindow),
		DevtoolsDelta:     cfg.Integrity.DevtoolsDelta,
	}
	if c.DevtoolsDelta <= 0 {
		c.DevtoolsDelta = def.DevtoolsDelta
	}
	return c
}

func retryPolicy(cfg config.Config) app.RetryPolicy {
	def := app.DefaultRetryPolicy()
	return app.RetryPolicy{
		ManualRetries:   retryCount(cfg.Submit.ManualRetries, def.ManualRetries),
		AutoRetries:     retryCount(cfg.Submit.AutoRetries, def.AutoRetries),
		InitialInterval: config.TTLDuration(cfg.Submit.InitialBackoff, def.InitialInterval),
		MaxInterval:     config.TTLDuration(cfg.Submit.MaxBackoff, def.MaxInterval),
	}
}

// retryCount treats a negative setting as "no retries".
func retryCount(v *int, fallback uint64) uint64 {
	n := config.IntOr(v, int(fallback))
	if n < 0 {
		return 0
	}
	return uint64(n)
}
