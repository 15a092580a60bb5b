package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/vetlabhq/vetnotify/modules/lab"
	"github.com/vetlabhq/vetnotify/pkg/config"
	"github.com/vetlabhq/vetnotify/pkg/httpserver"
	"github.com/vetlabhq/vetnotify/pkg/labpdf"
	"github.com/vetlabhq/vetnotify/pkg/logger"
	"github.com/vetlabhq/vetnotify/pkg/mailer"
	"github.com/vetlabhq/vetnotify/pkg/notify"
	"github.com/vetlabhq/vetnotify/pkg/pg"
	"github.com/vetlabhq/vetnotify/pkg/queue"
	"github.com/vetlabhq/vetnotify/pkg/redis"
	"github.com/vetlabhq/vetnotify/pkg/requestid"
)

type appConfig struct {
	Env               string `env:"APP_ENV" envDefault:"development"`
	ServiceName       string `env:"SERVICE_NAME" envDefault:"vetnotifyd"`
	SentLedgerEnabled bool   `env:"SENT_LEDGER_ENABLED" envDefault:"false"`
}

func main() {
	var appCfg appConfig
	config.MustLoad(&appCfg)

	log := logger.New(
		logger.WithEnvironment(appCfg.Env, appCfg.ServiceName),
		logger.WithContextExtractors(requestid.LoggerExtractor()),
	)

	if err := run(appCfg, log); err != nil {
		log.Error("service exited with error", logger.Error(err))
		os.Exit(1)
	}
}

func run(appCfg appConfig, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		pgCfg     pg.Config
		queueCfg  queue.Config
		mailCfg   mailer.Config
		pdfCfg    labpdf.Config
		httpCfg   httpserver.Config
	)
	config.MustLoad(&pgCfg)
	config.MustLoad(&queueCfg)
	config.MustLoad(&mailCfg)
	config.MustLoad(&pdfCfg)
	config.MustLoad(&httpCfg)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return err
	}

	storage := notify.NewPostgresStorage(pool)
	queueStore := queue.NewPostgresStorage(pool)

	enqueuer, err := queue.NewEnqueuer(queueStore)
	if err != nil {
		return err
	}

	notifier, err := notify.NewNotifier(storage, enqueuer, notify.WithNotifierLogger(log))
	if err != nil {
		return err
	}

	store := lab.NewStore()
	registry := notify.NewRegistry()
	store.RegisterSources(registry)

	sender := newSender(appCfg.Env, mailCfg, log)

	readiness := []func(context.Context) error{pg.Healthcheck(pool)}

	dispatcherOpts := []notify.DispatcherOption{notify.WithDispatcherLogger(log)}
	if appCfg.SentLedgerEnabled {
		var redisCfg redis.Config
		config.MustLoad(&redisCfg)

		redisClient, err := redis.Connect(ctx, redisCfg)
		if err != nil {
			return err
		}
		defer redisClient.Close()

		dispatcherOpts = append(dispatcherOpts, notify.WithLedger(notify.NewRedisLedger(redisClient)))
		readiness = append(readiness, redis.Healthcheck(redisClient))
	}

	dispatcher, err := notify.NewDispatcher(storage, sender, notify.MustNewTemplateStore(), registry, dispatcherOpts...)
	if err != nil {
		return err
	}

	worker, err := queue.NewWorker(queueStore,
		queue.WithPullInterval(queueCfg.PollInterval),
		queue.WithLockTimeout(queueCfg.LockTimeout),
		queue.WithMaxConcurrentTasks(queueCfg.MaxConcurrentTasks),
		queue.WithWorkerLogger(log),
	)
	if err != nil {
		return err
	}
	worker.RegisterHandlers(dispatcher.TaskHandler())

	svc, err := lab.NewService(store, notifier, labpdf.NewGenerator(pdfCfg.SpoolDir), lab.WithServiceLogger(log))
	if err != nil {
		return err
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestid.Middleware)
	router.Get("/health", httpserver.HealthCheckHandler(ctx, log, readiness...))
	router.Mount("/lab", lab.Router(svc, storage))

	server := httpserver.New(httpCfg, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(worker.Run(gctx))
	g.Go(func() error {
		return server.Run(gctx, router)
	})

	log.InfoContext(ctx, "service started",
		logger.Component("main"),
		slog.String("env", appCfg.Env),
		slog.String("addr", httpCfg.Addr),
	)

	return g.Wait()
}

// newSender picks the mail transport: Postmark outside development, a
// filesystem spool locally so no real mail leaves a dev machine.
func newSender(env string, cfg mailer.Config, log *slog.Logger) mailer.Sender {
	if env == logger.EnvDevelopment {
		log.Info("using development mail spool", slog.String("dir", cfg.DevSpoolDir))
		return mailer.NewDevSender(cfg.DevSpoolDir)
	}
	return mailer.MustNewPostmarkClient(cfg)
}
