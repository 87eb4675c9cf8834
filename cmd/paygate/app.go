package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/paygate/modules/billing"
	core "github.com/dmitrymomot/paygate/pkg/billing"
	"github.com/dmitrymomot/paygate/pkg/customerindex"
	"github.com/dmitrymomot/paygate/pkg/email"
	"github.com/dmitrymomot/paygate/pkg/environment"
	"github.com/dmitrymomot/paygate/pkg/httpserver"
	"github.com/dmitrymomot/paygate/pkg/idempotency"
	"github.com/dmitrymomot/paygate/pkg/identity"
	"github.com/dmitrymomot/paygate/pkg/logger"
	"github.com/dmitrymomot/paygate/pkg/metrics"
	"github.com/dmitrymomot/paygate/pkg/pg"
	"github.com/dmitrymomot/paygate/pkg/redis"
	"github.com/dmitrymomot/paygate/pkg/requestid"
)

// app holds the wired service graph for the serve command.
type app struct {
	cfg      appConfig
	log      *slog.Logger
	svc      *core.Service
	verifier identity.TokenVerifier
	mailer   email.EmailSender
	metrics  *metrics.Recorder
	pool     *pgxpool.Pool
	redis    *goredis.Client
}

func newApp(ctx context.Context, cfg appConfig, log *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log, metrics: metrics.New(nil)}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	catalog, err := core.NewCatalog(ctx, core.NewFilePlanSource(cfg.CatalogPath))
	if err != nil {
		return nil, err
	}

	opts := []core.ServiceOption{core.WithLogger(log.With(logger.Component("billing")))}

	providers, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}
	for _, p := range providers {
		opts = append(opts, core.WithProvider(p))
	}
	if len(providers) == 0 {
		log.WarnContext(ctx, "no payment provider configured")
	}

	if cfg.Database.Enabled() {
		if a.pool, err = pg.Connect(ctx, cfg.Database); err != nil {
			return nil, err
		}
		if _, err = pg.Migrate(ctx, a.pool, customerindex.Migrations, log); err != nil {
			return nil, err
		}
		opts = append(opts, core.WithIndex(customerindex.New(a.pool)))
	} else {
		log.WarnContext(ctx, "DATABASE_URL not set, customer index kept in memory")
		opts = append(opts, core.WithIndex(core.NewMemoryCustomerIndex()))
	}

	if cfg.Redis.Enabled() {
		if a.redis, err = redis.Connect(ctx, cfg.Redis); err != nil {
			return nil, err
		}
		opts = append(opts, core.WithEventGuard(idempotency.NewGuard(a.redis, cfg.Idempotency)))
	} else {
		opts = append(opts, core.WithEventGuard(core.NewMemoryEventGuard(cfg.Idempotency.TTL)))
	}

	directory, err := a.directory(ctx)
	if err != nil {
		return nil, err
	}

	if a.mailer, err = newMailer(cfg.Email, log); err != nil {
		return nil, err
	}

	a.svc = core.NewService(catalog, directory, opts...)
	return a, nil
}

// directory returns the identity store. Without Clerk credentials, which the
// config only allows outside production, users live in memory and every
// request is anonymous.
func (a *app) directory(ctx context.Context) (core.UserDirectory, error) {
	if !a.cfg.Identity.Enabled() {
		a.log.WarnContext(ctx, "CLERK_SECRET_KEY not set, using in-memory user directory")
		return core.NewMemoryDirectory(), nil
	}

	clerkDir, err := identity.NewClerkDirectory(a.cfg.Identity)
	if err != nil {
		return nil, err
	}
	verifier, err := identity.NewClerkVerifier(a.cfg.Identity)
	if err != nil {
		return nil, err
	}
	a.verifier = verifier

	return identity.NewBreakerDirectory(clerkDir, a.cfg.Identity,
		identity.WithBreakerLogger(a.log),
		identity.WithStateObserver(a.metrics.SetBreakerState),
	), nil
}

func buildProviders(cfg appConfig) ([]core.BillingProvider, error) {
	var providers []core.BillingProvider
	if cfg.Stripe.Enabled() {
		providers = append(providers, core.NewStripeProvider(cfg.Stripe))
	}
	if cfg.LemonSqueezy.Enabled() {
		providers = append(providers, core.NewLemonSqueezyProvider(cfg.LemonSqueezy))
	}
	if cfg.Polar.Enabled() {
		providers = append(providers, core.NewPolarProvider(cfg.Polar))
	}
	if cfg.Paddle.Enabled() {
		p, err := core.NewPaddleProvider(cfg.Paddle)
		if err != nil {
			return nil, fmt.Errorf("paddle: %w", err)
		}
		providers = append(providers, p)
	}
	return providers, nil
}

func newMailer(cfg email.Config, log *slog.Logger) (email.EmailSender, error) {
	if cfg.UsePostmark() {
		return email.NewPostmarkClient(cfg)
	}
	return email.NewDevSender(cfg.DevOutputDir, log), nil
}

// handler builds the root HTTP handler.
func (a *app) handler() http.Handler {
	env := a.cfg.Environment()

	r := chi.NewRouter()
	r.Use(
		middleware.RealIP,
		requestid.Middleware(requestid.WithHeaders(core.HeaderWebhookID)),
		environment.Middleware(env),
		middleware.Recoverer,
	)

	var checks []httpserver.Check
	if a.pool != nil {
		checks = append(checks, httpserver.Check{Name: "postgres", Probe: pg.Healthcheck(a.pool)})
	}
	if a.redis != nil {
		checks = append(checks, httpserver.Check{Name: "redis", Probe: redis.Healthcheck(a.redis)})
	}
	r.Get("/healthz", httpserver.HealthHandler(a.log, checks...))
	r.Method(http.MethodGet, "/metrics", a.metrics.Handler())

	r.Mount("/billing", billing.Router(billing.RouterOptions{
		Service:    a.svc,
		Verifier:   a.verifier,
		Metrics:    a.metrics,
		Logger:     a.log.With(logger.Component("http")),
		Processing: billing.ProcessingMode(a.cfg.Processing),
		Mailer:     a.mailer,
		AdminEmail: a.cfg.Email.AdminEmail,
	}))

	return r
}

func (a *app) close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Error("failed to close redis client", logger.Error(err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
