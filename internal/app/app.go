package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"market-hierarchy/internal/alerting"
	"market-hierarchy/internal/config"
	"market-hierarchy/internal/exchange"
	"market-hierarchy/internal/hierarchy"
	"market-hierarchy/internal/scheduler"
	"market-hierarchy/internal/service"
	"market-hierarchy/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newExchange() (hierarchy.Exchange, error) {
	ex := a.Config.Exchange
	switch ex.Kind {
	case "simulated":
		return exchange.NewSimulated(exchange.SimulatedOptions{
			ID:         ex.ID,
			Seed:       ex.Simulated.Seed,
			Exchanges:  ex.Simulated.Exchanges,
			Symbols:    ex.Simulated.Symbols,
			Regions:    ex.Simulated.Regions,
			Fixtures:   ex.Simulated.Fixtures,
			Volatility: ex.Simulated.Volatility,
		}), nil
	case "static":
		return exchange.NewStatic(ex.ID, nil), nil
	case "file":
		return exchange.NewFile(ex.ID, ex.File), nil
	case "http":
		return exchange.NewHTTP(exchange.HTTPOptions{
			ID:        ex.ID,
			BaseURL:   ex.BaseURL,
			Timeout:   ex.RequestTimeout,
			UserAgent: ex.UserAgent,
		}, a.Logger), nil
	case "onchain":
		return exchange.NewOnChain(exchange.OnChainOptions{
			ID:           ex.ID,
			RPCURL:       ex.OnChain.RPCURL,
			VaultAddress: ex.OnChain.VaultAddress,
			Symbol:       ex.OnChain.Symbol,
			Region:       ex.OnChain.Region,
			Timeout:      ex.OnChain.Timeout,
		}, a.Logger), nil
	default:
		return nil, fmt.Errorf("exchange.kind %q is not supported", ex.Kind)
	}
}

func (a *App) newEngine(ex hierarchy.Exchange) *hierarchy.Engine {
	opts := a.Config.EngineOptions()
	if len(a.Config.Exchange.ProbeURLs) > 0 {
		opts.Prober = exchange.NewHTTPProber(a.Config.Exchange.ProbeURLs, a.Config.Engine.ProbeTimeout)
	}
	return hierarchy.New(ex, opts, a.Logger)
}

// newNotifier builds the notifier for the configured channels. The returned
// closer is never nil.
func (a *App) newNotifier() (alerting.Notifier, func(), error) {
	var notifiers alerting.Multi
	closer := func() {}

	for _, channel := range a.Config.Alerting.Channels {
		switch channel {
		case "telegram":
			cfg := a.Config.Alerting.Telegram
			if !cfg.Enabled {
				continue
			}
			notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
		case "nats":
			cfg := a.Config.Alerting.NATS
			if !cfg.Enabled {
				continue
			}
			conn, err := alerting.ConnectNATS(cfg.URL, cfg.ClientName, cfg.ConnectTimeout, a.Logger)
			if err != nil {
				return nil, closer, err
			}
			closer = func() {
				if err := conn.Drain(); err != nil {
					conn.Close()
				}
			}
			notifiers = append(notifiers, alerting.NewNATSNotifier(conn, cfg.Subject, a.Logger))
		default:
			a.Logger.Warn().Str("channel", channel).Msg("unknown alerting channel ignored")
		}
	}

	switch len(notifiers) {
	case 0:
		return nil, closer, nil
	case 1:
		return notifiers[0], closer, nil
	default:
		return notifiers, closer, nil
	}
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// Run executes the long-running refresh service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	ex, err := a.newExchange()
	if err != nil {
		return err
	}
	engine := a.newEngine(ex)

	notifier, closeNotifier, err := a.newNotifier()
	if err != nil {
		return err
	}
	defer closeNotifier()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToBucket,
		StartupDelay: a.Config.Scheduler.StartupDelay,
		RunOnStart:   a.Config.Scheduler.RunOnStart,
	}, a.Logger)

	var sampleStore storage.SampleStore
	var oppStore storage.OpportunityStore
	if store != nil {
		sampleStore = store
		oppStore = store
	}

	svc := service.New(a.Config, sched, engine, sampleStore, oppStore, notifier, a.Logger)

	a.Logger.Info().Str("exchange", ex.ID()).Str("kind", a.Config.Exchange.Kind).Msg("starting hierarchy service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("hierarchy service stopped")
	return nil
}

// ExportOptions hold parameters for exporting historical samples.
type ExportOptions struct {
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit         int
	Opportunities bool
}

// ResolveOptions configure a one-shot resolution.
type ResolveOptions struct {
	File    string
	JSON    bool
	Verbose bool
}

// BenchOptions configure the throughput benchmark.
type BenchOptions struct {
	Count   int
	Workers int
	Rounds  int
}
