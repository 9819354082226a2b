package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/spf13/cobra"

	"github.com/hanpama/restgraph/internal/cache"
	"github.com/hanpama/restgraph/internal/config"
	eventbus "github.com/hanpama/restgraph/internal/eventbus"
	"github.com/hanpama/restgraph/internal/gateway"
	"github.com/hanpama/restgraph/internal/httptp"
	"github.com/hanpama/restgraph/internal/metric"
	"github.com/hanpama/restgraph/internal/otel"
	"github.com/hanpama/restgraph/internal/pubsub"
	"github.com/hanpama/restgraph/internal/server"
)

func newServeCmd(f *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP GraphQL gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := f.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ln, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return err
			}
			return serve(ctx, cfg, log, ln)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	return cmd
}

// backends are the cache and pubsub a gateway runs against, plus what must
// be closed on shutdown.
type backends struct {
	cache   cache.Store
	pubsub  pubsub.PubSub
	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackends(ctx context.Context, cfg *config.Config, log *slog.Logger, m *metric.Metrics) (*backends, error) {
	b := &backends{}
	conns := map[string]*nats.Conn{}
	connect := func(url string) (*nats.Conn, error) {
		if url == "" {
			url = nats.DefaultURL
		}
		if nc := conns[url]; nc != nil {
			return nc, nil
		}
		nc, err := nats.Connect(url, nats.Name("restgraph"))
		if err != nil {
			return nil, fmt.Errorf("nats connect %s: %w", url, err)
		}
		conns[url] = nc
		b.closers = append(b.closers, nc.Close)
		return nc, nil
	}

	switch cfg.Cache.Backend {
	case "", "memory":
		mem := cache.NewMemory(cfg.Cache.TTL, cache.WithMetrics(m))
		b.cache = mem
		b.closers = append(b.closers, func() { _ = mem.Close() })
	case "nats":
		nc, err := connect(cfg.Cache.NATSURL)
		if err != nil {
			b.close()
			return nil, err
		}
		js, err := jetstream.New(nc)
		if err != nil {
			b.close()
			return nil, fmt.Errorf("jetstream: %w", err)
		}
		kv, err := cache.NewNATSKV(ctx, js, cfg.Cache.Bucket, cfg.Cache.TTL, m)
		if err != nil {
			b.close()
			return nil, err
		}
		b.cache = kv
	case "none":
	default:
		b.close()
		return nil, fmt.Errorf("%w: unknown cache backend %q", config.ErrInvalidConfig, cfg.Cache.Backend)
	}

	switch cfg.PubSub.Backend {
	case "", "memory":
		mem := pubsub.NewMemory(log)
		b.pubsub = mem
		b.closers = append(b.closers, func() { _ = mem.Close() })
	case "mqtt":
		mq, err := pubsub.DialMQTT(cfg.PubSub.URL, cfg.PubSub.ClientID, log)
		if err != nil {
			b.close()
			return nil, err
		}
		b.pubsub = mq
		b.closers = append(b.closers, func() { _ = mq.Close() })
	case "nats":
		nc, err := connect(cfg.PubSub.URL)
		if err != nil {
			b.close()
			return nil, err
		}
		b.pubsub = pubsub.NewNATS(nc, log)
	default:
		b.close()
		return nil, fmt.Errorf("%w: unknown pubsub backend %q", config.ErrInvalidConfig, cfg.PubSub.Backend)
	}
	return b, nil
}

func upstream(cfg *config.Config, b *backends, log *slog.Logger, m *metric.Metrics) *httptp.Transport {
	opts := []httptp.Option{httptp.WithLogger(log), httptp.WithMetrics(m)}
	if cfg.Upstream.Timeout > 0 {
		opts = append(opts, httptp.WithTimeout(cfg.Upstream.Timeout))
	}
	if cfg.Upstream.CacheTTL > 0 && b.cache != nil {
		opts = append(opts, httptp.WithCache(b.cache, cfg.Upstream.CacheTTL))
	}
	return httptp.New(opts...)
}

func serverOptions(cfg config.ServerConfig, log *slog.Logger, m *metric.Metrics) []server.Option {
	opts := []server.Option{
		server.WithTimeout(cfg.Timeout),
		server.WithGraphiQL(cfg.GraphiQL),
		server.WithLogger(log),
		server.WithMetrics(m),
	}
	if cfg.Pretty {
		opts = append(opts, server.WithPretty())
	}
	if cfg.MaxBodyBytes > 0 {
		opts = append(opts, server.WithMaxBodyBytes(cfg.MaxBodyBytes))
	}
	if len(cfg.CORSOrigins) > 0 {
		opts = append(opts, server.WithCORS(cfg.CORSOrigins...))
	}
	if len(cfg.ForwardHeaders) > 0 {
		opts = append(opts, server.WithForwardHeaders(cfg.ForwardHeaders...))
	}
	if cfg.Introspection != nil {
		opts = append(opts, server.WithIntrospection(*cfg.Introspection))
	}
	return opts
}

// serve builds the gateway from cfg and serves it on ln until ctx is done.
func serve(ctx context.Context, cfg *config.Config, log *slog.Logger, ln net.Listener) error {
	eventbus.Use(eventbus.New())
	defer eventbus.Use(nil)
	shutdownTelemetry, err := otel.Setup(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		return fmt.Errorf("otel setup: %w", err)
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	reg := metric.NewRegistry()
	b, err := openBackends(ctx, cfg, log, reg.Metrics)
	if err != nil {
		return err
	}
	defer b.close()

	gw := gateway.New(gateway.Deps{
		Cache:   b.cache,
		Fetcher: upstream(cfg, b, log, reg.Metrics),
		PubSub:  b.pubsub,
		Env:     environ(),
		Logger:  log,
		Metrics: reg.Metrics,
	})
	exe, err := gw.Build(ctx, &cfg.Source)
	if err != nil {
		return fmt.Errorf("build schema: %w", err)
	}
	for _, d := range exe.Diagnostics {
		log.Warn("schema diagnostic", "diagnostic", d.String())
	}

	h, err := server.New(exe.Runtime, exe.Schema, serverOptions(cfg.Server, log, reg.Metrics)...)
	if err != nil {
		return fmt.Errorf("server init: %w", err)
	}
	routes := server.Routes{
		GraphQL:     h,
		Metrics:     reg.Handler(),
		MetricsPath: cfg.Server.MetricsPath,
	}
	if cfg.Server.WebhookPrefix != "" {
		routes.Webhook = &server.Webhook{
			PubSub:       b.pubsub,
			Prefix:       cfg.Server.WebhookPrefix,
			MaxBodyBytes: cfg.Server.MaxBodyBytes,
			Logger:       log,
			Metrics:      reg.Metrics,
		}
	}

	srv := &http.Server{
		Handler:  routes.Mux(),
		ErrorLog: slog.NewLogLogger(log.Handler(), slog.LevelWarn),
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	log.Info("GraphQL server listening", "addr", ln.Addr().String(), "operations", len(cfg.Source.Operations))

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		_ = srv.Close()
		return err
	}
	return nil
}
