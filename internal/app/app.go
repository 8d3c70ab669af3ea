// Package app assembles each service process from its configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/andreasstove999/ecommerce-system/internal/config"
	"github.com/andreasstove999/ecommerce-system/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/internal/http"
	"github.com/andreasstove999/ecommerce-system/internal/metrics"
	"github.com/andreasstove999/ecommerce-system/internal/tracing"
)

// component is a long running part of a process, such as a consumer loop.
type component func(ctx context.Context) error

// process carries what every service needs regardless of its domain.
type process struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *metrics.Metrics
	closers []func() error
}

func newProcess(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*process, error) {
	p := &process{cfg: cfg, logger: logger}
	if cfg.MetricsEnabled {
		p.metrics = metrics.New(cfg.ServiceName)
	}

	shutdownTracing, err := tracing.Setup(ctx, cfg.ServiceName, cfg.OtelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	p.onClose(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdownTracing(ctx)
	})
	return p, nil
}

func (p *process) onClose(fn func() error) {
	p.closers = append(p.closers, fn)
}

// close runs the registered closers in reverse order, once.
func (p *process) close() {
	closers := p.closers
	p.closers = nil
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			p.logger.Warn("close resource", zap.Error(err))
		}
	}
}

func (p *process) ensureTopics(ctx context.Context) error {
	if !p.cfg.Kafka.EnsureTopics {
		return nil
	}
	k := p.cfg.Kafka
	return events.EnsureTopics(ctx, k.Brokers, []string{k.OrdersTopic, k.InventoryTopic, k.PaymentsTopic}, p.logger)
}

func (p *process) publisher() *events.Publisher {
	pub := events.NewPublisher(events.NewKafkaWriter(p.cfg.Kafka.Brokers, p.logger), p.cfg.ServiceName, p.logger)
	p.onClose(pub.Close)
	return pub
}

func (p *process) consumer(topic string) *events.Consumer {
	reader := events.NewKafkaReader(p.cfg.Kafka.Brokers, topic, p.cfg.Kafka.GroupID, p.logger)
	c := events.NewConsumer(reader, topic, p.logger, events.WithMetrics(p.metrics))
	p.onClose(c.Close)
	return c
}

func (p *process) router(ready httpapi.ReadyFunc, routes ...httpapi.Routes) http.Handler {
	return httpapi.NewRouter(httpapi.RouterConfig{
		Service: p.cfg.ServiceName,
		Logger:  p.logger,
		Metrics: p.metrics,
		Ready:   ready,
	}, routes...)
}

// run serves handler and runs the components until ctx is cancelled or one of
// them fails. The HTTP server gets ShutdownTimeout to drain.
func (p *process) run(ctx context.Context, handler http.Handler, components ...component) error {
	defer p.close()

	ln, err := net.Listen("tcp", p.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", p.cfg.HTTPAddr, err)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p.logger.Info("http listening", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), p.cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	for _, c := range components {
		g.Go(func() error { return c(gctx) })
	}

	err = g.Wait()
	p.logger.Info("shutdown complete")
	return err
}
