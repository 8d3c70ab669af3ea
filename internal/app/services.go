package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/internal/config"
	"github.com/andreasstove999/ecommerce-system/internal/db"
	httpapi "github.com/andreasstove999/ecommerce-system/internal/http"
	"github.com/andreasstove999/ecommerce-system/internal/inventory"
	"github.com/andreasstove999/ecommerce-system/internal/notification"
	"github.com/andreasstove999/ecommerce-system/internal/order"
	"github.com/andreasstove999/ecommerce-system/internal/payment"
)

// RunOrders serves the orders API and folds inventory and payment outcomes
// into order state.
func RunOrders(ctx context.Context, cfg *config.Config) error {
	return runWith(ctx, cfg, func(p *process) error {
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		p.onClose(func() error { pool.Close(); return nil })

		if err := migrate(cfg, config.ServiceOrders, p.logger); err != nil {
			return err
		}
		if err := p.ensureTopics(ctx); err != nil {
			return err
		}

		repo := order.NewPostgresRepository(pool)
		pub := p.publisher()
		saga := order.NewSagaHandler(repo, pub, cfg.Kafka.OrdersTopic, p.logger, p.metrics)

		inventoryEvents := p.consumer(cfg.Kafka.InventoryTopic)
		saga.Register(inventoryEvents)
		paymentEvents := p.consumer(cfg.Kafka.PaymentsTopic)
		saga.Register(paymentEvents)

		svc := order.NewService(repo, pub, cfg.Kafka.OrdersTopic, p.logger)
		handler := p.router(pool.Ping, httpapi.NewOrdersHandler(svc, p.logger))
		return p.run(ctx, handler, inventoryEvents.Run, paymentEvents.Run)
	})
}

// RunInventory reserves, commits and releases stock in response to order events.
func RunInventory(ctx context.Context, cfg *config.Config) error {
	return runWith(ctx, cfg, func(p *process) error {
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		p.onClose(func() error { pool.Close(); return nil })

		if err := migrate(cfg, config.ServiceInventory, p.logger); err != nil {
			return err
		}
		if err := p.ensureTopics(ctx); err != nil {
			return err
		}

		settings := inventory.Settings{
			DefaultProductID:           cfg.Inventory.DefaultProductID,
			DefaultStock:               cfg.Inventory.DefaultStock,
			DefaultReservationQuantity: cfg.Inventory.DefaultReservationQuantity,
		}
		repo := inventory.NewPostgresRepository(pool)
		if err := repo.SeedStock(ctx, settings.DefaultProductID, settings.DefaultStock); err != nil {
			return err
		}
		p.logger.Info("default stock seeded",
			zap.String("event", "inventory.stock.seeded"),
			zap.String("product_id", settings.DefaultProductID),
			zap.Int("quantity", settings.DefaultStock))

		engine := inventory.NewEngine(repo, settings, p.logger, p.metrics)
		saga := inventory.NewSagaHandler(engine, p.publisher(), cfg.Kafka.InventoryTopic, settings, p.logger)
		orderEvents := p.consumer(cfg.Kafka.OrdersTopic)
		saga.Register(orderEvents)

		handler := p.router(pool.Ping, httpapi.NewInventoryHandler(repo, p.logger))
		return p.run(ctx, handler, orderEvents.Run)
	})
}

// RunPayments serves the mock payments API.
func RunPayments(ctx context.Context, cfg *config.Config) error {
	return runWith(ctx, cfg, func(p *process) error {
		conn, err := db.Open(cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("db open: %w", err)
		}
		p.onClose(conn.Close)
		if err := conn.PingContext(ctx); err != nil {
			return fmt.Errorf("db ping: %w", err)
		}

		if err := migrate(cfg, config.ServicePayments, p.logger); err != nil {
			return err
		}
		if err := p.ensureTopics(ctx); err != nil {
			return err
		}

		svc := payment.NewService(payment.NewRepository(conn), p.publisher(), cfg.Kafka.PaymentsTopic, p.logger)
		handler := p.router(conn.PingContext, httpapi.NewPaymentsHandler(svc, p.logger))
		return p.run(ctx, handler)
	})
}

// RunNotificationsRelay forwards terminal order events to the notifications queue.
func RunNotificationsRelay(ctx context.Context, cfg *config.Config) error {
	return runWith(ctx, cfg, func(p *process) error {
		conn, ch, err := dialRabbit(p, cfg.Notifications.RabbitURL)
		if err != nil {
			return err
		}

		queue, err := notification.NewQueuePublisher(ch, cfg.Notifications.Queue, p.logger)
		if err != nil {
			return err
		}
		if err := p.ensureTopics(ctx); err != nil {
			return err
		}

		relay := notification.NewRelay(queue, p.logger, p.metrics)
		orderEvents := p.consumer(cfg.Kafka.OrdersTopic)
		relay.Register(orderEvents)

		handler := p.router(rabbitReady(conn))
		return p.run(ctx, handler, orderEvents.Run)
	})
}

// RunNotificationsWorker delivers queued notification jobs.
func RunNotificationsWorker(ctx context.Context, cfg *config.Config) error {
	return runWith(ctx, cfg, func(p *process) error {
		conn, ch, err := dialRabbit(p, cfg.Notifications.RabbitURL)
		if err != nil {
			return err
		}

		n := cfg.Notifications
		sender := &notification.SimulatedSender{
			FailureRate: n.FailureRate,
			Latency:     150 * time.Millisecond,
			Logger:      p.logger,
		}
		worker := notification.NewWorker(ch, sender, notification.WorkerOptions{
			Queue:      n.Queue,
			MaxRetries: n.MaxRetries,
			BaseDelay:  n.BaseDelay,
			Prefetch:   n.Prefetch,
		}, p.logger, p.metrics)

		handler := p.router(rabbitReady(conn))
		return p.run(ctx, handler, worker.Run)
	})
}

// Migrate applies the migrations of the given schemas and exits.
func Migrate(cfg *config.Config, logger *zap.Logger, schemas ...string) error {
	for _, schema := range schemas {
		if err := db.RunMigrations(cfg.DatabaseDSN, schema, logger); err != nil {
			return fmt.Errorf("migrate %s: %w", schema, err)
		}
	}
	return nil
}

func runWith(ctx context.Context, cfg *config.Config, fn func(p *process) error) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	p, err := newProcess(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := fn(p); err != nil {
		p.close()
		logger.Error("service stopped", zap.Error(err))
		return err
	}
	return nil
}

func migrate(cfg *config.Config, schema string, logger *zap.Logger) error {
	if !cfg.RunMigrations {
		return nil
	}
	return db.RunMigrations(cfg.DatabaseDSN, schema, logger)
}

func dialRabbit(p *process, url string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	p.onClose(conn.Close)

	ch, err := conn.Channel()
	if err != nil {
		return nil, nil, fmt.Errorf("open channel: %w", err)
	}
	p.onClose(ch.Close)
	return conn, ch, nil
}

func rabbitReady(conn *amqp.Connection) httpapi.ReadyFunc {
	return func(ctx context.Context) error {
		if conn.IsClosed() {
			return errors.New("rabbitmq connection closed")
		}
		return nil
	}
}
