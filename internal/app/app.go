package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"

	"valorant-store/internal/auth"
	"valorant-store/internal/cache"
	"valorant-store/internal/config"
	"valorant-store/internal/httpapi"
	"valorant-store/internal/logging"
	"valorant-store/internal/order"
	"valorant-store/internal/storage"
	"valorant-store/internal/user"
	"valorant-store/internal/websocket"
	"valorant-store/pkg/contracts"
	"valorant-store/pkg/messaging"
)

type App struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.Store
	cache     *cache.Cache
	hub       *websocket.Hub
	publisher messaging.Publisher
	outbox    *messaging.OutboxDispatcher
	consumer  *messaging.Consumer
	httpSrv   *http.Server
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	store, err := storage.New(ctx, storage.Options{
		URL:             cfg.DatabaseURL,
		MaxConns:        int32(cfg.DBMaxConns),
		MinConns:        int32(cfg.DBMinConns),
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
	})
	if err != nil {
		return nil, err
	}

	users := user.NewRepository(store.Pool())
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authSvc := auth.NewService(users, tokens)

	orderSvc := order.NewService(order.NewRepository(store.Pool()), users, logger.With("component", "orders"))

	var orderCache *cache.Cache
	if cfg.RedisAddr != "" {
		orderCache = cache.New(cfg.RedisAddr, "valorant-store")
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := orderCache.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.Warn("redis unavailable, order cache disabled", "addr", cfg.RedisAddr, "err", err)
			_ = orderCache.Close()
			orderCache = nil
		} else {
			orderSvc.UseCache(orderCache, cfg.CacheTTL)
		}
	}

	publisher, err := messaging.NewRabbitPublisher(cfg.RabbitURL, cfg.OrdersExchange)
	if err != nil {
		store.Close()
		return nil, err
	}

	// every replica needs its own copy of each event to reach the sockets it holds
	queue := messaging.Queue{Name: fmt.Sprintf("%s.%s", cfg.NotifyQueue, uuid.NewString()[:8]), Transient: true}
	consumer, err := messaging.NewRabbitConsumer(cfg.RabbitURL, cfg.OrdersExchange, queue, logger.With("component", "notifications"))
	if err != nil {
		store.Close()
		publisher.Close()
		return nil, err
	}

	hub := websocket.NewHub(logger.With("component", "feed"))

	api := httpapi.NewServer(httpapi.Deps{
		Orders:      orderSvc,
		Auth:        authSvc,
		Tokens:      tokens,
		Feed:        hub,
		Ready:       store.Ping,
		CORSOrigins: cfg.CORSOrigins,
		Logger:      logger.With("component", "http"),
	})
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api,
		ReadHeaderTimeout: 10 * time.Second,
	}

	outbox := messaging.NewOutboxDispatcher(store.Pool(), publisher, "order_outbox", cfg.OutboxInterval, cfg.OutboxBatchSize, logger.With("component", "outbox"))

	return &App{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		cache:     orderCache,
		hub:       hub,
		publisher: publisher,
		consumer:  consumer,
		outbox:    outbox,
		httpSrv:   httpSrv,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	a.outbox.Start(ctx)

	go a.hub.Run(ctx)

	go func() {
		errCh <- a.consumer.Start(ctx, orderEventHandler(a.hub, a.logger))
	}()

	go func() {
		a.logger.Info("store http server listening", "addr", a.cfg.HTTPAddr)
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err == nil && ctx.Err() == nil {
			return errors.New("notification consumer stopped")
		}
		return err
	}
}

func (a *App) Close() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownGracePeriod)
	defer cancel()
	if err := a.httpSrv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http shutdown", "err", err)
	}
	a.consumer.Close()
	a.publisher.Close()
	if a.cache != nil {
		_ = a.cache.Close()
	}
	a.store.Close()
}

type notifier interface {
	Notify(n websocket.Notification)
}

// orderEventHandler forwards orders.created events to the live feed. Other
// event types on the exchange are acknowledged and skipped.
func orderEventHandler(n notifier, logger *slog.Logger) messaging.Handler {
	return func(ctx context.Context, msg amqp091.Delivery) error {
		if msg.Type != "" && msg.Type != contracts.OrderCreatedType {
			return nil
		}

		var evt contracts.OrderCreatedEvent
		if err := json.Unmarshal(msg.Body, &evt); err != nil {
			return fmt.Errorf("decode order event: %w", err)
		}
		if evt.Username == "" || evt.OrderID == "" {
			return fmt.Errorf("order event %s: missing owner or order id", evt.EventID)
		}

		n.Notify(websocket.Notification{
			Username:    evt.Username,
			OrderID:     evt.OrderID,
			Status:      evt.Status,
			TotalAmount: json.Number(evt.TotalAmount.StringFixed(2)),
		})
		logger.DebugContext(ctx, "order event forwarded", "order_id", evt.OrderID, "username", evt.Username)
		return nil
	}
}

func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}
	defer app.Close()

	return app.Run(ctx)
}
