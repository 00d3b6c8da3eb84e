// Command engine is the process entrypoint for the trading execution core:
// it wires the Journal, Order Store, ID Mapper, Position Keeper and
// Execution Gateway for every configured strategy into an Engine, recovers
// in-flight state from the last run, then serves the RPC surface over HTTP
// while the fill-poll loop runs in the background.
package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"jax-execution-core/internal/config"
	"jax-execution-core/internal/database"
	"jax-execution-core/internal/domain"
	"jax-execution-core/internal/execution"
	"jax-execution-core/internal/gateway"
	"jax-execution-core/internal/httpapi"
	"jax-execution-core/internal/idmap"
	"jax-execution-core/internal/journal"
	"jax-execution-core/internal/killswitch"
	"jax-execution-core/internal/observability"
	"jax-execution-core/internal/orderstore"
	"jax-execution-core/internal/position"
	"jax-execution-core/migrations"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbConfig := database.DefaultConfig()
	dbConfig.DSN = cfg.PostgresDSN
	db, err := database.ConnectWithMigrations(ctx, dbConfig, database.NewMigrationSource(migrations.FS, "."))
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	j := journal.NewPostgresJournal(db.DB)
	store := orderstore.NewPostgresStore(db.DB)

	eng := execution.NewEngine()
	eng.PollInterval = cfg.FillPollInterval

	for _, strategyID := range cfg.Strategies {
		gw := buildGateway(cfg)
		mapper := idmap.New()
		positions := position.NewKeeper()

		if err := execution.Recover(ctx, strategyID, store, j, mapper); err != nil {
			log.Fatalf("recovery for strategy %s: %v", strategyID, err)
		}

		mgr := execution.NewManager(strategyID, gw, store, j, mapper, positions)
		eng.Register(mgr)

		observability.LogEvent(ctx, "info", "strategy_registered", map[string]any{"strategy_id": strategyID})
	}

	_ = j.Log(ctx, domain.EventSystemStarted, "", "")

	server := httpapi.NewServer(eng, httpapi.NewAuthenticator(cfg.JWTSigningKey))

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		subscriber := killswitch.NewSubscriber(redisClient, cfg.KillSwitchChannel)
		server.WithKillSwitchBroadcaster(killswitch.NewBroadcaster(redisClient, cfg.KillSwitchChannel))

		go func() {
			_ = subscriber.Run(ctx, func(n killswitch.Notice) {
				observability.LogEvent(ctx, "warn", "kill_switch_received", map[string]any{
					"reason": n.Reason, "initiated_by": n.InitiatedBy,
				})
				if err := eng.ActivateKillSwitch(ctx, n.Reason, n.InitiatedBy); err != nil {
					observability.LogEvent(ctx, "error", "kill_switch_apply_failed", map[string]any{"error": err.Error()})
				}
			})
		}()
	}

	httpServer := httpapi.NewHTTPServer(":"+cfg.Port, server)

	go eng.Run(ctx)

	go func() {
		log.Printf("execution core listening on :%s", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("http server shutdown error: %v", err)
	}
	_ = j.Log(shutdownCtx, domain.EventSystemStopped, "", "")
	_ = j.Flush(shutdownCtx)
	if redisClient != nil {
		_ = redisClient.Close()
	}
}

// buildGateway constructs the Execution Gateway implementation selected by
// cfg.GatewayKind. Every strategy gets its own gateway instance so one
// broker outage's circuit breaker doesn't starve unrelated strategies.
func buildGateway(cfg config.Config) gateway.Gateway {
	switch cfg.GatewayKind {
	case "alpaca":
		client := alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    cfg.AlpacaKeyID,
			APISecret: cfg.AlpacaKey,
			BaseURL:   cfg.AlpacaBase,
		})
		return gateway.NewAlpaca(client)
	case "httpbridge":
		return gateway.NewHTTPBridge(cfg.BridgeURL)
	default:
		return gateway.NewPaper()
	}
}
