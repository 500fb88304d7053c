package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"turnroomgo/internal/config"
	"turnroomgo/internal/http/http_server"
	"turnroomgo/internal/redis/redis_client"
	"turnroomgo/internal/relay"
	"turnroomgo/internal/services/game"
	"turnroomgo/internal/ws"
)

var (
	Log, _ = zap.NewDevelopment()
)

func main() {
	defer Log.Sync()
	zap.ReplaceGlobals(Log)

	// 1. Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		Log.Fatal("Failed to load configuration", zap.Error(err))
	}
	Log.Debug("Configuration loaded successfully", zap.Any("config", cfg))

	// 2. Context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGINT, syscall.SIGTERM,
	)
	defer stop()

	// 3. Connection hub; it is also the local broadcast gateway
	hub := ws.NewHub()

	// 4. Optional Redis: room events fan out through pub/sub so clients of
	// every instance see them, not only the scheduler owner's.
	var rdc *redis.Client
	var gateway game.Broadcaster = hub
	if cfg.RedisEnabled {
		rdc, err = redis_client.NewRedisClient(cfg.RedisHost, int(cfg.RedisPort), cfg.RedisPoolSize)
		if err != nil {
			Log.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer rdc.Close()
		gateway = ws.NewPublisher(rdc)
		Log.Debug("Redis fan-out enabled")
	}

	// 5. Game service: room state + turn scheduler
	gameSvc := game.NewGameService(game.Settings{
		TurnSeconds:       cfg.TurnSeconds,
		PreCountdownDelay: time.Duration(cfg.PreCountdownSeconds) * time.Second,
		DefaultTotalTurns: cfg.DefaultTotalTurns,
		Activation:        game.Activation(cfg.CountdownActivation),
	}, clockwork.NewRealClock(), gateway, hub)

	// 6. WS session server
	wsSrv := ws.NewWsServer(hub, rdc, gameSvc)

	// 7. Audio relays. The /stt endpoint needs a relay.Recognizer for the
	// deployment's speech backend; pass one to relay.NewSttRelay here to
	// register it. Until then the endpoint stays off.
	voiceRelay := relay.NewVoiceRelay()
	var sttRelay *relay.SttRelay

	// 8. HTTP + WS server
	httpServer := http_server.NewHttpServer(ctx, cfg.HttpServerPort, wsSrv, voiceRelay, sttRelay, gameSvc)
	if err := httpServer.Start(); err != nil {
		Log.Fatal("Failed to start HTTP server", zap.Error(err))
	}
}
