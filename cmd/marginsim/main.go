// marginsim runs a leveraged-futures paper trading simulator: ingest live
// marks from Binance and Coinbase, match resting orders and TP/SL triggers
// against them once a second, record equity snapshots, and serve the whole
// thing over a small HTTP API.
package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/coreexec/marginsim/internal/config"
	"github.com/coreexec/marginsim/internal/equity"
	"github.com/coreexec/marginsim/internal/feeds"
	"github.com/coreexec/marginsim/internal/httpapi"
	"github.com/coreexec/marginsim/internal/matching"
	"github.com/coreexec/marginsim/internal/notify"
	"github.com/coreexec/marginsim/internal/pricecache"
	"github.com/coreexec/marginsim/internal/store"
	"github.com/coreexec/marginsim/internal/submission"
)

const version = "1.0.0"

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("no .env file found, using environment variables")
	}

	cfg := config.Load()
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().Str("version", version).Msg("marginsim starting")

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}

	prices := pricecache.New()
	hub := notify.NewHub()

	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		sink, err := notify.NewTelegramSink(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			log.Error().Err(err).Msg("failed to start telegram notification sink")
		} else {
			hub.AddSink(sink)
		}
	}

	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	binanceIngester := feeds.NewBinanceIngester(cfg.BinanceWSURL, symbols, prices, cfg.IngesterBackoff)
	go binanceIngester.Start()

	coinbaseProducts := []string{"BTC-USD", "ETH-USD", "SOL-USD"}
	coinbaseIngester := feeds.NewCoinbaseIngester(cfg.CoinbaseWSURL, coinbaseProducts, prices, cfg.IngesterBackoff)
	go coinbaseIngester.Start()

	engine := matching.New(st, prices, hub, cfg)
	go engine.Start()

	recorder := equity.New(st, prices, cfg.EquityRecordInterval)
	go recorder.Start()

	sub := submission.New(st, hub)
	server := httpapi.NewServer(st, prices, sub, cfg)

	go func() {
		if err := server.Start(cfg.HTTPAddr); err != nil {
			log.Fatal().Err(err).Msg("http api exited")
		}
	}()

	log.Info().Str("addr", cfg.HTTPAddr).Msg("all services started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	engine.Stop()
	recorder.Stop()
	binanceIngester.Stop()
	coinbaseIngester.Stop()

	log.Info().Msg("goodbye")
}
