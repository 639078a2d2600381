// Package feeds implements venue price ingesters: one supervised goroutine
// per venue that connects over WebSocket, subscribes to a stream, and writes
// every tick into the shared price cache. The connect/read/backoff-reconnect
// loop shape follows the reference feed's connectionLoop/connect/readLoop
// split; the wire formats below follow the venues' own public stream specs.
package feeds

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreexec/marginsim/internal/pricecache"
	"github.com/coreexec/marginsim/internal/telemetry"
)

// BinanceIngester streams combined aggTrade updates for a set of futures
// symbols and writes the latest trade price for each into the cache.
type BinanceIngester struct {
	baseURL string
	symbols []string
	prices  *pricecache.Cache
	backoff time.Duration
	stopCh  chan struct{}
}

// NewBinanceIngester constructs an ingester for the given symbols (e.g.
// "BTCUSDT", "ETHUSDT"). baseURL is the venue's WS base, without a path.
func NewBinanceIngester(baseURL string, symbols []string, prices *pricecache.Cache, backoff time.Duration) *BinanceIngester {
	return &BinanceIngester{
		baseURL: baseURL,
		symbols: symbols,
		prices:  prices,
		backoff: backoff,
		stopCh:  make(chan struct{}),
	}
}

// Start runs the connect/read/reconnect loop until Stop is called. It
// blocks, so callers run it in its own goroutine.
func (b *BinanceIngester) Start() {
	streamURL := b.streamURL()
	log.Info().Str("url", streamURL).Msg("binance ingester starting")

	for {
		select {
		case <-b.stopCh:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(streamURL, nil)
		if err != nil {
			log.Error().Err(err).Msg("binance ingester: connect failed, retrying")
			telemetry.IngesterReconnectsTotal.WithLabelValues("binance").Inc()
			b.sleep()
			continue
		}

		b.readLoop(conn)
		conn.Close()
		telemetry.IngesterReconnectsTotal.WithLabelValues("binance").Inc()
		b.sleep()
	}
}

// Stop signals the loop to exit.
func (b *BinanceIngester) Stop() {
	close(b.stopCh)
}

func (b *BinanceIngester) sleep() {
	select {
	case <-b.stopCh:
	case <-time.After(b.backoff):
	}
}

func (b *BinanceIngester) streamURL() string {
	streams := make([]string, len(b.symbols))
	for i, s := range b.symbols {
		streams[i] = strings.ToLower(s) + "@aggTrade"
	}
	return fmt.Sprintf("%s/stream?streams=%s", b.baseURL, strings.Join(streams, "/"))
}

type binanceEnvelope struct {
	Stream string          `json:"stream"`
	Data   binanceAggTrade `json:"data"`
}

type binanceAggTrade struct {
	Symbol string `json:"s"`
	Price  string `json:"p"`
}

func (b *BinanceIngester) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-b.stopCh:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("binance ingester: read error")
			return
		}

		var envelope binanceEnvelope
		if err := json.Unmarshal(message, &envelope); err != nil {
			continue
		}
		if envelope.Data.Symbol == "" || envelope.Data.Price == "" {
			continue
		}

		price, err := strconv.ParseFloat(envelope.Data.Price, 64)
		if err != nil || price <= 0 {
			log.Error().Str("symbol", envelope.Data.Symbol).Str("raw", envelope.Data.Price).Msg("binance ingester: invalid price")
			continue
		}

		b.prices.PutFloat(envelope.Data.Symbol, price)
		telemetry.IngesterMessagesTotal.WithLabelValues("binance").Inc()
	}
}
