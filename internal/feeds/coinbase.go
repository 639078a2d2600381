package feeds

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/coreexec/marginsim/internal/pricecache"
	"github.com/coreexec/marginsim/internal/telemetry"
)

// CoinbaseIngester streams the advanced-trade ticker channel for a set of
// spot product ids and writes each tick's price into the cache.
type CoinbaseIngester struct {
	url        string
	productIDs []string
	prices     *pricecache.Cache
	backoff    time.Duration
	stopCh     chan struct{}
}

// NewCoinbaseIngester constructs an ingester for the given product ids (e.g.
// "BTC-USD").
func NewCoinbaseIngester(url string, productIDs []string, prices *pricecache.Cache, backoff time.Duration) *CoinbaseIngester {
	return &CoinbaseIngester{
		url:        url,
		productIDs: productIDs,
		prices:     prices,
		backoff:    backoff,
		stopCh:     make(chan struct{}),
	}
}

// Start runs the connect/subscribe/read/reconnect loop until Stop is called.
// It blocks, so callers run it in its own goroutine.
func (c *CoinbaseIngester) Start() {
	log.Info().Str("url", c.url).Msg("coinbase ingester starting")

	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
		if err != nil {
			log.Error().Err(err).Msg("coinbase ingester: connect failed, retrying")
			telemetry.IngesterReconnectsTotal.WithLabelValues("coinbase").Inc()
			c.sleep()
			continue
		}

		if err := conn.WriteJSON(map[string]any{
			"type":        "subscribe",
			"product_ids": c.productIDs,
			"channel":     "ticker",
		}); err != nil {
			log.Error().Err(err).Msg("coinbase ingester: subscribe failed")
			conn.Close()
			c.sleep()
			continue
		}

		c.readLoop(conn)
		conn.Close()
		telemetry.IngesterReconnectsTotal.WithLabelValues("coinbase").Inc()
		c.sleep()
	}
}

// Stop signals the loop to exit.
func (c *CoinbaseIngester) Stop() {
	close(c.stopCh)
}

func (c *CoinbaseIngester) sleep() {
	select {
	case <-c.stopCh:
	case <-time.After(c.backoff):
	}
}

type coinbaseTickerMessage struct {
	Channel string `json:"channel"`
	Events  []struct {
		Tickers []struct {
			ProductID string `json:"product_id"`
			Price     string `json:"price"`
		} `json:"tickers"`
	} `json:"events"`
}

func (c *CoinbaseIngester) readLoop(conn *websocket.Conn) {
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Warn().Err(err).Msg("coinbase ingester: read error")
			return
		}

		var msg coinbaseTickerMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		for _, event := range msg.Events {
			for _, ticker := range event.Tickers {
				if ticker.ProductID == "" || ticker.Price == "" {
					continue
				}
				price, err := strconv.ParseFloat(ticker.Price, 64)
				if err != nil || price <= 0 {
					continue
				}
				c.prices.PutFloat(ticker.ProductID, price)
				telemetry.IngesterMessagesTotal.WithLabelValues("coinbase").Inc()
			}
		}
	}
}
