package feeds

import (
	"encoding/json"
	"testing"
)

func TestBinanceIngesterStreamURLCombinesSymbols(t *testing.T) {
	t.Parallel()
	b := NewBinanceIngester("wss://stream.binance.com:9443", []string{"BTCUSDT", "ETHUSDT"}, nil, 0)

	got := b.streamURL()
	want := "wss://stream.binance.com:9443/stream?streams=btcusdt@aggTrade/ethusdt@aggTrade"
	if got != want {
		t.Errorf("streamURL = %q, want %q", got, want)
	}
}

func TestBinanceEnvelopeUnmarshalsAggTrade(t *testing.T) {
	t.Parallel()
	raw := []byte(`{"stream":"btcusdt@aggTrade","data":{"e":"aggTrade","s":"BTCUSDT","p":"50123.45","q":"0.01"}}`)

	var envelope binanceEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Data.Symbol != "BTCUSDT" {
		t.Errorf("symbol = %q, want BTCUSDT", envelope.Data.Symbol)
	}
	if envelope.Data.Price != "50123.45" {
		t.Errorf("price = %q, want 50123.45", envelope.Data.Price)
	}
}
