package pricecache

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()
	c := New()

	c.Put("BTCUSDT", decimal.NewFromInt(30000))

	got, ok := c.Get("BTCUSDT")
	if !ok {
		t.Fatal("expected price to be present")
	}
	if !got.Equal(decimal.NewFromInt(30000)) {
		t.Errorf("got %s, want 30000", got)
	}
}

func TestGetMissingSymbol(t *testing.T) {
	t.Parallel()
	c := New()

	if _, ok := c.Get("XYZ"); ok {
		t.Error("expected no price for unknown symbol")
	}
}

func TestPutRejectsNonPositive(t *testing.T) {
	t.Parallel()
	c := New()

	c.Put("BTCUSDT", decimal.Zero)
	c.Put("BTCUSDT", decimal.NewFromInt(-5))

	if _, ok := c.Get("BTCUSDT"); ok {
		t.Error("non-positive prices must not be stored")
	}
}

func TestSnapshotIsIndependentCopy(t *testing.T) {
	t.Parallel()
	c := New()
	c.Put("BTCUSDT", decimal.NewFromInt(30000))

	snap := c.Snapshot()
	c.Put("BTCUSDT", decimal.NewFromInt(31000))

	if !snap["BTCUSDT"].Equal(decimal.NewFromInt(30000)) {
		t.Errorf("snapshot mutated after later Put: got %s", snap["BTCUSDT"])
	}

	got, _ := c.Get("BTCUSDT")
	if !got.Equal(decimal.NewFromInt(31000)) {
		t.Errorf("cache itself should reflect the later Put: got %s", got)
	}
}
