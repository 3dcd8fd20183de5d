package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"fxlink/internal/domain"
	"fxlink/internal/event"

	"github.com/shopspring/decimal"
)

func newTestClient(em *event.Emitter) *Client {
	return NewClient(Config{URL: "ws://127.0.0.1:9", Symbols: []string{"EURUSD"}}, em)
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestHandleMessage_TickCachesQuote(t *testing.T) {
	c := newTestClient(nil)

	msg := []byte(`{"type":"tick","tick":{"symbol":"EURUSD","ask":"1.10052","bid":"1.10047","volume":12,"ts":1748822400000}}`)
	c.handleMessage(context.Background(), msg)

	tick, err := c.FetchTick("EURUSD")
	if err != nil {
		t.Fatalf("FetchTick: %v", err)
	}
	if !tick.Ask.Equal(decimal.RequireFromString("1.10052")) {
		t.Errorf("ask = %s, want 1.10052", tick.Ask)
	}
	if !tick.Bid.Equal(decimal.RequireFromString("1.10047")) {
		t.Errorf("bid = %s, want 1.10047", tick.Bid)
	}
	if tick.Volume != 12 {
		t.Errorf("volume = %d, want 12", tick.Volume)
	}
	if tick.Time.UnixMilli() != 1748822400000 {
		t.Errorf("time = %d, want 1748822400000", tick.Time.UnixMilli())
	}

	// Newer push replaces the cached quote.
	msg = []byte(`{"type":"tick","tick":{"symbol":"EURUSD","ask":"1.10060","bid":"1.10055","volume":3,"ts":1748822401000}}`)
	c.handleMessage(context.Background(), msg)

	tick, err = c.FetchTick("EURUSD")
	if err != nil {
		t.Fatalf("FetchTick after update: %v", err)
	}
	if !tick.Ask.Equal(decimal.RequireFromString("1.10060")) {
		t.Errorf("ask after update = %s, want 1.10060", tick.Ask)
	}
}

func TestHandleMessage_TickEmitsDoorbell(t *testing.T) {
	inbox := make(chan event.Event, 4)
	c := newTestClient(event.NewEmitter(inbox))

	msg := []byte(`{"type":"tick","tick":{"symbol":"EURUSD","ask":"1.1","bid":"1.0","volume":1,"ts":1748822400000}}`)
	c.handleMessage(context.Background(), msg)

	select {
	case ev := <-inbox:
		qe, ok := ev.(*event.QuoteEvent)
		if !ok {
			t.Fatalf("event type = %T, want *event.QuoteEvent", ev)
		}
		if qe.Symbol != "EURUSD" {
			t.Errorf("symbol = %q, want EURUSD", qe.Symbol)
		}
		if qe.GetSeq() != 1 {
			t.Errorf("seq = %d, want 1", qe.GetSeq())
		}
	default:
		t.Fatal("no doorbell event emitted")
	}
}

func TestHandleMessage_TickDropsDoorbellWhenCancelled(t *testing.T) {
	inbox := make(chan event.Event) // unbuffered, no reader
	c := newTestClient(event.NewEmitter(inbox))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	msg := []byte(`{"type":"tick","tick":{"symbol":"EURUSD","ask":"1.1","bid":"1.0","volume":1,"ts":1748822400000}}`)
	c.handleMessage(ctx, msg)

	// The quote is still cached even when the doorbell cannot be
	// delivered.
	if _, err := c.FetchTick("EURUSD"); err != nil {
		t.Fatalf("FetchTick: %v", err)
	}
}

func TestHandleMessage_SpecServesMetadata(t *testing.T) {
	c := newTestClient(nil)

	msg := []byte(`{"type":"spec","spec":{"symbol":"EURUSD","digits":5,"point_size":"0.00001","tick_size":"0.00001","tick_value":"1","contract_size":"100000","volume_min":"0.01","volume_max":"500","volume_step":"0.01","spread_points":5}}`)
	c.handleMessage(context.Background(), msg)

	point, err := c.FetchDouble("EURUSD", domain.FieldPointSize)
	if err != nil {
		t.Fatalf("FetchDouble: %v", err)
	}
	if !point.Equal(decimal.RequireFromString("0.00001")) {
		t.Errorf("point = %s, want 0.00001", point)
	}

	digits, err := c.FetchInteger("EURUSD", domain.FieldDigits)
	if err != nil {
		t.Fatalf("FetchInteger: %v", err)
	}
	if digits != 5 {
		t.Errorf("digits = %d, want 5", digits)
	}

	if _, err := c.FetchDouble("EURUSD", domain.DoubleField(999)); !errors.Is(err, domain.ErrUnknownField) {
		t.Errorf("unknown field error = %v, want ErrUnknownField", err)
	}
}

func TestFetchTick_NoQuote(t *testing.T) {
	c := newTestClient(nil)

	_, err := c.FetchTick("EURUSD")
	if !errors.Is(err, domain.ErrNoQuote) {
		t.Fatalf("err = %v, want ErrNoQuote", err)
	}
	if !domain.IsRetriable(err) {
		t.Error("missing quote should be retriable")
	}
}

func TestFetchMetadata_UnknownSymbol(t *testing.T) {
	c := newTestClient(nil)

	_, err := c.FetchInteger("GBPJPY", domain.FieldDigits)
	if !errors.Is(err, domain.ErrUnknownSymbol) {
		t.Fatalf("err = %v, want ErrUnknownSymbol", err)
	}
	// Specs arrive by push after subscribe, so a miss is retriable.
	if !domain.IsRetriable(err) {
		t.Error("missing spec should be retriable")
	}
}

func TestDeliverResponse_Correlation(t *testing.T) {
	c := newTestClient(nil)

	ch := make(chan serverFrame, 1)
	c.pendMu.Lock()
	c.pending["req-1"] = ch
	c.pendMu.Unlock()

	v := 42.5
	c.handleMessage(context.Background(), mustMarshal(t, serverFrame{Type: frameResponse, ID: "req-1", OK: true, Value: &v}))

	select {
	case f := <-ch:
		if f.Value == nil || *f.Value != 42.5 {
			t.Fatalf("delivered frame = %+v, want value 42.5", f)
		}
	default:
		t.Fatal("response not delivered")
	}

	c.pendMu.Lock()
	_, still := c.pending["req-1"]
	c.pendMu.Unlock()
	if still {
		t.Error("pending entry should be removed after delivery")
	}

	// A response nobody is waiting for is dropped quietly.
	c.handleMessage(context.Background(), []byte(`{"type":"response","id":"ghost","ok":true}`))
}

func TestResponseErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		code      string
		want      error
		retriable bool
	}{
		{"invalid handle", codeInvalidHandle, domain.ErrInvalidHandle, false},
		{"unknown symbol", codeUnknownSymbol, domain.ErrUnknownSymbol, false},
		{"offline", codeOffline, domain.ErrOffline, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := responseError("op", "EURUSD", tc.code)
			if !errors.Is(err, tc.want) {
				t.Errorf("err = %v, want %v", err, tc.want)
			}
			if domain.IsRetriable(err) != tc.retriable {
				t.Errorf("retriable = %v, want %v", domain.IsRetriable(err), tc.retriable)
			}
		})
	}

	err := responseError("op", "EURUSD", "exotic_failure")
	if err == nil || !strings.Contains(err.Error(), "exotic_failure") {
		t.Errorf("unknown code error = %v, want message with code", err)
	}
	if domain.IsRetriable(err) {
		t.Error("unknown codes should not be retriable")
	}
}

func TestRequest_NoConnection(t *testing.T) {
	c := newTestClient(nil)

	_, err := c.FetchIndicatorDirect("EURUSD", domain.TimeframeM1, domain.IndicatorSpec{Kind: domain.IndicatorAwesome}, 0, 1)
	if err == nil {
		t.Fatal("expected error without connection")
	}

	c.pendMu.Lock()
	leaked := len(c.pending)
	c.pendMu.Unlock()
	if leaked != 0 {
		t.Errorf("pending map leaked %d entries", leaked)
	}
}

func TestHandleMessage_Malformed(t *testing.T) {
	c := newTestClient(nil)

	for _, msg := range [][]byte{
		[]byte(`not json at all`),
		[]byte(`{"type":"tick"}`),
		[]byte(`{"type":"spec"}`),
		[]byte(`{"type":"mystery"}`),
		[]byte(`{}`),
	} {
		c.handleMessage(context.Background(), msg)
	}

	if _, err := c.FetchTick("EURUSD"); !errors.Is(err, domain.ErrNoQuote) {
		t.Errorf("cache should stay empty after malformed frames, got %v", err)
	}
}
