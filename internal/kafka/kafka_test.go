package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "copytrader/internal/errors"
	"copytrader/internal/models"
	"copytrader/internal/resilience"
)

type fakeReader struct {
	mu   sync.Mutex
	msgs []kafka.Message
	errs []error
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.msgs) > 0 {
		m := r.msgs[0]
		r.msgs = r.msgs[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) Close() error { return nil }

type sink struct {
	mu   sync.Mutex
	sigs []models.CopySignal
	got  chan struct{}
}

func newSink() *sink { return &sink{got: make(chan struct{}, 16)} }

func (s *sink) PublishContext(_ context.Context, sig models.CopySignal) error {
	s.mu.Lock()
	s.sigs = append(s.sigs, sig)
	s.mu.Unlock()
	s.got <- struct{}{}
	return nil
}

type fakeWriter struct {
	mu   sync.Mutex
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestDecodeSignal(t *testing.T) {
	sig, err := DecodeSignal([]byte(`{"expert_id":" sarah ","symbol":"AAPL","action":"buy","price":"100.5","quantity":"10"}`))
	require.NoError(t, err)
	assert.Equal(t, "sarah", sig.ExpertID)
	assert.True(t, sig.Price.Equal(decimal.RequireFromString("100.5")))

	_, err = DecodeSignal([]byte(`{"symbol":"AAPL","action":"buy"}`))
	assert.True(t, apperrors.Is(err, apperrors.ErrInputValidation))

	_, err = DecodeSignal([]byte(`{"expert_id":"sarah","action":"hold"}`))
	assert.True(t, apperrors.Is(err, apperrors.ErrInvalidAction))

	_, err = DecodeSignal([]byte(`not json`))
	assert.Error(t, err)
}

func TestSignalEncodingRoundTrip(t *testing.T) {
	in := models.CopySignal{
		ExpertID: "sarah",
		Symbol:   "AAPL",
		Action:   models.ActionSell,
		Price:    decimal.RequireFromString("175.43"),
		Quantity: decimal.NewFromInt(3),
	}
	data, err := EncodeSignal(in)
	require.NoError(t, err)
	out, err := DecodeSignal(data)
	require.NoError(t, err)
	assert.Equal(t, in.ExpertID, out.ExpertID)
	assert.True(t, in.Price.Equal(out.Price))
}

func TestSignalConsumer_SkipsBadMessages(t *testing.T) {
	stamp := time.Date(2024, 5, 6, 14, 0, 0, 0, time.UTC)
	reader := &fakeReader{msgs: []kafka.Message{
		{Value: []byte(`garbage`)},
		{Value: []byte(`{"expert_id":"sarah","symbol":"AAPL","action":"buy","price":"1","quantity":"1"}`), Time: stamp},
	}}
	c := NewSignalConsumerWithReader(reader, zerolog.Nop())
	s := newSink()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, s) }()

	select {
	case <-s.got:
	case <-time.After(2 * time.Second):
		t.Fatal("signal not delivered")
	}
	cancel()
	require.NoError(t, <-done)

	require.Len(t, s.sigs, 1)
	assert.Equal(t, "sarah", s.sigs[0].ExpertID)
	assert.Equal(t, stamp, s.sigs[0].Timestamp)
}

func TestSignalConsumer_RetriesReadErrors(t *testing.T) {
	reader := &fakeReader{
		errs: []error{errors.New("broker down")},
		msgs: []kafka.Message{{Value: []byte(`{"expert_id":"mike","action":"sell"}`)}},
	}
	c := NewSignalConsumerWithReader(reader, zerolog.Nop())
	c.retry.InitialDelay = time.Millisecond
	s := newSink()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx, s) }()

	select {
	case <-s.got:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not recover")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestTransactionPublisher(t *testing.T) {
	w := &fakeWriter{}
	p := NewTransactionPublisherWithWriter(w, "copytrader.transactions")

	txn := models.Transaction{ID: "txn_1", Type: models.ActionBuy, Symbol: "AAPL", Shares: decimal.NewFromInt(3)}
	require.NoError(t, p.PublishTransaction(context.Background(), "alice", txn))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "alice", string(w.msgs[0].Key))
	ev, err := DecodeTransaction(w.msgs[0].Value)
	require.NoError(t, err)
	assert.Equal(t, "alice", ev.UserID)
	assert.Equal(t, "txn_1", ev.Transaction.ID)
}

func TestTransactionPublisher_BreakerOpens(t *testing.T) {
	w := &fakeWriter{err: errors.New("no leader")}
	p := NewTransactionPublisherWithWriter(w, "t")

	cfg := resilience.DefaultBreakerConfig()
	for i := 0; i < cfg.FailureThreshold; i++ {
		assert.Error(t, p.PublishTransaction(context.Background(), "alice", models.Transaction{}))
	}
	err := p.PublishTransaction(context.Background(), "alice", models.Transaction{})
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, resilience.CircuitOpen, p.Breaker().State())
}

func TestSignalPublisher(t *testing.T) {
	w := &fakeWriter{}
	p := NewSignalPublisherWithWriter(w, "copytrader.signals")
	require.NoError(t, p.Publish(context.Background(), models.CopySignal{ExpertID: "sarah", Action: models.ActionBuy}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "sarah", string(w.msgs[0].Key))
}
