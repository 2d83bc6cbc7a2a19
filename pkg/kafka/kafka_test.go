package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	applogger "MarketPulse/pkg/logger"
)

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

type fakeReader struct {
	mu        sync.Mutex
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type countingHandler struct {
	topic    string
	failures int
	calls    int
	panics   bool
}

func (h *countingHandler) Topic() string { return h.topic }

func (h *countingHandler) Handle(_ context.Context, _ []byte) error {
	h.calls++
	if h.panics {
		panic("boom")
	}
	if h.calls <= h.failures {
		return errors.New("transient")
	}
	return nil
}

func testConsumer(retries int) (*Consumer, *fakeReader) {
	cfg := &ConsumerConfig{
		WorkerCount: 1,
		BufferSize:  1,
		RetryMax:    retries,
		BackoffMin:  time.Millisecond,
		BackoffMax:  2 * time.Millisecond,
		Logger:      applogger.Nop(),
	}
	r := &fakeReader{}
	c := newConsumer(cfg, func(string) Reader { return r })
	return c, r
}

func TestProducer_EncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "gzip", nil)

	err := p.Publish(context.Background(), "marketpulse.alerts", []byte("k"), map[string]int{"n": 1})
	require.NoError(t, err)
	require.NoError(t, p.PublishMessage(context.Background(), "ops.logs", "raw"))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, "marketpulse.alerts", w.msgs[0].Topic)
	assert.Equal(t, []byte("k"), w.msgs[0].Key)
	var decoded map[string]int
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, 1, decoded["n"])
	assert.Equal(t, []byte("raw"), w.msgs[1].Value)
}

func TestProducer_WrapsWriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker down")}
	p := NewProducerWithWriter(w, "gzip", applogger.Nop())

	err := p.Publish(context.Background(), "t", nil, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, w.err)
	assert.NoError(t, p.PublishBatch(context.Background(), "t", nil))
}

func TestNewProducer_RequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
	_, err = NewConsumer()
	assert.Error(t, err)
}

func TestConsumer_RetriesThenCommits(t *testing.T) {
	c, r := testConsumer(3)
	h := &countingHandler{topic: "settings", failures: 2}
	c.RegisterHandler(h)
	c.readers["settings"] = r

	c.process(context.Background(), &message{topic: "settings", km: kafka.Message{Offset: 7}})

	assert.Equal(t, 3, h.calls)
	assert.Equal(t, []int64{7}, r.committed)
}

func TestConsumer_GivesUpWithoutCommitWhenNoDLQ(t *testing.T) {
	c, r := testConsumer(1)
	h := &countingHandler{topic: "settings", failures: 10}
	c.RegisterHandler(h)
	c.readers["settings"] = r

	c.process(context.Background(), &message{topic: "settings", km: kafka.Message{Offset: 3}})

	assert.Equal(t, 2, h.calls)
	assert.Empty(t, r.committed)
}

func TestConsumer_DeadLettersAndCommits(t *testing.T) {
	c, r := testConsumer(0)
	dlq := &fakeWriter{}
	c.dlq = dlq
	c.cfg.DLQTopic = "settings.dlq"
	h := &countingHandler{topic: "settings", panics: true}
	c.RegisterHandler(h)
	c.readers["settings"] = r

	c.process(context.Background(), &message{topic: "settings", km: kafka.Message{Offset: 9, Value: []byte("{}")}})

	require.Len(t, dlq.msgs, 1)
	assert.Equal(t, "settings.dlq", dlq.msgs[0].Topic)
	assert.Equal(t, "source_topic", dlq.msgs[0].Headers[0].Key)
	assert.Equal(t, []int64{9}, r.committed)
}

func TestConsumer_StartStop(t *testing.T) {
	c, _ := testConsumer(0)
	assert.Error(t, c.Start(context.Background()))

	c.RegisterHandler(&countingHandler{topic: "settings"})
	require.NoError(t, c.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, c.Stop(ctx))
	assert.NoError(t, c.Stop(ctx))
}

func TestHookChain_OrderAndPanicSafety(t *testing.T) {
	var order []string
	first := HookFuncs{
		Before: func(ctx context.Context, _ string, _ kafka.Message, data []byte) (context.Context, []byte, error) {
			order = append(order, "before1")
			return ctx, append(data, '1'), nil
		},
		After: func(context.Context, string, kafka.Message, error) { order = append(order, "after1") },
	}
	second := HookFuncs{
		Before: func(ctx context.Context, _ string, _ kafka.Message, data []byte) (context.Context, []byte, error) {
			order = append(order, "before2")
			return ctx, append(data, '2'), nil
		},
		After: func(context.Context, string, kafka.Message, error) {
			order = append(order, "after2")
			panic("ignored")
		},
	}
	chain := NewHookChain(first, nil, second)

	_, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "x12", string(data))

	chain.AfterHandle(context.Background(), "t", kafka.Message{}, nil)
	assert.Equal(t, []string{"before1", "before2", "after2", "after1"}, order)
}

func TestHookChain_BeforePanicBecomesHookError(t *testing.T) {
	chain := NewHookChain(HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, []byte, error) {
			panic("bad hook")
		},
	})

	_, _, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var herr *HookError
	require.ErrorAs(t, err, &herr)
	assert.Equal(t, "ERR_PANIC", herr.Code)
}

func TestTracingHook_ReadsHeader(t *testing.T) {
	km := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	ctx, _, err := TracingHook().BeforeHandle(context.Background(), "t", km, nil)
	require.NoError(t, err)
	assert.Equal(t, "abc", TraceID(ctx))
	assert.Empty(t, TraceID(context.Background()))
}

func TestBackoffWithJitter_Bounds(t *testing.T) {
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(10*time.Millisecond, 200*time.Millisecond, attempt)
		assert.Greater(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 200*time.Millisecond)
	}
	d := backoffWithJitter(0, 0, 1)
	assert.LessOrEqual(t, d, 50*time.Millisecond)
	assert.Greater(t, d, 25*time.Millisecond-time.Nanosecond)
}

func TestInstanceGroupID_DistinctPerCall(t *testing.T) {
	a, b := InstanceGroupID("marketpulse"), InstanceGroupID("marketpulse")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "marketpulse-"))
}

func TestNewConsumer_GroupAndStartOffset(t *testing.T) {
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerGroupID("settings-a"),
		WithConsumerStartOffset(LastOffset),
	)
	require.NoError(t, err)
	assert.Equal(t, "settings-a", c.GroupID())
	assert.Equal(t, int64(LastOffset), c.cfg.StartOffset)
}
