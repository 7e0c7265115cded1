package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishEncodesJSON(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "gzip")

	require.NoError(t, p.Publish(context.Background(), "preds", []byte("btc:2025-03-01"), map[string]string{"direction": "UP"}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "preds", w.msgs[0].Topic)
	assert.Equal(t, "btc:2025-03-01", string(w.msgs[0].Key))
	assert.JSONEq(t, `{"direction":"UP"}`, string(w.msgs[0].Value))
}

func TestPublishBatchHeadersAndRaw(t *testing.T) {
	w := &fakeWriter{}
	p := NewProducerWithWriter(w, "zstd")

	err := p.PublishBatch(context.Background(), "t", []Message{
		{Key: []byte("a"), Value: []byte("raw"), Headers: map[string]string{"type": "spike"}},
		{Key: []byte("b"), Value: "text"},
	})
	require.NoError(t, err)
	require.Len(t, w.msgs, 2)
	assert.Equal(t, "raw", string(w.msgs[0].Value))
	assert.Equal(t, []kafka.Header{{Key: "type", Value: []byte("spike")}}, w.msgs[0].Headers)
	assert.Equal(t, "text", string(w.msgs[1].Value))

	require.NoError(t, p.PublishBatch(context.Background(), "t", nil))
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublishWrapsWriterError(t *testing.T) {
	p := NewProducerWithWriter(&fakeWriter{err: errors.New("leader not available")}, "gzip")
	err := p.Publish(context.Background(), "t", nil, 1)
	assert.ErrorContains(t, err, "leader not available")
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)

	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithCompression("lz4"), WithBatching(10, 0))
	require.NoError(t, err)
	require.NoError(t, p.Close())
}
