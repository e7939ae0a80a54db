package kafka

import (
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	require.Error(t, err)

	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithHashByKey(true), WithCompression("zstd"))
	require.NoError(t, err)
	require.IsType(t, &kafka.Hash{}, p.writer.Balancer)
	require.Equal(t, kafka.Zstd, p.writer.Compression)
	require.NoError(t, p.Close())
}

func TestProducerWriteTimeout(t *testing.T) {
	p, err := NewProducer(WithBrokers([]string{"localhost:9092"}), WithWriteTimeout(3*time.Second), WithAsync(true))
	require.NoError(t, err)
	require.Equal(t, 3*time.Second, p.writer.WriteTimeout)
	require.True(t, p.writer.Async)
	require.NoError(t, p.Close())

	p, err = NewProducer(WithBrokers([]string{"localhost:9092"}), WithWriteTimeout(0))
	require.NoError(t, err)
	require.Equal(t, 10*time.Second, p.writer.WriteTimeout)
	require.NoError(t, p.Close())
}

func TestEncode(t *testing.T) {
	b, err := encode(map[string]string{"payer": "0xabc"})
	require.NoError(t, err)
	require.JSONEq(t, `{"payer":"0xabc"}`, string(b))

	b, err = encode("raw")
	require.NoError(t, err)
	require.Equal(t, "raw", string(b))
}
