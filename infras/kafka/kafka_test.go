package kafka

import (
	"context"
	"testing"

	"lodge/config"
	otelMocks "lodge/infras/otel/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_ToKafkaMessage(t *testing.T) {
	msg := Message{
		Key:   "room-1",
		Value: map[string]any{"type": "booking.created", "nights": 2},
	}

	got, err := msg.ToKafkaMessage("lodge.bookings")
	require.NoError(t, err)

	assert.Equal(t, "lodge.bookings", got.Topic)
	assert.Equal(t, []byte("room-1"), got.Key)
	assert.JSONEq(t, `{"type":"booking.created","nights":2}`, string(got.Value))
	assert.False(t, got.Time.IsZero())
}

func TestMessage_ToKafkaMessage_Unmarshalable(t *testing.T) {
	msg := Message{Key: "k", Value: make(chan int)}

	_, err := msg.ToKafkaMessage("topic")
	assert.Error(t, err)
}

func TestNew_WithoutBrokersIsNoop(t *testing.T) {
	client := New(&config.Config{}, otelMocks.NewOtel())

	_, ok := client.(noopClient)
	require.True(t, ok)

	assert.NoError(t, client.SendMessages(context.Background(), "lodge.sync", Message{Key: "k", Value: 1}))
	assert.NoError(t, client.Close())
}
