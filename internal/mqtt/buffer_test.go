package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func push(rb *ringBuffer, values ...int) {
	for _, v := range values {
		rb.push(bufferedMsg{topic: "t", payload: []byte{byte(v)}})
	}
}

func payloads(msgs []bufferedMsg) []byte {
	out := make([]byte, len(msgs))
	for i, m := range msgs {
		out[i] = m.payload[0]
	}
	return out
}

func TestRingBufferEmptyDrain(t *testing.T) {
	rb := newRingBuffer(10)
	assert.Nil(t, rb.drainAll())
}

func TestRingBufferPushAndDrain(t *testing.T) {
	rb := newRingBuffer(10)
	push(rb, 0, 1, 2, 3, 4)

	assert.Equal(t, []byte{0, 1, 2, 3, 4}, payloads(rb.drainAll()))
	assert.Nil(t, rb.drainAll(), "second drain should be empty")
}

func TestRingBufferOverflowKeepsNewest(t *testing.T) {
	rb := newRingBuffer(5)
	push(rb, 0, 1, 2, 3, 4, 5, 6, 7)

	assert.Equal(t, 5, rb.len())
	assert.Equal(t, 3, rb.dropped)
	assert.Equal(t, []byte{3, 4, 5, 6, 7}, payloads(rb.drainAll()))
	assert.Equal(t, 0, rb.dropped)
}

func TestRingBufferMultipleCycles(t *testing.T) {
	rb := newRingBuffer(5)

	push(rb, 0, 1, 2)
	require.Len(t, rb.drainAll(), 3)

	push(rb, 10, 11, 12, 13)
	assert.Equal(t, []byte{10, 11, 12, 13}, payloads(rb.drainAll()))
}

func TestRingBufferZeroCapacity(t *testing.T) {
	rb := newRingBuffer(0)
	push(rb, 1, 2)

	assert.Equal(t, 0, rb.len())
	assert.Equal(t, 2, rb.dropped)
	assert.Nil(t, rb.drainAll())
}

func TestRingBufferPreservesFields(t *testing.T) {
	rb := newRingBuffer(10)
	rb.push(bufferedMsg{
		topic:    "featurestate/grip/state",
		payload:  []byte(`{"test":true}`),
		qos:      1,
		retained: true,
	})

	got := rb.drainAll()
	require.Len(t, got, 1)
	assert.Equal(t, "featurestate/grip/state", got[0].topic)
	assert.Equal(t, `{"test":true}`, string(got[0].payload))
	assert.Equal(t, byte(1), got[0].qos)
	assert.True(t, got[0].retained)
}
