package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeJSON(t *testing.T) {
	type event struct {
		Op    string `json:"op"`
		DocID uint64 `json:"doc_id"`
	}
	ev, err := DecodeJSON[event]([]byte(`{"op":"put","doc_id":18446744073709551615}`))
	require.NoError(t, err)
	assert.Equal(t, event{Op: "put", DocID: 1<<64 - 1}, ev)

	_, err = DecodeJSON[event]([]byte(`{"op":`))
	assert.ErrorContains(t, err, "decoding kafka message")
}
