package jsoncodec

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityCodecKeepsLargeIntegers(t *testing.T) {
	t.Parallel()

	var value map[string]any
	require.NoError(t, ActivityCodec{}.Unmarshal([]byte(`{"id":1234567890123456789}`), &value))

	number, ok := value["id"].(json.Number)
	require.True(t, ok)
	assert.Equal(t, "1234567890123456789", number.String())
}

func TestCodecRejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	var value any
	assert.Error(t, Codec{}.Unmarshal([]byte(`{"id":`), &value))
	assert.Error(t, ActivityCodec{}.Unmarshal([]byte(`{"id" 1}`), &value))
}

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	type payload struct {
		Rules []string `json:"rules"`
	}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, payload{Rules: []string{"cats"}}))

	var got payload
	require.NoError(t, Decode(&buf, &got))
	assert.Equal(t, []string{"cats"}, got.Rules)
}
