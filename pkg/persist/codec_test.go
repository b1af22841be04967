package persist

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONCodec_Indent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	require.NoError(t, NewJSONCodec().Encode(&buf, sideFile{Label: "x"}))
	assert.Equal(t, "{\n  \"label\": \"x\",\n  \"value\": 0\n}\n", buf.String())

	buf.Reset()

	require.NoError(t, (&JSONCodec{}).Encode(&buf, sideFile{Label: "x"}))
	assert.Equal(t, "{\"label\":\"x\",\"value\":0}\n", buf.String())
}

func TestJSONCodec_Strict(t *testing.T) {
	t.Parallel()

	input := `{"label":"x","extra":true}`

	var lenient sideFile

	require.NoError(t, NewJSONCodec().Decode(bytes.NewBufferString(input), &lenient))
	assert.Equal(t, "x", lenient.Label)

	var strict sideFile

	err := (&JSONCodec{Strict: true}).Decode(bytes.NewBufferString(input), &strict)
	require.Error(t, err)
}

func TestJSONCodec_Extension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ".json", NewJSONCodec().Extension())
}
