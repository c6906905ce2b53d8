package gateway

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type evalPayload struct {
	Clarity int    `json:"clarity"`
	Trend   string `json:"trend"`
}

func TestDecodeJSONPlain(t *testing.T) {
	var out evalPayload
	err := DecodeJSON(`{"clarity": 62, "trend": "improving"}`, &out)
	require.NoError(t, err)
	assert.Equal(t, 62, out.Clarity)
	assert.Equal(t, "improving", out.Trend)
}

func TestDecodeJSONStripsFences(t *testing.T) {
	raw := "```json\n{\"clarity\": 40, \"trend\": \"stable\"}\n```"

	var out evalPayload
	err := DecodeJSON(raw, &out)
	require.NoError(t, err)
	assert.Equal(t, 40, out.Clarity)
}

func TestDecodeJSONRepairsTrailingComma(t *testing.T) {
	var out evalPayload
	err := DecodeJSON(`{"clarity": 55, "trend": "worsening",}`, &out)
	require.NoError(t, err)
	assert.Equal(t, 55, out.Clarity)
	assert.Equal(t, "worsening", out.Trend)
}

func TestDecodeJSONMalformed(t *testing.T) {
	var out evalPayload
	err := DecodeJSON("the student seems confused", &out)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedOutput))
}

func TestDecodeJSONEmpty(t *testing.T) {
	var out evalPayload
	err := DecodeJSON("   ", &out)
	assert.True(t, errors.Is(err, ErrMalformedOutput))
}

func TestStripFencesNoFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("  {\"a\":1}  "))
}

func TestStripFencesBareFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, StripFences("```\n{\"a\":1}\n```"))
}
