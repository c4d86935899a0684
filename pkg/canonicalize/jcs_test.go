package canonicalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJCS_Sorting(t *testing.T) {
	input := map[string]any{
		"c": 3,
		"a": 1,
		"b": 2,
	}

	b, err := JCS(input)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"b":2,"c":3}`, string(b))
}

func TestJCS_RecursiveSorting(t *testing.T) {
	input := map[string]any{
		"z": map[string]any{
			"y": "foo",
			"x": "bar",
		},
		"a": 1,
	}

	b, err := JCS(input)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1,"z":{"x":"bar","y":"foo"}}`, string(b))
}

func TestJCS_NoHTMLEscaping(t *testing.T) {
	input := map[string]string{
		"html": "<script>alert('xss')</script> &",
	}

	b, err := JCS(input)
	require.NoError(t, err)
	assert.Equal(t, `{"html":"<script>alert('xss')</script> &"}`, string(b))
}

func TestFingerprint_IgnoresKeyOrderAndWhitespace(t *testing.T) {
	a := []byte(`{"type":"object","required":["name"],"properties":{"name":{"type":"string"}}}`)
	b := []byte(`{
	  "properties": {"name": {"type": "string"}},
	  "required": ["name"],
	  "type": "object"
	}`)

	fa, err := Fingerprint(a)
	require.NoError(t, err)
	fb, err := Fingerprint(b)
	require.NoError(t, err)

	assert.Equal(t, fa, fb)
	assert.True(t, strings.HasPrefix(fa, FingerprintPrefix))
}

func TestFingerprint_DistinguishesShapes(t *testing.T) {
	fa, err := Fingerprint([]byte(`{"type":"string"}`))
	require.NoError(t, err)
	fb, err := Fingerprint([]byte(`{"type":"integer"}`))
	require.NoError(t, err)
	assert.NotEqual(t, fa, fb)
}

func TestFingerprint_InvalidJSON(t *testing.T) {
	_, err := Fingerprint([]byte(`{"a":`))
	assert.Error(t, err)
}

func TestCanonicalHash_Stability(t *testing.T) {
	v1 := map[string]any{"a": 1, "b": 2}

	type S struct {
		B int `json:"b"`
		A int `json:"a"`
	}
	v2 := S{A: 1, B: 2}

	h1, err := CanonicalHash(v1)
	require.NoError(t, err)
	h2, err := CanonicalHash(v2)
	require.NoError(t, err)

	assert.Equal(t, h1, h2, "hash mismatch for semantically identical inputs")
}

func TestShort(t *testing.T) {
	assert.Equal(t, "0123456789ab", Short("sha256:0123456789abcdef"))
	assert.Equal(t, "abc", Short("abc"))
}
