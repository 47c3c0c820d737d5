package canonical_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sovereign-systems/constitutional-kernel/pkg/canonical"
)

func TestJCSSortsKeys(t *testing.T) {
	type doc struct {
		B int    `json:"b"`
		A string `json:"a"`
	}
	out, err := canonical.JCS(doc{B: 2, A: "x"})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"x","b":2}`, string(out))
}

func TestHashDeterministic(t *testing.T) {
	v := map[string]any{"zulu": 1, "alpha": []string{"a", "b"}, "nested": map[string]any{"k": true}}

	h1, err := canonical.Hash(v)
	require.NoError(t, err)
	h2, err := canonical.Hash(v)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64) // sha256 hex
}

func TestHashSensitiveToContent(t *testing.T) {
	h1, err := canonical.Hash(map[string]any{"k": "v"})
	require.NoError(t, err)
	h2, err := canonical.Hash(map[string]any{"k": "w"})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestHashBytes(t *testing.T) {
	// sha256("") is a well-known vector.
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		canonical.HashBytes(nil))
}
