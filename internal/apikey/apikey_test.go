package apikey

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateProducesPrefixedKeys(t *testing.T) {
	fullKey, prefix, err := Generate()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(fullKey, KeyPrefix+"_"))
	assert.True(t, strings.HasPrefix(prefix, KeyPrefix+"_"))
	assert.True(t, strings.HasPrefix(fullKey, prefix))
	assert.Greater(t, len(fullKey), len(prefix))
}

func TestGenerateIsUnique(t *testing.T) {
	a, _, err := Generate()
	require.NoError(t, err)
	b, _, err := Generate()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestHashAndCompare(t *testing.T) {
	fullKey, _, err := Generate()
	require.NoError(t, err)

	hash, err := Hash(fullKey)
	require.NoError(t, err)
	assert.NotEqual(t, fullKey, hash)

	assert.NoError(t, Compare(fullKey, hash))
	assert.Error(t, Compare(fullKey+"x", hash))
	assert.Error(t, Compare("", hash))
}

func TestDisplayPrefix(t *testing.T) {
	assert.Equal(t, "ofg_abcdefgh", DisplayPrefix("ofg_abcdefghijklmnop"))
	assert.Equal(t, "ofg_abc", DisplayPrefix("ofg_abc"))
	assert.Equal(t, "invalid", DisplayPrefix("nounderscorehere"))
}
