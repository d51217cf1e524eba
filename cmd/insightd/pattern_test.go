package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetadata(t *testing.T) {
	t.Run("no pairs yields nil", func(t *testing.T) {
		metadata, err := parseMetadata(nil)
		require.NoError(t, err)
		assert.Nil(t, metadata)
	})

	t.Run("parses key value pairs", func(t *testing.T) {
		metadata, err := parseMetadata([]string{"source=review", "owner=ops"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"source": "review", "owner": "ops"}, metadata)
	})

	t.Run("value may contain equals signs", func(t *testing.T) {
		metadata, err := parseMetadata([]string{"query=a=b"})
		require.NoError(t, err)
		assert.Equal(t, "a=b", metadata["query"])
	})

	t.Run("rejects a pair without a value", func(t *testing.T) {
		_, err := parseMetadata([]string{"nope"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "want key=value")
	})

	t.Run("rejects an empty key", func(t *testing.T) {
		_, err := parseMetadata([]string{"=value"})
		require.Error(t, err)
	})
}
