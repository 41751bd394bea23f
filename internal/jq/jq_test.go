package jq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter(t *testing.T) {
	data := map[string]interface{}{
		"subscription": "sub-1",
		"resources": []map[string]interface{}{
			{"name": "vm-a", "type": "Microsoft.Compute/virtualMachines"},
			{"name": "sa-b", "type": "Microsoft.Storage/storageAccounts"},
		},
	}

	t.Run("single value comes back bare", func(t *testing.T) {
		got, err := Filter(data, ".subscription")
		require.NoError(t, err)
		assert.Equal(t, "sub-1", got)
	})

	t.Run("multiple values come back as a slice", func(t *testing.T) {
		got, err := Filter(data, ".resources[].name")
		require.NoError(t, err)
		assert.Equal(t, []interface{}{"vm-a", "sa-b"}, got)
	})

	t.Run("missing key yields nil", func(t *testing.T) {
		got, err := Filter(data, ".nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("bad expression errors", func(t *testing.T) {
		_, err := Filter(data, ".[unbalanced")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parsing jq expression")
	})
}

func TestFilterNormalizesTypedValues(t *testing.T) {
	type row struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	got, err := Filter([]row{{Name: "vm", Count: 3}, {Name: "disk", Count: 1}}, "map(.count) | add")
	require.NoError(t, err)
	assert.EqualValues(t, 4, got)
}
