package rbacsuite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogShape(t *testing.T) {
	catalog := Catalog()
	require.GreaterOrEqual(t, len(catalog), 33)

	seen := make(map[string]bool)
	categories := DefaultSuiteConfig().Categories

	for _, testCase := range catalog {
		assert.NotEmpty(t, testCase.ID)
		assert.NotEmpty(t, testCase.Description)
		assert.NotNil(t, testCase.Attempt, "case %s has no attempt", testCase.ID)
		assert.False(t, seen[testCase.ID], "case ID %s is duplicated", testCase.ID)
		seen[testCase.ID] = true

		_, known := categories[testCase.Category]
		assert.True(t, known, "case %s uses unknown category %s", testCase.ID, testCase.Category)
	}
}

func TestCatalogCoversEveryCategory(t *testing.T) {
	covered := make(map[string]bool)
	for _, testCase := range Catalog() {
		covered[testCase.Category] = true
	}

	for category := range DefaultSuiteConfig().Categories {
		assert.True(t, covered[category], "no case covers %s", category)
	}
}

func TestDeterministicUUIDIsStablePerLabel(t *testing.T) {
	run := testRunContext()

	assert.Equal(t, deterministicUUID(run, "auth-01"), deterministicUUID(run, "auth-01"))
	assert.NotEqual(t, deterministicUUID(run, "auth-01"), deterministicUUID(run, "auth-02"))

	other := testRunContext()
	other.RunID = "deadbeef"
	assert.NotEqual(t, deterministicUUID(run, "auth-01"), deterministicUUID(other, "auth-01"))
}

func TestProbeNamesCarryTheRunID(t *testing.T) {
	run := testRunContext()

	assert.Equal(t, "nimbusrbac-cafe0123-probe-vnet", run.probeName("vnet"))
	assert.LessOrEqual(t, len(probeStorageName(run)), 24)
}
