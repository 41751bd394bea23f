package rbacsuite

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testReport() *Report {
	results := []CaseResult{
		{ID: "AUTH-01", Category: "REQ-01", Description: "Create a custom role definition at resource group scope", Outcome: OutcomePass, Detail: "AuthorizationFailed"},
		{ID: "AUTH-05", Category: "REQ-02", Description: "Create a role assignment at resource group scope", Outcome: OutcomeFail, Detail: "operation succeeded but the role must deny it", Notes: "created object was removed"},
		{ID: "NET-01", Category: "REQ-08", Description: "Create a virtual network", Outcome: OutcomeError, Detail: "RESPONSE 429: TooManyRequests"},
		{ID: "NET-16", Category: "REQ-14", Description: "Create a storage account", Outcome: OutcomeSkipped, Detail: "disabled in suite file"},
	}
	return &Report{
		RunID:        "cafe0123",
		Subscription: "00000000-0000-0000-0000-000000000000",
		Location:     "eastus",
		RoleName:     "Nimbus Restricted Operator",
		StartedAt:    time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		FinishedAt:   time.Date(2026, 8, 30, 10, 12, 0, 0, time.UTC),
		Results:      results,
		Totals:       Count(results),
	}
}

func TestExportWritesAllFourFormats(t *testing.T) {
	s := New(DefaultSuiteConfig(), nil)
	dir := t.TempDir()

	written, err := s.export(testReport(), dir)
	require.NoError(t, err)
	require.Len(t, written, 4)

	for _, ext := range []string{".json", ".csv", ".html", ".txt"} {
		path := filepath.Join(dir, "rbac-validate-cafe0123"+ext)
		assert.Contains(t, written, path)
		info, err := os.Stat(path)
		require.NoError(t, err, "missing %s", path)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestExportJSONRoundTrips(t *testing.T) {
	s := New(DefaultSuiteConfig(), nil)
	dir := t.TempDir()
	report := testReport()

	_, err := s.export(report, dir)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "rbac-validate-cafe0123.json"))
	require.NoError(t, err)

	var decoded Report
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, report.RunID, decoded.RunID)
	assert.Equal(t, report.Totals, decoded.Totals)
	assert.Len(t, decoded.Results, len(report.Results))
	assert.Equal(t, len(decoded.Results),
		decoded.Totals.Pass+decoded.Totals.Fail+decoded.Totals.Error+decoded.Totals.Skipped)
}

func TestExportCSVHasHeaderAndRows(t *testing.T) {
	s := New(DefaultSuiteConfig(), nil)
	dir := t.TempDir()

	_, err := s.export(testReport(), dir)
	require.NoError(t, err)

	file, err := os.Open(filepath.Join(dir, "rbac-validate-cafe0123.csv"))
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, []string{"Case", "Category", "Description", "Outcome", "Detail", "Notes", "Duration"}, records[0])
	assert.Equal(t, "AUTH-01", records[1][0])
	assert.Equal(t, "PASS", records[1][3])
}

func TestExportHTMLContainsRollups(t *testing.T) {
	s := New(DefaultSuiteConfig(), nil)
	dir := t.TempDir()

	_, err := s.export(testReport(), dir)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "rbac-validate-cafe0123.html"))
	require.NoError(t, err)
	html := string(raw)

	assert.Contains(t, html, "cafe0123")
	assert.Contains(t, html, "REQ-01")
	assert.Contains(t, html, "Role definitions must not be writable")
	assert.Contains(t, html, `class="FAIL"`)
}

func TestRollupByCategoryIsSortedAndComplete(t *testing.T) {
	report := testReport()
	rollups := rollupByCategory(report, DefaultSuiteConfig().Categories)

	require.Len(t, rollups, 4)
	assert.Equal(t, "REQ-01", rollups[0].Category)
	assert.Equal(t, "REQ-14", rollups[3].Category)

	total := 0
	for _, rollup := range rollups {
		total += len(rollup.Results)
		assert.Equal(t, len(rollup.Results),
			rollup.Totals.Pass+rollup.Totals.Fail+rollup.Totals.Error+rollup.Totals.Skipped)
	}
	assert.Equal(t, len(report.Results), total)
}

func TestExportTextSummary(t *testing.T) {
	s := New(DefaultSuiteConfig(), nil)
	dir := t.TempDir()

	_, err := s.export(testReport(), dir)
	require.NoError(t, err)

	raw, err := os.ReadFile(filepath.Join(dir, "rbac-validate-cafe0123.txt"))
	require.NoError(t, err)
	text := string(raw)

	assert.Contains(t, text, "1 passed, 1 failed, 1 errored, 1 skipped")
	assert.Contains(t, text, "[PASS   ] AUTH-01")
	assert.Contains(t, text, "note: created object was removed")
}
