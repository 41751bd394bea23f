package outputs

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	o "github.com/silverlining-sec/nimbus/pkg/options"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

func outputOpts(dir string) []*types.Option {
	return []*types.Option{o.WithDefaultValue(o.OutputOpt, dir)}
}

func TestJsonFileProviderWritesData(t *testing.T) {
	dir := t.TempDir()
	provider := NewJsonFileProvider(outputOpts(dir))

	result := types.NewResult("azure", "list-all",
		map[string]string{"name": "web-01"},
		types.WithFilename("resources.json"))
	require.NoError(t, provider.Write(result))

	raw, err := os.ReadFile(filepath.Join(dir, "resources.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"name": "web-01"`)
}

func TestJsonFileProviderAppliesJqFilter(t *testing.T) {
	dir := t.TempDir()
	opts := append(outputOpts(dir), o.WithDefaultValue(o.JqOpt, ".resources[].name"))
	provider := NewJsonFileProvider(opts)

	data := map[string]interface{}{
		"resources": []map[string]string{{"name": "web-01"}, {"name": "web-02"}},
	}
	result := types.NewResult("azure", "list-all", data, types.WithFilename("filtered.json"))
	require.NoError(t, provider.Write(result))

	raw, err := os.ReadFile(filepath.Join(dir, "filtered.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `["web-01", "web-02"]`, string(raw))
}

func TestJsonFileProviderRejectsBadJqFilter(t *testing.T) {
	dir := t.TempDir()
	opts := append(outputOpts(dir), o.WithDefaultValue(o.JqOpt, ".[broken"))
	provider := NewJsonFileProvider(opts)

	result := types.NewResult("azure", "list-all", map[string]string{"name": "web-01"},
		types.WithFilename("broken.json"))
	require.Error(t, provider.Write(result))
}

func TestJsonFileProviderSkipsTableAndString(t *testing.T) {
	dir := t.TempDir()
	provider := NewJsonFileProvider(outputOpts(dir))

	require.NoError(t, provider.Write(types.NewResult("azure", "m", types.MarkdownTable{})))
	require.NoError(t, provider.Write(types.NewResult("azure", "m", "plain text")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCsvFileProviderWritesDocument(t *testing.T) {
	dir := t.TempDir()
	provider := NewCsvFileProvider(outputOpts(dir))

	doc := types.CSVDocument{
		Headers: []string{"Name", "Status"},
		Rows:    [][]string{{"web-01", "Migrated"}},
	}
	require.NoError(t, provider.Write(types.NewResult("azure", "migrate", doc, types.WithFilename("items.csv"))))

	file, err := os.Open(filepath.Join(dir, "items.csv"))
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Name", "Status"}, records[0])
	assert.Equal(t, []string{"web-01", "Migrated"}, records[1])
}

func TestCsvFileProviderSkipsOtherData(t *testing.T) {
	dir := t.TempDir()
	provider := NewCsvFileProvider(outputOpts(dir))

	require.NoError(t, provider.Write(types.NewResult("azure", "m", []string{"not", "a", "doc"})))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMarkdownFileProviderWritesTable(t *testing.T) {
	dir := t.TempDir()
	provider := NewMarkdownFileProvider(outputOpts(dir))

	table := types.MarkdownTable{
		Headers: []string{"Name"},
		Rows:    [][]string{{"web-01"}},
	}
	require.NoError(t, provider.Write(types.NewResult("azure", "summary", table, types.WithFilename("summary.md"))))

	raw, err := os.ReadFile(filepath.Join(dir, "summary.md"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "| web-01")
}

func TestDefaultFileName(t *testing.T) {
	name := DefaultFileName("list-all", "json")
	assert.Regexp(t, `^list-all-\d+-[0-9a-f]{10}\.json$`, name)
}
