package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewResultWithFilename(t *testing.T) {
	result := NewResult("azure", "list-all", "hello", WithFilename("out.json"))

	assert.Equal(t, Platform("azure"), result.Platform)
	assert.Equal(t, "list-all", result.Module)
	assert.Equal(t, "out.json", result.Filename)
	assert.Equal(t, "hello", result.Data)
}

func TestResultString(t *testing.T) {
	plain := NewResult("azure", "m", "already a string")
	assert.Equal(t, "already a string", plain.String())

	structured := NewResult("azure", "m", map[string]int{"count": 3})
	assert.Contains(t, structured.String(), `"count": 3`)
}

func TestResultJsonOmitsFilename(t *testing.T) {
	result := NewResult("azure", "m", "data", WithFilename("secret-path.json"))
	assert.NotContains(t, string(result.Json()), "secret-path")
	assert.Contains(t, string(result.DataJson()), "data")
}

func TestMarkdownTableToString(t *testing.T) {
	table := MarkdownTable{
		TableHeading: "## Resources",
		Headers:      []string{"Name", "Type"},
		Rows: [][]string{
			{"web-01", "Microsoft.Compute/virtualMachines"},
			{"db", "Microsoft.Sql/servers"},
		},
	}

	rendered := table.ToString()
	lines := strings.Split(strings.TrimRight(rendered, "\n"), "\n")

	assert.Equal(t, "## Resources", lines[0])
	assert.Contains(t, lines[2], "| Name")
	assert.Contains(t, lines[3], "---")
	assert.Contains(t, rendered, "| web-01")

	// Every row is padded to the widest cell per column.
	assert.Equal(t, len(lines[2]), len(lines[3]))
	assert.Equal(t, len(lines[2]), len(lines[4]))
}

func TestMarkdownTableEmptyHeaders(t *testing.T) {
	table := MarkdownTable{TableHeading: "## Empty"}
	assert.Equal(t, "## Empty\n\n", table.ToString())
}
