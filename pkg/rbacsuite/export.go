package rbacsuite

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// export writes the four report formats. All of them are always written; the
// first failure aborts the rest since they share one output directory.
func (s *Suite) export(report *Report, outputDir string) ([]string, error) {
	if outputDir == "" {
		outputDir = "."
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	base := filepath.Join(outputDir, "rbac-validate-"+report.RunID)
	writers := []struct {
		path string
		fn   func(*Report, string) error
	}{
		{base + ".json", writeJSONReport},
		{base + ".csv", writeCSVReport},
		{base + ".html", s.writeHTMLReport},
		{base + ".txt", writeTextReport},
	}

	var written []string
	for _, w := range writers {
		if err := w.fn(report, w.path); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", w.path, err)
		}
		written = append(written, w.path)
	}
	return written, nil
}

func writeJSONReport(report *Report, path string) error {
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func writeCSVReport(report *Report, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Case", "Category", "Description", "Outcome", "Detail", "Notes", "Duration"}); err != nil {
		return err
	}
	for _, result := range report.Results {
		record := []string{
			result.ID,
			result.Category,
			result.Description,
			string(result.Outcome),
			result.Detail,
			result.Notes,
			result.Duration.Round(time.Millisecond).String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeTextReport(report *Report, path string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "RBAC validation run %s\n", report.RunID)
	fmt.Fprintf(&b, "Role:         %s\n", report.RoleName)
	fmt.Fprintf(&b, "Subscription: %s\n", report.Subscription)
	fmt.Fprintf(&b, "Location:     %s\n", report.Location)
	fmt.Fprintf(&b, "Started:      %s\n", report.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Finished:     %s\n\n", report.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Totals: %d passed, %d failed, %d errored, %d skipped\n\n",
		report.Totals.Pass, report.Totals.Fail, report.Totals.Error, report.Totals.Skipped)

	for _, result := range report.Results {
		fmt.Fprintf(&b, "[%-7s] %s %s\n", result.Outcome, result.ID, result.Description)
		if result.Outcome == OutcomeFail || result.Outcome == OutcomeError {
			fmt.Fprintf(&b, "          %s\n", result.Detail)
		}
		if result.Notes != "" {
			fmt.Fprintf(&b, "          note: %s\n", result.Notes)
		}
	}

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

type categoryRollup struct {
	Category    string
	Description string
	Totals      Totals
	Results     []CaseResult
}

func rollupByCategory(report *Report, descriptions map[string]string) []categoryRollup {
	byCategory := make(map[string][]CaseResult)
	for _, result := range report.Results {
		byCategory[result.Category] = append(byCategory[result.Category], result)
	}

	categories := make([]string, 0, len(byCategory))
	for category := range byCategory {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	rollups := make([]categoryRollup, 0, len(categories))
	for _, category := range categories {
		rollups = append(rollups, categoryRollup{
			Category:    category,
			Description: descriptions[category],
			Totals:      Count(byCategory[category]),
			Results:     byCategory[category],
		})
	}
	return rollups
}

var htmlReportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>RBAC validation {{.Report.RunID}}</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; color: #1f2430; }
h1 { font-size: 1.4rem; }
h2 { font-size: 1.1rem; margin-top: 2rem; border-bottom: 1px solid #d8dde6; padding-bottom: .3rem; }
table { border-collapse: collapse; width: 100%; margin-top: .5rem; }
th, td { text-align: left; padding: .35rem .6rem; border-bottom: 1px solid #e6e9ef; font-size: .85rem; }
.meta td { border: none; padding: .1rem .6rem .1rem 0; }
.PASS { color: #1a7f37; font-weight: 600; }
.FAIL { color: #cf222e; font-weight: 600; }
.ERROR { color: #9a6700; font-weight: 600; }
.SKIPPED { color: #57606a; }
.totals span { margin-right: 1.2rem; }
</style>
</head>
<body>
<h1>RBAC validation report</h1>
<table class="meta">
<tr><td>Run</td><td>{{.Report.RunID}}</td></tr>
<tr><td>Role</td><td>{{.Report.RoleName}}</td></tr>
<tr><td>Subscription</td><td>{{.Report.Subscription}}</td></tr>
<tr><td>Location</td><td>{{.Report.Location}}</td></tr>
<tr><td>Started</td><td>{{.Report.StartedAt.Format "2006-01-02 15:04:05 MST"}}</td></tr>
<tr><td>Finished</td><td>{{.Report.FinishedAt.Format "2006-01-02 15:04:05 MST"}}</td></tr>
</table>
<p class="totals">
<span class="PASS">{{.Report.Totals.Pass}} passed</span>
<span class="FAIL">{{.Report.Totals.Fail}} failed</span>
<span class="ERROR">{{.Report.Totals.Error}} errored</span>
<span class="SKIPPED">{{.Report.Totals.Skipped}} skipped</span>
</p>
{{range .Rollups}}
<h2>{{.Category}}{{if .Description}} &mdash; {{.Description}}{{end}}</h2>
<p class="totals">
<span class="PASS">{{.Totals.Pass}} passed</span>
<span class="FAIL">{{.Totals.Fail}} failed</span>
<span class="ERROR">{{.Totals.Error}} errored</span>
<span class="SKIPPED">{{.Totals.Skipped}} skipped</span>
</p>
<table>
<tr><th>Case</th><th>Description</th><th>Outcome</th><th>Detail</th></tr>
{{range .Results}}
<tr>
<td>{{.ID}}</td>
<td>{{.Description}}{{if .Notes}}<br><em>{{.Notes}}</em>{{end}}</td>
<td class="{{.Outcome}}">{{.Outcome}}</td>
<td>{{.Detail}}</td>
</tr>
{{end}}
</table>
{{end}}
</body>
</html>
`))

func (s *Suite) writeHTMLReport(report *Report, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	data := struct {
		Report  *Report
		Rollups []categoryRollup
	}{
		Report:  report,
		Rollups: rollupByCategory(report, s.config.Categories),
	}
	return htmlReportTemplate.Execute(file, data)
}
