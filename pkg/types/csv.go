package types

// CSVDocument is the shape results must carry for the CSV file provider.
type CSVDocument struct {
	Headers []string
	Rows    [][]string
}
