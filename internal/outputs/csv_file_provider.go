package outputs

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"

	"github.com/silverlining-sec/nimbus/internal/message"
	"github.com/silverlining-sec/nimbus/pkg/options"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

type CsvFileProvider struct {
	OutputPath string
}

func NewCsvFileProvider(opts []*types.Option) types.OutputProvider {
	return &CsvFileProvider{
		OutputPath: options.GetValue(options.OutputOpt.Name, opts),
	}
}

func (fp *CsvFileProvider) Write(result types.Result) error {
	doc, ok := result.Data.(types.CSVDocument)
	if !ok {
		slog.Debug("CSV provider is skipping non-CSV output", "type", fmt.Sprintf("%T", result.Data))
		return nil
	}

	filename := result.Filename
	if filename == "" {
		filename = DefaultFileName(result.Module, "csv")
	}
	fullpath := GetFullPath(filename, fp.OutputPath)

	if err := ensureDir(fullpath); err != nil {
		return err
	}

	file, err := os.Create(fullpath)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if len(doc.Headers) > 0 {
		if err := w.Write(doc.Headers); err != nil {
			return err
		}
	}
	for _, row := range doc.Rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	message.Success("Output written to %s", fullpath)
	return nil
}
