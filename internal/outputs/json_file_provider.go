package outputs

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/silverlining-sec/nimbus/internal/jq"
	"github.com/silverlining-sec/nimbus/internal/message"
	"github.com/silverlining-sec/nimbus/pkg/options"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

type JsonFileProvider struct {
	OutputPath string
	JqFilter   string
}

func NewJsonFileProvider(opts []*types.Option) types.OutputProvider {
	return &JsonFileProvider{
		OutputPath: options.GetValue(options.OutputOpt.Name, opts),
		JqFilter:   options.GetValue(options.JqOpt.Name, opts),
	}
}

func (fp *JsonFileProvider) Write(result types.Result) error {
	switch result.Data.(type) {
	case types.MarkdownTable, types.CSVDocument, string:
		slog.Debug("JSON provider is skipping non-JSON output")
		return nil
	}

	data := result.Data
	if fp.JqFilter != "" {
		filtered, err := jq.Filter(data, fp.JqFilter)
		if err != nil {
			return err
		}
		data = filtered
	}

	filename := result.Filename
	if filename == "" {
		filename = DefaultFileName(result.Module, "json")
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

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return err
	}

	message.Success("Output written to %s", fullpath)
	return nil
}
