package outputs

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/silverlining-sec/nimbus/internal/message"
	"github.com/silverlining-sec/nimbus/pkg/options"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

type MarkdownFileProvider struct {
	OutputPath string
}

func NewMarkdownFileProvider(opts []*types.Option) types.OutputProvider {
	return &MarkdownFileProvider{
		OutputPath: options.GetValue(options.OutputOpt.Name, opts),
	}
}

func (fp *MarkdownFileProvider) Write(result types.Result) error {
	// Result.Data needs to be of type MarkdownTable for this provider to work
	table, ok := result.Data.(types.MarkdownTable)
	if !ok {
		slog.Debug("Markdown provider is skipping non-table output", "type", fmt.Sprintf("%T", result.Data))
		return nil
	}

	filename := result.Filename
	if filename == "" {
		filename = DefaultFileName(result.Module, "md")
	}
	fullpath := GetFullPath(filename, fp.OutputPath)

	if err := ensureDir(fullpath); err != nil {
		return err
	}

	file, err := os.OpenFile(fullpath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer file.Close()

	if _, err := file.WriteString(table.ToString() + "\n"); err != nil {
		return err
	}

	message.Success("Markdown table written to %s", fullpath)
	return nil
}
