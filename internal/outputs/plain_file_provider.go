package outputs

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/silverlining-sec/nimbus/internal/message"
	"github.com/silverlining-sec/nimbus/pkg/options"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

type PlainFileProvider struct {
	OutputPath string
}

func NewPlainFileProvider(opts []*types.Option) types.OutputProvider {
	return &PlainFileProvider{
		OutputPath: options.GetValue(options.OutputOpt.Name, opts),
	}
}

func (fp *PlainFileProvider) Write(result types.Result) error {
	if _, ok := result.Data.(string); !ok {
		slog.Debug("Plain provider is skipping structured output", "type", fmt.Sprintf("%T", result.Data))
		return nil
	}

	filename := result.Filename
	if filename == "" {
		filename = DefaultFileName(result.Module, "txt")
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

	if _, err := file.WriteString(result.String()); err != nil {
		return err
	}

	message.Success("Output written to %s", fullpath)
	return nil
}
