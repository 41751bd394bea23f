package outputs

import (
	"fmt"

	"github.com/silverlining-sec/nimbus/pkg/types"
)

type ConsoleProvider struct{}

func NewConsoleProvider(options []*types.Option) types.OutputProvider {
	return &ConsoleProvider{}
}

// Write writes the `data` field of the result to the console.
func (cp *ConsoleProvider) Write(result types.Result) error {
	fmt.Println(result.String())
	return nil
}
