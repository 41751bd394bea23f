package options

import (
	"fmt"
	"strings"

	"github.com/silverlining-sec/nimbus/pkg/types"
)

func WithRequired(option types.Option, required bool) *types.Option {
	option.Required = required
	return &option
}

func WithDefaultValue(option types.Option, value string) *types.Option {
	option.Value = value
	return &option
}

func WithDescription(option types.Option, description string) *types.Option {
	option.Description = description
	return &option
}

func GetOptionByName(name string, options []*types.Option) *types.Option {
	for _, option := range options {
		if option.Name == name {
			return option
		}
	}
	return nil
}

// GetValue returns the option's value, or its default when unset. A missing
// option returns the empty string.
func GetValue(name string, options []*types.Option) string {
	opt := GetOptionByName(name, options)
	if opt == nil {
		return ""
	}
	if opt.Value == "" {
		return opt.Default
	}
	return opt.Value
}

func CreateDeepCopyOfOptions(original []*types.Option) []*types.Option {
	copiedOptions := make([]*types.Option, len(original))

	for i, option := range original {
		newOption := *option
		copiedOptions[i] = &newOption
	}

	return copiedOptions
}

// ValidateOptions ensures required options have values and constrained
// options hold an accepted value.
func ValidateOptions(opts []*types.Option) error {
	for _, opt := range opts {
		if opt.Required && opt.Value == "" && opt.Default == "" {
			return fmt.Errorf("option %q is required", opt.Name)
		}

		if opt.Value == "" || len(opt.ValueList) == 0 {
			continue
		}

		for _, value := range strings.Split(opt.Value, ",") {
			if !containsFold(opt.ValueList, strings.TrimSpace(value)) {
				return fmt.Errorf("option %q: %q is not one of (%s)",
					opt.Name, value, strings.Join(opt.ValueList, ", "))
			}
		}

		if opt.ValueFormat != nil && !opt.ValueFormat.MatchString(opt.Value) {
			return fmt.Errorf("option %q: %q does not match expected format", opt.Name, opt.Value)
		}
	}
	return nil
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
