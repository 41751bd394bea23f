package types

import (
	"regexp"
)

// OptionType selects the pflag type a module option is surfaced as.
type OptionType string

const (
	String OptionType = "string"
	Bool   OptionType = "bool"
	Int    OptionType = "int"
)

// Option describes one module flag. Modules declare their options as package
// variables and wrap them with the pkg/options With* helpers; the command
// layer turns them into cobra flags and copies parsed values back into Value.
type Option struct {
	Name        string
	Short       string
	Description string
	Default     string
	Required    bool
	Type        OptionType
	Value       string

	// ValueFormat and ValueList constrain accepted values during validation.
	ValueFormat *regexp.Regexp
	ValueList   []string
}
