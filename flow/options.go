package flow

import (
	"fmt"
	"strconv"
	"time"

	"github.com/quarrylabs/quarry/core"
)

// OptionType identifies the value type of a flow option.
type OptionType string

const (
	OptionString   OptionType = "string"
	OptionInt      OptionType = "int"
	OptionBool     OptionType = "bool"
	OptionFloat    OptionType = "float"
	OptionDuration OptionType = "duration"
)

// OptionItem declares one configurable option of a component: its name,
// value type, default, and whether a value is mandatory.
type OptionItem struct {
	Name        string
	Type        OptionType
	Default     string
	Description string

	// Required options with no default must be supplied by the caller.
	Required bool

	// Explicit options are surfaced prominently in CLI flag listings.
	Explicit bool
}

// Options holds resolved option values for one flow invocation.
// Values are validated against their declared types at resolution time,
// so the typed getters cannot fail.
type Options struct {
	values   map[string]string
	declared map[string]OptionItem
}

// ResolveOptions merges caller-supplied values over the declared
// defaults. Unknown caller names and values that do not parse as the
// declared type are rejected with core.ErrConfigValue; a required option
// that ends up with no value fails with core.ErrMissingParameters.
func ResolveOptions(declared []OptionItem, caller map[string]string) (*Options, error) {
	declaredByName := make(map[string]OptionItem, len(declared))
	for _, item := range declared {
		// First declaration wins on duplicates across components.
		if _, seen := declaredByName[item.Name]; !seen {
			declaredByName[item.Name] = item
		}
	}

	for name := range caller {
		if _, ok := declaredByName[name]; !ok {
			return nil, fmt.Errorf("%w: unknown option %q", core.ErrConfigValue, name)
		}
	}

	values := make(map[string]string, len(declaredByName))
	for name, item := range declaredByName {
		value, fromCaller := caller[name]
		if !fromCaller {
			value = item.Default
		}

		if value == "" {
			if item.Required {
				return nil, fmt.Errorf("%w: option %q has no value", core.ErrMissingParameters, name)
			}
			continue
		}

		if err := checkOptionType(item.Type, value); err != nil {
			return nil, fmt.Errorf("%w: option %q: %v", core.ErrConfigValue, name, err)
		}
		values[name] = value
	}

	return &Options{values: values, declared: declaredByName}, nil
}

func checkOptionType(typ OptionType, value string) error {
	switch typ {
	case OptionInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("%q is not an integer", value)
		}
	case OptionBool:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("%q is not a boolean", value)
		}
	case OptionFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("%q is not a number", value)
		}
	case OptionDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%q is not a duration", value)
		}
	}
	return nil
}

// Has reports whether the option has a resolved value.
func (o *Options) Has(name string) bool {
	_, ok := o.values[name]
	return ok
}

// String returns the resolved value of a string option, or "" when unset.
func (o *Options) String(name string) string {
	return o.values[name]
}

// Int returns the resolved value of an int option, or 0 when unset.
func (o *Options) Int(name string) int {
	n, _ := strconv.Atoi(o.values[name])
	return n
}

// Bool returns the resolved value of a bool option, or false when unset.
func (o *Options) Bool(name string) bool {
	b, _ := strconv.ParseBool(o.values[name])
	return b
}

// Float returns the resolved value of a float option, or 0 when unset.
func (o *Options) Float(name string) float64 {
	f, _ := strconv.ParseFloat(o.values[name], 64)
	return f
}

// Duration returns the resolved value of a duration option, or 0 when
// unset.
func (o *Options) Duration(name string) time.Duration {
	d, _ := time.ParseDuration(o.values[name])
	return d
}
