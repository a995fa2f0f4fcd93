package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
	formatYAML  outputFormat = "yaml"
)

func (f *outputFormat) String() string {
	if f == nil {
		return ""
	}
	return string(*f)
}

func (f *outputFormat) Set(v string) error {
	switch v {
	case "table", "json", "yaml":
		*f = outputFormat(v)
		return nil
	default:
		return errors.New(`must be one of "table", "json" or "yaml"`)
	}
}

func (f *outputFormat) Type() string {
	return "format"
}

// printStructured writes v as JSON or YAML according to --format. It reports
// false for table output, leaving rendering to the caller.
func printStructured(v any) (bool, error) {
	var (
		out []byte
		err error
	)
	switch flagFormat {
	case formatJSON:
		out, err = json.MarshalIndent(v, "", "  ")
	case formatYAML:
		out, err = yaml.Marshal(v)
	default:
		return false, nil
	}
	if err != nil {
		return true, fmt.Errorf("encoding %s output: %w", flagFormat, err)
	}
	fmt.Println(string(out))
	return true, nil
}
