package main

import (
	"encoding/json"
	"fmt"

	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// printOutput writes v as indented JSON, or the results of the --jq filter
// one per line.
func printOutput(c *cli.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	filter := c.String("jq")
	if filter == "" {
		var pretty any
		if err := json.Unmarshal(data, &pretty); err != nil {
			return fmt.Errorf("failed to decode output: %w", err)
		}
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Fprintln(c.App.Writer, string(out))
		return nil
	}

	code, err := compileJQ(filter)
	if err != nil {
		return err
	}

	// gojq only accepts values produced by encoding/json.
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return fmt.Errorf("failed to decode output: %w", err)
	}

	iter := code.Run(input)
	for {
		result, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := result.(error); ok {
			return fmt.Errorf("jq filter failed: %w", err)
		}
		if s, ok := result.(string); ok {
			fmt.Fprintln(c.App.Writer, s)
			continue
		}
		out, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal jq result: %w", err)
		}
		fmt.Fprintln(c.App.Writer, string(out))
	}
	return nil
}

func compileJQ(filter string) (*gojq.Code, error) {
	query, err := gojq.Parse(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", filter, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", filter, err)
	}
	return code, nil
}
