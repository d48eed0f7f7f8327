package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/flowchain/pkg/chain/memory"
)

// readVars collects --vars-file and --var values. --var wins over the file.
func readVars(cmd *cobra.Command) (map[string]any, error) {
	vars := map[string]any{}

	if path, _ := cmd.Flags().GetString("vars-file"); path != "" {
		fromFile, err := readVarsFile(path)
		if err != nil {
			return nil, exitError(exitInputParse, "%v", err)
		}
		vars = fromFile
	}

	pairs, _ := cmd.Flags().GetStringArray("var")
	for _, pair := range pairs {
		key, value, err := parseVar(pair)
		if err != nil {
			return nil, exitError(exitInputParse, "%v", err)
		}
		vars[key] = value
	}
	return vars, nil
}

// parseVar splits key=value. The value is decoded as JSON when it parses,
// so numbers, booleans, lists, and objects keep their type; anything else is
// a plain string.
func parseVar(pair string) (string, any, error) {
	key, raw, ok := strings.Cut(pair, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", nil, fmt.Errorf("invalid --var %q: expected key=value", pair)
	}

	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return key, raw, nil
	}
	return key, memory.Normalize(v), nil
}

func readVarsFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path from command line
	if err != nil {
		return nil, fmt.Errorf("reading vars file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var v any
		if err := yaml.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parsing vars file: %w", err)
		}
		if data, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("parsing vars file: %w", err)
		}
	}

	vars, err := memory.DecodeMap(data)
	if err != nil {
		return nil, fmt.Errorf("parsing vars file: %w", err)
	}
	return vars, nil
}
