package executor

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvFileVar is the environment variable that overrides the workflow's
// env_file setting, mirroring the hosted-CI contract of naming an
// environment-definition file through a single variable.
const EnvFileVar = "RUNCI_ENV_FILE"

// LoadEnvFile reads an environment-definition file and returns its
// variables. Files with a .yaml or .yml extension are parsed as a YAML
// mapping of string to string; anything else is parsed as dotenv-style
// KEY=VALUE lines with #-comments and blank lines ignored.
func LoadEnvFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read env file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		vars := make(map[string]string)
		if err := yaml.Unmarshal(data, &vars); err != nil {
			return nil, fmt.Errorf("failed to parse env file %s: %w", path, err)
		}
		return vars, nil
	}

	vars := make(map[string]string)
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// Allow an optional "export " prefix so shell-style env files work
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		if !found {
			return nil, fmt.Errorf("invalid env file %s line %d: expected KEY=VALUE", path, i+1)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid env file %s line %d: empty key", path, i+1)
		}
		value = strings.TrimSpace(value)
		// Strip one level of matching quotes
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		vars[key] = value
	}

	return vars, nil
}

// MergeEnv layers variable maps over a base environment in KEY=VALUE form.
// Later overlays win over earlier ones, and every overlay wins over the
// base. The result is sorted for deterministic subprocess environments.
func MergeEnv(base []string, overlays ...map[string]string) []string {
	merged := make(map[string]string, len(base))
	for _, entry := range base {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			continue
		}
		merged[key] = value
	}

	for _, overlay := range overlays {
		for key, value := range overlay {
			merged[key] = value
		}
	}

	result := make([]string, 0, len(merged))
	for key, value := range merged {
		result = append(result, key+"="+value)
	}
	sort.Strings(result)
	return result
}
