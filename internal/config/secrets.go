package config

import (
	"encoding/json"
	"os"
)

// Secret looks up a named secret, preferring the environment over the
// secrets file next to the config. Returns "" when the secret is not set.
func Secret(secretsPath, name string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}

	data, err := os.ReadFile(secretsPath)
	if err != nil {
		return ""
	}

	var secrets map[string]string
	if err := json.Unmarshal(data, &secrets); err != nil {
		return ""
	}
	return secrets[name]
}
