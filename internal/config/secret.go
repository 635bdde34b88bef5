package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret returns the first non-empty trimmed value, preferring the
// environment variable named by envName over the inline literal. When
// required and neither resolves, it returns an error naming the env
// reference if one was given.
func ResolveSecret(envName, inline string, required bool) (string, error) {
	if name := strings.TrimSpace(envName); name != "" {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, nil
		}
	}
	if v := strings.TrimSpace(inline); v != "" {
		return v, nil
	}
	if !required {
		return "", nil
	}
	if name := strings.TrimSpace(envName); name != "" {
		return "", fmt.Errorf("secret required: env %s is empty and no literal value is set", name)
	}
	return "", fmt.Errorf("secret required: no value set")
}
