package config

import (
	"fmt"
	"os"
	"strings"
)

// ReadSecret reads a secret from the standard Docker Secrets path, falling
// back to the given environment variable for local runs and tests.
func ReadSecret(secretName, envVar string) (string, error) {
	filePath := fmt.Sprintf("/run/secrets/%s", secretName)
	secretBytes, err := os.ReadFile(filePath)
	if err == nil {
		secret := strings.TrimSpace(string(secretBytes))
		if secret == "" {
			return "", fmt.Errorf("secret file %s is empty", filePath)
		}
		return secret, nil
	}

	if val := strings.TrimSpace(os.Getenv(envVar)); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("failed to read secret file %s and env var %s is not set: %w", filePath, envVar, err)
}
