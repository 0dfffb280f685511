package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a YAML settings file, resolves secrets, and applies
// defaults. It does not call Validate; callers decide when fatal errors
// should halt startup.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := ResolveSecrets(&s); err != nil {
		return nil, fmt.Errorf("config: resolve secrets: %w", err)
	}
	s.ApplyDefaults()
	return &s, nil
}

// secretFields lists the string struct fields eligible for secret
// indirection, identified by dotted path from Settings.
var secretFields = []func(*Settings) *string{
	func(s *Settings) *string { return &s.Connection.Password },
	func(s *Settings) *string { return &s.Shell.Password },
	func(s *Settings) *string { return &s.Delivery.Email.Password },
	func(s *Settings) *string { return &s.Integrations.Cloudflare.Token },
}

// ResolveSecrets applies the secret-indirection forms, in order of
// precedence: a value already present in YAML wins; a
// "<FIELD>_FILE" environment variable points at a mounted file; a
// "<FIELD>" environment variable supplies the value directly; finally, if
// UNIFI_REPORTER_SECRETS_DIR is set, a file named after the variable inside
// that directory is read. Field names are derived from the function's
// position in secretFields paired with the matching entry of envNames
// below, since Go has no native dotted-field-by-string
// accessor without reflection, and reflection here would buy nothing
// secretFields doesn't already express directly.
func ResolveSecrets(s *Settings) error {
	envNames := []string{
		"UNIFI_REPORTER_CONTROLLER_PASSWORD",
		"UNIFI_REPORTER_SHELL_PASSWORD",
		"UNIFI_REPORTER_SMTP_PASSWORD",
		"UNIFI_REPORTER_CLOUDFLARE_TOKEN",
	}
	if len(envNames) != len(secretFields) {
		return fmt.Errorf("config: secretFields/envNames length mismatch")
	}

	for i, accessor := range secretFields {
		field := accessor(s)
		if *field != "" {
			continue
		}
		envName := envNames[i]
		if filePath := os.Getenv(envName + "_FILE"); filePath != "" {
			value, err := readSecretFile(filePath)
			if err != nil {
				return fmt.Errorf("config: %s_FILE: %w", envName, err)
			}
			*field = value
			continue
		}
		if value := os.Getenv(envName); value != "" {
			*field = value
			continue
		}
		if dir := os.Getenv("UNIFI_REPORTER_SECRETS_DIR"); dir != "" {
			value, err := readMountedSecret(dir, envName)
			if err == nil {
				*field = value
			}
		}
	}
	return nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// readMountedSecret looks for a file named after the lowercased, dash-cased
// env var inside a mounted secret directory, matching the Kubernetes
// Secret-as-volume convention.
func readMountedSecret(dir, envName string) (string, error) {
	name := strings.ToLower(strings.ReplaceAll(envName, "_", "-"))
	return readSecretFile(filepath.Join(dir, name))
}
