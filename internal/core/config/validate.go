package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/hay-kot/criterio"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration
// including URL syntax and file accessibility. The configPath argument
// specifies the config file location to validate (empty string skips the
// config file check). Validate runs first for structural checks.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		c.validateFileAccess(configPath),
		c.validateScoring(),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Scoring.Backend == BackendGemini && c.Gemini.APIKey() == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Gemini",
			Item:     c.Gemini.APIKeyEnv,
			Message:  "api key environment variable is not set",
		})
	}

	seen := make(map[string]bool, len(c.Examples))
	for i, ex := range c.Examples {
		key := strings.ToLower(strings.TrimSpace(ex))
		if seen[key] {
			warnings = append(warnings, ValidationWarning{
				Category: "Examples",
				Item:     fmt.Sprintf("examples[%d]", i),
				Message:  "duplicate example",
			})
		}
		seen[key] = true
	}

	return warnings
}

// validateFileAccess checks the config file and data directory.
func (c *Config) validateFileAccess(configPath string) error {
	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
	)
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// validateScoring checks the scoring endpoints form valid URLs.
func (c *Config) validateScoring() error {
	if c.Scoring.Backend != BackendHTTP {
		return nil
	}

	var errs criterio.FieldErrorsBuilder
	if err := isHTTPURL(c.Scoring.BaseURL); err != nil {
		errs = errs.Append("scoring.base_url", err)
	}
	for field, p := range map[string]string{
		"scoring.analyze_path": c.Scoring.AnalyzePath,
		"scoring.verify_path":  c.Scoring.VerifyPath,
	} {
		if !strings.HasPrefix(p, "/") {
			errs = errs.Append(field, fmt.Errorf("must start with /: %q", p))
		}
	}
	return errs.ToError()
}

func isHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}
