// Package config loads process configuration: the data root, database path,
// and the address-validator API key. Secret precedence: environment
// variable first, then an adjacent "env" file, then a built-in default.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultUpstreamURL         = "https://licensinginfo.lcb.wa.gov/EntireStateWeb.asp"
	DefaultAddressValidatorURL = "https://api.smarty.com/verify/standardize"
	addressValidatorVar        = "ADDRESS_VALIDATOR_API_KEY"
	dataDirVar                 = "DATA_DIR"
	envFileName                = "env"

	DefaultScrapeTimeout     = 120 * time.Second
	DefaultValidatorTimeout  = 5 * time.Second
	DefaultValidatorInterval = 50 * time.Millisecond
	DefaultBatchSize         = 200

	overridesFileName = "config.yaml"
)

// overrides is the optional config.yaml shape a deployment can drop into its
// data directory to adjust defaults without environment variables.
type overrides struct {
	UpstreamURL         string `yaml:"upstream_url"`
	AddressValidatorURL string `yaml:"address_validator_url"`
	BatchSize           int    `yaml:"batch_size"`
	ScrapeTimeoutSec    int    `yaml:"scrape_timeout_seconds"`
}

// Config holds the settings the core pipeline and its collaborators need.
type Config struct {
	DataDir                 string
	DatabasePath            string
	UpstreamURL             string
	ScrapeTimeout           time.Duration
	ValidatorTimeout        time.Duration
	ValidatorThrottle       time.Duration
	BatchSize               int
	AddressValidatorAPIKey  string
	AddressValidatorURL     string
}

// Load builds a Config from environment and defaults. dataDir, if empty,
// defaults to DATA_DIR or "./data".
func Load(dataDir string) (*Config, error) {
	if dataDir == "" {
		dataDir = os.Getenv(dataDirVar)
	}
	if dataDir == "" {
		dataDir = "./data"
	}
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}

	key, err := AddressValidatorAPIKey(abs)
	if err != nil {
		return nil, err
	}

	c := &Config{
		DataDir:                abs,
		DatabasePath:           filepath.Join(abs, "registry.db"),
		UpstreamURL:            DefaultUpstreamURL,
		ScrapeTimeout:          DefaultScrapeTimeout,
		ValidatorTimeout:       DefaultValidatorTimeout,
		ValidatorThrottle:      DefaultValidatorInterval,
		BatchSize:              DefaultBatchSize,
		AddressValidatorAPIKey: key,
		AddressValidatorURL:    DefaultAddressValidatorURL,
	}

	if err := applyOverrides(c, filepath.Join(abs, overridesFileName)); err != nil {
		return nil, err
	}
	return c, nil
}

// applyOverrides merges an optional config.yaml in dataDir on top of c's
// defaults. A missing file is not an error.
func applyOverrides(c *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	var o overrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if o.UpstreamURL != "" {
		c.UpstreamURL = o.UpstreamURL
	}
	if o.AddressValidatorURL != "" {
		c.AddressValidatorURL = o.AddressValidatorURL
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.ScrapeTimeoutSec > 0 {
		c.ScrapeTimeout = time.Duration(o.ScrapeTimeoutSec) * time.Second
	}
	return nil
}

var (
	apiKeyOnce   sync.Once
	apiKeyCached string
)

// AddressValidatorAPIKey resolves the validator's opaque API key: environment
// variable, then the adjacent env file under dataDir, cached in-process after
// first load.
func AddressValidatorAPIKey(dataDir string) (string, error) {
	var loadErr error
	apiKeyOnce.Do(func() {
		if v := os.Getenv(addressValidatorVar); v != "" {
			apiKeyCached = v
			return
		}
		v, err := readEnvFile(filepath.Join(dataDir, envFileName), addressValidatorVar)
		if err != nil && !os.IsNotExist(err) {
			loadErr = err
			return
		}
		apiKeyCached = v
	})
	return apiKeyCached, loadErr
}

// ResetAPIKeyCache clears the cached key; for tests only.
func ResetAPIKeyCache() {
	apiKeyOnce = sync.Once{}
	apiKeyCached = ""
}

func readEnvFile(path, key string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		if strings.TrimSpace(parts[0]) == key {
			return strings.TrimSpace(parts[1]), nil
		}
	}
	return "", scanner.Err()
}
