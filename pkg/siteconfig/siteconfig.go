// Package siteconfig loads site.Config from a YAML file, a .env file, SITE_*
// environment variables, and explicit overrides, in that order of precedence.
//
// Loading only decodes. Domain rules are enforced by site.Compose.
package siteconfig

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/theory-cloud/sitetheory/pkg/site"
)

// EnvPrefix is the prefix for environment overrides, e.g. SITE_DOMAIN_NAME.
const EnvPrefix = "SITE"

const (
	DefaultConfigFile = "site.yaml"
	DefaultEnvFile    = ".env"

	envCDKDefaultAccount = "CDK_DEFAULT_ACCOUNT"
	envCDKDefaultRegion  = "CDK_DEFAULT_REGION"
)

// LoadOptions controls which sources Load reads.
//
// A path that is explicitly set must exist. The default paths are skipped
// silently when missing.
type LoadOptions struct {
	ConfigFile string
	EnvFile    string

	// SkipEnv disables the .env file and SITE_* variables.
	SkipEnv bool

	Overrides Overrides
}

// Overrides are the highest-precedence values, normally CLI flags. Nil fields
// are left alone.
type Overrides struct {
	DomainName        *string
	CertificateARN    *string
	StackName         *string
	Stage             *string
	HostedZoneName    *string
	HostedZoneID      *string
	RemovalPolicy     *string
	AutoDeleteObjects *bool
	DefaultRootObject *string
	Account           *string
	Region            *string
	Tags              map[string]string
}

// envSpec fields are read as SITE_<FIELD_IN_SNAKE_CASE>. No envconfig tags:
// a tagged field also matches its unprefixed name.
type envSpec struct {
	DomainName        *string           `split_words:"true"`
	CertificateARN    *string           `split_words:"true"`
	StackName         *string           `split_words:"true"`
	Stage             *string           `split_words:"true"`
	HostedZoneName    *string           `split_words:"true"`
	HostedZoneID      *string           `split_words:"true"`
	RemovalPolicy     *string           `split_words:"true"`
	AutoDeleteObjects *bool             `split_words:"true"`
	DefaultRootObject *string           `split_words:"true"`
	Account           *string           `split_words:"true"`
	Region            *string           `split_words:"true"`
	Tags              map[string]string `split_words:"true"`
}

// Load merges every configured source into a site.Config.
func Load(opts LoadOptions) (site.Config, error) {
	var cfg site.Config

	if err := loadFile(&cfg, opts.ConfigFile); err != nil {
		return site.Config{}, err
	}

	if !opts.SkipEnv {
		if err := loadEnvFile(opts.EnvFile); err != nil {
			return site.Config{}, err
		}
		if err := applyEnv(&cfg); err != nil {
			return site.Config{}, err
		}
	}

	opts.Overrides.apply(&cfg)

	if cfg.Account == "" {
		cfg.Account = os.Getenv(envCDKDefaultAccount)
	}
	if cfg.Region == "" {
		cfg.Region = os.Getenv(envCDKDefaultRegion)
	}
	return cfg, nil
}

// Decode strictly decodes a YAML document. Unknown keys are errors.
func Decode(r io.Reader) (site.Config, error) {
	var cfg site.Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return site.Config{}, nil
		}
		return site.Config{}, fmt.Errorf("siteconfig: decode: %w", err)
	}
	return cfg, nil
}

func loadFile(cfg *site.Config, path string) error {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("siteconfig: read %s: %w", path, err)
	}

	decoded, err := Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w (%s)", err, path)
	}
	*cfg = decoded
	return nil
}

// loadEnvFile exports the .env file into the process environment. Variables
// that are already set win.
func loadEnvFile(path string) error {
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultEnvFile
	}
	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("siteconfig: env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("siteconfig: env file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *site.Config) error {
	var vars envSpec
	if err := envconfig.Process(EnvPrefix, &vars); err != nil {
		return fmt.Errorf("siteconfig: environment: %w", err)
	}
	Overrides(vars).apply(cfg)
	return nil
}

func (o Overrides) apply(cfg *site.Config) {
	setString(&cfg.DomainName, o.DomainName)
	setString(&cfg.CertificateARN, o.CertificateARN)
	setString(&cfg.StackName, o.StackName)
	setString(&cfg.Stage, o.Stage)
	setString(&cfg.HostedZoneName, o.HostedZoneName)
	setString(&cfg.HostedZoneID, o.HostedZoneID)
	if o.RemovalPolicy != nil {
		cfg.RemovalPolicy = site.RemovalPolicy(strings.ToLower(strings.TrimSpace(*o.RemovalPolicy)))
	}
	if o.AutoDeleteObjects != nil {
		cfg.AutoDeleteObjects = *o.AutoDeleteObjects
	}
	setString(&cfg.DefaultRootObject, o.DefaultRootObject)
	setString(&cfg.Account, o.Account)
	setString(&cfg.Region, o.Region)

	if len(o.Tags) > 0 {
		merged := make(map[string]string, len(cfg.Tags)+len(o.Tags))
		for k, v := range cfg.Tags {
			merged[k] = v
		}
		for k, v := range o.Tags {
			merged[k] = v
		}
		cfg.Tags = merged
	}
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}
