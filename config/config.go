// Package config loads the foremast tool configuration: where Spinnaker
// Gate lives, how to authenticate to it and where shared templates and
// source control are found.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/foremast/foremast/util"
)

const (
	// TemplatesSchemeIdentifier prefixes pipeline files that live in the
	// shared templates directory instead of the application repository.
	TemplatesSchemeIdentifier = "templates://"

	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "FOREMAST"
)

var configLog = util.NewContextLogger("config")

// Config holds the foremast tool settings.
type Config struct {
	GateURL          string        `mapstructure:"gate_api_url"`
	GateCABundle     string        `mapstructure:"gate_ca_bundle"`
	GateClientCert   string        `mapstructure:"gate_client_cert"`
	GateClientKey    string        `mapstructure:"gate_client_key"`
	TemplatesPath    string        `mapstructure:"templates_path"`
	GitURL           string        `mapstructure:"git_url"`
	GitToken         string        `mapstructure:"git_token"`
	GitRef           string        `mapstructure:"git_ref"`
	SlackWebhook     string        `mapstructure:"slack_webhook"`
	Envs             []string      `mapstructure:"envs"`
	EmailDomain      string        `mapstructure:"email_domain"`
	TaskTimeout      time.Duration `mapstructure:"task_timeout"`
	TaskPollInterval time.Duration `mapstructure:"task_poll_interval"`
}

// envKeys have no default, AutomaticEnv only applies to keys viper already
// knows about.
var envKeys = []string{"gate_api_url", "gate_ca_bundle", "gate_client_cert", "gate_client_key", "git_url", "git_token", "slack_webhook"}

func bindEnv(v *viper.Viper, keys ...string) error {
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return errors.Wrapf(err, "binding %s to the environment", key)
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("templates_path", "/etc/foremast/templates")
	v.SetDefault("git_ref", "master")
	v.SetDefault("envs", []string{"stage", "prod"})
	v.SetDefault("task_timeout", "120s")
	v.SetDefault("task_poll_interval", "2s")
	v.SetDefault("email_domain", "example.com")
}

// Load reads the configuration. An explicit file must exist; otherwise
// the standard locations are searched and a missing file is not an error
// as long as the environment supplies the required keys.
func Load(file string) (*Config, error) {
	log := configLog.InFunc("Load")

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnv(v, envKeys...); err != nil {
		log.WithError(err).Errorln("Unable to bind environment")
		return nil, err
	}

	if file != "" {
		if _, err := os.Stat(file); err != nil {
			log.WithError(err).Errorln("Unable to read config file")
			return nil, errors.Wrapf(err, "reading config %s", file)
		}
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("foremast")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".foremast"))
		}
		v.AddConfigPath("/etc/foremast")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || file != "" {
			log.WithError(err).Errorln("Unable to parse config file")
			return nil, errors.Wrap(err, "parsing config")
		}
		log.Debug("no config file found, using environment only")
	} else {
		log.Debugf("using config file %s", v.ConfigFileUsed())
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		log.WithError(err).Errorln("Unable to read config file")
		return nil, errors.Wrap(err, "decoding config")
	}

	if err := config.Validate(); err != nil {
		log.WithError(err).Errorln("Invalid config")
		return nil, err
	}

	return config, nil
}

// Validate reports every missing required setting at once.
func (c *Config) Validate() error {
	missing := []string{}
	if len(c.GateURL) == 0 {
		missing = append(missing, "gate_api_url")
	}
	if (c.GateClientCert == "") != (c.GateClientKey == "") {
		missing = append(missing, "gate_client_cert/gate_client_key pair")
	}
	if len(missing) > 0 {
		return fmt.Errorf("Missing configuration: [%s]", strings.Join(missing, ", "))
	}
	c.GateURL = strings.TrimRight(c.GateURL, "/")
	return nil
}

// PipelineTemplatesPath is the directory holding shared pipeline templates.
func (c *Config) PipelineTemplatesPath() string {
	return strings.TrimRight(c.TemplatesPath, "/") + "/pipeline"
}
