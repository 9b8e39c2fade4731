// Package config provides configuration management for the server.
//
// Configuration is loaded from multiple sources with the following precedence:
//  1. Command-line flags (highest priority)
//  2. Environment variables (NEBULAFS_* prefix)
//  3. Configuration file (the path given to Load, else nebulafs.yaml in . or /etc/nebulafs)
//  4. Default values (lowest priority)
//
// The package uses Viper for configuration binding.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultPort is the TCP port the S3 API listens on when unset.
	DefaultPort = 4578
	// DefaultHostname is the bind address used when unset.
	DefaultHostname = "localhost"
	// DefaultAdminPort serves /metrics and /healthz.
	DefaultAdminPort = 4579
)

// RoutingRedirect describes the 3xx response issued on a GET miss when a
// routing rule is configured.
type RoutingRedirect struct {
	HostName              string `mapstructure:"host_name"`
	Protocol              string `mapstructure:"protocol"`
	ReplaceKeyPrefixWith  string `mapstructure:"replace_key_prefix_with"`
	HTTPRedirectCode      int    `mapstructure:"http_redirect_code"`
}

// RoutingRule wraps the single redirect descriptor the config surface
// exposes; a nil *RoutingRule means no routing rule is configured.
type RoutingRule struct {
	Redirect RoutingRedirect `mapstructure:"redirect"`
}

// Config holds all configuration for the server.
type Config struct {
	Port      int    `mapstructure:"port"`
	Hostname  string `mapstructure:"hostname"`
	Directory string `mapstructure:"directory"`
	Silent    bool   `mapstructure:"silent"`

	IndexDocument string `mapstructure:"index_document"`
	ErrorDocument string `mapstructure:"error_document"`

	RoutingRule *RoutingRule `mapstructure:"routing_rule"`

	AdminPort int `mapstructure:"admin_port"`
}

// Options are command-line overrides applied after file/env layering.
type Options struct {
	Port      int
	Hostname  string
	Directory string
	Silent    bool
}

// Load loads configuration from configPath (if non-empty) and the standard
// search locations, then applies environment variables and opts, in that
// increasing order of precedence.
func Load(configPath string, opts Options) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("nebulafs")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/nebulafs")

		_ = v.ReadInConfig()
	}

	v.SetEnvPrefix("NEBULAFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.Port != 0 {
		v.Set("port", opts.Port)
	}

	if opts.Hostname != "" {
		v.Set("hostname", opts.Hostname)
	}

	if opts.Directory != "" {
		v.Set("directory", opts.Directory)
	}

	if opts.Silent {
		v.Set("silent", true)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Directory == "" {
		return nil, fmt.Errorf("directory must be set")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", DefaultPort)
	v.SetDefault("hostname", DefaultHostname)
	v.SetDefault("admin_port", DefaultAdminPort)
	v.SetDefault("silent", false)
}
