package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Submit modes.
const (
	SubmitModeArgo       = "argo"
	SubmitModeKubernetes = "kubernetes"
)

// Config holds the configuration for the application. It is built once at
// startup and passed by pointer into every component; nothing mutates it
// afterwards.
type Config struct {
	Server struct {
		Addr            string        `mapstructure:"addr"`
		ReadTimeout     time.Duration `mapstructure:"read_timeout"`
		IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`
	TLS struct {
		Enable    bool     `mapstructure:"enable"`
		CertFile  string   `mapstructure:"cert_file"`
		KeyFile   string   `mapstructure:"key_file"`
		Hostnames []string `mapstructure:"hostnames"`
	} `mapstructure:"tls"`
	Argo struct {
		BaseURL            string        `mapstructure:"base_url"`
		Namespace          string        `mapstructure:"namespace"`
		Token              string        `mapstructure:"token"`
		TokenFile          string        `mapstructure:"token_file"`
		CAFile             string        `mapstructure:"ca_file"`
		InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
		Timeout            time.Duration `mapstructure:"timeout"`
	} `mapstructure:"argo"`
	List struct {
		DefaultLimit int  `mapstructure:"default_limit"`
		IncludeNodes bool `mapstructure:"include_nodes"`
	} `mapstructure:"list"`
	Logs struct {
		DefaultContainer string `mapstructure:"default_container"`
	} `mapstructure:"logs"`
	Submit struct {
		Mode          string `mapstructure:"mode"`
		KubeAPIURL    string `mapstructure:"kube_api_url"`
		KubeTokenFile string `mapstructure:"kube_token_file"`
		KubeCAFile    string `mapstructure:"kube_ca_file"`
	} `mapstructure:"submit"`
	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
	MCP struct {
		Enable bool `mapstructure:"enable"`
	} `mapstructure:"mcp"`
	Telemetry struct {
		Enable         bool          `mapstructure:"enable"`
		Endpoint       string        `mapstructure:"endpoint"`
		Insecure       bool          `mapstructure:"insecure"`
		SampleRatio    float64       `mapstructure:"sample_ratio"`
		MetricInterval time.Duration `mapstructure:"metric_interval"`
	} `mapstructure:"telemetry"`
}

const serviceAccountTokenFile = "/var/run/secrets/kubernetes.io/serviceaccount/token"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("tls.enable", false)
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("tls.hostnames", []string{})

	v.SetDefault("argo.base_url", "http://argo-server:2746")
	v.SetDefault("argo.namespace", "argo")
	v.SetDefault("argo.token", "")
	v.SetDefault("argo.token_file", serviceAccountTokenFile)
	v.SetDefault("argo.ca_file", "")
	v.SetDefault("argo.insecure_skip_verify", false)
	v.SetDefault("argo.timeout", 30*time.Second)

	v.SetDefault("list.default_limit", 50)
	v.SetDefault("list.include_nodes", true)

	v.SetDefault("logs.default_container", "main")

	v.SetDefault("submit.mode", SubmitModeArgo)
	v.SetDefault("submit.kube_api_url", "")
	v.SetDefault("submit.kube_token_file", serviceAccountTokenFile)
	v.SetDefault("submit.kube_ca_file", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("mcp.enable", true)

	v.SetDefault("telemetry.enable", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.metric_interval", 60*time.Second)
}

// LoadConfig loads the configuration from a file and the environment. When
// configFile is empty, config.yaml is looked up in . and ./config; a missing
// file is not an error. Environment variables override file values, with
// dots replaced by underscores (ARGO_BASE_URL, LIST_DEFAULT_LIMIT, ...).
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	config.Argo.BaseURL = normalizeBaseURL(config.Argo.BaseURL)
	config.Submit.KubeAPIURL = normalizeBaseURL(config.Submit.KubeAPIURL)
	if config.List.DefaultLimit < 1 {
		config.List.DefaultLimit = 1
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate reports configuration values the server cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Argo.BaseURL == "" {
		errs = append(errs, errors.New("argo.base_url is required"))
	}
	if c.Argo.Namespace == "" {
		errs = append(errs, errors.New("argo.namespace is required"))
	}
	switch c.Submit.Mode {
	case SubmitModeArgo, SubmitModeKubernetes:
	default:
		errs = append(errs, fmt.Errorf("submit.mode must be one of %q, %q; got %q",
			SubmitModeArgo, SubmitModeKubernetes, c.Submit.Mode))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, fmt.Errorf("telemetry.sample_ratio must be within [0, 1]; got %v", c.Telemetry.SampleRatio))
	}
	if c.TLS.Enable && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		errs = append(errs, errors.New("tls.cert_file and tls.key_file are required when tls is enabled"))
	}
	return errors.Join(errs...)
}

// normalizeBaseURL trims whitespace and any trailing slash so paths can be
// appended directly.
func normalizeBaseURL(input string) string {
	return strings.TrimRight(strings.TrimSpace(input), "/")
}
