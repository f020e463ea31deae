// Package config loads client settings from a YAML file.
//
//	url: https://kbase.us/services/userandjobstate/
//	token: un=alice|tokenid=...
//	user_id: alice
//	timeout: 30s
//	async_job_check_time: 5s
//	endpoints:
//	  - addr: https://ujs-1.example.org/services/userandjobstate/
//	    weight: 2
//	balancer: consistent_hash
//	etcd:
//	  endpoints: [127.0.0.1:2379]
//	  dial_timeout: 5s
//	rate_limit:
//	  rps: 10
//	  burst: 20
//	log_level: info
package config

import (
	"os"
	"time"

	"github.com/juju/errors"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"ujs-rpc/client"
	"ujs-rpc/loadbalance"
	"ujs-rpc/protocol"
	"ujs-rpc/registry"
)

type Config struct {
	URL               string                     `yaml:"url"`
	Token             string                     `yaml:"token"`
	UserID            string                     `yaml:"user_id"`
	Timeout           time.Duration              `yaml:"timeout"`
	AsyncJobCheckTime time.Duration              `yaml:"async_job_check_time"`
	AsyncVersion      string                     `yaml:"async_version"`
	Endpoints         []registry.ServiceInstance `yaml:"endpoints"`
	Balancer          string                     `yaml:"balancer"`
	Etcd              EtcdConfig                 `yaml:"etcd"`
	RateLimit         RateLimitConfig            `yaml:"rate_limit"`
	LogLevel          string                     `yaml:"log_level"`
}

type EtcdConfig struct {
	Endpoints   []string      `yaml:"endpoints"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// RateLimitConfig enables a client side token bucket when RPS is positive.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		URL:               protocol.DefaultURL,
		AsyncJobCheckTime: client.DefaultAsyncJobCheckTime,
		Etcd:              EtcdConfig{DialTimeout: 5 * time.Second},
		LogLevel:          "info",
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err, "reading config")
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Annotate(err, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return errors.NotValidf("negative timeout %v", c.Timeout)
	}
	if c.AsyncJobCheckTime < 0 {
		return errors.NotValidf("negative async_job_check_time %v", c.AsyncJobCheckTime)
	}
	if len(c.Endpoints) > 0 && len(c.Etcd.Endpoints) > 0 {
		return errors.NotValidf("both static endpoints and etcd")
	}
	for i, e := range c.Endpoints {
		if e.Addr == "" {
			return errors.NotValidf("endpoint %d without addr", i)
		}
	}
	if _, err := loadbalance.New(c.Balancer); err != nil {
		return errors.Trace(err)
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return errors.NotValidf("rate_limit %+v", c.RateLimit)
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst == 0 {
		return errors.NotValidf("rate_limit with zero burst")
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return errors.NotValidf("log_level %q", c.LogLevel)
	}
	return nil
}

// Discovery reports whether calls resolve their endpoint through a registry.
func (c *Config) Discovery() bool {
	return len(c.Endpoints) > 0 || len(c.Etcd.Endpoints) > 0
}
