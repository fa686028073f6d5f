package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-yaml/yaml"
	"github.com/pkg/errors"

	"github.com/totegamma/mediafetch/internal/domain"
)

type Config struct {
	Pipeline Pipeline `yaml:"pipeline"`
	Store    Store    `yaml:"store"`
	Server   Server   `yaml:"server"`
}

type Pipeline struct {
	Enabled     bool          `yaml:"enabled"`
	Bucket      string        `yaml:"bucket"`
	KeyPrefix   string        `yaml:"keyPrefix"`
	Fields      domain.Fields `yaml:"fields"`
	ExpiresDays int           `yaml:"expires"` // 0 = never
	Concurrency int64         `yaml:"concurrency"`
}

type Store struct {
	AccessKey    string `yaml:"accessKey"`
	SecretKey    string `yaml:"secretKey"`
	RSHost       string `yaml:"rsHost"`
	IOHost       string `yaml:"ioHost"`
	UserAgent    string `yaml:"userAgent"`
	TimeoutSec   int    `yaml:"timeoutSec"`
	StatCacheSec int    `yaml:"statCacheSec"`
}

type Server struct {
	Listen        string `yaml:"listen"`
	APIToken      string `yaml:"apiToken"`
	PostgresDsn   string `yaml:"postgresDsn"`
	RedisAddr     string `yaml:"redisAddr"`
	RedisDB       int    `yaml:"redisDB"`
	MemcachedAddr string `yaml:"memcachedAddr"`
	EnableTrace   bool   `yaml:"enableTrace"`
	TraceEndpoint string `yaml:"traceEndpoint"`
	LogLevel      string `yaml:"logLevel"`
	LogFormat     string `yaml:"logFormat"` // text, json
}

// Load reads a YAML config file. An empty path yields an empty config that
// can still be filled from the environment.
func Load(path string) (Config, error) {
	var config Config
	if path == "" {
		return config, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to open config")
	}
	defer file.Close()

	err = yaml.NewDecoder(file).Decode(&config)
	if err != nil {
		return Config{}, errors.Wrapf(err, "failed to parse config %s", path)
	}

	return config, nil
}

// ApplyEnv overrides file settings with the process environment.
func (c *Config) ApplyEnv() error {
	return c.apply(os.LookupEnv)
}

func (c *Config) apply(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok {
			*dst = strings.TrimSpace(v)
		}
	}

	if v, ok := lookup("PIPELINE_QINIU_ENABLED"); ok {
		enabled, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return &domain.ConfigError{Setting: "PIPELINE_QINIU_ENABLED", Err: err}
		}
		c.Pipeline.Enabled = enabled
	}
	str("PIPELINE_QINIU_BUCKET", &c.Pipeline.Bucket)
	str("PIPELINE_QINIU_KEY_PREFIX", &c.Pipeline.KeyPrefix)
	str("PIPELINE_QINIU_AK", &c.Store.AccessKey)
	str("PIPELINE_QINIU_SK", &c.Store.SecretKey)
	str("FILES_URLS_FIELD", &c.Pipeline.Fields.URLs)
	str("FILES_RESULT_FIELD", &c.Pipeline.Fields.Result)
	str("FILES_KEYGEN_FIELD", &c.Pipeline.Fields.KeyGen)

	if v, ok := lookup("FILES_EXPIRES"); ok {
		days, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || days < 0 {
			return &domain.ConfigError{Setting: "FILES_EXPIRES", Err: errors.Errorf("invalid day count %q", v)}
		}
		c.Pipeline.ExpiresDays = days
	}

	return nil
}

// Validate checks the settings the fetch stage cannot run without.
func (c Config) Validate() error {
	if !c.Pipeline.Enabled {
		return &domain.ConfigError{Setting: "PIPELINE_QINIU_ENABLED", Err: domain.ErrStageDisabled}
	}
	if c.Pipeline.Bucket == "" {
		return &domain.ConfigError{Setting: "PIPELINE_QINIU_BUCKET"}
	}
	if c.Pipeline.KeyPrefix == "" {
		return &domain.ConfigError{Setting: "PIPELINE_QINIU_KEY_PREFIX"}
	}
	if c.Store.AccessKey == "" {
		return &domain.ConfigError{Setting: "PIPELINE_QINIU_AK", Err: domain.ErrAuth}
	}
	if c.Store.SecretKey == "" {
		return &domain.ConfigError{Setting: "PIPELINE_QINIU_SK", Err: domain.ErrAuth}
	}
	return nil
}

func (p Pipeline) Expires() time.Duration {
	if p.ExpiresDays <= 0 {
		return 0
	}
	return time.Duration(p.ExpiresDays) * 24 * time.Hour
}

func (s Store) Timeout() time.Duration {
	return time.Duration(s.TimeoutSec) * time.Second
}

func (s Store) StatCacheTTL() time.Duration {
	return time.Duration(s.StatCacheSec) * time.Second
}
