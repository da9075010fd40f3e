// Package config loads process configuration the way aistore's own
// deployment tooling does — layered file + env + flag overrides — using
// spf13/viper rather than a hand-rolled flag parser.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level process configuration SPEC_FULL.md's ambient
// stack names: logging, IPC addressing, and selector pool sizing.
type Config struct {
	Log struct {
		Dir       string `mapstructure:"dir"`
		AlsoStderr bool  `mapstructure:"also_stderr"`
	} `mapstructure:"log"`

	IPC struct {
		BasePort    uint32        `mapstructure:"base_port"`
		Retransmit  time.Duration `mapstructure:"retransmit"`
		JWTSecret   string        `mapstructure:"jwt_secret"`
		JWTIssuer   string        `mapstructure:"jwt_issuer"`
	} `mapstructure:"ipc"`

	Selector struct {
		ObjectWorkers int `mapstructure:"object_workers"`
		TCPWorkers    int `mapstructure:"tcp_workers"`
		UDPWorkers    int `mapstructure:"udp_workers"`
	} `mapstructure:"selector"`

	FileManager struct {
		LocalRoot   string `mapstructure:"local_root"`
		LocalLRU    int    `mapstructure:"local_lru"`
		IndexPath   string `mapstructure:"index_path"`
		S3Bucket    string `mapstructure:"s3_bucket"`
	} `mapstructure:"filemanager"`
}

// Load starts from the SetDefault values below, then reads path (if
// non-empty), then environment variables named ASYNCFRAME_ plus the key
// in upper case with dots as underscores (ASYNCFRAME_IPC_BASE_PORT).
// Every key has a default, so every field is always populated.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ASYNCFRAME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.dir", "./log")
	v.SetDefault("log.also_stderr", false)
	v.SetDefault("ipc.jwt_secret", "")
	v.SetDefault("ipc.jwt_issuer", "")
	v.SetDefault("ipc.base_port", 20000)
	v.SetDefault("ipc.retransmit", "300ms")
	v.SetDefault("selector.object_workers", 1)
	v.SetDefault("selector.tcp_workers", 1)
	v.SetDefault("selector.udp_workers", 1)
	v.SetDefault("filemanager.local_root", "./data")
	v.SetDefault("filemanager.local_lru", 256)
	v.SetDefault("filemanager.index_path", ":memory:")
	v.SetDefault("filemanager.s3_bucket", "")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &c, nil
}
