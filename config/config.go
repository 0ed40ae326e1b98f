// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads gateway configuration from environment variables,
// with an optional YAML file override pointed at by DBGATEWAY_CONFIG.
// File values win over environment values; environment references inside
// the file are expanded before parsing.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"axonflow/dbgateway/connection/base"
)

// Config is the full gateway configuration.
type Config struct {
	Port int

	Pool    PoolConfig
	Session SessionConfig

	// DefaultTarget is the connection used when a request does not carry
	// its own connect parameters. Zero-valued when no target env vars
	// are set; requests must then supply their own.
	DefaultTarget base.Descriptor
}

// PoolConfig controls connection pool sizing.
type PoolConfig struct {
	MinSize        int
	MaxSize        int
	AcquireTimeout time.Duration
}

// SessionConfig controls session lifecycle.
type SessionConfig struct {
	Timeout time.Duration
}

// Load builds the configuration from the environment, then applies the
// YAML file named by DBGATEWAY_CONFIG when set.
func Load() (*Config, error) {
	cfg := &Config{
		Port: 8080,
		Pool: PoolConfig{
			MinSize:        5,
			MaxSize:        30,
			AcquireTimeout: 30 * time.Second,
		},
		Session: SessionConfig{
			Timeout: 30 * time.Minute,
		},
	}

	var err error
	if cfg.Port, err = intEnv("PORT", cfg.Port); err != nil {
		return nil, err
	}
	if cfg.Pool.MinSize, err = intEnv("POOL_MIN_SIZE", cfg.Pool.MinSize); err != nil {
		return nil, err
	}
	if cfg.Pool.MaxSize, err = intEnv("POOL_MAX_SIZE", cfg.Pool.MaxSize); err != nil {
		return nil, err
	}
	if cfg.Pool.AcquireTimeout, err = secondsEnv("POOL_ACQUIRE_TIMEOUT", cfg.Pool.AcquireTimeout); err != nil {
		return nil, err
	}
	if cfg.Session.Timeout, err = secondsEnv("SESSION_TIMEOUT", cfg.Session.Timeout); err != nil {
		return nil, err
	}

	target, err := targetFromEnv()
	if err != nil {
		return nil, err
	}
	cfg.DefaultTarget = target

	if path := os.Getenv("DBGATEWAY_CONFIG"); path != "" {
		if err := loadFile(cfg, path); err != nil {
			return nil, err
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Pool.MaxSize <= 0 {
		return fmt.Errorf("pool max size must be positive, got %d", c.Pool.MaxSize)
	}
	if c.Pool.MinSize < 0 || c.Pool.MinSize > c.Pool.MaxSize {
		return fmt.Errorf("pool min size %d out of range [0, %d]", c.Pool.MinSize, c.Pool.MaxSize)
	}
	if c.Pool.AcquireTimeout <= 0 {
		return fmt.Errorf("pool acquire timeout must be positive")
	}
	if c.Session.Timeout <= 0 {
		return fmt.Errorf("session timeout must be positive")
	}
	if c.HasDefaultTarget() {
		if err := c.DefaultTarget.Validate(); err != nil {
			return fmt.Errorf("default connection target: %w", err)
		}
	}
	return nil
}

// HasDefaultTarget reports whether a default connection target was
// configured.
func (c *Config) HasDefaultTarget() bool {
	return c.DefaultTarget.ResourceARN != "" || c.DefaultTarget.Host != ""
}

// targetFromEnv builds the default connection descriptor from the
// POSTGRES_* environment variables. The resource ARN selects the managed
// API; a hostname selects the direct driver.
func targetFromEnv() (base.Descriptor, error) {
	d := base.Descriptor{
		ResourceARN: os.Getenv("POSTGRES_RESOURCE_ARN"),
		Host:        os.Getenv("POSTGRES_HOSTNAME"),
		Database:    os.Getenv("POSTGRES_DATABASE"),
		SecretARN:   os.Getenv("POSTGRES_SECRET_ARN"),
		Region:      getEnvOrDefault("POSTGRES_REGION", "us-west-2"),
		ReadOnly:    true,
	}
	if d.ResourceARN == "" && d.Host == "" {
		return base.Descriptor{}, nil
	}

	var err error
	if d.Port, err = intEnv("POSTGRES_PORT", 5432); err != nil {
		return base.Descriptor{}, err
	}
	if readonly := os.Getenv("POSTGRES_READONLY"); readonly != "" {
		v, err := strconv.ParseBool(readonly)
		if err != nil {
			return base.Descriptor{}, fmt.Errorf("invalid POSTGRES_READONLY value: %s", readonly)
		}
		d.ReadOnly = v
	}

	kind, err := base.DetermineKind(d.ResourceARN, d.Host)
	if err != nil {
		return base.Descriptor{}, err
	}
	d.Kind = kind
	return d, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func intEnv(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s", key, raw)
	}
	return v, nil
}

// secondsEnv parses a duration env var given in whole seconds.
func secondsEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value: %s", key, raw)
	}
	return time.Duration(v) * time.Second, nil
}
