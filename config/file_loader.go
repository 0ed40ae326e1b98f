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

package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"axonflow/dbgateway/connection/base"

	"gopkg.in/yaml.v3"
)

// configFile is the YAML file layout. Every field is optional; unset
// fields keep their environment-derived values.
type configFile struct {
	Port *int `yaml:"port,omitempty"`

	Pool struct {
		MinSize               *int `yaml:"min_size,omitempty"`
		MaxSize               *int `yaml:"max_size,omitempty"`
		AcquireTimeoutSeconds *int `yaml:"acquire_timeout_seconds,omitempty"`
	} `yaml:"pool,omitempty"`

	Session struct {
		TimeoutSeconds *int `yaml:"timeout_seconds,omitempty"`
	} `yaml:"session,omitempty"`

	Connection *struct {
		ResourceARN string `yaml:"resource_arn,omitempty"`
		Hostname    string `yaml:"hostname,omitempty"`
		Port        int    `yaml:"port,omitempty"`
		Database    string `yaml:"database,omitempty"`
		SecretARN   string `yaml:"secret_arn,omitempty"`
		Region      string `yaml:"region,omitempty"`
		ReadOnly    *bool  `yaml:"readonly,omitempty"`
	} `yaml:"connection,omitempty"`
}

// loadFile overlays the YAML file at path onto cfg. Environment
// references inside the file are expanded before parsing.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	var file configFile
	if err := yaml.Unmarshal([]byte(expanded), &file); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if file.Port != nil {
		cfg.Port = *file.Port
	}
	if file.Pool.MinSize != nil {
		cfg.Pool.MinSize = *file.Pool.MinSize
	}
	if file.Pool.MaxSize != nil {
		cfg.Pool.MaxSize = *file.Pool.MaxSize
	}
	if file.Pool.AcquireTimeoutSeconds != nil {
		cfg.Pool.AcquireTimeout = time.Duration(*file.Pool.AcquireTimeoutSeconds) * time.Second
	}
	if file.Session.TimeoutSeconds != nil {
		cfg.Session.Timeout = time.Duration(*file.Session.TimeoutSeconds) * time.Second
	}

	if file.Connection != nil {
		d := base.Descriptor{
			ResourceARN: file.Connection.ResourceARN,
			Host:        file.Connection.Hostname,
			Port:        file.Connection.Port,
			Database:    file.Connection.Database,
			SecretARN:   file.Connection.SecretARN,
			Region:      file.Connection.Region,
			ReadOnly:    true,
		}
		if d.Region == "" {
			d.Region = cfg.DefaultTarget.Region
		}
		if d.Region == "" {
			d.Region = "us-west-2"
		}
		if file.Connection.ReadOnly != nil {
			d.ReadOnly = *file.Connection.ReadOnly
		}
		kind, err := base.DetermineKind(d.ResourceARN, d.Host)
		if err != nil {
			return fmt.Errorf("config file connection section: %w", err)
		}
		d.Kind = kind
		cfg.DefaultTarget = d
	}

	return nil
}

// envVarRegex matches ${VAR_NAME} or $VAR_NAME patterns
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars expands environment variable references in the string.
// Supports ${VAR_NAME}, $VAR_NAME and ${VAR_NAME:-default} syntax.
// Undefined variables without a default expand to the empty string.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		defaultVal := ""
		if idx := strings.Index(varName, ":-"); idx != -1 {
			defaultVal = varName[idx+2:]
			varName = varName[:idx]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultVal
	})
}
