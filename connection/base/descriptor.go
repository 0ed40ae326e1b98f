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

package base

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// DefaultPostgresPort is used when a direct descriptor omits the port.
const DefaultPostgresPort = 5432

// Descriptor is the immutable identity of a connection configuration.
// Two descriptors with the same fields are the same pool bucket; the
// credential reference is folded into the key so distinct credentials
// never share a bucket.
type Descriptor struct {
	Kind        Kind   `json:"kind"`
	ResourceARN string `json:"resource_arn,omitempty"` // managed-API target
	Host        string `json:"host,omitempty"`         // direct target
	Port        int    `json:"port,omitempty"`
	Database    string `json:"database"`
	Region      string `json:"region"`
	SecretARN   string `json:"secret_arn"`
	ReadOnly    bool   `json:"readonly"`
}

// DetermineKind picks the backend kind from the provided target identity.
// A resource ARN selects the RDS Data API; a hostname selects the direct
// driver.
func DetermineKind(resourceARN, host string) (Kind, error) {
	switch {
	case resourceARN != "":
		return KindRDSDataAPI, nil
	case host != "":
		return KindDirectPostgres, nil
	default:
		return "", fmt.Errorf("either resource_arn or hostname must be provided")
	}
}

// Validate checks that the descriptor carries every field its kind
// requires. This is a configuration check and runs before any network
// call.
func (d Descriptor) Validate() error {
	var missing []string

	switch d.Kind {
	case KindRDSDataAPI:
		if d.ResourceARN == "" {
			missing = append(missing, "resource_arn")
		}
		if d.SecretARN == "" {
			missing = append(missing, "secret_arn")
		}
		if d.Database == "" {
			missing = append(missing, "database")
		}
		if d.Region == "" {
			missing = append(missing, "region")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required parameters for RDS Data API: %s", strings.Join(missing, ", "))
		}
	case KindDirectPostgres:
		if d.Host == "" {
			missing = append(missing, "hostname")
		}
		if d.Database == "" {
			missing = append(missing, "database")
		}
		if d.SecretARN == "" {
			missing = append(missing, "secret_arn")
		}
		if d.Region == "" {
			missing = append(missing, "region")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required parameters for direct PostgreSQL: %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unknown connection kind: %q", d.Kind)
	}

	return nil
}

// PortOrDefault returns the configured port, falling back to 5432.
func (d Descriptor) PortOrDefault() int {
	if d.Port > 0 {
		return d.Port
	}
	return DefaultPostgresPort
}

// Key derives the pool bucket key for this descriptor:
//
//	rds://<resource_arn>/<database>#<credentialHash>
//	postgres://<host>:<port>/<database>#<credentialHash>
//
// The credential hash is a truncated SHA-256 of the secret ARN so two
// configurations that differ only in credentials land in different
// buckets.
func (d Descriptor) Key() string {
	switch d.Kind {
	case KindRDSDataAPI:
		return fmt.Sprintf("rds://%s/%s#%s", d.ResourceARN, d.Database, credentialHash(d.SecretARN))
	case KindDirectPostgres:
		return fmt.Sprintf("postgres://%s:%d/%s#%s", d.Host, d.PortOrDefault(), d.Database, credentialHash(d.SecretARN))
	default:
		return fmt.Sprintf("unknown://%s#%s", d.Database, credentialHash(d.SecretARN))
	}
}

// Target returns the human-readable target identity for logging.
func (d Descriptor) Target() string {
	if d.Kind == KindRDSDataAPI {
		return d.ResourceARN
	}
	return fmt.Sprintf("%s:%d", d.Host, d.PortOrDefault())
}

func credentialHash(secretARN string) string {
	sum := sha256.Sum256([]byte(secretARN))
	return hex.EncodeToString(sum[:8])
}
