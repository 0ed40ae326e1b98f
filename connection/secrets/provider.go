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

// Package secrets resolves opaque credential references into database
// credentials. The managed-API connector authenticates by reference and
// never needs this package; the direct-driver connector calls it lazily on
// first connect.
package secrets

import (
	"context"
	"fmt"
)

// Credentials holds the material needed to open a direct database
// connection. Extra fields from the secret payload are preserved in Raw.
type Credentials struct {
	Username string
	Password string
	Raw      map[string]string
}

// Validate checks that the minimum fields for a driver connection are
// present.
func (c Credentials) Validate() error {
	if c.Username == "" {
		return fmt.Errorf("credential payload missing username")
	}
	if c.Password == "" {
		return fmt.Errorf("credential payload missing password")
	}
	return nil
}

// Provider resolves a credential reference (an ARN or an arbitrary opaque
// id) into credentials. A failed resolution surfaces as an error the
// connector reports as a connect failure, never as a crash.
type Provider interface {
	GetCredentials(ctx context.Context, ref string) (Credentials, error)
}

// maskRef masks a credential reference for logging (last 8 characters
// only).
func maskRef(ref string) string {
	if len(ref) <= 12 {
		return "***"
	}
	return "..." + ref[len(ref)-8:]
}

func fromMap(m map[string]string) Credentials {
	return Credentials{
		Username: m["username"],
		Password: m["password"],
		Raw:      m,
	}
}
