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

// Package connection exposes a single facade over the backend connector
// variants. Callers hold a UnifiedConnection and never branch on whether
// the backend is the managed RDS Data API or a direct driver link.
package connection

import (
	"context"
	"fmt"

	"axonflow/dbgateway/connection/base"
	"axonflow/dbgateway/connection/postgres"
	"axonflow/dbgateway/connection/rdsdata"
	"axonflow/dbgateway/connection/secrets"
)

// UnifiedConnection wraps a backend connector behind a backend-neutral
// surface. Errors from the backend pass through unchanged so callers can
// match on the base error taxonomy.
type UnifiedConnection struct {
	conn base.Connector
}

// Wrap builds a UnifiedConnection over an already-constructed connector.
func Wrap(conn base.Connector) *UnifiedConnection {
	return &UnifiedConnection{conn: conn}
}

// Connect establishes the backend connection.
func (u *UnifiedConnection) Connect(ctx context.Context) error {
	return u.conn.Connect(ctx)
}

// ExecuteQuery runs a statement on the backend and returns decoded rows.
func (u *UnifiedConnection) ExecuteQuery(ctx context.Context, sql string, params []base.NamedParameter) (*base.QueryResult, error) {
	return u.conn.ExecuteQuery(ctx, sql, params)
}

// HealthCheck reports whether the backend link is usable. It never
// returns an error; a failed probe is simply false.
func (u *UnifiedConnection) HealthCheck(ctx context.Context) bool {
	return u.conn.HealthCheck(ctx)
}

// Disconnect tears down the backend connection.
func (u *UnifiedConnection) Disconnect(ctx context.Context) error {
	return u.conn.Disconnect(ctx)
}

// Kind identifies the backend variant.
func (u *UnifiedConnection) Kind() base.Kind {
	return u.conn.Kind()
}

// Descriptor returns the connection target.
func (u *UnifiedConnection) Descriptor() base.Descriptor {
	return u.conn.Descriptor()
}

// ReadOnly reports whether the connection enforces read-only semantics.
func (u *UnifiedConnection) ReadOnly() bool {
	return u.conn.Descriptor().ReadOnly
}

// Factory builds connectors from descriptors, injecting the credential
// provider the direct driver needs. It satisfies pool.Factory via the
// Build method.
type Factory struct {
	provider secrets.Provider
}

// NewFactory creates a connector factory. The provider is only consulted
// by direct-driver connections; managed-API connections authenticate
// through their secret ARN server-side.
func NewFactory(provider secrets.Provider) *Factory {
	return &Factory{provider: provider}
}

// Build constructs the connector variant the descriptor calls for. The
// kind set is closed; an unrecognized kind is a programming error caught
// by Descriptor.Validate before any descriptor reaches the pool.
func (f *Factory) Build(descriptor base.Descriptor) base.Connector {
	switch descriptor.Kind {
	case base.KindRDSDataAPI:
		return rdsdata.New(descriptor)
	case base.KindDirectPostgres:
		return postgres.New(descriptor, f.provider)
	default:
		panic(fmt.Sprintf("unknown connector kind: %q", descriptor.Kind))
	}
}
