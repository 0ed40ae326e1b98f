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
	"context"
	"errors"
)

// Kind identifies how a connector reaches PostgreSQL. The set is closed:
// adding a backend means adding an explicit case everywhere a Kind is
// switched on.
type Kind string

const (
	// KindRDSDataAPI reaches the database through the stateless RDS Data API.
	KindRDSDataAPI Kind = "rds_data_api"

	// KindDirectPostgres reaches the database through the PostgreSQL wire
	// protocol with a native driver.
	KindDirectPostgres Kind = "direct_postgres"
)

// IsValid reports whether the kind is one of the supported backends.
func (k Kind) IsValid() bool {
	switch k {
	case KindRDSDataAPI, KindDirectPostgres:
		return true
	default:
		return false
	}
}

// Connector is the contract both backend variants implement.
//
// Connect returns an error for expected failure modes (unreachable backend,
// bad credentials) rather than panicking; it is safe to call again after a
// prior failure. ExecuteQuery propagates backend errors unchanged so upstream
// policy is uniform across variants. HealthCheck converts any failure into
// false. Disconnect is safe to call multiple times.
type Connector interface {
	Connect(ctx context.Context) error
	ExecuteQuery(ctx context.Context, sql string, params []NamedParameter) (*QueryResult, error)
	HealthCheck(ctx context.Context) bool
	Disconnect(ctx context.Context) error

	Kind() Kind
	Descriptor() Descriptor
}

// Sentinel errors shared across the connection layer.
var (
	// ErrPoolExhausted is returned by acquire when a bucket is at max size
	// with every member in use. Callers needing backpressure retry at a
	// higher layer; the pool never queues.
	ErrPoolExhausted = errors.New("connection pool at capacity")

	// ErrNotConnected is returned when a query is attempted on a connector
	// that has no established channel.
	ErrNotConnected = errors.New("connector not connected")
)

// ConnectorError wraps a backend failure with the connector kind and the
// operation that failed.
type ConnectorError struct {
	Kind    Kind
	Op      string
	Message string
	Cause   error
}

func (e *ConnectorError) Error() string {
	if e.Cause != nil {
		return string(e.Kind) + "." + e.Op + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return string(e.Kind) + "." + e.Op + ": " + e.Message
}

func (e *ConnectorError) Unwrap() error {
	return e.Cause
}

// NewConnectorError creates a new ConnectorError.
func NewConnectorError(kind Kind, op, message string, cause error) *ConnectorError {
	return &ConnectorError{
		Kind:    kind,
		Op:      op,
		Message: message,
		Cause:   cause,
	}
}
