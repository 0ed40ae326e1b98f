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

package connection

import (
	"context"
	"errors"
	"testing"

	"axonflow/dbgateway/connection/base"
	"axonflow/dbgateway/connection/secrets"
)

type stubConnector struct {
	descriptor base.Descriptor
	execErr    error
	result     *base.QueryResult
	healthy    bool
}

func (s *stubConnector) Connect(ctx context.Context) error { return nil }

func (s *stubConnector) ExecuteQuery(ctx context.Context, sql string, params []base.NamedParameter) (*base.QueryResult, error) {
	if s.execErr != nil {
		return nil, s.execErr
	}
	return s.result, nil
}

func (s *stubConnector) HealthCheck(ctx context.Context) bool { return s.healthy }
func (s *stubConnector) Disconnect(ctx context.Context) error { return nil }
func (s *stubConnector) Kind() base.Kind                      { return s.descriptor.Kind }
func (s *stubConnector) Descriptor() base.Descriptor          { return s.descriptor }

func TestUnifiedConnectionPassesBackendErrorsThrough(t *testing.T) {
	backendErr := base.NewConnectorError(base.KindDirectPostgres, "ExecuteQuery", "relation missing", nil)
	u := Wrap(&stubConnector{execErr: backendErr})

	_, err := u.ExecuteQuery(context.Background(), "SELECT * FROM missing", nil)
	var ce *base.ConnectorError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConnectorError to pass through unchanged, got %v", err)
	}
	if ce != backendErr {
		t.Error("backend error was wrapped or replaced")
	}
}

func TestUnifiedConnectionSurfacesBackendIdentity(t *testing.T) {
	d := base.Descriptor{
		Kind:        base.KindRDSDataAPI,
		ResourceARN: "arn:aws:rds:us-west-2:123456789012:cluster:app",
		SecretARN:   "arn:aws:secretsmanager:us-west-2:123456789012:secret:app",
		Database:    "app",
		ReadOnly:    true,
	}
	u := Wrap(&stubConnector{descriptor: d, healthy: true})

	if u.Kind() != base.KindRDSDataAPI {
		t.Errorf("Kind() = %q, want %q", u.Kind(), base.KindRDSDataAPI)
	}
	if !u.ReadOnly() {
		t.Error("ReadOnly() = false, want true")
	}
	if !u.HealthCheck(context.Background()) {
		t.Error("HealthCheck() = false, want true")
	}
	if u.Descriptor().Database != "app" {
		t.Errorf("Descriptor().Database = %q, want app", u.Descriptor().Database)
	}
}

func TestFactoryBuildsVariantPerKind(t *testing.T) {
	f := NewFactory(secrets.NewStaticProvider())

	rds := f.Build(base.Descriptor{
		Kind:        base.KindRDSDataAPI,
		ResourceARN: "arn:aws:rds:us-west-2:123456789012:cluster:app",
		SecretARN:   "arn:aws:secretsmanager:us-west-2:123456789012:secret:app",
		Database:    "app",
	})
	if rds.Kind() != base.KindRDSDataAPI {
		t.Errorf("rds connector Kind() = %q", rds.Kind())
	}

	direct := f.Build(base.Descriptor{
		Kind:     base.KindDirectPostgres,
		Host:     "db.internal",
		Port:     5432,
		Database: "app",
	})
	if direct.Kind() != base.KindDirectPostgres {
		t.Errorf("direct connector Kind() = %q", direct.Kind())
	}
}

func TestFactoryPanicsOnUnknownKind(t *testing.T) {
	f := NewFactory(secrets.NewStaticProvider())
	defer func() {
		if recover() == nil {
			t.Error("expected panic for unknown kind")
		}
	}()
	f.Build(base.Descriptor{Kind: "oracle"})
}
