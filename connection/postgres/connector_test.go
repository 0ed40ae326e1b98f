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

package postgres

import (
	"context"
	"errors"
	"io"
	"log"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"axonflow/dbgateway/connection/base"
	"axonflow/dbgateway/connection/secrets"
)

func testDescriptor(readonly bool) base.Descriptor {
	return base.Descriptor{
		Kind:      base.KindDirectPostgres,
		Host:      "db.example.com",
		Port:      5432,
		Database:  "appdb",
		Region:    "us-west-2",
		SecretARN: "arn:aws:secretsmanager:us-west-2:123456789012:secret:creds",
		ReadOnly:  readonly,
	}
}

func newMockedConnector(t *testing.T, readonly bool) (*Connector, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	c := New(testDescriptor(readonly), secrets.NewStaticProvider(), WithLogger(log.New(io.Discard, "", 0)))
	c.db = db
	return c, mock
}

func TestExecuteQuerySelectOne(t *testing.T) {
	c, mock := newMockedConnector(t, true)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	result, err := c.ExecuteQuery(context.Background(), "SELECT 1", nil)
	if err != nil {
		t.Fatalf("ExecuteQuery() = %v", err)
	}
	if len(result.Rows) != 1 || len(result.Rows[0]) != 1 {
		t.Fatalf("rows = %v, want one row with one cell", result.Rows)
	}
	cell := result.Rows[0][0]
	if cell.Type != base.CellLong || cell.Long != 1 {
		t.Errorf("cell = %+v, want long 1", cell)
	}
}

func TestExecuteQueryTextBecomesString(t *testing.T) {
	c, mock := newMockedConnector(t, true)
	mock.ExpectQuery("SELECT name FROM users").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow([]byte("alice")))

	result, err := c.ExecuteQuery(context.Background(), "SELECT name FROM users", nil)
	if err != nil {
		t.Fatalf("ExecuteQuery() = %v", err)
	}
	cell := result.Rows[0][0]
	if cell.Type != base.CellString || cell.String != "alice" {
		t.Errorf("cell = %+v, want string alice", cell)
	}
}

func TestExecuteQueryNonRowStatement(t *testing.T) {
	c, mock := newMockedConnector(t, false)
	mock.ExpectExec("UPDATE users SET active").
		WillReturnResult(sqlmock.NewResult(0, 3))

	result, err := c.ExecuteQuery(context.Background(), "UPDATE users SET active = false", nil)
	if err != nil {
		t.Fatalf("ExecuteQuery() = %v", err)
	}
	if len(result.Rows) != 0 {
		t.Errorf("non-row statement should yield empty rows, got %v", result.Rows)
	}
	if result.RowsAffected != 3 {
		t.Errorf("RowsAffected = %d, want 3", result.RowsAffected)
	}
}

func TestExecuteQueryErrorPropagates(t *testing.T) {
	c, mock := newMockedConnector(t, true)
	driverErr := errors.New(`pq: relation "missing" does not exist`)
	mock.ExpectQuery("SELECT \\* FROM missing").WillReturnError(driverErr)

	_, err := c.ExecuteQuery(context.Background(), "SELECT * FROM missing", nil)
	if !errors.Is(err, driverErr) {
		t.Errorf("driver error must propagate unchanged, got %v", err)
	}
}

func TestExecuteQueryNotConnected(t *testing.T) {
	c := New(testDescriptor(true), secrets.NewStaticProvider(), WithLogger(log.New(io.Discard, "", 0)))

	_, err := c.ExecuteQuery(context.Background(), "SELECT 1", nil)
	if !errors.Is(err, base.ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheck(t *testing.T) {
	c, mock := newMockedConnector(t, true)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))
	if !c.HealthCheck(context.Background()) {
		t.Error("healthy connection should report true")
	}

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).WillReturnError(errors.New("connection reset"))
	if c.HealthCheck(context.Background()) {
		t.Error("failing connection should report false")
	}

	disconnected := New(testDescriptor(true), secrets.NewStaticProvider(), WithLogger(log.New(io.Discard, "", 0)))
	if disconnected.HealthCheck(context.Background()) {
		t.Error("never-connected connector should report false")
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	c, _ := newMockedConnector(t, true)
	if err := c.Disconnect(context.Background()); err != nil {
		t.Errorf("first Disconnect() = %v", err)
	}
	if err := c.Disconnect(context.Background()); err != nil {
		t.Errorf("second Disconnect() = %v", err)
	}
}

type countingProvider struct {
	calls int
	creds secrets.Credentials
	err   error
}

func (p *countingProvider) GetCredentials(context.Context, string) (secrets.Credentials, error) {
	p.calls++
	if p.err != nil {
		return secrets.Credentials{}, p.err
	}
	return p.creds, nil
}

func TestCredentialsFetchedLazily(t *testing.T) {
	provider := &countingProvider{creds: secrets.Credentials{Username: "u", Password: "p"}}
	c := New(testDescriptor(true), provider, WithLogger(log.New(io.Discard, "", 0)))

	if provider.calls != 0 {
		t.Fatalf("constructing a connector must not call the credential provider, calls = %d", provider.calls)
	}

	if _, err := c.getCredentials(context.Background()); err != nil {
		t.Fatalf("getCredentials() = %v", err)
	}
	if _, err := c.getCredentials(context.Background()); err != nil {
		t.Fatalf("getCredentials() = %v", err)
	}
	if provider.calls != 1 {
		t.Errorf("credentials should be cached after first fetch, calls = %d", provider.calls)
	}
}

func TestCredentialFailureIsConnectFailure(t *testing.T) {
	provider := &countingProvider{err: errors.New("access denied")}
	c := New(testDescriptor(true), provider, WithLogger(log.New(io.Discard, "", 0)))

	err := c.Connect(context.Background())
	if err == nil {
		t.Fatal("expected connect failure when credentials cannot be resolved")
	}
	var connErr *base.ConnectorError
	if !errors.As(err, &connErr) || connErr.Op != "Connect" {
		t.Errorf("err = %v, want ConnectorError from Connect", err)
	}
}

func TestDSNReadOnlySessionSettings(t *testing.T) {
	c := New(testDescriptor(true), secrets.NewStaticProvider(), WithLogger(log.New(io.Discard, "", 0)))
	dsn := c.dsn(secrets.Credentials{Username: "app", Password: "hunter2"})

	for _, want := range []string{
		"host=db.example.com",
		"port=5432",
		"dbname=appdb",
		"application_name=dbgateway",
		"default_transaction_read_only=on",
		"statement_timeout=30000",
	} {
		if !regexp.MustCompile(regexp.QuoteMeta(want)).MatchString(dsn) {
			t.Errorf("dsn missing %q: %s", want, dsn)
		}
	}

	c = New(testDescriptor(false), secrets.NewStaticProvider(), WithLogger(log.New(io.Discard, "", 0)))
	dsn = c.dsn(secrets.Credentials{Username: "app", Password: "hunter2"})
	if regexp.MustCompile("default_transaction_read_only").MatchString(dsn) {
		t.Errorf("writable dsn should not force read-only: %s", dsn)
	}
}

func TestDSNQuoting(t *testing.T) {
	if got := dsnValue("plain"); got != "plain" {
		t.Errorf("dsnValue(plain) = %q", got)
	}
	if got := dsnValue("pa ss'word"); got != `'pa ss\'word'` {
		t.Errorf("dsnValue quoting = %q", got)
	}
	if got := dsnValue(""); got != "''" {
		t.Errorf("dsnValue empty = %q", got)
	}
}

func TestBindNamed(t *testing.T) {
	sqlText := "SELECT * FROM users WHERE id = :id AND name = :name AND id <> :id"
	bound, args := bindNamed(sqlText, []base.NamedParameter{
		{Name: "id", Value: base.LongCell(7)},
		{Name: "name", Value: base.StringCell("alice")},
	})

	want := "SELECT * FROM users WHERE id = $1 AND name = $2 AND id <> $1"
	if bound != want {
		t.Errorf("bound = %q, want %q", bound, want)
	}
	if len(args) != 2 || args[0] != int64(7) || args[1] != "alice" {
		t.Errorf("args = %v", args)
	}
}

func TestBindNamedLeavesCastsAlone(t *testing.T) {
	sqlText := "SELECT created_at::date FROM t WHERE id = :id"
	bound, args := bindNamed(sqlText, []base.NamedParameter{{Name: "id", Value: base.LongCell(1)}})

	if bound != "SELECT created_at::date FROM t WHERE id = $1" {
		t.Errorf("bound = %q", bound)
	}
	if len(args) != 1 {
		t.Errorf("args = %v", args)
	}
}

func TestIsRowReturning(t *testing.T) {
	tests := []struct {
		sql  string
		want bool
	}{
		{"SELECT 1", true},
		{"  with x as (select 1) select * from x", true},
		{"EXPLAIN SELECT 1", true},
		{"SHOW server_version", true},
		{"UPDATE t SET x = 1", false},
		{"INSERT INTO t VALUES (1) RETURNING id", true},
		{"DELETE FROM t", false},
	}
	for _, tt := range tests {
		if got := isRowReturning(tt.sql); got != tt.want {
			t.Errorf("isRowReturning(%q) = %v, want %v", tt.sql, got, tt.want)
		}
	}
}
