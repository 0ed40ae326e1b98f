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

// Package postgres implements the direct-driver backend connector over
// the PostgreSQL wire protocol. Credentials come from the secrets
// provider and are fetched lazily on first connect.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"axonflow/dbgateway/connection/base"
	"axonflow/dbgateway/connection/secrets"
)

const (
	defaultConnectTimeout   = 30 * time.Second
	defaultStatementTimeout = 30 * time.Second
)

// Connector implements base.Connector with a native driver connection.
type Connector struct {
	descriptor base.Descriptor
	provider   secrets.Provider
	db         *sql.DB
	creds      *secrets.Credentials
	logger     *log.Logger

	connectTimeout   time.Duration
	statementTimeout time.Duration
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(c *Connector) {
		c.logger = l
	}
}

// WithStatementTimeout overrides the session statement timeout applied at
// connect time for read-only descriptors.
func WithStatementTimeout(d time.Duration) Option {
	return func(c *Connector) {
		c.statementTimeout = d
	}
}

// New creates a connector for the given descriptor. No network or
// credential-provider call happens until Connect.
func New(descriptor base.Descriptor, provider secrets.Provider, opts ...Option) *Connector {
	c := &Connector{
		descriptor:       descriptor,
		provider:         provider,
		logger:           log.New(os.Stdout, "[POSTGRES] ", log.LstdFlags),
		connectTimeout:   defaultConnectTimeout,
		statementTimeout: defaultStatementTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Kind returns base.KindDirectPostgres.
func (c *Connector) Kind() base.Kind {
	return base.KindDirectPostgres
}

// Descriptor returns the descriptor this connector was built from.
func (c *Connector) Descriptor() base.Descriptor {
	return c.descriptor
}

// getCredentials resolves credentials on first use and caches them for
// the connector's lifetime. A provider failure surfaces as a connect
// failure.
func (c *Connector) getCredentials(ctx context.Context) (secrets.Credentials, error) {
	if c.creds != nil {
		return *c.creds, nil
	}
	creds, err := c.provider.GetCredentials(ctx, c.descriptor.SecretARN)
	if err != nil {
		return secrets.Credentials{}, base.NewConnectorError(base.KindDirectPostgres, "Connect", "failed to retrieve credentials", err)
	}
	c.creds = &creds
	return creds, nil
}

// dsn builds the driver connection string. Read-only enforcement happens
// here: the session is opened with default_transaction_read_only=on and a
// statement timeout, so every statement on this connection inherits both.
func (c *Connector) dsn(creds secrets.Credentials) string {
	parts := []string{
		"host=" + dsnValue(c.descriptor.Host),
		fmt.Sprintf("port=%d", c.descriptor.PortOrDefault()),
		"dbname=" + dsnValue(c.descriptor.Database),
		"user=" + dsnValue(creds.Username),
		"password=" + dsnValue(creds.Password),
		fmt.Sprintf("connect_timeout=%d", int(c.connectTimeout.Seconds())),
		"application_name=dbgateway",
	}
	if c.descriptor.ReadOnly {
		parts = append(parts, fmt.Sprintf("options='-c default_transaction_read_only=on -c statement_timeout=%d'",
			c.statementTimeout.Milliseconds()))
	}
	return strings.Join(parts, " ")
}

// dsnValue quotes a value for the keyword/value connection string form.
func dsnValue(v string) string {
	if v == "" {
		return "''"
	}
	if !strings.ContainsAny(v, " '\\") {
		return v
	}
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

// Connect opens the driver connection and verifies it with a ping. Safe
// to call again after a prior failure.
func (c *Connector) Connect(ctx context.Context) error {
	if c.db != nil {
		// A stale handle from a failed attempt is discarded, not reused.
		_ = c.db.Close()
		c.db = nil
	}

	creds, err := c.getCredentials(ctx)
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", c.dsn(creds))
	if err != nil {
		return base.NewConnectorError(base.KindDirectPostgres, "Connect", "failed to open connection", err)
	}

	// One pooled connection per connector; the bucket pool above this
	// layer owns concurrency, not database/sql.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, c.connectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return base.NewConnectorError(base.KindDirectPostgres, "Connect", "failed to ping database", err)
	}

	c.db = db
	c.logger.Printf("Connected to PostgreSQL: %s/%s", c.descriptor.Target(), c.descriptor.Database)
	return nil
}

// Disconnect closes the driver connection. Safe to call multiple times.
func (c *Connector) Disconnect(_ context.Context) error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	if err != nil {
		return base.NewConnectorError(base.KindDirectPostgres, "Disconnect", "failed to close connection", err)
	}
	return nil
}

// HealthCheck probes the connection with SELECT 1 and converts any
// failure into false.
func (c *Connector) HealthCheck(ctx context.Context) bool {
	if c.db == nil {
		return false
	}
	var one int
	if err := c.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		c.logger.Printf("Health check failed for %s: %v", c.descriptor.Target(), err)
		return false
	}
	return true
}

// ExecuteQuery runs one statement and returns canonical rows, or the
// affected-row count for non-row statements. Driver errors propagate
// unchanged.
func (c *Connector) ExecuteQuery(ctx context.Context, sqlText string, params []base.NamedParameter) (*base.QueryResult, error) {
	if c.db == nil {
		return nil, base.ErrNotConnected
	}

	bound, args := bindNamed(sqlText, params)

	if !isRowReturning(sqlText) {
		res, err := c.db.ExecContext(ctx, bound, args...)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			affected = 0
		}
		return &base.QueryResult{RowsAffected: affected}, nil
	}

	rows, err := c.db.QueryContext(ctx, bound, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &base.QueryResult{Columns: columns}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		row := make([]base.CellValue, len(columns))
		for i, v := range values {
			row[i] = base.CellFromNative(v)
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

var rowReturningPrefixes = []string{"SELECT", "WITH", "EXPLAIN", "SHOW", "VALUES", "TABLE"}

// isRowReturning reports whether the statement produces a result set.
// Writes only reach this connector when the descriptor is not read-only.
func isRowReturning(sqlText string) bool {
	upper := strings.ToUpper(strings.TrimSpace(sqlText))
	for _, prefix := range rowReturningPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return strings.Contains(upper, "RETURNING")
}

// namedParamRegex matches :name placeholders while leaving ::type casts
// alone.
var namedParamRegex = regexp.MustCompile(`(^|[^:]):([a-zA-Z_][a-zA-Z0-9_]*)`)

// bindNamed rewrites :name placeholders to the driver's $n positional
// form and returns the argument slice in placeholder order.
func bindNamed(sqlText string, params []base.NamedParameter) (string, []interface{}) {
	if len(params) == 0 {
		return sqlText, nil
	}

	byName := make(map[string]base.CellValue, len(params))
	for _, p := range params {
		byName[p.Name] = p.Value
	}

	positions := make(map[string]int)
	var args []interface{}

	bound := namedParamRegex.ReplaceAllStringFunc(sqlText, func(match string) string {
		sub := namedParamRegex.FindStringSubmatch(match)
		prefix, name := sub[1], sub[2]
		value, ok := byName[name]
		if !ok {
			return match
		}
		pos, seen := positions[name]
		if !seen {
			args = append(args, value.Native())
			pos = len(args)
			positions[name] = pos
		}
		return fmt.Sprintf("%s$%d", prefix, pos)
	})

	return bound, args
}
