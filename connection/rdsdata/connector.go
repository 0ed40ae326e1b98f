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

// Package rdsdata implements the managed-API backend connector. It talks
// to PostgreSQL through the stateless RDS Data API and authenticates by
// secret reference, so no credential material ever passes through this
// process.
package rdsdata

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata"
	"github.com/aws/aws-sdk-go-v2/service/rdsdata/types"

	"axonflow/dbgateway/connection/base"
)

// Client is the subset of the RDS Data API used by the connector,
// extracted so tests can substitute a fake.
type Client interface {
	ExecuteStatement(ctx context.Context, params *rdsdata.ExecuteStatementInput, optFns ...func(*rdsdata.Options)) (*rdsdata.ExecuteStatementOutput, error)
	BeginTransaction(ctx context.Context, params *rdsdata.BeginTransactionInput, optFns ...func(*rdsdata.Options)) (*rdsdata.BeginTransactionOutput, error)
	CommitTransaction(ctx context.Context, params *rdsdata.CommitTransactionInput, optFns ...func(*rdsdata.Options)) (*rdsdata.CommitTransactionOutput, error)
	RollbackTransaction(ctx context.Context, params *rdsdata.RollbackTransactionInput, optFns ...func(*rdsdata.Options)) (*rdsdata.RollbackTransactionOutput, error)
}

// Connector implements base.Connector against the RDS Data API.
type Connector struct {
	descriptor base.Descriptor
	client     Client
	connected  bool
	logger     *log.Logger
}

// Option configures a Connector.
type Option func(*Connector)

// WithClient injects a pre-built RDS Data API client. Used by tests and
// by callers that share one client across connectors.
func WithClient(c Client) Option {
	return func(conn *Connector) {
		conn.client = c
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(conn *Connector) {
		conn.logger = l
	}
}

// New creates a connector for the given descriptor. The API client is
// created lazily on first use unless injected.
func New(descriptor base.Descriptor, opts ...Option) *Connector {
	c := &Connector{
		descriptor: descriptor,
		logger:     log.New(os.Stdout, "[RDSDATA] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Kind returns base.KindRDSDataAPI.
func (c *Connector) Kind() base.Kind {
	return base.KindRDSDataAPI
}

// Descriptor returns the descriptor this connector was built from.
func (c *Connector) Descriptor() base.Descriptor {
	return c.descriptor
}

func (c *Connector) getClient(ctx context.Context) (Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(c.descriptor.Region))
	if err != nil {
		return nil, base.NewConnectorError(base.KindRDSDataAPI, "Connect", "failed to load AWS config", err)
	}

	c.client = rdsdata.NewFromConfig(cfg)
	return c.client, nil
}

// Connect verifies that the Data API is reachable with the configured
// resource and secret by running a trivial statement. The Data API itself
// is stateless; there is no channel to hold open.
func (c *Connector) Connect(ctx context.Context) error {
	client, err := c.getClient(ctx)
	if err != nil {
		return err
	}

	_, err = client.ExecuteStatement(ctx, &rdsdata.ExecuteStatementInput{
		ResourceArn:           aws.String(c.descriptor.ResourceARN),
		SecretArn:             aws.String(c.descriptor.SecretARN),
		Database:              aws.String(c.descriptor.Database),
		Sql:                   aws.String("SELECT 1"),
		IncludeResultMetadata: true,
	})
	if err != nil {
		c.connected = false
		return base.NewConnectorError(base.KindRDSDataAPI, "Connect", "connection test failed", err)
	}

	c.connected = true
	c.logger.Printf("Connected to RDS Data API: %s", c.descriptor.ResourceARN)
	return nil
}

// Disconnect marks the connector disconnected. Safe to call repeatedly;
// the Data API holds no native resources.
func (c *Connector) Disconnect(_ context.Context) error {
	c.connected = false
	return nil
}

// HealthCheck probes the backend with SELECT 1 and converts any failure
// into false.
func (c *Connector) HealthCheck(ctx context.Context) bool {
	if _, err := c.ExecuteQuery(ctx, "SELECT 1", nil); err != nil {
		c.logger.Printf("Health check failed for %s: %v", c.descriptor.ResourceARN, err)
		return false
	}
	return true
}

// ExecuteQuery runs one statement. When the descriptor is read-only the
// statement executes inside a fresh READ ONLY transaction; otherwise it is
// a plain auto-commit call.
func (c *Connector) ExecuteQuery(ctx context.Context, sql string, params []base.NamedParameter) (*base.QueryResult, error) {
	client, err := c.getClient(ctx)
	if err != nil {
		return nil, err
	}

	input := &rdsdata.ExecuteStatementInput{
		ResourceArn:           aws.String(c.descriptor.ResourceARN),
		SecretArn:             aws.String(c.descriptor.SecretARN),
		Database:              aws.String(c.descriptor.Database),
		Sql:                   aws.String(sql),
		IncludeResultMetadata: true,
		Parameters:            encodeParameters(params),
	}

	var out *rdsdata.ExecuteStatementOutput
	if c.descriptor.ReadOnly {
		out, err = c.executeReadOnly(ctx, client, input)
	} else {
		out, err = client.ExecuteStatement(ctx, input)
	}
	if err != nil {
		return nil, err
	}

	return decodeOutput(out), nil
}

// executeReadOnly wraps the statement in a read-only transaction:
// begin -> SET TRANSACTION READ ONLY -> execute with the tx id -> commit.
// Any failure triggers a rollback attempt before the original error
// propagates; a rollback failure is logged, not raised. Transaction ids
// are never reused across calls.
func (c *Connector) executeReadOnly(ctx context.Context, client Client, input *rdsdata.ExecuteStatementInput) (*rdsdata.ExecuteStatementOutput, error) {
	begin, err := client.BeginTransaction(ctx, &rdsdata.BeginTransactionInput{
		ResourceArn: input.ResourceArn,
		SecretArn:   input.SecretArn,
		Database:    input.Database,
	})
	if err != nil {
		return nil, base.NewConnectorError(base.KindRDSDataAPI, "ExecuteQuery", "failed to begin transaction", err)
	}
	txID := begin.TransactionId

	rollback := func(cause error) {
		if _, rbErr := client.RollbackTransaction(ctx, &rdsdata.RollbackTransactionInput{
			ResourceArn:   input.ResourceArn,
			SecretArn:     input.SecretArn,
			TransactionId: txID,
		}); rbErr != nil {
			c.logger.Printf("Failed to rollback transaction %s after %v: %v", aws.ToString(txID), cause, rbErr)
		}
	}

	if _, err := client.ExecuteStatement(ctx, &rdsdata.ExecuteStatementInput{
		ResourceArn:   input.ResourceArn,
		SecretArn:     input.SecretArn,
		Database:      input.Database,
		Sql:           aws.String("SET TRANSACTION READ ONLY"),
		TransactionId: txID,
	}); err != nil {
		rollback(err)
		return nil, base.NewConnectorError(base.KindRDSDataAPI, "ExecuteQuery", "failed to set transaction read only", err)
	}

	input.TransactionId = txID
	out, err := client.ExecuteStatement(ctx, input)
	if err != nil {
		rollback(err)
		return nil, err
	}

	if _, err := client.CommitTransaction(ctx, &rdsdata.CommitTransactionInput{
		ResourceArn:   input.ResourceArn,
		SecretArn:     input.SecretArn,
		TransactionId: txID,
	}); err != nil {
		rollback(err)
		return nil, base.NewConnectorError(base.KindRDSDataAPI, "ExecuteQuery", "failed to commit transaction", err)
	}

	return out, nil
}

// encodeParameters converts named parameters to the Data API's tagged
// union form.
func encodeParameters(params []base.NamedParameter) []types.SqlParameter {
	if len(params) == 0 {
		return nil
	}

	out := make([]types.SqlParameter, 0, len(params))
	for _, p := range params {
		out = append(out, types.SqlParameter{
			Name:  aws.String(p.Name),
			Value: encodeField(p.Value),
		})
	}
	return out
}

func encodeField(v base.CellValue) types.Field {
	switch v.Type {
	case base.CellNull:
		return &types.FieldMemberIsNull{Value: true}
	case base.CellString:
		return &types.FieldMemberStringValue{Value: v.String}
	case base.CellLong:
		return &types.FieldMemberLongValue{Value: v.Long}
	case base.CellDouble:
		return &types.FieldMemberDoubleValue{Value: v.Double}
	case base.CellBool:
		return &types.FieldMemberBooleanValue{Value: v.Bool}
	case base.CellBlob:
		return &types.FieldMemberBlobValue{Value: v.Blob}
	default:
		return &types.FieldMemberStringValue{Value: v.String}
	}
}

// decodeOutput translates a Data API response into the canonical result
// shape.
func decodeOutput(out *rdsdata.ExecuteStatementOutput) *base.QueryResult {
	result := &base.QueryResult{
		RowsAffected: out.NumberOfRecordsUpdated,
	}

	for _, col := range out.ColumnMetadata {
		name := aws.ToString(col.Label)
		if name == "" {
			name = aws.ToString(col.Name)
		}
		result.Columns = append(result.Columns, name)
	}

	for _, record := range out.Records {
		row := make([]base.CellValue, 0, len(record))
		for _, field := range record {
			row = append(row, decodeField(field))
		}
		result.Rows = append(result.Rows, row)
	}

	return result
}

// decodeField maps the Data API tagged union onto the CellValue sum type,
// falling back to a string rendering for union members this connector
// does not classify.
func decodeField(f types.Field) base.CellValue {
	switch v := f.(type) {
	case *types.FieldMemberIsNull:
		return base.NullCell()
	case *types.FieldMemberStringValue:
		return base.StringCell(v.Value)
	case *types.FieldMemberLongValue:
		return base.LongCell(v.Value)
	case *types.FieldMemberDoubleValue:
		return base.DoubleCell(v.Value)
	case *types.FieldMemberBooleanValue:
		return base.BoolCell(v.Value)
	case *types.FieldMemberBlobValue:
		return base.BlobCell(v.Value)
	case *types.FieldMemberArrayValue:
		return decodeArray(v.Value)
	default:
		return base.CellFromNative(f)
	}
}

func decodeArray(a types.ArrayValue) base.CellValue {
	switch v := a.(type) {
	case *types.ArrayValueMemberStringValues:
		cells := make([]base.CellValue, 0, len(v.Value))
		for _, s := range v.Value {
			cells = append(cells, base.StringCell(s))
		}
		return base.ArrayCell(cells)
	case *types.ArrayValueMemberLongValues:
		cells := make([]base.CellValue, 0, len(v.Value))
		for _, n := range v.Value {
			cells = append(cells, base.LongCell(n))
		}
		return base.ArrayCell(cells)
	case *types.ArrayValueMemberDoubleValues:
		cells := make([]base.CellValue, 0, len(v.Value))
		for _, n := range v.Value {
			cells = append(cells, base.DoubleCell(n))
		}
		return base.ArrayCell(cells)
	case *types.ArrayValueMemberBooleanValues:
		cells := make([]base.CellValue, 0, len(v.Value))
		for _, b := range v.Value {
			cells = append(cells, base.BoolCell(b))
		}
		return base.ArrayCell(cells)
	case *types.ArrayValueMemberArrayValues:
		cells := make([]base.CellValue, 0, len(v.Value))
		for _, inner := range v.Value {
			cells = append(cells, decodeArray(inner))
		}
		return base.ArrayCell(cells)
	default:
		return base.CellFromNative(a)
	}
}
