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

import "fmt"

// CellType enumerates the scalar kinds a canonical cell can hold.
type CellType int

const (
	CellNull CellType = iota
	CellString
	CellLong
	CellDouble
	CellBool
	CellBlob
	CellArray
)

// String returns the type name for logging and diagnostics.
func (t CellType) String() string {
	switch t {
	case CellNull:
		return "null"
	case CellString:
		return "string"
	case CellLong:
		return "long"
	case CellDouble:
		return "double"
	case CellBool:
		return "boolean"
	case CellBlob:
		return "blob"
	case CellArray:
		return "array"
	default:
		return "unknown"
	}
}

// CellValue is the canonical typed cell both connector variants produce.
// It is decoded once at the connector boundary; callers switch on Type
// instead of re-inspecting backend-specific tagged unions.
type CellValue struct {
	Type   CellType
	String string
	Long   int64
	Double float64
	Bool   bool
	Blob   []byte
	Array  []CellValue
}

// NullCell returns a null cell.
func NullCell() CellValue { return CellValue{Type: CellNull} }

// StringCell returns a string cell.
func StringCell(s string) CellValue { return CellValue{Type: CellString, String: s} }

// LongCell returns an integer cell.
func LongCell(v int64) CellValue { return CellValue{Type: CellLong, Long: v} }

// DoubleCell returns a float cell.
func DoubleCell(v float64) CellValue { return CellValue{Type: CellDouble, Double: v} }

// BoolCell returns a boolean cell.
func BoolCell(v bool) CellValue { return CellValue{Type: CellBool, Bool: v} }

// BlobCell returns a binary cell.
func BlobCell(b []byte) CellValue { return CellValue{Type: CellBlob, Blob: b} }

// ArrayCell returns an array cell.
func ArrayCell(values []CellValue) CellValue { return CellValue{Type: CellArray, Array: values} }

// CellFromNative classifies a Go value into a CellValue, falling back to
// its string rendering for anything it cannot classify.
func CellFromNative(v interface{}) CellValue {
	switch val := v.(type) {
	case nil:
		return NullCell()
	case string:
		return StringCell(val)
	case []byte:
		return StringCell(string(val))
	case bool:
		return BoolCell(val)
	case int:
		return LongCell(int64(val))
	case int32:
		return LongCell(int64(val))
	case int64:
		return LongCell(val)
	case float32:
		return DoubleCell(float64(val))
	case float64:
		return DoubleCell(val)
	default:
		return StringCell(fmt.Sprintf("%v", val))
	}
}

// Native returns the cell as a plain Go value suitable for JSON encoding.
func (c CellValue) Native() interface{} {
	switch c.Type {
	case CellNull:
		return nil
	case CellString:
		return c.String
	case CellLong:
		return c.Long
	case CellDouble:
		return c.Double
	case CellBool:
		return c.Bool
	case CellBlob:
		return c.Blob
	case CellArray:
		out := make([]interface{}, len(c.Array))
		for i, v := range c.Array {
			out[i] = v.Native()
		}
		return out
	default:
		return nil
	}
}

// NamedParameter is a query parameter bound by name.
type NamedParameter struct {
	Name  string    `json:"name"`
	Value CellValue `json:"value"`
}

// QueryResult is the canonical response shape for one statement. Columns
// preserves the backend column order; every row has one cell per column.
// Non-row statements carry an empty Rows slice and RowsAffected.
type QueryResult struct {
	Columns      []string      `json:"columns"`
	Rows         [][]CellValue `json:"-"`
	RowsAffected int64         `json:"rows_affected"`
}

// Maps renders rows as column-name keyed maps. Ordering is preserved by
// the Columns slice, not the map iteration order.
func (r *QueryResult) Maps() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(r.Rows))
	for _, row := range r.Rows {
		m := make(map[string]interface{}, len(r.Columns))
		for i, col := range r.Columns {
			if i < len(row) {
				m[col] = row[i].Native()
			}
		}
		out = append(out, m)
	}
	return out
}
