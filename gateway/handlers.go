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

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"axonflow/dbgateway/connection/base"
	"axonflow/dbgateway/safety"
)

// queryRequest is the body of POST /api/v1/query.
type queryRequest struct {
	SessionID  string            `json:"session_id,omitempty"`
	SQL        string            `json:"sql"`
	Parameters []namedParamJSON  `json:"parameters,omitempty"`
	Connection *ConnectRequest   `json:"connection,omitempty"`
}

type namedParamJSON struct {
	Name  string      `json:"name"`
	Value interface{} `json:"value"`
}

// queryResponse renders a query result. Rows are value arrays in column
// order so callers never depend on JSON object key ordering.
type queryResponse struct {
	SessionID    string          `json:"session_id"`
	RequestID    string          `json:"request_id"`
	Columns      []string        `json:"columns"`
	Rows         [][]interface{} `json:"rows"`
	RowCount     int             `json:"row_count"`
	RowsAffected int64           `json:"rows_affected"`
}

type connectRequestBody struct {
	SessionID  string          `json:"session_id,omitempty"`
	Connection *ConnectRequest `json:"connection,omitempty"`
}

type errorResponse struct {
	Error     string `json:"error"`
	Rule      string `json:"rule,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Router builds the gateway's HTTP API.
func (s *Service) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/api/v1/query", s.queryHandler).Methods("POST")
	r.HandleFunc("/api/v1/connect", s.connectHandler).Methods("POST")
	r.HandleFunc("/api/v1/disconnect", s.disconnectHandler).Methods("POST")
	r.HandleFunc("/api/v1/pool/stats", s.poolStatsHandler).Methods("GET")
	return r
}

func (s *Service) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"service":  "dbgateway",
		"sessions": s.SessionCount(),
	})
}

func (s *Service) queryHandler(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, requestID, "invalid request body", "")
		return
	}
	if req.SQL == "" {
		writeError(w, http.StatusBadRequest, requestID, "sql is required", "")
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	params := make([]base.NamedParameter, 0, len(req.Parameters))
	for _, p := range req.Parameters {
		params = append(params, base.NamedParameter{
			Name:  p.Name,
			Value: base.CellFromNative(p.Value),
		})
	}

	result, err := s.ExecuteQuery(r.Context(), sessionID, requestID, req.SQL, params, req.Connection)
	if err != nil {
		status, rule := classifyError(err)
		writeError(w, status, requestID, err.Error(), rule)
		return
	}

	rows := make([][]interface{}, len(result.Rows))
	for i, row := range result.Rows {
		rendered := make([]interface{}, len(row))
		for j, cell := range row {
			rendered[j] = cell.Native()
		}
		rows[i] = rendered
	}

	writeJSON(w, http.StatusOK, queryResponse{
		SessionID:    sessionID,
		RequestID:    requestID,
		Columns:      result.Columns,
		Rows:         rows,
		RowCount:     len(rows),
		RowsAffected: result.RowsAffected,
	})
}

func (s *Service) connectHandler(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	var req connectRequestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, requestID, "invalid request body", "")
		return
	}
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	descriptor, err := s.Connect(r.Context(), sessionID, req.Connection)
	if err != nil {
		status, _ := classifyError(err)
		writeError(w, status, requestID, err.Error(), "")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": sessionID,
		"request_id": requestID,
		"backend":    string(descriptor.Kind),
		"target":     descriptor.Target(),
		"readonly":   descriptor.ReadOnly,
	})
}

func (s *Service) disconnectHandler(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()

	var req struct {
		SessionID string `json:"session_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, requestID, "invalid request body", "")
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, requestID, "session_id is required", "")
		return
	}

	s.Disconnect(r.Context(), req.SessionID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": req.SessionID,
		"request_id": requestID,
		"status":     "disconnected",
	})
}

func (s *Service) poolStatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"buckets":  s.PoolStats(),
		"sessions": s.SessionCount(),
	})
}

// classifyError maps service errors to HTTP status codes. Safety
// violations are client errors; an exhausted pool is a capacity signal.
func classifyError(err error) (int, string) {
	var violation *safety.Violation
	if errors.As(err, &violation) {
		return http.StatusBadRequest, string(violation.Rule)
	}
	if errors.Is(err, base.ErrPoolExhausted) {
		return http.StatusServiceUnavailable, ""
	}
	if errors.Is(err, ErrNoTarget) {
		return http.StatusBadRequest, ""
	}
	var ce *base.ConnectorError
	if errors.As(err, &ce) && ce.Op == "Connect" {
		return http.StatusBadGateway, ""
	}
	return http.StatusInternalServerError, ""
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		http.Error(w, "encoding response failed", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, requestID, message, rule string) {
	writeJSON(w, status, errorResponse{
		Error:     message,
		Rule:      rule,
		RequestID: requestID,
	})
}
