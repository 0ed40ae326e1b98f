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

// Package main is the entry point for the database gateway service.
//
// The gateway provides a unified connection layer over PostgreSQL
// backends, reachable either through the RDS Data API or a direct
// driver connection:
// - Bounded per-target connection pooling with health-check eviction
// - SQL safety gating (read-only policy and injection screening)
// - Session-scoped connection reuse with idle expiry
//
// Usage:
//
//	./dbgateway
//
// Environment Variables:
//
//	PORT - HTTP server port (default: 8080)
//	POOL_MIN_SIZE, POOL_MAX_SIZE, POOL_ACQUIRE_TIMEOUT - pool sizing
//	SESSION_TIMEOUT - idle session expiry in seconds (default: 1800)
//	POSTGRES_RESOURCE_ARN or POSTGRES_HOSTNAME - default target
//	POSTGRES_DATABASE, POSTGRES_SECRET_ARN, POSTGRES_REGION
//	DBGATEWAY_CONFIG - optional YAML config file path
package main

import (
	"axonflow/dbgateway/gateway"
)

func main() {
	gateway.Run()
}
