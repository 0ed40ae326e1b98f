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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbgateway_queries_total",
		Help: "Queries executed through the gateway, by backend and outcome",
	}, []string{"backend", "status"})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dbgateway_query_duration_seconds",
		Help:    "Query execution latency as seen by the gateway",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	safetyRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dbgateway_safety_rejections_total",
		Help: "Statements rejected by the SQL safety gate, by rule",
	}, []string{"rule"})

	activeSessionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dbgateway_active_sessions",
		Help: "Sessions currently tracked by the registry",
	})
)
