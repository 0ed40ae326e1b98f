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

package pool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	acquiresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dbgateway_pool_acquires_total",
		Help: "Total successful connection acquires across all buckets",
	})

	acquireErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dbgateway_pool_acquire_errors_total",
		Help: "Total failed acquires (connect failures and validation errors)",
	})

	exhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dbgateway_pool_exhausted_total",
		Help: "Total acquires rejected because a bucket was at capacity",
	})

	evictionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dbgateway_pool_evictions_total",
		Help: "Total connections evicted after a failed health check",
	})

	connectionsGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dbgateway_pool_connections",
		Help: "Current pool membership per bucket and state",
	}, []string{"bucket", "state"})
)

// observeBucket refreshes the per-bucket gauges. Called with the pool
// lock held.
func observeBucket(key string, total, inUse int) {
	connectionsGauge.WithLabelValues(key, "total").Set(float64(total))
	connectionsGauge.WithLabelValues(key, "in_use").Set(float64(inUse))
	connectionsGauge.WithLabelValues(key, "available").Set(float64(total - inUse))
}

// forgetBucket drops the gauges for a deleted bucket.
func forgetBucket(key string) {
	connectionsGauge.DeleteLabelValues(key, "total")
	connectionsGauge.DeleteLabelValues(key, "in_use")
	connectionsGauge.DeleteLabelValues(key, "available")
}
