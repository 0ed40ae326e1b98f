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

// Package pool maintains bounded buckets of backend connectors keyed by
// connection descriptor. A bucket never exceeds its configured max size,
// a connection is in use by at most one caller at a time, and a failed
// health check evicts the connection rather than skipping it.
package pool

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"axonflow/dbgateway/connection/base"
)

// Config controls pool sizing. MinSize is advisory; buckets fill lazily.
type Config struct {
	MinSize        int
	MaxSize        int
	AcquireTimeout time.Duration
}

// DefaultConfig mirrors the documented environment defaults.
func DefaultConfig() Config {
	return Config{
		MinSize:        5,
		MaxSize:        30,
		AcquireTimeout: 30 * time.Second,
	}
}

// Factory builds a connector for a descriptor. The pool connects it
// before handing it out.
type Factory func(base.Descriptor) base.Connector

// PooledConnection is a bucket member. It belongs to exactly one bucket
// for its whole lifetime.
type PooledConnection struct {
	conn base.Connector
	key  string

	// inUse is guarded by the owning pool's mutex.
	inUse bool
}

// Connector returns the underlying backend connector.
func (pc *PooledConnection) Connector() base.Connector {
	return pc.conn
}

// Key returns the bucket key this connection belongs to.
func (pc *PooledConnection) Key() string {
	return pc.key
}

type bucket struct {
	descriptor base.Descriptor
	conns      []*PooledConnection
}

func (b *bucket) inUseCount() int {
	n := 0
	for _, pc := range b.conns {
		if pc.inUse {
			n++
		}
	}
	return n
}

// Pool manages one bucket per descriptor key. All bucket mutation is
// guarded by a single mutex so the membership invariants hold across
// concurrent acquires.
type Pool struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cfg     Config
	factory Factory
	logger  *log.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(p *Pool) {
		p.logger = l
	}
}

// New creates a pool. The factory is consulted whenever a bucket needs a
// fresh connector.
func New(cfg Config, factory Factory, opts ...Option) *Pool {
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = DefaultConfig().MaxSize
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultConfig().AcquireTimeout
	}
	p := &Pool{
		buckets: make(map[string]*bucket),
		cfg:     cfg,
		factory: factory,
		logger:  log.New(os.Stdout, "[POOL] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire returns a healthy connection for the descriptor, creating the
// bucket and the connection as needed. Idle members that fail their
// health check are evicted and disconnected, not skipped. At capacity
// with nothing idle, Acquire fails immediately with ErrPoolExhausted.
func (p *Pool) Acquire(ctx context.Context, descriptor base.Descriptor) (*PooledConnection, error) {
	if err := descriptor.Validate(); err != nil {
		acquireErrorsTotal.Inc()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()

	key := descriptor.Key()

	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.buckets[key]
	if !ok {
		b = &bucket{descriptor: descriptor}
		p.buckets[key] = b
		p.logger.Printf("Created connection pool bucket: %s", key)
	}

	// Scan idle members. The health-check-and-evict sequence runs under
	// the pool lock so two callers cannot race to reuse or evict the
	// same candidate.
	for i := 0; i < len(b.conns); {
		pc := b.conns[i]
		if pc.inUse {
			i++
			continue
		}
		if pc.conn.HealthCheck(ctx) {
			pc.inUse = true
			acquiresTotal.Inc()
			observeBucket(key, len(b.conns), b.inUseCount())
			return pc, nil
		}

		// A failed health check shrinks the pool.
		b.conns = append(b.conns[:i], b.conns[i+1:]...)
		if err := pc.conn.Disconnect(ctx); err != nil {
			p.logger.Printf("Error disconnecting evicted connection in %s: %v", key, err)
		}
		evictionsTotal.Inc()
		p.logger.Printf("Evicted unhealthy connection from bucket: %s", key)
	}

	if len(b.conns) >= p.cfg.MaxSize {
		exhaustedTotal.Inc()
		observeBucket(key, len(b.conns), b.inUseCount())
		return nil, fmt.Errorf("%w: %s", base.ErrPoolExhausted, key)
	}

	conn := p.factory(descriptor)
	if err := conn.Connect(ctx); err != nil {
		acquireErrorsTotal.Inc()
		return nil, fmt.Errorf("failed to create connection for bucket %s: %w", key, err)
	}

	pc := &PooledConnection{conn: conn, key: key, inUse: true}
	b.conns = append(b.conns, pc)
	acquiresTotal.Inc()
	observeBucket(key, len(b.conns), b.inUseCount())
	p.logger.Printf("Created new connection for bucket: %s (total=%d)", key, len(b.conns))
	return pc, nil
}

// Release returns a connection to its bucket. Releasing a connection the
// pool does not consider in use is a warning, not an error, so a double
// release cannot corrupt bucket state.
func (p *Pool) Release(pc *PooledConnection) {
	if pc == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.buckets[pc.key]
	if !ok {
		p.logger.Printf("Warning: released connection references unknown bucket %s", pc.key)
		return
	}

	for _, member := range b.conns {
		if member == pc {
			if !member.inUse {
				p.logger.Printf("Warning: connection in bucket %s released twice", pc.key)
				return
			}
			member.inUse = false
			observeBucket(pc.key, len(b.conns), b.inUseCount())
			return
		}
	}

	p.logger.Printf("Warning: released connection not found in bucket %s", pc.key)
}

// Discard removes a connection from its bucket entirely and disconnects
// it. Used when a caller knows the connection should not be reused, such
// as tearing down an ad-hoc session binding.
func (p *Pool) Discard(ctx context.Context, pc *PooledConnection) {
	if pc == nil {
		return
	}

	p.mu.Lock()
	b, ok := p.buckets[pc.key]
	if ok {
		for i, member := range b.conns {
			if member == pc {
				b.conns = append(b.conns[:i], b.conns[i+1:]...)
				break
			}
		}
		observeBucket(pc.key, len(b.conns), b.inUseCount())
	}
	p.mu.Unlock()

	if err := pc.conn.Disconnect(ctx); err != nil {
		p.logger.Printf("Error disconnecting discarded connection in %s: %v", pc.key, err)
	}
}

// CloseAll disconnects every connection in every bucket and clears the
// pool. Used at process shutdown.
func (p *Pool) CloseAll(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for key, b := range p.buckets {
		for _, pc := range b.conns {
			if err := pc.conn.Disconnect(ctx); err != nil {
				p.logger.Printf("Error closing connection in %s: %v", key, err)
			}
		}
		b.conns = nil
		forgetBucket(key)
	}
	p.buckets = make(map[string]*bucket)
	p.logger.Printf("All connection pool buckets closed")
}

// BucketStats is a point-in-time view of one bucket.
type BucketStats struct {
	Total     int       `json:"total"`
	InUse     int       `json:"in_use"`
	Available int       `json:"available"`
	Kind      base.Kind `json:"kind"`
}

// Stats returns per-bucket statistics keyed by descriptor key.
func (p *Pool) Stats() map[string]BucketStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := make(map[string]BucketStats, len(p.buckets))
	for key, b := range p.buckets {
		inUse := b.inUseCount()
		stats[key] = BucketStats{
			Total:     len(b.conns),
			InUse:     inUse,
			Available: len(b.conns) - inUse,
			Kind:      b.descriptor.Kind,
		}
	}
	return stats
}
