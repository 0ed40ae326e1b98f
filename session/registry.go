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

// Package session tracks caller sessions and the pooled connections
// bound to them. A background sweeper reclaims sessions that have been
// idle past the configured timeout so abandoned connections return to
// the pool.
package session

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"axonflow/dbgateway/connection/base"
	"axonflow/dbgateway/connection/pool"
)

const sweepInterval = 60 * time.Second

// DefaultTimeout is how long a session may sit idle before the sweeper
// reclaims it.
const DefaultTimeout = 30 * time.Minute

// Session is one caller's connection context. A session binds at most
// one pooled connection at a time.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu         sync.Mutex
	lastAccess time.Time
	bound      *pool.PooledConnection
	descriptor base.Descriptor
	adHoc      bool
}

// Touch records activity so the idle sweeper skips this session.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

// LastAccess returns the most recent activity time.
func (s *Session) LastAccess() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAccess
}

// Bound returns the currently bound connection, or nil.
func (s *Session) Bound() *pool.PooledConnection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// Descriptor returns the target of the bound connection. The zero value
// means nothing is bound.
func (s *Session) Descriptor() base.Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.descriptor
}

// takeBinding clears the binding and returns what was bound. Exactly one
// caller observes a non-nil result per binding, which is what makes the
// release-once guarantee hold between Unbind and the sweeper.
func (s *Session) takeBinding() (*pool.PooledConnection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pc := s.bound
	adHoc := s.adHoc
	s.bound = nil
	s.descriptor = base.Descriptor{}
	s.adHoc = false
	return pc, adHoc
}

// Registry owns the session map and the idle sweeper. The registry lock
// guards only map membership; connection teardown happens outside it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	timeout time.Duration
	pool    *pool.Pool
	logger  *log.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

// Option configures a Registry.
type Option func(*Registry)

// WithTimeout overrides the idle timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger overrides the default logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates a registry backed by the given pool and starts the
// idle sweeper. Call Close to stop it.
func NewRegistry(p *pool.Pool, opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[string]*Session),
		timeout:  DefaultTimeout,
		pool:     p,
		logger:   log.New(os.Stdout, "[SESSION] ", log.LstdFlags),
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	go r.sweepLoop()
	return r
}

// GetOrCreate returns the session for id, creating it on first use, and
// marks it active.
func (r *Registry) GetOrCreate(id string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.Touch()
		return s
	}

	r.mu.Lock()
	if s, ok = r.sessions[id]; !ok {
		now := time.Now()
		s = &Session{ID: id, CreatedAt: now, lastAccess: now}
		r.sessions[id] = s
		r.logger.Printf("Created session: %s", id)
	}
	r.mu.Unlock()
	s.Touch()
	return s
}

// Get returns the session for id without creating one.
func (r *Registry) Get(id string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Bind attaches a pooled connection to the session, releasing any
// previous binding first. adHoc marks connections that should be torn
// down rather than returned to the pool when the binding ends.
func (r *Registry) Bind(ctx context.Context, s *Session, pc *pool.PooledConnection, descriptor base.Descriptor, adHoc bool) {
	prev, prevAdHoc := s.takeBinding()
	if prev != nil {
		r.releaseBinding(ctx, s.ID, prev, prevAdHoc)
	}

	s.mu.Lock()
	s.bound = pc
	s.descriptor = descriptor
	s.adHoc = adHoc
	s.lastAccess = time.Now()
	s.mu.Unlock()
}

// Unbind detaches and releases the session's connection, if any.
func (r *Registry) Unbind(ctx context.Context, s *Session) {
	pc, adHoc := s.takeBinding()
	if pc != nil {
		r.releaseBinding(ctx, s.ID, pc, adHoc)
	}
}

// Remove unbinds the session and drops it from the registry.
func (r *Registry) Remove(ctx context.Context, id string) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		r.Unbind(ctx, s)
	}
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Close stops the sweeper and reclaims every session.
func (r *Registry) Close(ctx context.Context) {
	r.stopOnce.Do(func() { close(r.stop) })

	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		r.Unbind(ctx, s)
	}
}

func (r *Registry) releaseBinding(ctx context.Context, sessionID string, pc *pool.PooledConnection, adHoc bool) {
	if adHoc {
		r.pool.Discard(ctx, pc)
		r.logger.Printf("Discarded ad-hoc connection for session: %s", sessionID)
		return
	}
	r.pool.Release(pc)
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.sweep(context.Background())
		}
	}
}

// sweep reclaims sessions idle past the timeout. Expired sessions are
// collected under the lock and torn down after it is dropped.
func (r *Registry) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-r.timeout)

	r.mu.Lock()
	var expired []*Session
	for id, s := range r.sessions {
		if s.LastAccess().Before(cutoff) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		r.logger.Printf("Session expired after idle timeout: %s", s.ID)
		r.Unbind(ctx, s)
	}
}
