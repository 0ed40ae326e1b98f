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

// Package gateway composes the connection pool, session registry, SQL
// safety gate and credential provider into one query service, and
// exposes it over HTTP.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"axonflow/dbgateway/config"
	"axonflow/dbgateway/connection"
	"axonflow/dbgateway/connection/base"
	"axonflow/dbgateway/connection/pool"
	"axonflow/dbgateway/connection/secrets"
	"axonflow/dbgateway/safety"
	"axonflow/dbgateway/session"
	"axonflow/dbgateway/shared/logger"
)

// ErrNoTarget means a request carried no connection parameters and no
// default target is configured.
var ErrNoTarget = errors.New("no connection target: supply connection parameters or configure a default")

// ConnectRequest carries per-request connection parameters. Either a
// resource ARN (managed API) or a hostname (direct driver) selects the
// backend.
type ConnectRequest struct {
	ResourceARN string `json:"resource_arn,omitempty"`
	Hostname    string `json:"hostname,omitempty"`
	Port        int    `json:"port,omitempty"`
	Database    string `json:"database"`
	SecretARN   string `json:"secret_arn,omitempty"`
	Region      string `json:"region,omitempty"`
	ReadOnly    *bool  `json:"readonly,omitempty"`
}

// Descriptor converts the request into a connection descriptor. ReadOnly
// defaults to true when the request leaves it unset.
func (r *ConnectRequest) Descriptor(defaultRegion string) base.Descriptor {
	d := base.Descriptor{
		ResourceARN: r.ResourceARN,
		Host:        r.Hostname,
		Port:        r.Port,
		Database:    r.Database,
		SecretARN:   r.SecretARN,
		Region:      r.Region,
		ReadOnly:    true,
	}
	if d.Region == "" {
		d.Region = defaultRegion
	}
	if r.ReadOnly != nil {
		d.ReadOnly = *r.ReadOnly
	}
	// An empty kind is caught by Descriptor.Validate at acquire time.
	d.Kind, _ = base.DetermineKind(d.ResourceARN, d.Host)
	return d
}

// Service is the gateway's core. All collaborators are passed in at
// construction; there is no package-level state beyond metrics.
type Service struct {
	cfg      *config.Config
	pool     *pool.Pool
	sessions *session.Registry
	gate     *safety.Gate
	log      *logger.Logger
}

// NewService wires the service from its collaborators. The credential
// provider feeds the direct-driver connector factory.
func NewService(cfg *config.Config, provider secrets.Provider) *Service {
	factory := connection.NewFactory(provider)
	p := pool.New(pool.Config{
		MinSize:        cfg.Pool.MinSize,
		MaxSize:        cfg.Pool.MaxSize,
		AcquireTimeout: cfg.Pool.AcquireTimeout,
	}, factory.Build)

	return &Service{
		cfg:      cfg,
		pool:     p,
		sessions: session.NewRegistry(p, session.WithTimeout(cfg.Session.Timeout)),
		gate:     safety.NewGate(),
		log:      logger.New("gateway"),
	}
}

// newServiceWithPool exists for tests that inject a pool backed by fake
// connectors.
func newServiceWithPool(cfg *config.Config, p *pool.Pool) *Service {
	return &Service{
		cfg:      cfg,
		pool:     p,
		sessions: session.NewRegistry(p, session.WithTimeout(cfg.Session.Timeout)),
		gate:     safety.NewGate(),
		log:      logger.New("gateway"),
	}
}

// ExecuteQuery runs one statement in the context of a session. The
// statement passes the safety gate before any backend work. A request
// with override parameters rebinds the session to that target first;
// otherwise the session's bound connection, or the configured default
// target, is used.
func (s *Service) ExecuteQuery(ctx context.Context, sessionID, requestID, sql string, params []base.NamedParameter, override *ConnectRequest) (*base.QueryResult, error) {
	sess := s.sessions.GetOrCreate(sessionID)
	activeSessionsGauge.Set(float64(s.sessions.Count()))

	// The target is resolved before any pool work so a rejected
	// statement never acquires a connection.
	var descriptor base.Descriptor
	switch {
	case override != nil:
		descriptor = override.Descriptor(s.defaultRegion())
	case sess.Bound() != nil:
		descriptor = sess.Descriptor()
	case s.cfg.HasDefaultTarget():
		descriptor = s.cfg.DefaultTarget
	default:
		return nil, ErrNoTarget
	}
	backend := string(descriptor.Kind)

	if verdict := s.gate.Check(sql, descriptor.ReadOnly); !verdict.Allowed {
		safetyRejectionsTotal.WithLabelValues(string(verdict.Rule)).Inc()
		queriesTotal.WithLabelValues(backend, "rejected").Inc()
		s.log.Warn(sessionID, requestID, "Query rejected by safety gate", map[string]interface{}{
			"rule":    string(verdict.Rule),
			"matched": verdict.Matched,
		})
		return nil, verdict.Err()
	}

	if err := s.bind(ctx, sess, descriptor, override != nil); err != nil {
		return nil, err
	}
	pc := sess.Bound()

	start := time.Now()
	result, err := connection.Wrap(pc.Connector()).ExecuteQuery(ctx, sql, params)
	queryDuration.WithLabelValues(backend).Observe(time.Since(start).Seconds())
	if err != nil {
		queriesTotal.WithLabelValues(backend, "error").Inc()
		s.log.ErrorWithCode(sessionID, requestID, "Query execution failed", 0, err, map[string]interface{}{
			"backend": backend,
			"target":  descriptor.Target(),
		})
		return nil, err
	}

	queriesTotal.WithLabelValues(backend, "success").Inc()
	s.log.InfoWithDuration(sessionID, requestID, "Query executed",
		float64(time.Since(start).Milliseconds()), map[string]interface{}{
			"backend": backend,
			"rows":    len(result.Rows),
		})
	return result, nil
}

// Connect binds a session to a connection target ahead of any query. A
// nil request binds the configured default target.
func (s *Service) Connect(ctx context.Context, sessionID string, req *ConnectRequest) (base.Descriptor, error) {
	sess := s.sessions.GetOrCreate(sessionID)
	activeSessionsGauge.Set(float64(s.sessions.Count()))

	var descriptor base.Descriptor
	adHoc := false
	if req != nil {
		descriptor = req.Descriptor(s.defaultRegion())
		adHoc = true
	} else {
		if !s.cfg.HasDefaultTarget() {
			return base.Descriptor{}, ErrNoTarget
		}
		descriptor = s.cfg.DefaultTarget
	}

	if err := s.bind(ctx, sess, descriptor, adHoc); err != nil {
		return base.Descriptor{}, err
	}
	return descriptor, nil
}

// Disconnect releases the session's bound connection and removes the
// session. Unknown session ids are a no-op.
func (s *Service) Disconnect(ctx context.Context, sessionID string) {
	s.sessions.Remove(ctx, sessionID)
	activeSessionsGauge.Set(float64(s.sessions.Count()))
}

// PoolStats returns a snapshot of every pool bucket.
func (s *Service) PoolStats() map[string]pool.BucketStats {
	return s.pool.Stats()
}

// SessionCount returns the number of live sessions.
func (s *Service) SessionCount() int {
	return s.sessions.Count()
}

// Close reclaims all sessions and closes every pooled connection.
func (s *Service) Close(ctx context.Context) {
	s.sessions.Close(ctx)
	s.pool.CloseAll(ctx)
}

func (s *Service) defaultRegion() string {
	if s.cfg.DefaultTarget.Region != "" {
		return s.cfg.DefaultTarget.Region
	}
	return "us-west-2"
}

func (s *Service) bind(ctx context.Context, sess *session.Session, descriptor base.Descriptor, adHoc bool) error {
	// Rebinding to the currently bound target is a no-op.
	if bound := sess.Bound(); bound != nil && sess.Descriptor().Key() == descriptor.Key() {
		return nil
	}

	pc, err := s.pool.Acquire(ctx, descriptor)
	if err != nil {
		return fmt.Errorf("acquiring connection for %s: %w", descriptor.Target(), err)
	}
	s.sessions.Bind(ctx, sess, pc, descriptor, adHoc)
	return nil
}
