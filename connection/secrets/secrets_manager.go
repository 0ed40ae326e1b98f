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

package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// secretsManagerAPI is the subset of the Secrets Manager client used here,
// extracted for testing.
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsProvider resolves credential references through AWS Secrets
// Manager with a TTL cache so repeated connects do not hammer the API.
type AWSSecretsProvider struct {
	client secretsManagerAPI
	cache  map[string]*cacheEntry
	mu     sync.RWMutex
	ttl    time.Duration
	logger *log.Logger
}

type cacheEntry struct {
	creds     Credentials
	expiresAt time.Time
}

// AWSSecretsProviderOptions holds options for creating an
// AWSSecretsProvider.
type AWSSecretsProviderOptions struct {
	Region   string
	CacheTTL time.Duration
	Logger   *log.Logger
}

// NewAWSSecretsProvider creates a provider backed by AWS Secrets Manager.
func NewAWSSecretsProvider(ctx context.Context, opts AWSSecretsProviderOptions) (*AWSSecretsProvider, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[SECRETS] ", log.LstdFlags)
	}

	cfgOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(opts.Region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &AWSSecretsProvider{
		client: secretsmanager.NewFromConfig(cfg),
		cache:  make(map[string]*cacheEntry),
		ttl:    ttl,
		logger: logger,
	}, nil
}

// GetCredentials retrieves and parses the secret for the given reference.
// The secret value is expected to be a JSON object with at minimum
// username and password keys.
func (p *AWSSecretsProvider) GetCredentials(ctx context.Context, ref string) (Credentials, error) {
	p.mu.RLock()
	entry, exists := p.cache[ref]
	p.mu.RUnlock()

	if exists && time.Now().Before(entry.expiresAt) {
		return entry.creds, nil
	}

	p.logger.Printf("Fetching secret %s from AWS Secrets Manager", maskRef(ref))

	result, err := p.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(ref),
	})
	if err != nil {
		return Credentials{}, fmt.Errorf("failed to get secret %s: %w", maskRef(ref), err)
	}

	if result.SecretString == nil {
		return Credentials{}, fmt.Errorf("secret %s has no string value", maskRef(ref))
	}

	var payload map[string]string
	if err := json.Unmarshal([]byte(*result.SecretString), &payload); err != nil {
		return Credentials{}, fmt.Errorf("secret %s is not a JSON object: %w", maskRef(ref), err)
	}

	creds := fromMap(payload)
	if err := creds.Validate(); err != nil {
		return Credentials{}, fmt.Errorf("secret %s: %w", maskRef(ref), err)
	}

	p.mu.Lock()
	p.cache[ref] = &cacheEntry{
		creds:     creds,
		expiresAt: time.Now().Add(p.ttl),
	}
	p.mu.Unlock()

	return creds, nil
}

// Invalidate removes a credential reference from the cache, forcing a
// refetch on next use. Used after authentication failures following a
// secret rotation.
func (p *AWSSecretsProvider) Invalidate(ref string) {
	p.mu.Lock()
	delete(p.cache, ref)
	p.mu.Unlock()
	p.logger.Printf("Invalidated cached secret %s", maskRef(ref))
}

// StaticProvider serves credentials from an in-memory map. Useful for
// development and tests.
type StaticProvider struct {
	mu      sync.RWMutex
	secrets map[string]Credentials
}

// NewStaticProvider creates an empty static provider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{secrets: make(map[string]Credentials)}
}

// GetCredentials returns the stored credentials for the reference.
func (p *StaticProvider) GetCredentials(_ context.Context, ref string) (Credentials, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	creds, ok := p.secrets[ref]
	if !ok {
		return Credentials{}, fmt.Errorf("secret %s not found in static provider", maskRef(ref))
	}
	return creds, nil
}

// Set stores credentials for a reference.
func (p *StaticProvider) Set(ref string, creds Credentials) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.secrets[ref] = creds
}

// EnvProvider reads credentials from environment variables, using the
// reference as a variable prefix: <REF>_USERNAME and <REF>_PASSWORD.
type EnvProvider struct{}

// GetCredentials reads <ref>_USERNAME and <ref>_PASSWORD from the
// environment.
func (EnvProvider) GetCredentials(_ context.Context, ref string) (Credentials, error) {
	creds := Credentials{
		Username: os.Getenv(ref + "_USERNAME"),
		Password: os.Getenv(ref + "_PASSWORD"),
	}
	if err := creds.Validate(); err != nil {
		return Credentials{}, fmt.Errorf("environment credentials for prefix %s: %w", ref, err)
	}
	return creds, nil
}
