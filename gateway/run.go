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
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"

	"axonflow/dbgateway/config"
	"axonflow/dbgateway/connection/secrets"
)

// Run is the composition root: load config, pick a credential provider,
// build the service, and serve HTTP until SIGINT/SIGTERM.
func Run() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	provider := newCredentialProvider(cfg)
	service := NewService(cfg, provider)

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"}, // Configure for production
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      corsMiddleware.Handler(service.Router()),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("🚀 Database gateway starting on port %d", cfg.Port)
		if cfg.HasDefaultTarget() {
			log.Printf("   Default target: %s (%s)", cfg.DefaultTarget.Target(), cfg.DefaultTarget.Kind)
		}
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down gateway...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	service.Close(ctx)
	log.Println("Gateway stopped")
}

// newCredentialProvider picks the credential source. AWS Secrets Manager
// is the production path; the environment provider covers local
// development where no AWS credentials are available.
func newCredentialProvider(cfg *config.Config) secrets.Provider {
	region := cfg.DefaultTarget.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	provider, err := secrets.NewAWSSecretsProvider(ctx, secrets.AWSSecretsProviderOptions{
		Region: region,
	})
	if err != nil {
		log.Printf("Secrets Manager unavailable, using environment credentials: %v", err)
		return secrets.EnvProvider{}
	}
	return provider
}
