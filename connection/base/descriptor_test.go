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

import (
	"strings"
	"testing"
)

func TestDetermineKind(t *testing.T) {
	kind, err := DetermineKind("arn:aws:rds:us-west-2:123456789012:cluster:demo", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != KindRDSDataAPI {
		t.Errorf("kind = %q, want %q", kind, KindRDSDataAPI)
	}

	kind, err = DetermineKind("", "db.example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if kind != KindDirectPostgres {
		t.Errorf("kind = %q, want %q", kind, KindDirectPostgres)
	}

	if _, err := DetermineKind("", ""); err == nil {
		t.Error("expected error when neither target is provided")
	}
}

func TestDescriptorKeyEquality(t *testing.T) {
	d1 := Descriptor{
		Kind:        KindRDSDataAPI,
		ResourceARN: "arn:aws:rds:us-west-2:123456789012:cluster:demo",
		Database:    "appdb",
		Region:      "us-west-2",
		SecretARN:   "arn:aws:secretsmanager:us-west-2:123456789012:secret:creds-a",
	}
	d2 := d1

	if d1.Key() != d2.Key() {
		t.Errorf("equal descriptors should share a key: %q vs %q", d1.Key(), d2.Key())
	}
}

func TestDescriptorKeyCredentialIsolation(t *testing.T) {
	d1 := Descriptor{
		Kind:        KindRDSDataAPI,
		ResourceARN: "arn:aws:rds:us-west-2:123456789012:cluster:demo",
		Database:    "appdb",
		Region:      "us-west-2",
		SecretARN:   "arn:aws:secretsmanager:us-west-2:123456789012:secret:creds-a",
	}
	d2 := d1
	d2.SecretARN = "arn:aws:secretsmanager:us-west-2:123456789012:secret:creds-b"

	if d1.Key() == d2.Key() {
		t.Error("descriptors differing only in credentials must not share a bucket key")
	}
}

func TestDescriptorKeyFormat(t *testing.T) {
	rds := Descriptor{
		Kind:        KindRDSDataAPI,
		ResourceARN: "arn:aws:rds:us-west-2:123456789012:cluster:demo",
		Database:    "appdb",
		SecretARN:   "arn:secret",
	}
	if !strings.HasPrefix(rds.Key(), "rds://arn:aws:rds:us-west-2:123456789012:cluster:demo/appdb#") {
		t.Errorf("unexpected rds key: %q", rds.Key())
	}

	direct := Descriptor{
		Kind:      KindDirectPostgres,
		Host:      "db.example.com",
		Database:  "appdb",
		SecretARN: "arn:secret",
	}
	if !strings.HasPrefix(direct.Key(), "postgres://db.example.com:5432/appdb#") {
		t.Errorf("default port should appear in key: %q", direct.Key())
	}

	direct.Port = 5433
	if !strings.Contains(direct.Key(), ":5433/") {
		t.Errorf("explicit port should appear in key: %q", direct.Key())
	}
}

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		desc    Descriptor
		wantErr string
	}{
		{
			name: "valid rds",
			desc: Descriptor{
				Kind:        KindRDSDataAPI,
				ResourceARN: "arn:cluster",
				SecretARN:   "arn:secret",
				Database:    "appdb",
				Region:      "us-west-2",
			},
		},
		{
			name: "rds missing resource arn",
			desc: Descriptor{
				Kind:      KindRDSDataAPI,
				SecretARN: "arn:secret",
				Database:  "appdb",
				Region:    "us-west-2",
			},
			wantErr: "resource_arn",
		},
		{
			name: "valid direct",
			desc: Descriptor{
				Kind:      KindDirectPostgres,
				Host:      "db.example.com",
				SecretARN: "arn:secret",
				Database:  "appdb",
				Region:    "us-west-2",
			},
		},
		{
			name: "direct missing hostname and database",
			desc: Descriptor{
				Kind:      KindDirectPostgres,
				SecretARN: "arn:secret",
				Region:    "us-west-2",
			},
			wantErr: "hostname, database",
		},
		{
			name:    "unknown kind",
			desc:    Descriptor{Kind: "mysql"},
			wantErr: "unknown connection kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.desc.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
