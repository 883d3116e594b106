package miniostore

import (
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	client, err := minio.New("storage.test:9000", &minio.Options{
		Creds: credentials.NewStaticV4("key", "secret", ""),
	})
	if err != nil {
		t.Fatalf("minio client: %v", err)
	}
	store, err := NewWithClient(client, "exports")
	if err != nil {
		t.Fatalf("NewWithClient: %v", err)
	}
	return store
}

func TestRelativeObjectPath(t *testing.T) {
	store := newTestStore(t)
	cases := []struct {
		name      string
		uploadURL string
		want      string
		wantErr   bool
	}{
		{
			name:      "bucket prefixed",
			uploadURL: "http://storage.test:9000/exports/acme-key/2026-08-01/report.zip",
			want:      "acme-key/2026-08-01/report.zip",
		},
		{
			name:      "no bucket segment",
			uploadURL: "http://storage.test:9000/acme-key/2026-08-01/report.zip",
			want:      "acme-key/2026-08-01/report.zip",
		},
		{
			name:      "empty path",
			uploadURL: "http://storage.test:9000/",
			wantErr:   true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := store.RelativeObjectPath(tc.uploadURL)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("RelativeObjectPath: %v", err)
			}
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestNormalizeObjectKey(t *testing.T) {
	if got := normalizeObjectKey(" /acme/2026/report.zip "); got != "acme/2026/report.zip" {
		t.Fatalf("got %q", got)
	}
}

func TestPermanentURL(t *testing.T) {
	store := newTestStore(t)
	got := store.permanentURL("acme-key/2026-08-01/report.zip")
	want := "http://storage.test:9000/exports/acme-key/2026-08-01/report.zip"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestValidateConfig(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Fatalf("empty config must fail validation")
	}
	cfg := Config{Endpoint: "storage.test:9000", Bucket: "exports"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
}
