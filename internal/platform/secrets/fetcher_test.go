package secrets

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type stubSecretManager struct {
	access func(req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error)
	calls  int
}

func (s *stubSecretManager) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	s.calls++
	return s.access(req)
}

func (s *stubSecretManager) Close() error { return nil }

func secretPayload(value string) *secretmanagerpb.AccessSecretVersionResponse {
	return &secretmanagerpb.AccessSecretVersionResponse{
		Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
	}
}

func TestResolveFetchesAndCaches(t *testing.T) {
	stub := &stubSecretManager{access: func(req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
		if req.Name != "projects/demo/secrets/stripe-key/versions/latest" {
			t.Fatalf("unexpected resource name %q", req.Name)
		}
		return secretPayload("sk_live_123"), nil
	}}

	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(stub),
		WithDefaultProject("demo"),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	for i := 0; i < 2; i++ {
		value, err := fetcher.Resolve(context.Background(), "secret://stripe-key")
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if value != "sk_live_123" {
			t.Fatalf("unexpected value %q", value)
		}
	}
	if stub.calls != 1 {
		t.Fatalf("expected single remote fetch, got %d", stub.calls)
	}

	fetcher.Invalidate("secret://stripe-key")
	if _, err := fetcher.Resolve(context.Background(), "secret://stripe-key"); err != nil {
		t.Fatalf("resolve after invalidate: %v", err)
	}
	if stub.calls != 2 {
		t.Fatalf("expected refetch after invalidate, got %d calls", stub.calls)
	}
}

func TestResolveProjectAndVersionOverrides(t *testing.T) {
	stub := &stubSecretManager{access: func(req *secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
		if req.Name != "projects/other/secrets/paypal-secret/versions/7" {
			t.Fatalf("unexpected resource name %q", req.Name)
		}
		return secretPayload("pp-secret"), nil
	}}

	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(stub),
		WithDefaultProject("demo"),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	value, err := fetcher.Resolve(context.Background(), "secret://paypal-secret?project=other&version=7")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if value != "pp-secret" {
		t.Fatalf("unexpected value %q", value)
	}
}

func TestResolveFallsBackOnPermissionDenied(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".secrets.local")
	if err := os.WriteFile(path, []byte("secret://stripe-key=sk_local\n"), 0o600); err != nil {
		t.Fatalf("write fallback: %v", err)
	}

	stub := &stubSecretManager{access: func(*secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
		return nil, status.Error(codes.PermissionDenied, "denied")
	}}

	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(stub),
		WithDefaultProject("demo"),
		WithFallbackFile(path),
	)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	value, err := fetcher.Resolve(context.Background(), "secret://stripe-key")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if value != "sk_local" {
		t.Fatalf("unexpected fallback value %q", value)
	}
}

func TestResolveRejectsInvalidReferences(t *testing.T) {
	fetcher, err := NewFetcher(context.Background(),
		WithSecretManagerClient(&stubSecretManager{access: func(*secretmanagerpb.AccessSecretVersionRequest) (*secretmanagerpb.AccessSecretVersionResponse, error) {
			return secretPayload("x"), nil
		}}),
		WithFallbackFile(""),
	)
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}

	for _, ref := range []string{"", "http://nope", "secret://"} {
		if _, err := fetcher.Resolve(context.Background(), ref); err == nil {
			t.Fatalf("expected error for reference %q", ref)
		}
	}
}
