package s3blob

import (
	"context"
	"testing"
)

func TestNormaliseEndpointKeepsExistingScheme(t *testing.T) {
	if got := normaliseEndpoint("https://e2.idy.idrivee2.com", false); got != "https://e2.idy.idrivee2.com" {
		t.Fatalf("normaliseEndpoint = %q, want unchanged", got)
	}
}

func TestNormaliseEndpointAddsSchemeBasedOnUseSSL(t *testing.T) {
	if got := normaliseEndpoint("minio.internal:9000", true); got != "https://minio.internal:9000" {
		t.Errorf("normaliseEndpoint(useSSL=true) = %q, want https:// prefix", got)
	}
	if got := normaliseEndpoint("minio.internal:9000", false); got != "http://minio.internal:9000" {
		t.Errorf("normaliseEndpoint(useSSL=false) = %q, want http:// prefix", got)
	}
}

func TestNewRequiresBucketAndRegion(t *testing.T) {
	if _, err := New(context.Background(), ClientConfig{Region: "us-east-1"}); err == nil {
		t.Fatalf("expected an error when bucket is missing")
	}
	if _, err := New(context.Background(), ClientConfig{Bucket: "cycle-archive"}); err == nil {
		t.Fatalf("expected an error when region is missing")
	}
}
