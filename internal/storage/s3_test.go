package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	appconfig "github.com/spec-kit/ticket-engine/internal/config"
)

func TestAttachmentKey(t *testing.T) {
	key := AttachmentKey("t1", `C:\Users\me\invoice.pdf`)
	if !strings.HasPrefix(key, "attachments/t1/") || !strings.HasSuffix(key, "/invoice.pdf") {
		t.Fatalf("unexpected key: %s", key)
	}
	if !KeyBelongsTo(key, "t1") {
		t.Fatal("key should belong to t1")
	}
	if KeyBelongsTo(key, "t") {
		t.Fatal("prefix match must stop at the ticket segment")
	}
	if k := AttachmentKey("t1", ""); !strings.HasSuffix(k, "/file") {
		t.Fatalf("empty name fallback: %s", k)
	}
}

func TestNewS3RequiresBucket(t *testing.T) {
	if _, err := NewS3(context.Background(), appconfig.StorageConfig{Region: "us-east-1"}, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestPresignUploadWithStaticCredentials(t *testing.T) {
	s, err := NewS3(context.Background(), appconfig.StorageConfig{
		Region:               "us-east-1",
		AccessKeyID:          "AKIDEXAMPLE",
		SecretAccessKey:      "secret",
		AttachmentsBucket:    "ticket-files",
		PresignExpireMinutes: 5,
	}, nil)
	if err != nil {
		t.Fatalf("NewS3: %v", err)
	}
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	up, err := s.PresignUpload(context.Background(), "t1", "a.png", "image/png", now)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.Contains(up.URL, "ticket-files") || !strings.Contains(up.URL, "X-Amz-Signature") {
		t.Fatalf("unexpected url: %s", up.URL)
	}
	if !up.ExpiresAt.Equal(now.Add(5 * time.Minute)) {
		t.Fatalf("unexpected expiry: %s", up.ExpiresAt)
	}
}
