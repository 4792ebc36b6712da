package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "chunkdrive.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestBuildLocalBucketNoEncryption(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, `
buckets:
  primary:
    source:
      type: local
      path: `+dataDir+`
direct_block_count: 5
redundancy: 2
root_path: `+filepath.Join(t.TempDir(), "root.dat")+`
`)

	cfg, err := FromFile(path)
	if err != nil {
		t.Fatalf("from file: %v", err)
	}
	global, services, err := cfg.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(services) != 0 {
		t.Fatalf("expected no services, got %d", len(services))
	}
	if global.DirectBlockCount != 5 {
		t.Fatalf("got direct_block_count %d", global.DirectBlockCount)
	}
	if global.Redundancy != 2 {
		t.Fatalf("got redundancy %d", global.Redundancy)
	}
	if _, ok := global.GetBucket("primary"); !ok {
		t.Fatalf("expected bucket %q to be configured", "primary")
	}
}

func TestBuildRejectsUnrecognizedSourceType(t *testing.T) {
	path := writeConfig(t, `
buckets:
  primary:
    source:
      type: carrier-pigeon
`)
	cfg, err := FromFile(path)
	if err != nil {
		t.Fatalf("from file: %v", err)
	}
	if _, _, err := cfg.Build(context.Background(), nil); err == nil {
		t.Fatal("expected build to reject an unrecognized source type")
	}
}

func TestBuildRejectsUnknownTopLevelKey(t *testing.T) {
	path := writeConfig(t, `
bogus_key: true
buckets:
  primary:
    source:
      type: local
      path: /tmp
`)
	if _, err := FromFile(path); err == nil {
		t.Fatal("expected strict unmarshal to reject an unrecognized key")
	}
}

func TestBuildAESEncryptedBucket(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, `
buckets:
  primary:
    source:
      type: local
      path: `+dataDir+`
    encryption:
      type: aes
      bits: 256
      passphrase: correct horse battery staple
`)
	cfg, err := FromFile(path)
	if err != nil {
		t.Fatalf("from file: %v", err)
	}
	global, _, err := cfg.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	bucket, ok := global.GetBucket("primary")
	if !ok {
		t.Fatal("expected bucket to be configured")
	}

	ctx := context.Background()
	d, err := bucket.Create(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := bucket.Put(ctx, d, []byte("secret")); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := bucket.Get(ctx, d)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != "secret" {
		t.Fatalf("got %q", got)
	}
}

func TestBuildHTTPService(t *testing.T) {
	dataDir := t.TempDir()
	path := writeConfig(t, `
buckets:
  primary:
    source:
      type: local
      path: `+dataDir+`
services:
  - type: http
    addr: localhost:8080
`)
	cfg, err := FromFile(path)
	if err != nil {
		t.Fatalf("from file: %v", err)
	}
	_, services, err := cfg.Build(context.Background(), nil)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(services) != 1 {
		t.Fatalf("expected one service, got %d", len(services))
	}
}
