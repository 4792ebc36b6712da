// Package config loads a YAML config file into a *chunkdrive.Global and a
// set of service.Service values, in the style of the teacher's
// cmd/internal/config/config.go: typed structs with `yaml` tags, parsed
// with yaml.UnmarshalStrict so an unrecognized key is a load error rather
// than a silent no-op.
package config

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"github.com/chunkdrive/chunkdrive"
	"github.com/chunkdrive/chunkdrive/metrics"
	"github.com/chunkdrive/chunkdrive/repair"
	"github.com/chunkdrive/chunkdrive/service"
	"github.com/chunkdrive/chunkdrive/source"
)

// EncryptionConfig selects a bucket's Cipher. Type is "none" (default) or
// "aes", in which case Bits (128, 192, or 256) and Passphrase are required.
type EncryptionConfig struct {
	Type       string `yaml:"type"`
	Passphrase string `yaml:"passphrase"`
	Bits       int    `yaml:"bits"`
}

func (e *EncryptionConfig) build() (chunkdrive.Cipher, error) {
	if e == nil || e.Type == "" || e.Type == "none" {
		return chunkdrive.NoneCipher{}, nil
	}
	if e.Type != "aes" {
		return nil, fmt.Errorf("config: unrecognized encryption type %q", e.Type)
	}
	if e.Passphrase == "" {
		return nil, fmt.Errorf("config: aes encryption requires a passphrase")
	}
	return chunkdrive.NewAESCBCCipher(e.Passphrase, e.Bits)
}

// SourceConfig selects and configures one bucket's Source. Type selects
// which of the fields below apply; the rest are ignored.
type SourceConfig struct {
	Type string `yaml:"type"` // local, discord_webhook, github_releases, s3, b2, gcs

	// local
	Path          string `yaml:"path"`
	DescriptorLen int    `yaml:"descriptor_len"`

	// shared by the object-storage-shaped backends (s3, b2, gcs, local)
	MaxSize int `yaml:"max_size"`

	// discord_webhook
	WebhookURL string `yaml:"webhook_url"`

	// github_releases
	Owner string `yaml:"owner"`
	Repo  string `yaml:"repo"`
	Token string `yaml:"token"`

	// s3 (bucket is also used by b2)
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`

	// b2
	AccountID string `yaml:"account_id"`
	KeyID     string `yaml:"key_id"`
	AppKey    string `yaml:"app_key"`

	// gcs
	BucketName      string `yaml:"bucket_name"`
	CredentialsPath string `yaml:"credentials_path"`

	// CacheSize, if > 0, wraps the backend built above in an in-memory
	// LRU cache of that many entries.
	CacheSize int `yaml:"cache_size"`
}

func (s *SourceConfig) build(ctx context.Context) (chunkdrive.Source, error) {
	var (
		src chunkdrive.Source
		err error
	)
	switch s.Type {
	case "local":
		src, err = source.NewLocal(s.Path, s.DescriptorLen, s.MaxSize)
	case "discord_webhook":
		if s.WebhookURL == "" {
			return nil, fmt.Errorf("config: discord_webhook source requires webhook_url")
		}
		src = source.NewDiscordWebhook(s.WebhookURL)
	case "github_releases":
		if s.Owner == "" || s.Repo == "" {
			return nil, fmt.Errorf("config: github_releases source requires owner and repo")
		}
		src = source.NewGithubReleases(ctx, s.Owner, s.Repo, s.Token)
	case "s3":
		src = source.NewS3(s.AccessKey, s.SecretKey, s.Bucket, s.Endpoint, s.Region, s.MaxSize)
	case "b2":
		src, err = source.NewB2(s.AccountID, s.KeyID, s.AppKey, s.Bucket, s.MaxSize)
	case "gcs":
		src, err = source.NewGCS(ctx, s.BucketName, s.CredentialsPath, s.MaxSize)
	default:
		return nil, fmt.Errorf("config: unrecognized source type %q", s.Type)
	}
	if err != nil {
		return nil, err
	}
	if s.CacheSize > 0 {
		return source.NewCached(src, s.CacheSize)
	}
	return src, nil
}

// BucketConfig names one entry of the top-level buckets map.
type BucketConfig struct {
	Source     SourceConfig      `yaml:"source"`
	Encryption *EncryptionConfig `yaml:"encryption"`
}

func (b *BucketConfig) build(ctx context.Context, name string, reg *metrics.Registry) (*chunkdrive.Bucket, error) {
	src, err := b.Source.build(ctx)
	if err != nil {
		return nil, fmt.Errorf("config: bucket %q: %w", name, err)
	}
	cipher, err := b.Encryption.build()
	if err != nil {
		return nil, fmt.Errorf("config: bucket %q: %w", name, err)
	}
	return chunkdrive.NewBucket(name, src, cipher, reg), nil
}

// ServiceConfig names one entry of the top-level services list.
type ServiceConfig struct {
	Type string `yaml:"type"` // only "http" is recognized
	Addr string `yaml:"addr"`
}

func (s *ServiceConfig) build() (service.Service, error) {
	switch s.Type {
	case "http":
		return &service.HTTPPlaceholder{Addr: s.Addr}, nil
	default:
		return nil, fmt.Errorf("config: unrecognized service type %q", s.Type)
	}
}

// Config is the top-level shape of a ChunkDrive YAML config file.
type Config struct {
	Buckets          map[string]BucketConfig `yaml:"buckets"`
	DirectBlockCount int                     `yaml:"direct_block_count"`
	Redundancy       int                     `yaml:"redundancy"`
	RootPath         string                  `yaml:"root_path"`
	Services         []ServiceConfig         `yaml:"services"`

	MetricsAddr string `yaml:"metrics_addr"`
	RepairDB    string `yaml:"repair_db"`
}

// FromFile reads and strictly parses the YAML config file at path.
func FromFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := yaml.UnmarshalStrict(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Build constructs a *chunkdrive.Global and the configured services from c.
// metricsReg may be nil to disable metrics entirely; otherwise every bucket
// built shares it.
func (c *Config) Build(ctx context.Context, metricsReg *metrics.Registry) (*chunkdrive.Global, []service.Service, error) {
	if len(c.Buckets) == 0 {
		return nil, nil, fmt.Errorf("config: no buckets defined")
	}

	buckets := make(map[string]*chunkdrive.Bucket, len(c.Buckets))
	for name, bc := range c.Buckets {
		bc := bc
		b, err := bc.build(ctx, name, metricsReg)
		if err != nil {
			return nil, nil, err
		}
		buckets[name] = b
	}

	global := chunkdrive.NewGlobal(buckets, c.DirectBlockCount, c.Redundancy, c.RootPath)
	global.Metrics = metricsReg

	if c.RepairDB != "" {
		q, err := repair.Open(c.RepairDB)
		if err != nil {
			return nil, nil, fmt.Errorf("config: repair_db: %w", err)
		}
		global.Repair = q
	}

	services := make([]service.Service, 0, len(c.Services))
	for i, sc := range c.Services {
		sc := sc
		svc, err := sc.build()
		if err != nil {
			return nil, nil, fmt.Errorf("config: services[%d]: %w", i, err)
		}
		services = append(services, svc)
	}

	return global, services, nil
}
