// Package ssmstore serves configstore keys from AWS Systems Manager
// Parameter Store. A key maps to the parameter named Prefix+key and
// SecureString parameters are decrypted.
package ssmstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/ssm"
	"github.com/aws/aws-sdk-go/service/ssm/ssmiface"
	"github.com/ggoodman/headerauth-go/configstore"
	"github.com/joeshaw/envdecode"
)

// Config for an SSM-backed Store. Defaults can be loaded via envdecode.
type Config struct {
	// Region like "us-east-1". ENV: AWS_REGION
	Region string `env:"AWS_REGION,default=us-east-1"`
	// Prefix prepended to every key. ENV: HEADERAUTH_SSM_PREFIX
	Prefix string `env:"HEADERAUTH_SSM_PREFIX,default=/headerauth/"`
	// CacheTTL bounds how long a fetched value is reused. ENV: HEADERAUTH_SSM_CACHE_TTL
	CacheTTL time.Duration `env:"HEADERAUTH_SSM_CACHE_TTL,default=30s"`
}

type cached struct {
	value   string
	found   bool
	fetched time.Time
}

// Store is a configstore.Store backed by Parameter Store.
type Store struct {
	api    ssmiface.SSMAPI
	prefix string
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[string]cached
}

var _ configstore.Store = (*Store)(nil)

// New creates a Store using the default AWS credential chain.
func New(cfg Config) (*Store, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.Region)})
	if err != nil {
		return nil, fmt.Errorf("ssmstore: session: %w", err)
	}
	return NewFromClient(ssm.New(sess), cfg.Prefix, cfg.CacheTTL), nil
}

// NewFromEnv builds a Store using envdecode to populate Config.
func NewFromEnv() (*Store, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("ssmstore: decode env: %w", err)
	}
	return New(cfg)
}

// NewFromClient wraps an existing client. A zero ttl disables caching.
func NewFromClient(api ssmiface.SSMAPI, prefix string, ttl time.Duration) *Store {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &Store{
		api:    api,
		prefix: prefix,
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[string]cached),
	}
}

func (s *Store) Lookup(ctx context.Context, key string) (string, bool, error) {
	if s.ttl > 0 {
		s.mu.Lock()
		c, ok := s.cache[key]
		s.mu.Unlock()
		if ok && s.now().Sub(c.fetched) < s.ttl {
			return c.value, c.found, nil
		}
	}

	out, err := s.api.GetParameterWithContext(ctx, &ssm.GetParameterInput{
		Name:           aws.String(s.prefix + key),
		WithDecryption: aws.Bool(true),
	})
	var (
		value string
		found bool
	)
	switch {
	case err == nil:
		if out.Parameter != nil {
			value, found = aws.StringValue(out.Parameter.Value), true
		}
	case isNotFound(err):
	default:
		return "", false, fmt.Errorf("ssmstore: get %s: %w", key, err)
	}

	if s.ttl > 0 {
		s.mu.Lock()
		s.cache[key] = cached{value: value, found: found, fetched: s.now()}
		s.mu.Unlock()
	}
	return value, found, nil
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	return errors.As(err, &aerr) && aerr.Code() == ssm.ErrCodeParameterNotFound
}
