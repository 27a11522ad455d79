package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kiranshivaraju/vince/internal/cache"
	"github.com/kiranshivaraju/vince/internal/credential"
	"github.com/kiranshivaraju/vince/internal/store"
	"github.com/kiranshivaraju/vince/pkg/models"
)

// ServiceKeys owns the system-wide credential that gates the validation
// endpoint. The current value lives in the store as a versioned hash; Redis,
// when configured, fronts reads for ttl and is invalidated on rotation.
type ServiceKeys struct {
	store store.Store
	cache cache.Cache
	ttl   time.Duration
}

// NewServiceKeys wires the store and an optional cache (nil disables caching).
func NewServiceKeys(s store.Store, c cache.Cache, ttl time.Duration) *ServiceKeys {
	return &ServiceKeys{store: s, cache: c, ttl: ttl}
}

// Bootstrap seeds the store from the configured value when no credential has
// been stored yet. Once a credential exists the store is authoritative.
func (k *ServiceKeys) Bootstrap(ctx context.Context, configured string) (*models.ServiceCredential, error) {
	current, err := k.store.GetServiceCredential(ctx)
	if err == nil {
		if configured != "" && !credential.Equal(credential.Hash(configured), current.KeyHash) {
			slog.Warn("SERVICE_API_KEY differs from the stored service credential; the stored one is in effect",
				"version", current.Version)
		}
		return current, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load service credential: %w", err)
	}

	if configured == "" {
		return nil, fmt.Errorf("no service credential stored and none configured")
	}

	seeded, err := k.store.PutServiceCredential(ctx, credential.Hash(configured), credential.Mask(configured))
	if errors.Is(err, store.ErrDuplicateKey) {
		// Another instance seeded the same value first.
		return k.store.GetServiceCredential(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("seed service credential: %w", err)
	}
	slog.Info("seeded service credential", "version", seeded.Version)
	return seeded, nil
}

// Authenticate checks a presented bearer value against the current credential.
// A cached hash that does not match is confirmed against the store before
// the value is rejected, since the cache may predate a rotation.
func (k *ServiceKeys) Authenticate(ctx context.Context, presented string) error {
	if presented == "" {
		return ErrUnauthorized
	}
	presentedHash := credential.Hash(presented)

	current, cached, err := k.currentHash(ctx)
	if err != nil {
		return err
	}
	if credential.Equal(presentedHash, current) {
		return nil
	}
	if !cached {
		return ErrInvalidServiceKey
	}

	current, err = k.loadHash(ctx)
	if err != nil {
		return err
	}
	if !credential.Equal(presentedHash, current) {
		return ErrInvalidServiceKey
	}
	return nil
}

// Rotate issues a new service credential, stores it as the next version and
// writes its hash through to the cache. The plaintext is returned once.
func (k *ServiceKeys) Rotate(ctx context.Context) (string, *models.ServiceCredential, error) {
	plaintext, err := credential.NewServiceKey()
	if err != nil {
		return "", nil, err
	}

	cred, err := k.store.PutServiceCredential(ctx, credential.Hash(plaintext), credential.Mask(plaintext))
	if errors.Is(err, store.ErrDuplicateKey) {
		return "", nil, conflict("Service key rotation failed, please try again")
	}
	if err != nil {
		return "", nil, fmt.Errorf("store service credential: %w", err)
	}

	k.cacheHash(ctx, cred)

	slog.Info("service credential rotated", "version", cred.Version)
	return plaintext, cred, nil
}

// Current returns the active credential's version and masked preview.
func (k *ServiceKeys) Current(ctx context.Context) (*models.ServiceCredential, error) {
	cred, err := k.store.GetServiceCredential(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("service credential %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load service credential: %w", err)
	}
	return cred, nil
}

// currentHash returns the current credential hash and whether it came from
// the cache.
func (k *ServiceKeys) currentHash(ctx context.Context) (string, bool, error) {
	if k.cache != nil {
		_, hash, found, err := k.cache.GetServiceKeyHash(ctx)
		if err != nil {
			slog.Warn("service credential cache read failed", "error", err)
		} else if found {
			return hash, true, nil
		}
	}

	hash, err := k.loadHash(ctx)
	return hash, false, err
}

// loadHash reads the current credential from the store and refreshes the cache.
func (k *ServiceKeys) loadHash(ctx context.Context) (string, error) {
	cred, err := k.store.GetServiceCredential(ctx)
	if errors.Is(err, store.ErrNotFound) {
		// Nothing configured: fail closed.
		return "", ErrUnauthorized
	}
	if err != nil {
		return "", fmt.Errorf("load service credential: %w", err)
	}

	if k.ttl > 0 {
		k.cacheHash(ctx, cred)
	}
	return cred.KeyHash, nil
}

// cacheHash stores cred in the cache. Versions only move forward; when the
// write fails the entry is dropped so that readers fall back to the store.
func (k *ServiceKeys) cacheHash(ctx context.Context, cred *models.ServiceCredential) {
	if k.cache == nil {
		return
	}
	if k.ttl > 0 {
		_, err := k.cache.SetServiceKeyHash(ctx, cred.Version, cred.KeyHash, k.ttl)
		if err == nil {
			return
		}
		slog.Warn("service credential cache write failed", "version", cred.Version, "error", err)
	}
	if err := k.cache.Delete(ctx, cache.ServiceKeyHashKey()); err != nil {
		slog.Warn("failed to invalidate cached service credential", "error", err)
	}
}
