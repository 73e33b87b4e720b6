package apikeys

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/rs/zerolog/log"
	"signalcrm/internal/platform/models"
	"signalcrm/internal/platform/repositories"
)

// SecretPrefix is the literal marker carried by every raw secret. The
// authenticator uses it to tell API keys apart from session tokens without
// hashing anything.
const SecretPrefix = "sk_live_"

// secretBytes of entropy per key. 24 bytes is 192 bits, comfortably past the
// 128-bit floor.
const secretBytes = 24

// displayPrefixLen characters of the raw secret are kept for listings:
// "sk_live_" plus four hex characters, which leaks 16 of 192 random bits.
const displayPrefixLen = 12

type Service struct {
	repo *repositories.APIKeyRepository
}

func NewService(repo *repositories.APIKeyRepository) *Service {
	return &Service{repo: repo}
}

// HasSecretPrefix reports whether the credential even looks like one of our
// API keys. Anything else belongs to the session-token path.
func HasSecretPrefix(raw string) bool {
	return strings.HasPrefix(raw, SecretPrefix)
}

func hashSecret(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Generate mints a new key for the organization. The raw secret is returned
// exactly once; only its sha256 hash and a short display prefix are stored.
func (s *Service) Generate(ctx context.Context, orgID, userID, name string, scopes []string, expiresAt *int64) (string, *models.APIKey, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, err
	}
	rawKey := SecretPrefix + hex.EncodeToString(buf)

	key := &models.APIKey{
		OrganizationID: orgID,
		UserID:         userID,
		Name:           name,
		KeyHash:        hashSecret(rawKey),
		KeyPrefix:      rawKey[:displayPrefixLen] + "...",
		Scopes:         scopes,
		ExpiresAt:      expiresAt,
	}

	if err := s.repo.Create(ctx, key); err != nil {
		return "", nil, err
	}
	return rawKey, key, nil
}

// Validate resolves a raw secret to its key record, or nil. Absent, revoked
// and expired keys are all the same nil to the caller; which check failed is
// not observable. A successful validation bumps last_used_at from a detached
// goroutine so the request never waits on it.
func (s *Service) Validate(ctx context.Context, raw string) *models.APIKey {
	if !HasSecretPrefix(raw) {
		return nil
	}

	key, err := s.repo.GetByHash(ctx, hashSecret(raw))
	if err != nil {
		// Auth fails closed: a store error means no identity.
		log.Error().Err(err).Msg("api key lookup failed")
		return nil
	}
	if key == nil || !key.Usable(nowUnix()) {
		return nil
	}

	go func(id string) {
		// Telemetry only. Concurrent validations race here, last write wins.
		if err := s.repo.UpdateLastUsed(context.Background(), id); err != nil {
			log.Warn().Err(err).Str("key_id", id).Msg("failed to update key last_used_at")
		}
	}(key.ID)

	return key
}

// Revoke deactivates the key if it belongs to the organization and returns
// the updated record, or nil when no such key exists in this tenant.
func (s *Service) Revoke(ctx context.Context, orgID, id string) (*models.APIKey, error) {
	ok, err := s.repo.Revoke(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return s.repo.GetByID(ctx, orgID, id)
}

// Delete removes the key outright. Wrong-tenant deletes are a no-op reported
// as false.
func (s *Service) Delete(ctx context.Context, orgID, id string) (bool, error) {
	return s.repo.Delete(ctx, orgID, id)
}

func (s *Service) List(ctx context.Context, orgID string) ([]*models.APIKey, error) {
	return s.repo.ListByOrg(ctx, orgID)
}
