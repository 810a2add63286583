package repository

import (
	"context"
	"fmt"

	"github.com/Rrens/swift-assistant/internal/domain"
	"github.com/Rrens/swift-assistant/internal/security"
)

// Encrypted seals payloads with AES-GCM before handing them to the wrapped storage
type Encrypted struct {
	inner     domain.StateStorage
	encryptor *security.Encryptor
}

// NewEncrypted wraps storage with encryption at rest
func NewEncrypted(inner domain.StateStorage, encryptor *security.Encryptor) *Encrypted {
	return &Encrypted{inner: inner, encryptor: encryptor}
}

// Load reads and decrypts the payload under key
func (e *Encrypted) Load(ctx context.Context, key string) ([]byte, error) {
	sealed, err := e.inner.Load(ctx, key)
	if err != nil {
		return nil, err
	}

	payload, err := e.encryptor.Decrypt(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt state: %w", err)
	}
	return payload, nil
}

// Save encrypts payload and stores it under key
func (e *Encrypted) Save(ctx context.Context, key string, payload []byte) error {
	sealed, err := e.encryptor.Encrypt(payload)
	if err != nil {
		return fmt.Errorf("failed to encrypt state: %w", err)
	}
	return e.inner.Save(ctx, key, sealed)
}

// Ping forwards to the wrapped storage when it supports it
func (e *Encrypted) Ping(ctx context.Context) error {
	if p, ok := e.inner.(domain.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close closes the wrapped storage
func (e *Encrypted) Close() error {
	return e.inner.Close()
}
