// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"context"
	"sync"
)

// SecureStorage persists the Manager's tokens as a single opaque blob. A
// production implementation is expected to use the platform's credential
// store (keychain, secret service, etc).
type SecureStorage interface {
	// Load returns the stored blob, or an error matching ErrNotFound when
	// nothing is stored.
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the stored blob.
	Save(ctx context.Context, b []byte) error

	// Delete removes the stored blob. Deleting when nothing is stored is not
	// an error.
	Delete(ctx context.Context) error
}

// MemoryStorage is a SecureStorage that keeps the blob in memory. Tokens do
// not survive a restart.
type MemoryStorage struct {
	mu   sync.Mutex
	data []byte
}

var _ SecureStorage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

// Load implements SecureStorage.
func (s *MemoryStorage) Load(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, ErrNotFound
	}
	return append([]byte(nil), s.data...), nil
}

// Save implements SecureStorage.
func (s *MemoryStorage) Save(_ context.Context, b []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append([]byte{}, b...)
	return nil
}

// Delete implements SecureStorage.
func (s *MemoryStorage) Delete(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = nil
	return nil
}
