package middleware_test

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"io"
	"testing"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func secretProject(id, text string) *domain.Project {
	p := domain.NewProject(id, "Secret page")
	p.Tree = json.RawMessage(`[{"id":"a","tag":"p","text":"` + text + `"}]`)
	p.Metadata["client"] = "acme"
	return p
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlyingStore := NewMockStore()
	mw := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	secureStore := mw(underlyingStore)

	ctx := context.Background()
	original := secretProject("p1", "my-secret-sauce")

	require.NoError(t, secureStore.Save(ctx, original))

	stored, err := underlyingStore.Load(ctx, "p1")
	require.NoError(t, err)
	assert.NotContains(t, string(stored.Tree), "my-secret-sauce")
	assert.NotContains(t, stored.Metadata, "client")
	assert.Contains(t, stored.Metadata, "__encrypted__")
	assert.Equal(t, "Secret page", stored.Name, "listing fields stay readable")

	loaded, err := secureStore.Load(ctx, "p1")
	require.NoError(t, err)
	assert.JSONEq(t, string(original.Tree), string(loaded.Tree))
	assert.Equal(t, "acme", loaded.Metadata["client"])
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlyingStore := NewMockStore()
	oldKey := generateKey(t)
	newKey := generateKey(t)
	ctx := context.Background()

	secureStoreOld := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: oldKey})(underlyingStore)
	require.NoError(t, secureStoreOld.Save(ctx, secretProject("rot", "old")))

	secureStoreNew := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
		ActiveKey:    newKey,
		FallbackKeys: [][]byte{oldKey},
	})(underlyingStore)

	loaded, err := secureStoreNew.Load(ctx, "rot")
	require.NoError(t, err, "fallback key must decrypt old records")
	assert.Contains(t, string(loaded.Tree), "old")

	require.NoError(t, secureStoreNew.Save(ctx, secretProject("rot", "new")))

	_, err = secureStoreOld.Load(ctx, "rot")
	assert.Error(t, err, "old key alone cannot read records sealed with the new key")
}

func TestEncryptionMiddleware_RejectsPlaintext(t *testing.T) {
	underlyingStore := NewMockStore()
	ctx := context.Background()
	require.NoError(t, underlyingStore.Save(ctx, secretProject("plain", "x")))

	secureStore := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})(underlyingStore)
	_, err := secureStore.Load(ctx, "plain")
	assert.ErrorContains(t, err, "missing encrypted data envelope")

	_, err = secureStore.Load(ctx, "absent")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestEncryptionMiddleware_InvalidKey(t *testing.T) {
	cfg := middleware.EncryptionConfig{ActiveKey: []byte("short-key")}
	assert.ErrorIs(t, cfg.Validate(), middleware.ErrInvalidKey)
	assert.Panics(t, func() { middleware.NewEncryptionMiddleware(cfg) })

	cfg = middleware.EncryptionConfig{ActiveKey: make([]byte, 32), FallbackKeys: [][]byte{{1}}}
	assert.ErrorIs(t, cfg.Validate(), middleware.ErrInvalidKey)
}
