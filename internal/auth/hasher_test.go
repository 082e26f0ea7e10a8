package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasherHashAndVerify(t *testing.T) {
	hasher := NewHasher()

	digest, err := hasher.Hash("Passw0rd!")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(digest, "$argon2id$"))
	assert.NotContains(t, digest, "Passw0rd!")
	assert.True(t, hasher.Verify("Passw0rd!", digest))
	assert.False(t, hasher.Verify("wrong-password", digest))
}

func TestHasherSaltedDigestsDiffer(t *testing.T) {
	hasher := NewHasher()

	first, err := hasher.Hash("Passw0rd!")
	require.NoError(t, err)
	second, err := hasher.Hash("Passw0rd!")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.True(t, hasher.Verify("Passw0rd!", first))
	assert.True(t, hasher.Verify("Passw0rd!", second))
}

func TestHasherVerifyMalformedDigest(t *testing.T) {
	hasher := NewHasher()

	assert.False(t, hasher.Verify("Passw0rd!", ""))
	assert.False(t, hasher.Verify("Passw0rd!", "plaintext"))
	assert.False(t, hasher.Verify("Passw0rd!", "$argon2id$v=19$garbage"))
	assert.False(t, hasher.Verify("Passw0rd!", "$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"))
}

func TestHasherEncodesParameters(t *testing.T) {
	hasher := NewHasher()

	digest, err := hasher.Hash("Passw0rd!")
	require.NoError(t, err)

	assert.Contains(t, digest, "m=65536,t=3,p=2")
}
