package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/WhizardTelemetry/eBPFConductor/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:     "test-secret",
		JWTExpMinutes: 5,
	}
}

func TestGenerateAndParseToken(t *testing.T) {
	cfg := testConfig()

	token, exp, err := GenerateToken("flow-exporter", "viewer", cfg)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(5*time.Minute), exp, 5*time.Second)

	claims, err := ParseToken(token, cfg)
	require.NoError(t, err)
	assert.Equal(t, "flow-exporter", claims.Service)
	assert.Equal(t, "viewer", claims.Role)
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	token, _, err := GenerateToken("flow-exporter", "viewer", testConfig())
	require.NoError(t, err)

	other := testConfig()
	other.JWTSecret = "different"
	_, err = ParseToken(token, other)
	assert.Error(t, err)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	_, err := ParseToken("not-a-token", testConfig())
	assert.Error(t, err)
}

func TestAuthenticateService(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	t.Setenv("SERVICE_USER", "conn-tracer")
	t.Setenv("SERVICE_PASSWORD_HASH", string(hash))

	assert.True(t, AuthenticateService("conn-tracer", "s3cret"))
	assert.False(t, AuthenticateService("conn-tracer", "wrong"))
	assert.False(t, AuthenticateService("other", "s3cret"))
}

func TestAuthenticateServiceUnconfigured(t *testing.T) {
	t.Setenv("SERVICE_USER", "")
	t.Setenv("SERVICE_PASSWORD_HASH", "")
	assert.False(t, AuthenticateService("anyone", "anything"))
}
