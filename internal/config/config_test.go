package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("env: local\njwt:\n  secret: dev\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, 3600, cfg.JWT.ExpiresIn)
	assert.Equal(t, 120, cfg.RateLimit.Requests)
	assert.True(t, cfg.IsDevelopment())
}

func TestParse_Rejections(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing secret", "env: local\n"},
		{"short production secret", "env: production\njwt:\n  secret: short\n"},
		{"port out of range", "env: local\nserver:\n  port: 70000\njwt:\n  secret: dev\n"},
		{"malformed yaml", "server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("CHAT_TEST_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CHAT_TEST_DB_HOST", "db.internal")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `env: production
database:
  host: ${CHAT_TEST_DB_HOST}
  user: chat
  password: pw
  name: marketplace
jwt:
  secret: ${CHAT_TEST_SECRET}
cors:
  allow_origins: "https://majstori.bg, https://app.majstori.bg ,"
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, "chat:pw@tcp(db.internal:3306)/marketplace?charset=utf8mb4&parseTime=true&loc=UTC", cfg.Database.GetDSN())
	assert.Equal(t, []string{"https://majstori.bg", "https://app.majstori.bg"}, cfg.CORSOrigins())
	assert.Equal(t, cfg.CORSOrigins(), cfg.SocketOrigins(), "socket origins fall back to CORS")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestMask(t *testing.T) {
	assert.Equal(t, "(empty)", mask(""))
	assert.Equal(t, "****", mask("abc"))
	assert.Equal(t, "se****", mask("secret"))
}
