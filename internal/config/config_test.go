package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
app:
  env: production
  port: 9090
  rate_limit_per_min: 30
mongo:
  uri: mongodb://localhost:27017
  database: dm_test
  transactions: true
kafka:
  brokers: ["localhost:9092"]
jwt:
  alg: HS256
  hs_secret: s3cret
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.App.Env)
	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "9090", cfg.App.PortString())
	assert.Equal(t, 30, cfg.App.RateLimitPerMin)
	assert.Equal(t, "dm_test", cfg.Mongo.Database)
	assert.True(t, cfg.Mongo.Transactions)
	assert.Equal(t, "conversations", cfg.Mongo.ConversationsCollection)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "dm.events", cfg.Kafka.TopicEvents)
	assert.Equal(t, DriverMongo, cfg.Storage.Driver)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SERVICE_PORT", "7070")
	t.Setenv("MONGO_NAME", "from_env")
	t.Setenv("KAFKA_BROKER", "k1:9092,k2:9092")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.App.Port)
	assert.Equal(t, "from_env", cfg.Mongo.Database)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "env-secret", cfg.JWT.HSSecret)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", DriverMemory)
	t.Setenv("JWT_SECRET", "x")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8085, cfg.App.Port)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "mongo driver without uri",
			yaml: "jwt:\n  hs_secret: x\n",
			want: "mongo.uri missing",
		},
		{
			name: "unknown driver",
			yaml: "storage:\n  driver: sqlite\njwt:\n  hs_secret: x\n",
			want: "invalid storage.driver",
		},
		{
			name: "rs256 without key",
			yaml: "storage:\n  driver: memory\njwt:\n  alg: RS256\n",
			want: "jwt.public_key_path required",
		},
		{
			name: "bad alg",
			yaml: "storage:\n  driver: memory\njwt:\n  alg: none\n",
			want: "invalid jwt.alg",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestInvalidServicePort(t *testing.T) {
	t.Setenv("SERVICE_PORT", "abc")
	_, err := Load(writeConfig(t, sampleYAML))
	assert.Error(t, err)
}
