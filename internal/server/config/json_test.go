package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParseJson(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	tests := []struct {
		name  string
		body  string
		start Config
		want  Config
	}{
		{
			name: "every key",
			body: `{
				"endpoint_addr_grpc": "0.0.0.0:9000",
				"realtime_addr": ":8082",
				"database_dsn": "postgres://u:p@db:5432/lifedash",
				"secret_key": "k",
				"access_token_validity_duration": "1m",
				"presign_ttl": 180000000000,
				"s3_root_user": "minio",
				"s3_root_password": "minio123",
				"s3_bucket": "attachments",
				"s3_region": "eu-west-1",
				"s3_base_endpoint": "http://minio:9000/",
				"log_level": "warn"
			}`,
			want: Config{
				EndpointAddrGRPC:            "0.0.0.0:9000",
				RealtimeAddr:                ":8082",
				DatabaseDSN:                 "postgres://u:p@db:5432/lifedash",
				SecretKey:                   "k",
				AccessTokenValidityDuration: time.Minute,
				PresignTTL:                  3 * time.Minute,
				S3RootUser:                  "minio",
				S3RootPassword:              "minio123",
				S3Bucket:                    "attachments",
				S3Region:                    "eu-west-1",
				S3BaseEndpoint:              "http://minio:9000/",
				LogLevel:                    "warn",
			},
		},
		{
			name:  "empty and missing values keep defaults",
			body:  `{"secret_key": "", "s3_bucket": "other"}`,
			start: Config{SecretKey: "secretKey", PresignTTL: 15 * time.Minute, LogLevel: "info"},
			want:  Config{SecretKey: "secretKey", PresignTTL: 15 * time.Minute, LogLevel: "info", S3Bucket: "other"},
		},
		{
			name:  "zero duration keeps default",
			body:  `{"access_token_validity_duration": 0}`,
			start: Config{AccessTokenValidityDuration: 24 * time.Hour},
			want:  Config{AccessTokenValidityDuration: 24 * time.Hour},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			os.Args = []string{"testbin", "-config", writeConfigFile(t, tt.body)}
			cfg := tt.start
			parseJson(&cfg)
			assert.Equal(t, tt.want, cfg)
		})
	}

	t.Run("no config flag", func(t *testing.T) {
		os.Args = []string{"testbin", "-a", ":1"}
		cfg := Config{DatabaseDSN: "dsn"}
		parseJson(&cfg)
		assert.Equal(t, Config{DatabaseDSN: "dsn"}, cfg)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", writeConfigFile(t, `{ not json`)}
		require.Panics(t, func() { parseJson(&Config{}) })
	})
}
