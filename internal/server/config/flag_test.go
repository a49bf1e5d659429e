package config

import (
	"flag"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseFlags(t *testing.T) {

	tests := []struct {
		expected    *Config
		name        string
		args        []string
		expectPanic bool
	}{
		{name: "Test1 OK", args: []string{"cmd",
			"-a", "127.0.0.1:9090", "-d", "db", "-q", "redis://cache:6379",
			"-s", "secret", "-n", "prod", "-t", "5", "-r", "10080",
		}, expectPanic: false,
			expected: &Config{
				EndpointAddrHTTP:             "127.0.0.1:9090",
				DatabaseDSN:                  "db",
				RedisURL:                     "redis://cache:6379",
				SecretKey:                    "secret",
				Environment:                  "prod",
				AccessTokenValidityDuration:  5 * time.Minute,
				RefreshTokenValidityDuration: 10080 * time.Minute,
			}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(os.Args[0], flag.PanicOnError)

			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()
			os.Args = tt.args

			config := &Config{}

			if tt.expectPanic {
				assert.Panics(t, func() { parseFlags(config) })
				return
			}

			parseFlags(config)
			assert.Equal(t, tt.expected, config)
		})
	}
}
