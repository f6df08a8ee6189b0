package server

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainsToHTTPSAddress(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		domains  []string
		expected string
	}{
		{
			name:     "single domain",
			domains:  []string{"example.com"},
			expected: "https://example.com",
		},
		{
			name:     "multiple domains",
			domains:  []string{"example.com", "www.example.com"},
			expected: "https://example.com, https://www.example.com",
		},
		{
			name:     "no domains",
			domains:  []string{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := domainsToHTTPSAddress(tt.domains)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestServerRun(t *testing.T) {
	t.Parallel()

	t.Run("stops when context is done", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())

		srv := &Server{Host: "127.0.0.1", Port: "0"}

		done := make(chan error, 1)

		go func() {
			done <- srv.Run(ctx, http.NotFoundHandler())
		}()

		cancel()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("server did not stop")
		}
	})

	t.Run("unknown tls mode", func(t *testing.T) {
		t.Parallel()

		srv := &Server{Port: "0", TLS: ServerTLS{Enabled: true, Mode: "manual"}}

		err := srv.Run(context.Background(), http.NotFoundHandler())

		unknownTLSModeError := &UnknownTLSModeError{}
		require.ErrorAs(t, err, &unknownTLSModeError)
		assert.Equal(t, "manual", unknownTLSModeError.Mode)
	})

	t.Run("autocert without domains", func(t *testing.T) {
		t.Parallel()

		srv := &Server{
			Port: "0",
			TLS: ServerTLS{
				Enabled:  true,
				Mode:     TLSModeAutoCert,
				AutoCert: &ServerTLSAutoCert{CacheDir: t.TempDir()},
			},
		}

		err := srv.Run(context.Background(), http.NotFoundHandler())
		require.ErrorIs(t, err, ErrNoAutoCertDomains)
	})
}
