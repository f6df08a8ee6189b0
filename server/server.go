package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/acme/autocert"
)

const (
	DefaultPort     = "8080"
	TLSModeFile     = "file"
	TLSModeAutoCert = "autocert"
	DefaultTLSMode  = TLSModeFile

	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

type Server struct {
	Host string
	Port string
	TLS  ServerTLS
}

type ServerTLS struct {
	Enabled  bool
	Mode     string
	AutoCert *ServerTLSAutoCert
	CertFile string
	KeyFile  string
}

type ServerTLSAutoCert struct {
	CacheDir string
	Domains  []string
	Email    string
}

type UnknownTLSModeError struct {
	Mode string
}

func (err UnknownTLSModeError) Error() string {
	return fmt.Sprintf("unknown tls mode '%s'", err.Mode)
}

var ErrNoAutoCertDomains = errors.New("autocert requires at least one domain")

func (s *Server) address() string {
	port := s.Port
	if port == "" {
		port = DefaultPort
	}

	return net.JoinHostPort(s.Host, port)
}

// Run serves handler until ctx is done and then shuts the server down gracefully.
func (s *Server) Run(ctx context.Context, handler http.Handler) error {
	srv := &http.Server{
		Addr:              s.address(),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	servers := []*http.Server{srv}

	var serve func() error

	switch {
	case !s.TLS.Enabled:
		slog.InfoContext(ctx, "serving http", "address", srv.Addr)

		serve = srv.ListenAndServe
	case s.TLS.Mode == TLSModeFile:
		slog.InfoContext(ctx, "serving https", "address", srv.Addr, "certFile", s.TLS.CertFile)

		serve = func() error {
			return srv.ListenAndServeTLS(s.TLS.CertFile, s.TLS.KeyFile)
		}
	case s.TLS.Mode == TLSModeAutoCert:
		if s.TLS.AutoCert == nil || len(s.TLS.AutoCert.Domains) == 0 {
			return ErrNoAutoCertDomains
		}

		manager := &autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			Cache:      autocert.DirCache(s.TLS.AutoCert.CacheDir),
			HostPolicy: autocert.HostWhitelist(s.TLS.AutoCert.Domains...),
			Email:      s.TLS.AutoCert.Email,
		}

		srv.TLSConfig = manager.TLSConfig()

		challengeSrv := &http.Server{
			Addr:              net.JoinHostPort(s.Host, "http"),
			Handler:           manager.HTTPHandler(nil),
			ReadHeaderTimeout: readHeaderTimeout,
		}

		servers = append(servers, challengeSrv)

		go func() {
			err := challengeSrv.ListenAndServe()
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.ErrorContext(ctx, "failed to serve acme challenges", "error", err)
			}
		}()

		slog.InfoContext(ctx, "serving https", "address", domainsToHTTPSAddress(s.TLS.AutoCert.Domains))

		serve = func() error {
			return srv.ListenAndServeTLS("", "")
		}
	default:
		return &UnknownTLSModeError{Mode: s.TLS.Mode}
	}

	errCh := make(chan error, 1)

	go func() {
		err := serve()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}

		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	for _, httpServer := range servers {
		err := httpServer.Shutdown(shutdownCtx)
		if err != nil {
			slog.ErrorContext(ctx, "failed to shutdown server gracefully", "address", httpServer.Addr, "error", err)
		}
	}

	<-errCh

	slog.InfoContext(ctx, "server stopped")

	return nil
}

func domainsToHTTPSAddress(domains []string) string {
	addresses := make([]string, 0, len(domains))

	for _, domain := range domains {
		addresses = append(addresses, "https://"+domain)
	}

	return strings.Join(addresses, ", ")
}
