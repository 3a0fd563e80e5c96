// Package tls provides TLS termination using CertMagic.
package tls

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/caddyserver/certmagic"
	"github.com/libdns/azure"
)

// Config holds TLS configuration.
type Config struct {
	Enabled  bool
	Domains  []string
	Email    string
	CacheDir string
	Staging  bool // Use Let's Encrypt staging environment
	DNS      DNSConfig
}

// DNSConfig holds Azure DNS provider configuration for DNS-01 challenges.
type DNSConfig struct {
	SubscriptionID    string
	ResourceGroupName string
	ClientID          string // User Assigned Managed Identity client ID (optional)
}

// Server wraps an HTTP server with automatic TLS.
type Server struct {
	config    Config
	handler   http.Handler
	logger    *slog.Logger
	tlsConfig *tls.Config

	mu  sync.Mutex
	srv *http.Server
}

// NewServer creates a new TLS-enabled server. With TLS disabled the server
// falls back to plain HTTP.
func NewServer(cfg Config, handler http.Handler, logger *slog.Logger) (*Server, error) {
	s := &Server{
		config:  cfg,
		handler: handler,
		logger:  logger,
	}

	if !cfg.Enabled {
		return s, nil
	}

	if len(cfg.Domains) == 0 {
		return nil, fmt.Errorf("TLS enabled but no domains specified")
	}

	if cfg.Email == "" {
		return nil, fmt.Errorf("TLS enabled but no email specified")
	}

	certmagic.DefaultACME.Agreed = true
	certmagic.DefaultACME.Email = cfg.Email

	if cfg.Staging {
		certmagic.DefaultACME.CA = certmagic.LetsEncryptStagingCA
	}

	if cfg.CacheDir != "" {
		certmagic.Default.Storage = &certmagic.FileStorage{Path: cfg.CacheDir}
	}

	// DNS-01 keeps port 80 free; the datasets may be served from hosts
	// that cannot expose it.
	provider := &azure.Provider{
		SubscriptionId:    cfg.DNS.SubscriptionID,
		ResourceGroupName: cfg.DNS.ResourceGroupName,
		ClientId:          cfg.DNS.ClientID, // Empty = System Assigned Managed Identity
	}
	certmagic.DefaultACME.DNS01Solver = &certmagic.DNS01Solver{
		DNSManager: certmagic.DNSManager{
			DNSProvider: provider,
		},
	}

	tlsConfig, err := certmagic.TLS(cfg.Domains)
	if err != nil {
		return nil, fmt.Errorf("configuring TLS: %w", err)
	}
	s.tlsConfig = tlsConfig

	return s, nil
}

// ListenAndServe starts the server with TLS if enabled.
func (s *Server) ListenAndServe(addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.srv = server
	s.mu.Unlock()

	if !s.config.Enabled {
		s.logger.Info("starting HTTP server (TLS disabled)", "address", addr)
		return server.ListenAndServe()
	}

	s.logger.Info("starting HTTPS server with DNS-01 challenge",
		"address", addr,
		"domains", s.config.Domains,
	)

	server.TLSConfig = s.tlsConfig
	return server.ListenAndServeTLS("", "")
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	server := s.srv
	s.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Shutdown(ctx)
}

// TLSConfig returns the TLS configuration.
func (s *Server) TLSConfig() *tls.Config {
	return s.tlsConfig
}

// ManageCertificates pre-obtains certificates for the configured domains.
func (s *Server) ManageCertificates(ctx context.Context) error {
	if !s.config.Enabled {
		return nil
	}

	s.logger.Info("obtaining certificates", "domains", s.config.Domains)

	if err := certmagic.ManageSync(ctx, s.config.Domains); err != nil {
		return fmt.Errorf("managing certificates: %w", err)
	}

	s.logger.Info("certificates obtained")
	return nil
}
