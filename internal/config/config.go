// Package config provides configuration loading and validation.
package config

// Config holds the server configuration.
type Config struct {
	// Mode is the effective operating mode: prod or dev.
	Mode string `json:"mode"`

	// ExternalOrigin is the public origin (scheme + host + port) of this
	// instance, used for TLS hostname selection and log context.
	ExternalOrigin string `json:"external_origin"`

	// ExternalBasePath is the optional path prefix for app endpoints.
	ExternalBasePath string `json:"external_base_path"`

	// ListenAddr is the address to listen on, e.g. ":8790".
	ListenAddr string `json:"listen_addr"`

	Server       ServerConfig       `json:"server"`
	TLS          TLSConfig          `json:"tls"`
	Store        StoreConfig        `json:"store"`
	Identity     IdentityConfig     `json:"identity"`
	Attest       AttestConfig       `json:"attest"`
	Workflow     WorkflowConfig     `json:"workflow"`
	OutboundHTTP OutboundHTTPConfig `json:"outbound_http"`
	RateLimit    RateLimitConfig    `json:"ratelimit"`
	Cache        CacheConfig        `json:"cache"`
	Logging      LoggingConfig      `json:"logging"`
}

// ServerConfig holds server-level settings.
type ServerConfig struct {
	// TrustedProxies is the list of CIDRs whose X-Forwarded-For is honored.
	TrustedProxies []string `json:"trusted_proxies"`
}

// TLSConfig holds TLS listener settings.
type TLSConfig struct {
	// Mode is one of: off, static, selfsigned, acme.
	Mode string `json:"mode"`

	// CertFile and KeyFile for static mode.
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`

	// SelfSignedDir is where generated dev certificates are stored.
	SelfSignedDir string `json:"selfsigned_dir"`

	ACME ACMEConfig `json:"acme"`
}

// ACMEConfig holds settings for the ACME TLS mode.
type ACMEConfig struct {
	Domain     string `json:"domain"`
	Email      string `json:"email"`
	Directory  string `json:"directory"`
	StorageDir string `json:"storage_dir"`
	UseStaging bool   `json:"use_staging"`
}

// StoreConfig selects and configures the persistence driver.
type StoreConfig struct {
	// Driver is the driver name: sqlite, memory.
	Driver string `json:"driver"`

	// DataDir is the directory for data files (sqlite db).
	DataDir string `json:"data_dir"`

	// Options holds driver-specific settings.
	Options map[string]any `json:"options"`
}

// IdentityConfig configures the access control gate.
type IdentityConfig struct {
	// Verifier is one of: introspection, jwt.
	Verifier string `json:"verifier"`

	// IntrospectionURL is the provider endpoint for token verification.
	IntrospectionURL string `json:"introspection_url"`

	// ServiceToken authenticates this service against the provider.
	ServiceToken string `json:"service_token"`

	// VerificationKeyPEM is the PEM public key for local JWT verification.
	VerificationKeyPEM string `json:"verification_key_pem"`

	// CacheTTLSeconds bounds how long a verified token is cached.
	CacheTTLSeconds int `json:"cache_ttl_seconds"`
}

// AttestConfig configures the attestation service.
type AttestConfig struct {
	// Enabled gates all anchoring; when false Attest always yields nothing.
	Enabled bool `json:"enabled"`

	// ProviderURL is the base URL of the anchoring provider.
	ProviderURL string `json:"provider_url"`

	// ServiceToken authenticates against the anchoring provider.
	ServiceToken string `json:"service_token"`

	// TimeoutMS bounds a single anchoring round trip. On expiry the
	// attestation degrades to no result; the primary mutation stands.
	TimeoutMS int `json:"timeout_ms"`

	// SignKeyPath enables the local signer when set (Ed25519 PEM,
	// generated on first use).
	SignKeyPath string `json:"sign_key_path"`
}

// WorkflowConfig resolves the transition policies that the upstream data
// model left loose.
type WorkflowConfig struct {
	// AllowRepeatCheckIn permits repeated check-ins with the same token.
	AllowRepeatCheckIn bool `json:"allow_repeat_check_in"`

	// AllowPayoutRetransition permits payout transitions out of a
	// non-pending state.
	AllowPayoutRetransition bool `json:"allow_payout_retransition"`
}

// OutboundHTTPConfig holds settings for outbound HTTP requests.
type OutboundHTTPConfig struct {
	// SSRFMode is one of: strict, off.
	SSRFMode string `json:"ssrf_mode"`

	// TimeoutMS is the overall request timeout in milliseconds.
	TimeoutMS int `json:"timeout_ms"`

	// ConnectTimeoutMS is the connection timeout in milliseconds.
	ConnectTimeoutMS int `json:"connect_timeout_ms"`

	// MaxRedirects is the maximum number of redirects to follow.
	MaxRedirects int `json:"max_redirects"`

	// MaxResponseBytes is the maximum response body size.
	MaxResponseBytes int64 `json:"max_response_bytes"`

	// InsecureSkipVerify disables TLS verification (dev-only).
	InsecureSkipVerify bool `json:"insecure_skip_verify"`
}

// RateLimitConfig holds settings for the ops endpoint rate limiter.
type RateLimitConfig struct {
	RequestsPerWindow int64 `json:"requests_per_window"`
	WindowSeconds     int   `json:"window_seconds"`
}

// CacheConfig selects and configures the cache driver.
type CacheConfig struct {
	// Driver is the cache driver name (memory or valkey).
	Driver string `json:"driver"`

	// Options holds driver-specific settings.
	Options map[string]any `json:"options"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is one of: debug, info, warn, error.
	Level string `json:"level"`
}

// Redacted returns a copy of the config with secrets blanked for logging.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Identity.ServiceToken != "" {
		out.Identity.ServiceToken = "[redacted]"
	}
	if out.Attest.ServiceToken != "" {
		out.Attest.ServiceToken = "[redacted]"
	}
	return &out
}
