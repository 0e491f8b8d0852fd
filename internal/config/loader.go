package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Mode represents the server operating mode.
type Mode string

const (
	ModeProd Mode = "prod"
	ModeDev  Mode = "dev"
)

// ParseMode parses a mode string, returning an error for invalid values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prod", "":
		return ModeProd, nil
	case "dev":
		return ModeDev, nil
	default:
		return "", fmt.Errorf("invalid mode %q: must be one of prod, dev", s)
	}
}

// LoaderOptions controls how configuration is loaded.
type LoaderOptions struct {
	// ConfigPath is the path to a TOML config file (optional).
	// If provided but the file is missing or invalid, loading fails.
	ConfigPath string

	// ModeFlag is the --mode flag value (overrides config file mode).
	ModeFlag string

	// FlagOverrides are CLI flag values that override config file values.
	FlagOverrides FlagOverrides

	// Logger is used for warning messages (e.g. undecoded keys).
	// If nil, slog.Default() is used.
	Logger *slog.Logger
}

// FlagOverrides holds CLI flag values that override config file values.
type FlagOverrides struct {
	ListenAddr     *string
	ExternalOrigin *string
	StoreDriver    *string
	DataDir        *string
	TLSMode        *string
	AttestEnabled  *string // "true", "false", or "" (unset)
	LoggingLevel   *string
}

// fileConfig mirrors Config but with pointer sections to detect presence.
type fileConfig struct {
	Mode             string `toml:"mode"`
	ExternalOrigin   string `toml:"external_origin"`
	ExternalBasePath string `toml:"external_base_path"`
	ListenAddr       string `toml:"listen_addr"`

	Server       *serverFileConfig   `toml:"server"`
	TLS          *tlsFileConfig      `toml:"tls"`
	Store        *storeFileConfig    `toml:"store"`
	Identity     *identityFileConfig `toml:"identity"`
	Attest       *attestFileConfig   `toml:"attest"`
	Workflow     *workflowFileConfig `toml:"workflow"`
	OutboundHTTP *OutboundHTTPConfig `toml:"outbound_http"`
	RateLimit    *RateLimitConfig    `toml:"ratelimit"`
	Cache        *cacheFileConfig    `toml:"cache"`
	Logging      *LoggingConfig      `toml:"logging"`
}

type serverFileConfig struct {
	TrustedProxies []string `toml:"trusted_proxies"`
}

type tlsFileConfig struct {
	Mode          string          `toml:"mode"`
	CertFile      string          `toml:"cert_file"`
	KeyFile       string          `toml:"key_file"`
	SelfSignedDir string          `toml:"selfsigned_dir"`
	ACME          *acmeFileConfig `toml:"acme"`
}

type acmeFileConfig struct {
	Domain     string `toml:"domain"`
	Email      string `toml:"email"`
	Directory  string `toml:"directory"`
	StorageDir string `toml:"storage_dir"`
	UseStaging *bool  `toml:"use_staging"`
}

type storeFileConfig struct {
	Driver  string         `toml:"driver"`
	DataDir string         `toml:"data_dir"`
	Options map[string]any `toml:"options"`
}

type identityFileConfig struct {
	Verifier           string `toml:"verifier"`
	IntrospectionURL   string `toml:"introspection_url"`
	ServiceToken       string `toml:"service_token"`
	VerificationKeyPEM string `toml:"verification_key_pem"`
	CacheTTLSeconds    *int   `toml:"cache_ttl_seconds"`
}

type attestFileConfig struct {
	Enabled      *bool  `toml:"enabled"`
	ProviderURL  string `toml:"provider_url"`
	ServiceToken string `toml:"service_token"`
	TimeoutMS    *int   `toml:"timeout_ms"`
	SignKeyPath  string `toml:"sign_key_path"`
}

type workflowFileConfig struct {
	AllowRepeatCheckIn      *bool `toml:"allow_repeat_check_in"`
	AllowPayoutRetransition *bool `toml:"allow_payout_retransition"`
}

type cacheFileConfig struct {
	Driver  string         `toml:"driver"`
	Options map[string]any `toml:"options"`
}

// Load loads configuration with the following precedence:
//  1. Determine effective mode: --mode flag > mode in config file > default (prod)
//  2. Start from mode preset defaults
//  3. Overlay TOML config file values
//  4. Overlay CLI flags
//  5. Validate enum fields
//
// If ConfigPath is provided but the file is missing, unreadable, or invalid
// TOML, Load returns an error (fail fast). Unknown TOML keys produce a
// warning but do not fail the load.
func Load(opts LoaderOptions) (*Config, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var fc fileConfig

	if opts.ConfigPath != "" {
		data, err := os.ReadFile(opts.ConfigPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", opts.ConfigPath, err)
		}
		md, err := toml.Decode(string(data), &fc)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", opts.ConfigPath, err)
		}

		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			logger.Warn("config file contains undecoded keys", "path", opts.ConfigPath, "keys", keys)
		}
	}

	modeStr := "prod"
	if fc.Mode != "" {
		modeStr = fc.Mode
	}
	if opts.ModeFlag != "" {
		modeStr = opts.ModeFlag
	}

	mode, err := ParseMode(modeStr)
	if err != nil {
		return nil, err
	}

	cfg := presetForMode(mode)

	if opts.ConfigPath != "" {
		overlayFileConfig(cfg, &fc)
	}

	overlayFlags(cfg, opts.FlagOverrides)

	if err := validateEnums(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// presetForMode returns the base config for a given mode.
func presetForMode(mode Mode) *Config {
	if mode == ModeDev {
		return DevConfig()
	}
	return ProdConfig()
}

// ProdConfig returns production-safe defaults.
func ProdConfig() *Config {
	return &Config{
		Mode:           string(ModeProd),
		ExternalOrigin: "https://localhost:8790",
		ListenAddr:     ":8790",
		Server: ServerConfig{
			TrustedProxies: []string{"127.0.0.0/8", "::1/128"},
		},
		TLS: TLSConfig{
			Mode:          "selfsigned",
			SelfSignedDir: ".opshub/certs",
			ACME: ACMEConfig{
				Directory:  "https://acme-v02.api.letsencrypt.org/directory",
				StorageDir: ".opshub/acme",
				UseStaging: false,
			},
		},
		Store: StoreConfig{
			Driver:  "sqlite",
			DataDir: ".opshub/data",
		},
		Identity: IdentityConfig{
			Verifier:        "introspection",
			CacheTTLSeconds: 60,
		},
		Attest: AttestConfig{
			Enabled:   true,
			TimeoutMS: 5000,
		},
		Workflow: WorkflowConfig{
			AllowRepeatCheckIn:      true,
			AllowPayoutRetransition: false,
		},
		OutboundHTTP: OutboundHTTPConfig{
			SSRFMode:           "strict",
			TimeoutMS:          10000,
			ConnectTimeoutMS:   2000,
			MaxRedirects:       1,
			MaxResponseBytes:   1048576,
			InsecureSkipVerify: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: 120,
			WindowSeconds:     60,
		},
		Cache: CacheConfig{
			Driver: "memory",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DevConfig returns development mode defaults: plain HTTP, local memory
// store, anchoring disabled.
func DevConfig() *Config {
	cfg := ProdConfig()
	cfg.Mode = string(ModeDev)
	cfg.ExternalOrigin = "http://localhost:8790"
	cfg.TLS.Mode = "off"
	cfg.TLS.ACME.Directory = "https://acme-staging-v02.api.letsencrypt.org/directory"
	cfg.TLS.ACME.UseStaging = true
	cfg.Store.Driver = "memory"
	cfg.Attest.Enabled = false
	cfg.OutboundHTTP.SSRFMode = "off"
	cfg.OutboundHTTP.MaxRedirects = 3
	cfg.OutboundHTTP.InsecureSkipVerify = true
	cfg.Logging.Level = "debug"
	return cfg
}

// overlayFileConfig applies non-zero file values onto cfg.
func overlayFileConfig(cfg *Config, fc *fileConfig) {
	if fc.ExternalOrigin != "" {
		cfg.ExternalOrigin = fc.ExternalOrigin
	}
	if fc.ExternalBasePath != "" {
		cfg.ExternalBasePath = fc.ExternalBasePath
	}
	if fc.ListenAddr != "" {
		cfg.ListenAddr = fc.ListenAddr
	}

	if fc.Server != nil && fc.Server.TrustedProxies != nil {
		cfg.Server.TrustedProxies = fc.Server.TrustedProxies
	}

	if fc.TLS != nil {
		if fc.TLS.Mode != "" {
			cfg.TLS.Mode = fc.TLS.Mode
		}
		if fc.TLS.CertFile != "" {
			cfg.TLS.CertFile = fc.TLS.CertFile
		}
		if fc.TLS.KeyFile != "" {
			cfg.TLS.KeyFile = fc.TLS.KeyFile
		}
		if fc.TLS.SelfSignedDir != "" {
			cfg.TLS.SelfSignedDir = fc.TLS.SelfSignedDir
		}
		if fc.TLS.ACME != nil {
			if fc.TLS.ACME.Domain != "" {
				cfg.TLS.ACME.Domain = fc.TLS.ACME.Domain
			}
			if fc.TLS.ACME.Email != "" {
				cfg.TLS.ACME.Email = fc.TLS.ACME.Email
			}
			if fc.TLS.ACME.Directory != "" {
				cfg.TLS.ACME.Directory = fc.TLS.ACME.Directory
			}
			if fc.TLS.ACME.StorageDir != "" {
				cfg.TLS.ACME.StorageDir = fc.TLS.ACME.StorageDir
			}
			if fc.TLS.ACME.UseStaging != nil {
				cfg.TLS.ACME.UseStaging = *fc.TLS.ACME.UseStaging
			}
		}
	}

	if fc.Store != nil {
		if fc.Store.Driver != "" {
			cfg.Store.Driver = fc.Store.Driver
		}
		if fc.Store.DataDir != "" {
			cfg.Store.DataDir = fc.Store.DataDir
		}
		if fc.Store.Options != nil {
			cfg.Store.Options = fc.Store.Options
		}
	}

	if fc.Identity != nil {
		if fc.Identity.Verifier != "" {
			cfg.Identity.Verifier = fc.Identity.Verifier
		}
		if fc.Identity.IntrospectionURL != "" {
			cfg.Identity.IntrospectionURL = fc.Identity.IntrospectionURL
		}
		if fc.Identity.ServiceToken != "" {
			cfg.Identity.ServiceToken = fc.Identity.ServiceToken
		}
		if fc.Identity.VerificationKeyPEM != "" {
			cfg.Identity.VerificationKeyPEM = fc.Identity.VerificationKeyPEM
		}
		if fc.Identity.CacheTTLSeconds != nil {
			cfg.Identity.CacheTTLSeconds = *fc.Identity.CacheTTLSeconds
		}
	}

	if fc.Attest != nil {
		if fc.Attest.Enabled != nil {
			cfg.Attest.Enabled = *fc.Attest.Enabled
		}
		if fc.Attest.ProviderURL != "" {
			cfg.Attest.ProviderURL = fc.Attest.ProviderURL
		}
		if fc.Attest.ServiceToken != "" {
			cfg.Attest.ServiceToken = fc.Attest.ServiceToken
		}
		if fc.Attest.TimeoutMS != nil {
			cfg.Attest.TimeoutMS = *fc.Attest.TimeoutMS
		}
		if fc.Attest.SignKeyPath != "" {
			cfg.Attest.SignKeyPath = fc.Attest.SignKeyPath
		}
	}

	if fc.Workflow != nil {
		if fc.Workflow.AllowRepeatCheckIn != nil {
			cfg.Workflow.AllowRepeatCheckIn = *fc.Workflow.AllowRepeatCheckIn
		}
		if fc.Workflow.AllowPayoutRetransition != nil {
			cfg.Workflow.AllowPayoutRetransition = *fc.Workflow.AllowPayoutRetransition
		}
	}

	if fc.OutboundHTTP != nil {
		cfg.OutboundHTTP = *fc.OutboundHTTP
	}

	if fc.RateLimit != nil {
		cfg.RateLimit = *fc.RateLimit
	}

	if fc.Cache != nil {
		if fc.Cache.Driver != "" {
			cfg.Cache.Driver = fc.Cache.Driver
		}
		if fc.Cache.Options != nil {
			cfg.Cache.Options = fc.Cache.Options
		}
	}

	if fc.Logging != nil && fc.Logging.Level != "" {
		cfg.Logging.Level = fc.Logging.Level
	}
}

// overlayFlags applies set CLI flags onto cfg.
func overlayFlags(cfg *Config, f FlagOverrides) {
	if f.ListenAddr != nil && *f.ListenAddr != "" {
		cfg.ListenAddr = *f.ListenAddr
	}
	if f.ExternalOrigin != nil && *f.ExternalOrigin != "" {
		cfg.ExternalOrigin = *f.ExternalOrigin
	}
	if f.StoreDriver != nil && *f.StoreDriver != "" {
		cfg.Store.Driver = *f.StoreDriver
	}
	if f.DataDir != nil && *f.DataDir != "" {
		cfg.Store.DataDir = *f.DataDir
	}
	if f.TLSMode != nil && *f.TLSMode != "" {
		cfg.TLS.Mode = *f.TLSMode
	}
	if f.AttestEnabled != nil && *f.AttestEnabled != "" {
		cfg.Attest.Enabled = strings.EqualFold(*f.AttestEnabled, "true")
	}
	if f.LoggingLevel != nil && *f.LoggingLevel != "" {
		cfg.Logging.Level = *f.LoggingLevel
	}
}

// validateEnums checks closed-set fields after all overlays.
func validateEnums(cfg *Config) error {
	switch cfg.TLS.Mode {
	case "off", "static", "selfsigned", "acme":
	default:
		return fmt.Errorf("invalid tls.mode %q: must be one of off, static, selfsigned, acme", cfg.TLS.Mode)
	}

	switch cfg.Store.Driver {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("invalid store.driver %q: must be one of sqlite, memory", cfg.Store.Driver)
	}

	switch cfg.Identity.Verifier {
	case "introspection", "jwt":
	default:
		return fmt.Errorf("invalid identity.verifier %q: must be one of introspection, jwt", cfg.Identity.Verifier)
	}

	switch cfg.OutboundHTTP.SSRFMode {
	case "strict", "off":
	default:
		return fmt.Errorf("invalid outbound_http.ssrf_mode %q: must be strict or off", cfg.OutboundHTTP.SSRFMode)
	}

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid logging.level %q: must be one of debug, info, warn, error", cfg.Logging.Level)
	}

	return nil
}
