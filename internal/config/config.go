// Package config provides configuration management for the selmag catalogue service
// and manager application. It supports environment variable-based configuration with
// validation and default values for the server, storage backends, the resource-server
// token checks, the outgoing catalogue client, security and logging settings.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	// MinJWTSecretLength is the minimum required length for the shared HS256 secret.
	MinJWTSecretLength = 32
	// MinPortNumber is the minimum valid port number.
	MinPortNumber = 1
	// MaxPortNumber is the maximum valid port number.
	MaxPortNumber = 65535
)

// Grant types a client registration may use to obtain access tokens.
const (
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeRefreshToken      = "refresh_token"
)

// Config represents the complete configuration shared by both binaries.
// Each binary reads only the sections it needs.
type Config struct {
	// Environment holds environment-specific settings.
	Environment EnvironmentConfig `envconfig:"ENVIRONMENT"`
	// Server contains HTTP server configuration including ports, timeouts, and TLS settings.
	Server ServerConfig `envconfig:"SERVER"`
	// Redis contains Redis connection and pool configuration.
	Redis RedisConfig `envconfig:"REDIS"`
	// PostgresDatabase contains PostgreSQL database configuration for the product store.
	PostgresDatabase DatabaseConfig `envconfig:"POSTGRES"`
	// MySQLDatabase contains MySQL database configuration for the product store.
	MySQLDatabase MySQLConfig `envconfig:"MYSQL"`
	// ResourceServer contains the bearer token validation settings of the catalogue API.
	ResourceServer ResourceServerConfig `envconfig:"RESOURCE_SERVER"`
	// Catalogue contains the manager application's client registration for the catalogue API.
	Catalogue CatalogueClientConfig `envconfig:"CATALOGUE"`
	// Registrations points at optional YAML files declaring more client registrations.
	Registrations RegistrationsConfig `envconfig:"REGISTRATIONS"`
	// Session contains the manager application's session cookie settings.
	Session SessionConfig `envconfig:"SESSION"`
	// Security contains security-related settings like CORS and rate limiting.
	Security SecurityConfig `envconfig:"SECURITY"`
	// Logging contains logging configuration.
	Logging LoggingConfig `envconfig:"LOGGING"`
}

type Environment string

const (
	Local   Environment = "LOCAL"
	NonProd Environment = "NONPROD"
	Prod    Environment = "PROD"
)

// EnvironmentConfig holds environment-specific settings.
type EnvironmentConfig struct {
	// Environment indicates the current running environment (LOCAL, NONPROD, PROD).
	Environment Environment `envconfig:"ENV" default:"LOCAL"`
}

// ServerConfig holds HTTP server configuration including network settings,
// timeouts, and TLS certificate paths.
type ServerConfig struct {
	// Port is the HTTP server listening port.
	Port int `envconfig:"PORT"             default:"8080"`
	// Host is the network interface to bind to.
	Host string `envconfig:"HOST"             default:"0.0.0.0"`
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `envconfig:"READ_TIMEOUT"     default:"15s"`
	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT"    default:"15s"`
	// IdleTimeout is the maximum amount of time to wait for keep-alive connections.
	IdleTimeout time.Duration `envconfig:"IDLE_TIMEOUT"     default:"60s"`
	// ShutdownTimeout is the maximum time to wait for graceful server shutdown.
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
	// TLSCert is the path to the TLS certificate file for HTTPS.
	TLSCert string `envconfig:"TLS_CERT"`
	// TLSKey is the path to the TLS private key file for HTTPS.
	TLSKey string `envconfig:"TLS_KEY"`
}

// RedisConfig contains Redis connection configuration including
// connection pool settings and timeouts.
type RedisConfig struct {
	// URL is the Redis connection URL. Empty disables Redis.
	URL string `envconfig:"URL"`
	// Password is the Redis authentication password.
	Password string `envconfig:"PASSWORD"`
	// DB is the Redis database number to use.
	DB int `envconfig:"DB"            default:"0"`
	// MaxRetries is the maximum number of retry attempts for failed operations.
	MaxRetries int `envconfig:"MAX_RETRIES"   default:"3"`
	// PoolSize is the maximum number of socket connections.
	PoolSize int `envconfig:"POOL_SIZE"     default:"10"`
	// MinIdleConn is the minimum number of idle connections.
	MinIdleConn int `envconfig:"MIN_IDLE_CONN" default:"2"`
	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration `envconfig:"DIAL_TIMEOUT"  default:"5s"`
	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration `envconfig:"READ_TIMEOUT"  default:"3s"`
	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration `envconfig:"WRITE_TIMEOUT" default:"3s"`
	// PoolTimeout is the amount of time client waits for connection.
	PoolTimeout time.Duration `envconfig:"POOL_TIMEOUT"  default:"4s"`
	// IdleTimeout is the amount of time after which client closes idle connections.
	IdleTimeout time.Duration `envconfig:"IDLE_TIMEOUT"  default:"300s"`
}

// DatabaseConfig contains PostgreSQL database connection configuration
// including connection pool settings and health check parameters.
type DatabaseConfig struct {
	Host              string        `envconfig:"HOST"                default:"localhost"`
	Port              int           `envconfig:"PORT"                default:"5432"`
	Database          string        `envconfig:"DB"                  default:"catalogue"`
	Schema            string        `envconfig:"SCHEMA"              default:"catalogue"`
	User              string        `envconfig:"DB_USER"`
	Password          string        `envconfig:"DB_PASSWORD"`
	SSLMode           string        `envconfig:"SSL_MODE"            default:"disable"`
	MaxConn           int32         `envconfig:"MAX_CONN"            default:"25"`
	MinConn           int32         `envconfig:"MIN_CONN"            default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"MAX_CONN_LIFETIME"   default:"1h"`
	MaxConnIdleTime   time.Duration `envconfig:"MAX_CONN_IDLE_TIME"  default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"HEALTH_CHECK_PERIOD" default:"30s"`
	ConnectTimeout    time.Duration `envconfig:"CONNECT_TIMEOUT"     default:"10s"`
}

// MySQLConfig contains MySQL database connection configuration
// including connection pool settings and health check parameters.
type MySQLConfig struct {
	Host              string        `envconfig:"HOST"                default:"localhost"`
	Port              int           `envconfig:"PORT"                default:"3306"`
	Database          string        `envconfig:"DB"                  default:"catalogue"`
	User              string        `envconfig:"DB_USER"`
	Password          string        `envconfig:"DB_PASSWORD"`
	MaxConn           int           `envconfig:"MAX_CONN"            default:"25"`
	MinConn           int           `envconfig:"MIN_CONN"            default:"2"`
	MaxConnLifetime   time.Duration `envconfig:"MAX_CONN_LIFETIME"   default:"1h"`
	MaxConnIdleTime   time.Duration `envconfig:"MAX_CONN_IDLE_TIME"  default:"30m"`
	HealthCheckPeriod time.Duration `envconfig:"HEALTH_CHECK_PERIOD" default:"30s"`
	ConnectTimeout    time.Duration `envconfig:"CONNECT_TIMEOUT"     default:"10s"`
}

// ResourceServerConfig controls how the catalogue API validates bearer tokens.
// When IssuerURL is set tokens are verified against the issuer's JWKS,
// otherwise JWTSecret is used as a shared HS256 key.
type ResourceServerConfig struct {
	// IssuerURL is the OIDC issuer used for discovery.
	IssuerURL string `envconfig:"ISSUER_URL"`
	// JWKSURL skips discovery and reads signing keys from this URL.
	JWKSURL string `envconfig:"JWKS_URL"`
	// Audience is the expected "aud" claim. Empty skips the audience check.
	Audience string `envconfig:"AUDIENCE"`
	// JWTSecret is the shared HS256 secret for local development.
	JWTSecret string `envconfig:"JWT_SECRET"`
	// ReadScope is required for read operations.
	ReadScope string `envconfig:"READ_SCOPE"  default:"view_catalogue"`
	// WriteScope is required for create, update and delete operations.
	WriteScope string `envconfig:"WRITE_SCOPE" default:"edit_catalogue"`
}

// CatalogueClientConfig is the manager application's registration for the catalogue API.
type CatalogueClientConfig struct {
	// RegistrationID names the credential scope used for catalogue calls.
	RegistrationID string `envconfig:"REGISTRATION_ID" default:"keycloak"`
	// BaseURI is the catalogue API base URI. Empty selects the environment default.
	BaseURI string `envconfig:"URI"`
	// ClientID is the OAuth2 client identifier.
	ClientID string `envconfig:"CLIENT_ID"       default:"manager-app"`
	// ClientSecret is the OAuth2 client secret.
	ClientSecret string `envconfig:"CLIENT_SECRET"`
	// TokenURL is the authorization server token endpoint.
	TokenURL string `envconfig:"TOKEN_URL"`
	// Scopes are requested with every token exchange.
	Scopes []string `envconfig:"SCOPES"          default:"view_catalogue,edit_catalogue"`
	// GrantType is client_credentials or refresh_token.
	GrantType string `envconfig:"GRANT_TYPE"      default:"refresh_token"`
	// Timeout bounds every catalogue request, token exchange included.
	Timeout time.Duration `envconfig:"TIMEOUT"         default:"10s"`
	// ClockSkew is subtracted from token expiry before a cached token is reused.
	ClockSkew time.Duration `envconfig:"CLOCK_SKEW"      default:"60s"`
}

// RegistrationsConfig locates YAML files with additional client registrations.
type RegistrationsConfig struct {
	// ConfigDir is searched for registrations.yaml and registrations.<env>.yaml.
	ConfigDir string `envconfig:"CONFIG_DIR" default:"configs"`
}

// SessionConfig holds the manager application's session settings.
type SessionConfig struct {
	// CookieName is the cookie carrying the session ID.
	CookieName string `envconfig:"COOKIE_NAME" default:"SELMAG_SESSION"`
	// RequiredRole is the authority every manager request must hold.
	RequiredRole string `envconfig:"REQUIRED_ROLE" default:"ROLE_MANAGER"`
	// TTL bounds the lifetime of seeded sessions.
	TTL time.Duration `envconfig:"TTL" default:"24h"`
	// SeedRefreshToken, in the LOCAL environment only, seeds a manager session
	// holding this refresh token so the app can be used without a login flow.
	SeedRefreshToken string `envconfig:"SEED_REFRESH_TOKEN"`
}

// SecurityConfig contains security-related settings including
// rate limiting and CORS configuration.
type SecurityConfig struct {
	// RateLimitRPS is the maximum requests per second per client.
	RateLimitRPS int `envconfig:"RATE_LIMIT_RPS"    default:"100"`
	// RateLimitBurst is the maximum burst size for rate limiting.
	RateLimitBurst int `envconfig:"RATE_LIMIT_BURST"  default:"200"`
	// AllowedOrigins are the CORS allowed origins.
	AllowedOrigins []string `envconfig:"ALLOWED_ORIGINS"   default:"*"`
	// AllowedMethods are the CORS allowed HTTP methods.
	AllowedMethods []string `envconfig:"ALLOWED_METHODS"   default:"GET,POST,PATCH,DELETE,OPTIONS"`
	// AllowedHeaders are the CORS allowed headers.
	AllowedHeaders []string `envconfig:"ALLOWED_HEADERS"   default:"*"`
	// ExposedHeaders are the CORS exposed headers.
	ExposedHeaders []string `envconfig:"EXPOSED_HEADERS"   default:"Location,X-Request-ID"`
	// AllowCredentials determines if CORS allows credentials.
	AllowCredentials bool `envconfig:"ALLOW_CREDENTIALS" default:"true"`
	// MaxAge is the CORS preflight cache duration in seconds.
	MaxAge int `envconfig:"MAX_AGE"           default:"86400"`
	// TrustedProxies are the trusted proxy IP addresses.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`
}

// LoggingConfig contains logging configuration including
// log level, format, and output destination.
type LoggingConfig struct {
	// Level is the logging level (debug, info, warn, error).
	Level string `envconfig:"LEVEL"              default:"info"`
	// Format is the log output format (json, text).
	Format string `envconfig:"FORMAT"             default:"json"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `envconfig:"OUTPUT"             default:"stdout"`
	// ConsoleFormat is the format for console output (text, json).
	ConsoleFormat string `envconfig:"CONSOLE_FORMAT"     default:"text"`
	// FileFormat is the format for file output (text, json).
	FileFormat string `envconfig:"FILE_FORMAT"        default:"json"`
	// FilePath is the path to the log file for dual output.
	FilePath string `envconfig:"FILE_PATH"`
	// EnableDualOutput enables both console and file logging simultaneously.
	EnableDualOutput bool `envconfig:"ENABLE_DUAL_OUTPUT" default:"false"`
}

// Load reads configuration from environment variables and returns
// a validated Config instance.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if cfg.Catalogue.BaseURI == "" {
		cfg.Catalogue.BaseURI = cfg.GetServiceURLs().CatalogueServiceBaseURL
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings common to both binaries.
func (c *Config) Validate() error {
	if c.Server.Port < MinPortNumber || c.Server.Port > MaxPortNumber {
		return errors.New("server port must be between 1 and 65535")
	}

	if c.Catalogue.Timeout <= 0 {
		return errors.New("catalogue client timeout must be positive")
	}

	if c.Catalogue.ClockSkew < 0 {
		return errors.New("catalogue client clock skew must not be negative")
	}

	if !IsSupportedGrantType(c.Catalogue.GrantType) {
		return fmt.Errorf("unsupported grant type: %s", c.Catalogue.GrantType)
	}

	return nil
}

// ValidateResourceServer checks that the catalogue API can validate bearer tokens.
func (c *Config) ValidateResourceServer() error {
	rs := c.ResourceServer
	if rs.IssuerURL != "" || rs.JWKSURL != "" {
		return nil
	}

	if rs.JWTSecret == "" {
		return errors.New("either an issuer URL, a JWKS URL or a JWT secret is required")
	}

	if len(rs.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("JWT secret must be at least %d characters long", MinJWTSecretLength)
	}

	return nil
}

// ValidateCatalogueClient checks that the manager application can obtain tokens.
func (c *Config) ValidateCatalogueClient() error {
	if c.Catalogue.TokenURL == "" {
		return errors.New("catalogue token URL is required")
	}

	if c.Catalogue.ClientID == "" {
		return errors.New("catalogue client ID is required")
	}

	return nil
}

// IsSupportedGrantType reports whether grantType can be used by a registration.
func IsSupportedGrantType(grantType string) bool {
	return grantType == GrantTypeClientCredentials || grantType == GrantTypeRefreshToken
}

// ServerAddr returns the formatted server address string in host:port format.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// IsTLSEnabled returns true if both TLS certificate and key paths are configured.
func (c *Config) IsTLSEnabled() bool {
	return c.Server.TLSCert != "" && c.Server.TLSKey != ""
}

// IsRedisConfigured returns true if a Redis URL is configured.
func (c *Config) IsRedisConfigured() bool {
	return c.Redis.URL != ""
}

// PostgresDatabaseDSN returns the PostgreSQL connection string (Data Source Name).
func (c *Config) PostgresDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=%s search_path=%s",
		c.PostgresDatabase.Host,
		c.PostgresDatabase.Port,
		c.PostgresDatabase.Database,
		c.PostgresDatabase.User,
		c.PostgresDatabase.Password,
		c.PostgresDatabase.SSLMode,
		c.PostgresDatabase.Schema,
	)
}

// MySQLDSN returns the MySQL connection string (Data Source Name).
func (c *Config) MySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true&clientFoundRows=true",
		c.MySQLDatabase.User,
		c.MySQLDatabase.Password,
		c.MySQLDatabase.Host,
		c.MySQLDatabase.Port,
		c.MySQLDatabase.Database,
	)
}

// IsPostgresDatabaseConfigured returns true if PostgreSQL database user and password are configured.
func (c *Config) IsPostgresDatabaseConfigured() bool {
	return c.PostgresDatabase.User != "" && c.PostgresDatabase.Password != ""
}

// IsMySQLDatabaseConfigured returns true if MySQL database user and password are configured.
func (c *Config) IsMySQLDatabaseConfigured() bool {
	return c.MySQLDatabase.User != "" && c.MySQLDatabase.Password != ""
}
