package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RegistrationConfig declares one client registration in registrations.yaml.
//
//	registrations:
//	  - registration_id: keycloak
//	    base_uri: http://localhost:8081
//	    client_id: manager-app
//	    client_secret: secret
//	    token_url: http://localhost:8082/realms/selmag/protocol/openid-connect/token
//	    scopes: [view_catalogue, edit_catalogue]
//	    grant_type: refresh_token
type RegistrationConfig struct {
	RegistrationID string        `mapstructure:"registration_id"`
	BaseURI        string        `mapstructure:"base_uri"`
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	TokenURL       string        `mapstructure:"token_url"`
	Scopes         []string      `mapstructure:"scopes"`
	GrantType      string        `mapstructure:"grant_type"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type registrationsFile struct {
	Registrations []RegistrationConfig `mapstructure:"registrations"`
}

// LoadRegistrations returns every client registration known to the process:
// the env-configured catalogue registration followed by the ones declared in
// <ConfigDir>/registrations.yaml, overlaid by registrations.<env>.yaml.
// A registration ID declared in YAML replaces the env-configured one.
func (c *Config) LoadRegistrations() ([]RegistrationConfig, error) {
	fromYAML, err := loadYAMLRegistrations(c.Registrations.ConfigDir, c.Environment.Environment)
	if err != nil {
		return nil, err
	}

	primary := RegistrationConfig{
		RegistrationID: c.Catalogue.RegistrationID,
		BaseURI:        c.Catalogue.BaseURI,
		ClientID:       c.Catalogue.ClientID,
		ClientSecret:   c.Catalogue.ClientSecret,
		TokenURL:       c.Catalogue.TokenURL,
		Scopes:         c.Catalogue.Scopes,
		GrantType:      c.Catalogue.GrantType,
		Timeout:        c.Catalogue.Timeout,
	}

	result := make([]RegistrationConfig, 0, len(fromYAML)+1)
	overridden := false
	for _, reg := range fromYAML {
		if reg.RegistrationID == primary.RegistrationID {
			overridden = true
		}
		if reg.Timeout == 0 {
			reg.Timeout = c.Catalogue.Timeout
		}
		if reg.GrantType == "" {
			reg.GrantType = GrantTypeClientCredentials
		}
		result = append(result, reg)
	}
	if !overridden {
		result = append([]RegistrationConfig{primary}, result...)
	}

	for _, reg := range result {
		if reg.RegistrationID == "" {
			return nil, errors.New("registration ID is required")
		}
		if !IsSupportedGrantType(reg.GrantType) {
			return nil, fmt.Errorf("registration %s: unsupported grant type %q", reg.RegistrationID, reg.GrantType)
		}
	}

	return result, nil
}

// loadYAMLRegistrations reads registrations.yaml and overlays the environment file.
// Both files are optional.
func loadYAMLRegistrations(dir string, env Environment) ([]RegistrationConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigName("registrations")
	v.AddConfigPath(dir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read registrations config: %w", err)
		}
	}

	envViper := viper.New()
	envViper.SetConfigType("yaml")
	envViper.SetConfigName("registrations." + envFileSuffix(env))
	envViper.AddConfigPath(dir)

	if err := envViper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read %s registrations config: %w", envFileSuffix(env), err)
		}
	} else if err := v.MergeConfigMap(envViper.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to merge environment registrations: %w", err)
	}

	var file registrationsFile
	if err := v.Unmarshal(&file); err != nil {
		return nil, fmt.Errorf("failed to decode registrations: %w", err)
	}

	return file.Registrations, nil
}

func envFileSuffix(env Environment) string {
	switch env {
	case NonProd, Prod:
		return strings.ToLower(string(env))
	default:
		return "local"
	}
}
