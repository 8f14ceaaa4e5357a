package targetclient

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"golang.org/x/oauth2"
)

// DefaultTimeout bounds each individual HTTP call when Config.Timeout is zero.
const DefaultTimeout = 600 * time.Second

var validate = validator.New()

// Config holds the credentials and settings of a Client.
type Config struct {
	// BaseURL is the API host, e.g. "https://target.my.com". It must be set
	// before any request is issued.
	BaseURL string

	// ClientID is the application's ID.
	ClientID string `validate:"required"`

	// ClientSecret is the application's secret. Sent along with refresh requests.
	ClientSecret string

	// Scopes is a list of requested permission scopes.
	Scopes []string

	// Timeout bounds each HTTP call. Zero means DefaultTimeout.
	Timeout time.Duration `validate:"gte=0"`

	// Token is an already issued token. Without it requests are sent
	// unauthenticated.
	Token *oauth2.Token `validate:"-"`

	// TokenUpdater is called with every new token the client obtains.
	TokenUpdater func(*oauth2.Token) `validate:"-"`

	// HTTPClient overrides the transport. Its Timeout is replaced by Timeout.
	HTTPClient *http.Client `validate:"-"`

	Logger *slog.Logger `validate:"-"`
}

// fileConfig is the on-disk shape read by LoadConfig.
type fileConfig struct {
	BaseURL      string        `mapstructure:"base_url"      validate:"required,url"`
	ClientID     string        `mapstructure:"client_id"     validate:"required"`
	ClientSecret string        `mapstructure:"client_secret"`
	Scopes       []string      `mapstructure:"scopes"`
	Timeout      time.Duration `mapstructure:"timeout"       validate:"gte=0"`
	Token        tokenConfig   `mapstructure:"token"`
}

type tokenConfig struct {
	AccessToken  string `mapstructure:"access_token"`
	RefreshToken string `mapstructure:"refresh_token"`
	TokenType    string `mapstructure:"token_type"`
}

// LoadConfig reads a Config from a YAML file and TARGET_* environment
// variables. With an empty path it looks for config.yaml in ./configs and the
// working directory; a missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	vip := viper.New()
	if path != "" {
		vip.SetConfigFile(path)
	} else {
		vip.SetConfigName("config")
		vip.AddConfigPath("./configs")
		vip.AddConfigPath(".")
	}

	vip.SetConfigType("yaml")
	vip.SetEnvPrefix("target")
	vip.AutomaticEnv()
	vip.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Keys need a default for AutomaticEnv to reach them during Unmarshal.
	vip.SetDefault("base_url", "")
	vip.SetDefault("client_id", "")
	vip.SetDefault("client_secret", "")
	vip.SetDefault("scopes", []string{})
	vip.SetDefault("timeout", DefaultTimeout)
	vip.SetDefault("token.access_token", "")
	vip.SetDefault("token.refresh_token", "")
	vip.SetDefault("token.token_type", "")

	if err := vip.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var fc fileConfig
	if err := vip.Unmarshal(&fc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate.Struct(&fc); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	cfg := &Config{
		BaseURL:      strings.TrimRight(fc.BaseURL, "/"),
		ClientID:     fc.ClientID,
		ClientSecret: fc.ClientSecret,
		Scopes:       fc.Scopes,
		Timeout:      fc.Timeout,
	}
	if fc.Token.AccessToken != "" || fc.Token.RefreshToken != "" {
		cfg.Token = &oauth2.Token{
			AccessToken:  fc.Token.AccessToken,
			RefreshToken: fc.Token.RefreshToken,
			TokenType:    fc.Token.TokenType,
		}
	}
	return cfg, nil
}

func (c *Config) verify() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid client config: %w", err)
	}
	return nil
}
