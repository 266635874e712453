package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"ucams-cli/internal/client"
)

const (
	fileName  = ".ucams-cli"
	envPrefix = "UCAMS"

	DefaultName            = "Ucams"
	DefaultRefreshInterval = 10 * time.Minute
)

// Settings is the resolved configuration of the process.
type Settings struct {
	Accounts        []client.Config
	RefreshInterval time.Duration
	LogLevel        string
	LogFormat       string
}

// account is one entry of the optional accounts list.
type account struct {
	Name     string `mapstructure:"name"`
	DomURL   string `mapstructure:"dom_url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// InitConfig reads in config file and ENV variables if set.
func InitConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		// Use config file from the flag.
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		// Search config in home directory with name ".ucams-cli" (without extension).
		v.AddConfigPath(home)
		v.SetConfigType("yaml")
		v.SetConfigName(fileName)
	}

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if cfgFile == "" || !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	return nil
}

// SetDefaults registers defaults and the UCAMS_ environment overrides.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("name", DefaultName)
	v.SetDefault("dom_url", client.DefaultDomURL)
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("timeout", client.DefaultTimeout)
	v.SetDefault("page_size", client.DefaultPageSize)
	v.SetDefault("refresh_interval", DefaultRefreshInterval)
	v.SetDefault("insecure_skip_verify", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// Load resolves the accounts. The accounts list wins over the top-level
// account; entries inherit dom_url and the transport settings from the top level.
func Load(v *viper.Viper) (Settings, error) {
	s := Settings{
		RefreshInterval: v.GetDuration("refresh_interval"),
		LogLevel:        v.GetString("log_level"),
		LogFormat:       v.GetString("log_format"),
	}

	base := client.Config{
		Name:               v.GetString("name"),
		DomURL:             v.GetString("dom_url"),
		Contract:           v.GetString("username"),
		Password:           v.GetString("password"),
		Timeout:            v.GetDuration("timeout"),
		PageSize:           v.GetInt("page_size"),
		InsecureSkipVerify: v.GetBool("insecure_skip_verify"),
	}

	var list []account
	if err := v.UnmarshalKey("accounts", &list); err != nil {
		return s, fmt.Errorf("parse accounts: %w", err)
	}

	if len(list) == 0 {
		if base.Contract != "" {
			s.Accounts = []client.Config{base}
		}
		return s, nil
	}

	seen := make(map[string]bool, len(list))
	for i, a := range list {
		cfg := base
		cfg.Name = a.Name
		cfg.Contract = a.Username
		cfg.Password = a.Password
		if a.DomURL != "" {
			cfg.DomURL = a.DomURL
		}

		if cfg.Name == "" {
			return s, fmt.Errorf("accounts[%d]: name is required", i)
		}
		if seen[cfg.Name] {
			return s, fmt.Errorf("accounts[%d]: duplicate name %q", i, cfg.Name)
		}
		seen[cfg.Name] = true
		s.Accounts = append(s.Accounts, cfg)
	}
	return s, nil
}

// Account returns the account called name, or the only/first one when name
// is empty.
func (s Settings) Account(name string) (client.Config, error) {
	if len(s.Accounts) == 0 {
		return client.Config{}, errors.New("no account configured, run 'ucams-cli login' first")
	}
	if name == "" {
		return s.Accounts[0], nil
	}
	for _, a := range s.Accounts {
		if a.Name == name {
			return a, nil
		}
	}
	return client.Config{}, fmt.Errorf("account %q is not configured", name)
}

// SaveAccount persists the top-level account. Tokens are never written.
func SaveAccount(v *viper.Viper, name, domURL, username, password string) error {
	v.Set("name", name)
	v.Set("dom_url", domURL)
	v.Set("username", username)
	v.Set("password", password)

	if err := v.WriteConfig(); err != nil {
		// If file doesn't exist, create it
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return v.SafeWriteConfig()
		}
		home, herr := os.UserHomeDir()
		if herr != nil {
			return err
		}
		return v.WriteConfigAs(filepath.Join(home, fileName+".yaml"))
	}
	return nil
}
