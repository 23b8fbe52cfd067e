package meridian

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// EnvRefreshToken is the environment variable consulted when no refresh
// token is passed explicitly.
const EnvRefreshToken = "MERIDIAN_REFRESH_TOKEN"

// DefaultCredentialsFile returns the default credentials file location,
// ~/.config/meridian/config.toml.
func DefaultCredentialsFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, ".config", "meridian", "config.toml"), nil
}

// resolveRefreshToken locates the refresh token: the explicit value first,
// then the environment, then the [production] section of the credentials
// file.
func resolveRefreshToken(explicit, credentialsFile string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv(EnvRefreshToken); env != "" {
		return env, nil
	}
	path := credentialsFile
	if path == "" {
		var err error
		path, err = DefaultCredentialsFile()
		if err != nil {
			return "", err
		}
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("%w: credentials file not found at %s", ErrNoCredentials, path)
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return "", fmt.Errorf("reading credentials file %s: %w", path, err)
	}
	token := v.GetString("production.refresh_token")
	if token == "" {
		return "", fmt.Errorf("%w: no production.refresh_token in %s", ErrNoCredentials, path)
	}
	return token, nil
}
