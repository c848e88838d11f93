package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/viant/afs"
	"gopkg.in/yaml.v3"
)

// Build path for config file
// Set from environment or use $HOME backup
// Use current directory as last resort
func ConfigPath() string {
	if configPath := os.Getenv(SuperresHpcConfigEnv); len(configPath) > 0 {
		return configPath
	}
	if home := os.Getenv("HOME"); len(home) > 0 {
		return home + SuperresHpcConfigPath + SuperresHpcConfigFilename
	}
	return SuperresHpcConfigFilename
}

// ReadConfig loads the YAML config at URL. A missing file yields the
// built-in profiles; profiles in the file replace built-ins of the same name.
func ReadConfig(ctx context.Context, fs afs.Service, URL string) (Config, error) {
	config := DefaultConfig()
	exists, err := fs.Exists(ctx, URL)
	if err != nil {
		return Config{}, fmt.Errorf("core: cannot access config %s: %w", URL, err)
	}
	if !exists {
		return config, nil
	}
	data, err := fs.DownloadWithURL(ctx, URL)
	if err != nil {
		return Config{}, fmt.Errorf("core: cannot read config %s: %w", URL, err)
	}
	var fileConfig Config
	if err := yaml.Unmarshal(data, &fileConfig); err != nil {
		return Config{}, fmt.Errorf("core: invalid config %s: %w", URL, err)
	}
	for name, profile := range fileConfig.Profiles {
		config.Profiles[name] = profile
	}
	if len(fileConfig.Default) > 0 {
		config.Default = fileConfig.Default
	}
	if _, ok := config.Profiles[config.Default]; !ok {
		return Config{}, errors.New("core: default profile " + config.Default + " not defined")
	}
	return config, nil
}

func WriteConfig(ctx context.Context, fs afs.Service, URL string, config Config) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(config); err != nil {
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return fs.Upload(ctx, URL, SuperresHpcConfigFilePerms, &buf)
}
