package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/dayzctl/dayzctl/internal/history"
	"github.com/dayzctl/dayzctl/internal/logger"
	"github.com/dayzctl/dayzctl/internal/store"
)

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	Server   ServerConfig   `toml:"server" mapstructure:"server"`
	SteamCmd SteamCmdConfig `toml:"steamcmd" mapstructure:"steamcmd"`
	Rcon     RconConfig     `toml:"rcon" mapstructure:"rcon"`
	HTTP     HTTPConfig     `toml:"http" mapstructure:"http"`
	Log      logger.Config  `toml:"log" mapstructure:"log"`
	Store    store.Config   `toml:"store" mapstructure:"store"`
	History  history.Config `toml:"history" mapstructure:"history"`

	// Restarts holds cron specs for recurring restarts, robfig/cron
	// syntax including @every descriptors.
	Restarts []string `toml:"restarts" mapstructure:"restarts"`
}

type ServerConfig struct {
	InstallPath string   `toml:"install_path" mapstructure:"install_path"`
	Profile     string   `toml:"profile" mapstructure:"profile"`
	Params      []string `toml:"params" mapstructure:"params"`
}

type SteamCmdConfig struct {
	Path string `toml:"path" mapstructure:"path"`
}

type RconConfig struct {
	Host     string `toml:"host" mapstructure:"host"`
	Port     int    `toml:"port" mapstructure:"port"`
	Password string `toml:"password" mapstructure:"password"`
}

type HTTPConfig struct {
	Listen   string `toml:"listen" mapstructure:"listen"`
	BasePath string `toml:"base_path" mapstructure:"base_path"`
}

// Load reads and validates a TOML config file.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(filepath.Clean(path))
	v.SetConfigType("toml")

	v.SetDefault("server.profile", "main")
	v.SetDefault("rcon.host", "127.0.0.1")
	v.SetDefault("rcon.port", 2306)
	v.SetDefault("http.listen", "127.0.0.1:8115")
	v.SetDefault("http.base_path", "/api")
	v.SetDefault("store.type", "sqlite")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, err
	}
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

// Validate rejects configs that cannot serve a running daemon.
func (c *FileConfig) Validate() error {
	if strings.TrimSpace(c.Server.InstallPath) == "" {
		return fmt.Errorf("server.install_path is required")
	}
	if !filepath.IsAbs(c.Server.InstallPath) {
		return fmt.Errorf("server.install_path must be absolute: %s", c.Server.InstallPath)
	}
	if strings.TrimSpace(c.Server.Profile) == "" {
		return fmt.Errorf("server.profile is required")
	}
	if c.Rcon.Port <= 0 || c.Rcon.Port > 65535 {
		return fmt.Errorf("rcon.port out of range: %d", c.Rcon.Port)
	}
	if c.Store.Type == "sqlite" && c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.Server.InstallPath, "dayzctl.db")
	}
	return nil
}
