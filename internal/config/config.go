package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all bot configuration
type Config struct {
	IRC    IRC    `yaml:"irc"`
	Rcon   Rcon   `yaml:"rcon"`
	Mumble Mumble `yaml:"mumble"`
	DB     DB     `yaml:"db"`
}

// IRC configures the IRC connection and channel behavior
type IRC struct {
	Nick     string `yaml:"nick"`
	Password string `yaml:"password"`
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	SSL      bool   `yaml:"ssl"`
	Channel  string `yaml:"channel"`
	Color    bool   `yaml:"color"`
	// GameSize is the roster size that triggers automatic team formation
	GameSize int `yaml:"game_size"`
}

// Rcon configures the game server connection
type Rcon struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	LogPort  int    `yaml:"log_port"`
}

// Mumble holds the voice server advertised by !mumble
type Mumble struct {
	Server string `yaml:"server"`
	Port   int    `yaml:"port"`
}

// DB configures the sqlite database
type DB struct {
	File string `yaml:"file"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults
	if cfg.IRC.Port == 0 {
		cfg.IRC.Port = 6667
	}
	if cfg.IRC.GameSize == 0 {
		cfg.IRC.GameSize = 12
	}
	if cfg.Rcon.Port == 0 {
		cfg.Rcon.Port = 27015
	}
	if cfg.Rcon.LogPort == 0 {
		cfg.Rcon.LogPort = 17105
	}
	if cfg.DB.File == "" {
		cfg.DB.File = "./pugbot.db"
	}

	return &cfg, nil
}
