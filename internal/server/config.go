package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// ServerConfig is the complete server configuration.
type ServerConfig struct {
	Server ServerSettings `hcl:"server,block"`
	Rooms  []RoomConfig   `hcl:"room,block"`
	Game   *GameSettings  `hcl:"game,block"`
}

// ServerSettings contains server-level configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// RoomConfig defines one poker room.
type RoomConfig struct {
	Name       string `hcl:"name,label"`
	SmallBlind int    `hcl:"small_blind"`
	BigBlind   int    `hcl:"big_blind"`
	BuyInMin   int    `hcl:"buy_in_min,optional"`
	BuyInMax   int    `hcl:"buy_in_max,optional"`
	MaxPlayers int    `hcl:"max_players,optional"`
}

// GameSettings contains timing knobs shared by all rooms.
type GameSettings struct {
	TurnTimeoutSeconds int `hcl:"turn_timeout_seconds,optional"`
	NextHandDelayMs    int `hcl:"next_hand_delay_ms,optional"`
}

// TurnTimeout returns the configured per-turn deadline.
func (g *GameSettings) TurnTimeout() time.Duration {
	return time.Duration(g.TurnTimeoutSeconds) * time.Second
}

// NextHandDelay returns the pause between showdown and the next deal.
func (g *GameSettings) NextHandDelay() time.Duration {
	return time.Duration(g.NextHandDelayMs) * time.Millisecond
}

// DefaultServerConfig returns the configuration used when no file is given:
// two rooms at 1/2 and 5/10 stakes.
func DefaultServerConfig() *ServerConfig {
	cfg := &ServerConfig{
		Server: ServerSettings{
			Address:  "localhost",
			Port:     8080,
			LogLevel: "info",
		},
		Rooms: []RoomConfig{
			{Name: "low-stakes", SmallBlind: 1, BigBlind: 2},
			{Name: "high-stakes", SmallBlind: 5, BigBlind: 10},
		},
		Game: &GameSettings{},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadServerConfig loads configuration from an HCL file, falling back to
// defaults when the file does not exist.
func LoadServerConfig(filename string) (*ServerConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultServerConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config ServerConfig
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	config.applyDefaults()
	return &config, nil
}

func (c *ServerConfig) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Game == nil {
		c.Game = &GameSettings{}
	}
	if c.Game.TurnTimeoutSeconds == 0 {
		c.Game.TurnTimeoutSeconds = 30
	}
	if c.Game.NextHandDelayMs == 0 {
		c.Game.NextHandDelayMs = 4000
	}
	for i := range c.Rooms {
		if c.Rooms[i].MaxPlayers == 0 {
			c.Rooms[i].MaxPlayers = 6
		}
		if c.Rooms[i].BuyInMin == 0 {
			c.Rooms[i].BuyInMin = c.Rooms[i].BigBlind * 50
		}
		if c.Rooms[i].BuyInMax == 0 {
			c.Rooms[i].BuyInMax = c.Rooms[i].BigBlind * 200
		}
	}
}

// Validate checks the configuration for inconsistencies.
func (c *ServerConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if len(c.Rooms) == 0 {
		return fmt.Errorf("at least one room must be configured")
	}
	for _, room := range c.Rooms {
		if room.SmallBlind <= 0 {
			return fmt.Errorf("room %s: small blind must be positive", room.Name)
		}
		if room.BigBlind <= room.SmallBlind {
			return fmt.Errorf("room %s: big blind must be greater than small blind", room.Name)
		}
		if room.MaxPlayers < 2 || room.MaxPlayers > 10 {
			return fmt.Errorf("room %s: max players must be between 2 and 10", room.Name)
		}
		if room.BuyInMin >= room.BuyInMax {
			return fmt.Errorf("room %s: buy-in minimum must be less than maximum", room.Name)
		}
		if room.BuyInMin < room.BigBlind {
			return fmt.Errorf("room %s: buy-in minimum below one big blind", room.Name)
		}
	}
	return nil
}

// GetServerAddress returns the listen address.
func (c *ServerConfig) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
