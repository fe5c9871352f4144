package ospfd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/xerrors"
)

// FileConfig is the on-disk JSON configuration for one ospfd instance,
// loaded from ~/.ospfd/config.json (§3).
type FileConfig struct {
	RouterID    string               `json:"routerID"`
	Interfaces  []InterfaceFileEntry `json:"interfaces"`
	StubAreas   []string             `json:"stubAreas"`
	SpfHoldTime int                  `json:"spfHoldTimeSeconds"`
}

// InterfaceFileEntry is one interface's JSON-configured parameters.
type InterfaceFileEntry struct {
	Name               string   `json:"name"`
	Address            string   `json:"address"`
	Mask               string   `json:"mask"`
	Area               string   `json:"area"`
	NetworkType        string   `json:"networkType"`
	Cost               uint16   `json:"cost"`
	HelloInterval      uint16   `json:"helloInterval"`
	RouterDeadInterval uint32   `json:"routerDeadInterval"`
	RetransmitInterval uint16   `json:"retransmitInterval"`
	InfTransDelay      uint16   `json:"infTransDelay"`
	Priority           uint8    `json:"priority"`
	NBMANeighbors      []string `json:"nbmaNeighbors,omitempty"`
}

// DefaultFileConfig returns a single-interface starting point, the way
// a fresh install should have something runnable rather than an empty
// shell.
func DefaultFileConfig() *FileConfig {
	return &FileConfig{
		RouterID: "0.0.0.1",
		Interfaces: []InterfaceFileEntry{
			{
				Name:               "eth0",
				NetworkType:        "broadcast",
				Area:               "0.0.0.0",
				Cost:               10,
				HelloInterval:      10,
				RouterDeadInterval: 40,
				RetransmitInterval: 5,
				InfTransDelay:      1,
				Priority:           1,
			},
		},
		SpfHoldTime: DefaultSpfHoldTime,
	}
}

// GetConfigDir returns (creating it if necessary) ~/.ospfd, the
// directory this instance's configuration lives in.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", xerrors.Errorf("ospfd: resolve home directory: %w", err)
	}
	configDir := filepath.Join(homeDir, ".ospfd")
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		if err := os.Mkdir(configDir, 0755); err != nil {
			return "", xerrors.Errorf("ospfd: create config directory: %w", err)
		}
	}
	return configDir, nil
}

// LoadFileConfig loads ~/.ospfd/config.json, writing out
// DefaultFileConfig's contents first if no config file exists yet.
func LoadFileConfig() (*FileConfig, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return nil, err
	}
	configPath := filepath.Join(configDir, "config.json")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultFileConfig()
		if err := cfg.Save(); err != nil {
			return nil, xerrors.Errorf("ospfd: write default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, xerrors.Errorf("ospfd: read config file: %w", err)
	}
	cfg := &FileConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, xerrors.Errorf("ospfd: parse config file: %w", err)
	}
	return cfg, nil
}

// Save writes the config back to ~/.ospfd/config.json.
func (c *FileConfig) Save() error {
	configDir, err := GetConfigDir()
	if err != nil {
		return err
	}
	configPath := filepath.Join(configDir, "config.json")

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return xerrors.Errorf("ospfd: marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return xerrors.Errorf("ospfd: write config file: %w", err)
	}
	return nil
}

var networkTypeNames = map[string]NetworkType{
	"broadcast":         NetworkBroadcast,
	"nbma":              NetworkNBMA,
	"point-to-point":    NetworkPointToPoint,
	"point-to-multipoint": NetworkPointToMultipoint,
	"virtual-link":      NetworkVirtualLink,
}

// ToEngineConfig resolves the JSON-friendly string fields into an
// EngineConfig ready for NewEngine, failing on a router ID, area, network
// type, NBMA neighbor or stub area that doesn't parse, and on a non-empty
// interface address or mask that doesn't parse (an empty one is left 0).
func (c *FileConfig) ToEngineConfig(transport Transport, routes RouteInstaller) (EngineConfig, error) {
	routerID, ok := ParseIPv4ToUint32(c.RouterID)
	if !ok {
		return EngineConfig{}, xerrors.Errorf("ospfd: invalid routerID %q", c.RouterID)
	}

	var ifaces []InterfaceConfig
	for _, e := range c.Interfaces {
		addr, ok := ParseIPv4ToUint32(e.Address)
		if !ok && e.Address != "" {
			return EngineConfig{}, xerrors.Errorf("ospfd: interface %s: invalid address %q", e.Name, e.Address)
		}
		mask, ok := ParseIPv4ToUint32(e.Mask)
		if !ok && e.Mask != "" {
			return EngineConfig{}, xerrors.Errorf("ospfd: interface %s: invalid mask %q", e.Name, e.Mask)
		}
		area, ok := ParseIPv4ToUint32(e.Area)
		if !ok {
			return EngineConfig{}, xerrors.Errorf("ospfd: interface %s: invalid area %q", e.Name, e.Area)
		}
		nt, ok := networkTypeNames[e.NetworkType]
		if !ok {
			return EngineConfig{}, xerrors.Errorf("ospfd: interface %s: unknown network type %q", e.Name, e.NetworkType)
		}
		var nbma []uint32
		for _, n := range e.NBMANeighbors {
			a, ok := ParseIPv4ToUint32(n)
			if !ok {
				return EngineConfig{}, xerrors.Errorf("ospfd: interface %s: invalid NBMA neighbor %q", e.Name, n)
			}
			nbma = append(nbma, a)
		}
		ifaces = append(ifaces, InterfaceConfig{
			Name:               e.Name,
			Address:            addr,
			Mask:               mask,
			Area:               AreaID(area),
			NetworkType:        nt,
			Cost:               e.Cost,
			HelloInterval:      e.HelloInterval,
			RouterDeadInterval: e.RouterDeadInterval,
			RetransmitInterval: e.RetransmitInterval,
			InfTransDelay:      e.InfTransDelay,
			Priority:           e.Priority,
			NBMANeighbors:      nbma,
		})
	}

	var stubs []AreaID
	for _, s := range c.StubAreas {
		a, ok := ParseIPv4ToUint32(s)
		if !ok {
			return EngineConfig{}, xerrors.Errorf("ospfd: invalid stub area %q", s)
		}
		stubs = append(stubs, AreaID(a))
	}

	hold := c.SpfHoldTime
	if hold <= 0 {
		hold = DefaultSpfHoldTime
	}

	return EngineConfig{
		RouterID:    RouterID(routerID),
		Interfaces:  ifaces,
		StubAreas:   stubs,
		SpfHoldTime: time.Duration(hold) * time.Second,
		Transport:   transport,
		Routes:      routes,
	}, nil
}
