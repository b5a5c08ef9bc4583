package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrProfileNotFound is returned when a named profile does not exist.
var ErrProfileNotFound = errors.New("the specified profile does not exist")

// DefaultProfile is used when no profile is named.
const DefaultProfile = "default"

// Config is the profile file.
type Config struct {
	Profiles map[string]Profile `toml:"profiles"`
}

// Profile points the tools at a server and engine.
type Profile struct {
	ServerBase     string `toml:"server_base,omitempty"`
	ServerAPI      string `toml:"server_api,omitempty"`
	ServerIdentity string `toml:"server_identity,omitempty"`
	StateDir       string `toml:"state_dir,omitempty"`
	StateOptOut    string `toml:"state_opt_out,omitempty"`
	EngineURL      string `toml:"engine_url,omitempty"`
	OrganizationID string `toml:"organization_id,omitempty"`
}

// ProfileKey names a settable profile field.
type ProfileKey string

// Profile keys accepted by UpdateProfile.
const (
	KeyServerBase     ProfileKey = "server_base"
	KeyServerAPI      ProfileKey = "server_api"
	KeyServerIdentity ProfileKey = "server_identity"
	KeyStateDir       ProfileKey = "state_dir"
	KeyStateOptOut    ProfileKey = "state_opt_out"
	KeyEngineURL      ProfileKey = "engine_url"
	KeyOrganizationID ProfileKey = "organization_id"
)

// ProfileKeys lists every key in file order.
func ProfileKeys() []ProfileKey {
	return []ProfileKey{
		KeyServerBase, KeyServerAPI, KeyServerIdentity,
		KeyStateDir, KeyStateOptOut, KeyEngineURL, KeyOrganizationID,
	}
}

func (k ProfileKey) isURL() bool {
	switch k {
	case KeyServerBase, KeyServerAPI, KeyServerIdentity, KeyEngineURL:
		return true
	}
	return false
}

// Set assigns value to the field named by k.
func (p *Profile) Set(k ProfileKey, value string) error {
	if k.isURL() {
		value = trimURL(value)
	}
	switch k {
	case KeyServerBase:
		p.ServerBase = value
	case KeyServerAPI:
		p.ServerAPI = value
	case KeyServerIdentity:
		p.ServerIdentity = value
	case KeyStateDir:
		p.StateDir = value
	case KeyStateOptOut:
		p.StateOptOut = value
	case KeyEngineURL:
		p.EngineURL = value
	case KeyOrganizationID:
		p.OrganizationID = value
	default:
		return fmt.Errorf("unknown profile key %q", k)
	}
	return nil
}

// Get returns the field named by k, or "" for an unknown key.
func (p Profile) Get(k ProfileKey) string {
	switch k {
	case KeyServerBase:
		return p.ServerBase
	case KeyServerAPI:
		return p.ServerAPI
	case KeyServerIdentity:
		return p.ServerIdentity
	case KeyStateDir:
		return p.StateDir
	case KeyStateOptOut:
		return p.StateOptOut
	case KeyEngineURL:
		return p.EngineURL
	case KeyOrganizationID:
		return p.OrganizationID
	}
	return ""
}

// ProfileFromURL creates a profile whose server_base is url.
func ProfileFromURL(url string) (Profile, error) {
	if !isHTTPURL(url) {
		return Profile{}, fmt.Errorf("server URL must start with http:// or https://, the provided URL is: `%s`", url)
	}
	return Profile{ServerBase: trimURL(url)}, nil
}

// APIURL returns server_api, or server_base + "/api".
func (p Profile) APIURL() (string, error) {
	if p.ServerAPI != "" {
		return p.ServerAPI, nil
	}
	if p.ServerBase != "" {
		return p.ServerBase + "/api", nil
	}
	return "", errors.New("profile has no `server_base` or `server_api`")
}

// IdentityURL returns server_identity, or server_base + "/identity".
func (p Profile) IdentityURL() (string, error) {
	if p.ServerIdentity != "" {
		return p.ServerIdentity, nil
	}
	if p.ServerBase != "" {
		return p.ServerBase + "/identity", nil
	}
	return "", errors.New("profile has no `server_base` or `server_identity`")
}

// StatePath returns the session state file for an access token, or "" when
// the profile opts out of state.
func (p Profile) StatePath(accessTokenID string) string {
	if strings.EqualFold(p.StateOptOut, "true") || p.StateOptOut == "1" {
		return ""
	}
	dir := p.StateDir
	if dir == "" {
		dir = StateDir()
	}
	return filepath.Join(dir, accessTokenID)
}

// SelectProfile returns the named profile. When the name was not given
// explicitly, a missing profile falls back to "default", then to none.
func (c *Config) SelectProfile(name string, explicit bool) (*Profile, error) {
	if p, ok := c.Profiles[name]; ok {
		return &p, nil
	}
	if explicit {
		return nil, ErrProfileNotFound
	}
	if p, ok := c.Profiles[DefaultProfile]; ok {
		return &p, nil
	}
	return nil, nil
}

// Names returns the profile names, sorted.
func (c *Config) Names() []string {
	names := make([]string, 0, len(c.Profiles))
	for name := range c.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Load reads the profile file at path. A missing file yields an empty
// config unless mustExist is set.
func Load(path string, mustExist bool) (*Config, error) {
	if path == "" {
		path = DefaultPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !mustExist {
			return &Config{Profiles: make(map[string]Profile)}, nil
		}
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file doesn't exist: %s", path)
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}
	for name, p := range cfg.Profiles {
		p.ServerBase = trimURL(p.ServerBase)
		p.ServerAPI = trimURL(p.ServerAPI)
		p.ServerIdentity = trimURL(p.ServerIdentity)
		p.EngineURL = trimURL(p.EngineURL)
		cfg.Profiles[name] = p
	}
	return &cfg, nil
}

// Save writes c to path, creating the parent directory.
func (c *Config) Save(path string) error {
	if path == "" {
		path = DefaultPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// UpdateProfile sets one key of a profile, creating the file and profile as needed.
func UpdateProfile(path, profile string, key ProfileKey, value string) error {
	cfg, err := Load(path, false)
	if err != nil {
		return err
	}

	p := cfg.Profiles[profile]
	if err := p.Set(key, value); err != nil {
		return err
	}
	cfg.Profiles[profile] = p

	return cfg.Save(path)
}

// DeleteProfile removes a profile from an existing file.
func DeleteProfile(path, profile string) error {
	cfg, err := Load(path, true)
	if err != nil {
		return err
	}
	if _, ok := cfg.Profiles[profile]; !ok {
		return ErrProfileNotFound
	}
	delete(cfg.Profiles, profile)
	return cfg.Save(path)
}

func trimURL(s string) string {
	return strings.TrimRight(s, "/")
}

func isHTTPURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
