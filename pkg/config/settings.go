// Package config holds client settings and the on-disk profile file used by
// the command-line tools.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/smkit/smkit/pkg/protocol"
)

// Documented defaults for client settings.
const (
	DefaultAPIURL      = "https://api.bitwarden.com"
	DefaultIdentityURL = "https://identity.bitwarden.com"
	DefaultUserAgent   = "smkit-go"
	DefaultDeviceType  = protocol.DeviceTypeSDK
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Settings are the client settings handed to the engine. Zero fields take
// the documented defaults in Resolve.
type Settings struct {
	APIURL      string              `json:"apiUrl" validate:"required,url"`
	IdentityURL string              `json:"identityUrl" validate:"required,url"`
	UserAgent   string              `json:"userAgent" validate:"required"`
	DeviceType  protocol.DeviceType `json:"deviceType" validate:"required,oneof=SDK LinuxDesktop MacOsDesktop WindowsCLI LinuxCLI MacOsCLI Server UnknownBrowser"`
}

// DefaultSettings returns settings with every default applied.
func DefaultSettings() Settings {
	return Settings{}.Resolve()
}

// Resolve returns a copy of s with defaults filled in.
func (s Settings) Resolve() Settings {
	if s.APIURL == "" {
		s.APIURL = DefaultAPIURL
	}
	if s.IdentityURL == "" {
		s.IdentityURL = DefaultIdentityURL
	}
	if s.UserAgent == "" {
		s.UserAgent = DefaultUserAgent
	}
	if s.DeviceType == "" {
		s.DeviceType = DefaultDeviceType
	}
	return s
}

// Validate checks resolved settings.
func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// ClientSettings converts s to its wire form.
func (s Settings) ClientSettings() protocol.ClientSettings {
	api, identity, ua, dt := s.APIURL, s.IdentityURL, s.UserAgent, s.DeviceType
	return protocol.ClientSettings{
		APIURL:      &api,
		IdentityURL: &identity,
		UserAgent:   &ua,
		DeviceType:  &dt,
	}
}

// SettingsFromProfile derives settings from a profile's server URLs.
func SettingsFromProfile(p Profile) (Settings, error) {
	api, err := p.APIURL()
	if err != nil {
		return Settings{}, err
	}
	identity, err := p.IdentityURL()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		APIURL:      api,
		IdentityURL: identity,
		DeviceType:  protocol.DeviceTypeSDK,
	}.Resolve(), nil
}
