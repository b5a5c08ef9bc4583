// Package sdk is the typed client for a secrets engine. Each resource family
// has a facade that builds exactly one command per call, submits it through
// the shared gateway and decodes the typed result.
package sdk

import (
	"context"

	"github.com/smkit/smkit/pkg/config"
	"github.com/smkit/smkit/pkg/gateway"
	"github.com/smkit/smkit/pkg/protocol"
	"github.com/smkit/smkit/pkg/sdkerr"
)

// Client is a single logical session with one engine.
type Client struct {
	settings config.Settings
	gateway  *gateway.Gateway

	auth       *Auth
	secrets    *Secrets
	projects   *Projects
	generators *Generators
}

type options struct {
	settings    config.Settings
	gatewayOpts []gateway.Option
}

// Option configures a Client.
type Option func(*options)

// WithSettings sets the client settings. Unset fields take the documented
// defaults. The settings are not sent through the Engine capability: whoever
// constructs the engine passes them to it, e.g. engine.Config.Settings from
// config.Settings.ClientSettings.
func WithSettings(s config.Settings) Option {
	return func(o *options) { o.settings = s }
}

// WithGatewayOptions passes options through to the gateway.
func WithGatewayOptions(opts ...gateway.Option) Option {
	return func(o *options) { o.gatewayOpts = append(o.gatewayOpts, opts...) }
}

// NewClient creates a client over engine. Settings are resolved and
// validated once here and never change afterwards. They configure the
// client only; an engine built by the caller must be given the same
// settings when it is constructed.
func NewClient(engine gateway.Engine, opts ...Option) (*Client, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	settings := o.settings.Resolve()
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	gw, err := gateway.New(engine, o.gatewayOpts...)
	if err != nil {
		return nil, err
	}

	c := &Client{settings: settings, gateway: gw}
	c.auth = &Auth{gw: gw}
	c.secrets = &Secrets{gw: gw}
	c.projects = &Projects{gw: gw}
	c.generators = &Generators{gw: gw}
	return c, nil
}

// Settings returns the resolved settings.
func (c *Client) Settings() config.Settings { return c.settings }

// Auth returns the authentication facade.
func (c *Client) Auth() *Auth { return c.auth }

// Secrets returns the secrets facade.
func (c *Client) Secrets() *Secrets { return c.secrets }

// Projects returns the projects facade.
func (c *Client) Projects() *Projects { return c.projects }

// Generators returns the generators facade.
func (c *Client) Generators() *Generators { return c.generators }

// submit runs cmd and decodes the payload into T. A success response whose
// payload does not decode is a transport error.
func submit[T any](ctx context.Context, gw *gateway.Gateway, cmd protocol.Command) (*T, error) {
	raw, err := gw.Submit(ctx, cmd)
	if err != nil {
		return nil, err
	}
	v, err := protocol.DecodePayload[T](raw)
	if err != nil {
		return nil, sdkerr.Transport("failed to decode response payload", err)
	}
	return v, nil
}
