package envvars

import (
	"errors"
	"fmt"

	"github.com/qserverless/gatewayenv/pkg/types"
)

// ErrUnknownMechanism is returned for an auth mechanism with no extension.
var ErrUnknownMechanism = errors.New("unknown auth mechanism")

// CredentialExtension adds credentials derived from the gateway token.
type CredentialExtension interface {
	Name() string
	Extend(token string, bundle types.Bundle)
}

// NoExtension adds nothing.
type NoExtension struct{}

// Name returns "none".
func (NoExtension) Name() string { return "none" }

// Extend is a no-op.
func (NoExtension) Extend(string, types.Bundle) {}

// ProviderExtension provisions provider credentials. The provider token is
// always the gateway token.
type ProviderExtension struct {
	Channel string
	URL     string
}

// Name returns "provider".
func (ProviderExtension) Name() string { return "provider" }

// Extend adds the provider token, channel and URL.
func (p ProviderExtension) Extend(token string, bundle types.Bundle) {
	bundle[types.EnvProviderToken] = types.String(token)
	bundle[types.EnvProviderChannel] = types.String(p.Channel)
	bundle[types.EnvProviderURL] = types.String(p.URL)
}

// ExtensionFor selects the extension for cfg.Auth.Mechanism.
func ExtensionFor(cfg *types.Config) (CredentialExtension, error) {
	switch cfg.Auth.Mechanism {
	case types.AuthDefault, "":
		return NoExtension{}, nil
	case types.AuthCustomToken:
		return ProviderExtension{
			Channel: cfg.Provider.Channel,
			URL:     cfg.Provider.URL,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMechanism, cfg.Auth.Mechanism)
	}
}
