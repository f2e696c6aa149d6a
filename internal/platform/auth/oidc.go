package auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const discoveryPath = "/.well-known/openid-configuration"

// OIDCProvider holds the parts of an OpenID Connect discovery document the
// token validator needs.
type OIDCProvider struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

var discoveryClient = &http.Client{Timeout: 10 * time.Second}

// NewOIDCProvider reads the discovery document the identity provider
// publishes under issuerURL. The server calls it once at startup when only
// AUTH_ISSUER is configured.
func NewOIDCProvider(issuerURL string) (*OIDCProvider, error) {
	url := strings.TrimRight(issuerURL, "/") + discoveryPath
	resp, err := discoveryClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetching OIDC discovery document: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OIDC discovery endpoint %s returned status %d", url, resp.StatusCode)
	}

	provider := &OIDCProvider{}
	if err := json.NewDecoder(resp.Body).Decode(provider); err != nil {
		return nil, fmt.Errorf("decoding OIDC discovery document: %w", err)
	}
	if provider.JWKSURI == "" {
		return nil, fmt.Errorf("OIDC discovery document at %s has no jwks_uri", url)
	}
	return provider, nil
}
