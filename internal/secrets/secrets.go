// Package secrets resolves the credentials the pipeline needs at startup.
package secrets

import (
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/wakefit-analytics/gmb-pipeline/pkg/secretmanager"
)

// Resolver returns a secret value by name.
type Resolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// Names are the secret identifiers for the two required credentials.
type Names struct {
	PlacesAPIKey   string
	ServiceAccount string
}

// DefaultNames returns the production secret names.
func DefaultNames() Names {
	return Names{
		PlacesAPIKey:   "google-places-api-key",
		ServiceAccount: "gcp-service-account-creds",
	}
}

// Credentials holds the resolved secrets.
type Credentials struct {
	PlacesAPIKey       string
	ServiceAccountJSON []byte
}

// LoadCredentials resolves both secrets. Any failure is fatal to the run.
func LoadCredentials(ctx context.Context, r Resolver, names Names) (*Credentials, error) {
	key, err := r.Resolve(ctx, names.PlacesAPIKey)
	if err != nil {
		return nil, eris.Wrapf(err, "secrets: resolve %s", names.PlacesAPIKey)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, eris.Errorf("secrets: %s is empty", names.PlacesAPIKey)
	}

	sa, err := r.Resolve(ctx, names.ServiceAccount)
	if err != nil {
		return nil, eris.Wrapf(err, "secrets: resolve %s", names.ServiceAccount)
	}
	if !json.Valid([]byte(sa)) {
		return nil, eris.Errorf("secrets: %s is not valid JSON", names.ServiceAccount)
	}

	zap.L().Debug("secrets: credentials loaded",
		zap.String("places_api_key_secret", names.PlacesAPIKey),
		zap.String("service_account_secret", names.ServiceAccount),
	)
	return &Credentials{PlacesAPIKey: key, ServiceAccountJSON: []byte(sa)}, nil
}

// GCPResolver reads the latest version of each secret from Secret Manager.
type GCPResolver struct {
	Project string
	Client  secretmanager.Client
}

// NewGCPResolver builds a resolver authenticated with application default
// credentials. Close it when done.
func NewGCPResolver(ctx context.Context, project string, opts ...option.ClientOption) (*GCPResolver, error) {
	if project == "" {
		return nil, eris.New("secrets: project id is required")
	}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "secrets: secret manager client")
	}
	return &GCPResolver{Project: project, Client: client}, nil
}

// Close releases the Secret Manager connection, if the client holds one.
func (g *GCPResolver) Close() error {
	if c, ok := g.Client.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (g *GCPResolver) Resolve(ctx context.Context, name string) (string, error) {
	data, err := g.Client.AccessSecretVersion(ctx, g.Project, name, secretmanager.LatestVersion)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// StaticResolver serves secrets from a map.
type StaticResolver map[string]string

func (s StaticResolver) Resolve(_ context.Context, name string) (string, error) {
	v, ok := s[name]
	if !ok {
		return "", eris.Errorf("secrets: %s not set", name)
	}
	return v, nil
}

// Overlay consults Overrides before falling back to Base. Empty override
// values are ignored.
type Overlay struct {
	Overrides map[string]string
	Base      Resolver
}

func (o Overlay) Resolve(ctx context.Context, name string) (string, error) {
	if v := o.Overrides[name]; v != "" {
		return v, nil
	}
	if o.Base == nil {
		return "", eris.Errorf("secrets: %s not set and no secret store configured", name)
	}
	return o.Base.Resolve(ctx, name)
}

// Close closes Base when it holds resources.
func (o Overlay) Close() error {
	if c, ok := o.Base.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
