// Package secretmanager reads secret payloads from Google Secret Manager.
package secretmanager

import (
	"context"
	"fmt"
	"hash/crc32"

	sm "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rotisserie/eris"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// LatestVersion is the alias for the newest enabled secret version.
const LatestVersion = "latest"

// Client reads secret payloads.
type Client interface {
	AccessSecretVersion(ctx context.Context, project, secret, version string) ([]byte, error)
}

// NotFoundError is returned when the secret or version does not exist.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("secretmanager: %s not found", e.Name)
}

// accessor is the subset of the generated client this package calls.
type accessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// GRPCClient is a Client over the Secret Manager gRPC API.
type GRPCClient struct {
	api    accessor
	closer func() error
}

// NewClient dials Secret Manager with application default credentials
// unless opts say otherwise. Close releases the connection.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*GRPCClient, error) {
	c, err := sm.NewClient(ctx, opts...)
	if err != nil {
		return nil, eris.Wrap(err, "secretmanager: create client")
	}
	return &GRPCClient{api: c, closer: c.Close}, nil
}

// Close releases the underlying connection.
func (c *GRPCClient) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer()
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// AccessSecretVersion returns the payload of one secret version, verifying
// its CRC32C checksum when the server supplies one.
func (c *GRPCClient) AccessSecretVersion(ctx context.Context, project, secret, version string) ([]byte, error) {
	if version == "" {
		version = LatestVersion
	}
	name := fmt.Sprintf("projects/%s/secrets/%s/versions/%s", project, secret, version)

	resp, err := c.api.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, &NotFoundError{Name: name}
		}
		return nil, eris.Wrapf(err, "secretmanager: access %s", name)
	}

	payload := resp.GetPayload()
	if payload == nil {
		return nil, eris.Errorf("secretmanager: %s has no payload", name)
	}
	data := payload.GetData()
	if payload.DataCrc32C != nil && int64(crc32.Checksum(data, castagnoli)) != payload.GetDataCrc32C() {
		return nil, eris.Errorf("secretmanager: checksum mismatch for %s", name)
	}
	return data, nil
}
