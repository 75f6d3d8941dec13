// Package secrets reads configuration secrets from GCP Secret Manager, used
// when the Stripe secrets are not provided through the environment.
package secrets

import (
	"context"
	"fmt"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"google.golang.org/api/option"
)

type Resolver struct {
	client    *secretmanager.Client
	projectID string
}

func NewResolver(ctx context.Context, projectID string, opts ...option.ClientOption) (*Resolver, error) {
	if projectID == "" {
		return nil, fmt.Errorf("GCP project ID is not set")
	}
	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create Secret Manager client: %w", err)
	}
	return &Resolver{client: client, projectID: projectID}, nil
}

// Get returns the latest version of the named secret.
func (r *Resolver) Get(ctx context.Context, name string) (string, error) {
	resourceName := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", r.projectID, name)
	result, err := r.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: resourceName,
	})
	if err != nil {
		return "", fmt.Errorf("access secret %s: %w", name, err)
	}
	return string(result.Payload.Data), nil
}

func (r *Resolver) Close() error {
	return r.client.Close()
}
