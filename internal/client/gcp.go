package client

import (
	"context"
	"encoding/base64"
	"fmt"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// ServiceAccount is a decoded GCP service account key.
type ServiceAccount struct {
	ProjectID string
	JSON      []byte
}

// LoadServiceAccount decodes a base64 service account key and reads its
// project ID.
func LoadServiceAccount(ctx context.Context, b64 string) (*ServiceAccount, error) {
	saJSON, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode service account: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, saJSON, cloudPlatformScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account: %w", err)
	}
	if creds.ProjectID == "" {
		return nil, fmt.Errorf("service account has no project_id")
	}

	return &ServiceAccount{ProjectID: creds.ProjectID, JSON: saJSON}, nil
}

// ClientOption returns the google.golang.org/api option for this account.
func (sa *ServiceAccount) ClientOption() option.ClientOption {
	return option.WithCredentialsJSON(sa.JSON)
}

// AuthCredentials returns credentials for clients built on cloud.google.com/go/auth.
func (sa *ServiceAccount) AuthCredentials() (*auth.Credentials, error) {
	return credentials.DetectDefault(&credentials.DetectOptions{
		Scopes:          []string{cloudPlatformScope},
		CredentialsJSON: sa.JSON,
	})
}
