package secrets

import "context"

// Provider defines a generic secrets manager interface.
type Provider interface {
	// GetSecret retrieves a secret by name and returns its fields as strings.
	GetSecret(ctx context.Context, name string) (map[string]string, error)
}
