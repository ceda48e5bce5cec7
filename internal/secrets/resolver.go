package secrets

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	pkgsecrets "github.com/Checker-Finance/yieldcurve/pkg/secrets"
)

// DBCredentials is the database login resolved from a secret.
type DBCredentials struct {
	Username string
	Password string
	Host     string
	Port     int
	DBName   string
	SSLMode  string
}

// DSN renders the credentials as a postgres URL.
func (c DBCredentials) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Username, c.Password),
		Host:   c.Host + ":" + strconv.Itoa(c.Port),
		Path:   "/" + c.DBName,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// DBResolver resolves database credentials from a secrets provider and caches
// them. Fields missing from the secret fall back to the configured defaults.
type DBResolver struct {
	logger     *zap.Logger
	provider   pkgsecrets.Provider
	cache      *pkgsecrets.Cache[DBCredentials]
	secretName string
	defaults   DBCredentials
}

func NewDBResolver(
	logger *zap.Logger,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[DBCredentials],
	secretName string,
	defaults DBCredentials,
) *DBResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBResolver{
		logger:     logger,
		provider:   provider,
		cache:      cache,
		secretName: secretName,
		defaults:   defaults,
	}
}

// Resolve returns the cached credentials or fetches them.
func (r *DBResolver) Resolve(ctx context.Context) (DBCredentials, error) {
	if creds, ok := r.cache.Get(r.secretName); ok {
		return creds, nil
	}

	raw, err := r.provider.GetSecret(ctx, r.secretName)
	if err != nil {
		r.logger.Warn("secrets.db_fetch_failed", zap.String("key", r.secretName), zap.Error(err))
		return DBCredentials{}, fmt.Errorf("resolve db credentials: %w", err)
	}

	creds, err := r.parse(raw)
	if err != nil {
		return DBCredentials{}, fmt.Errorf("parse secret %q: %w", r.secretName, err)
	}

	r.cache.Put(r.secretName, creds)
	r.logger.Info("secrets.db_resolved",
		zap.String("key", r.secretName),
		zap.String("host", creds.Host),
		zap.String("db", creds.DBName))
	return creds, nil
}

// DSN resolves the credentials and renders them as a connection URL.
func (r *DBResolver) DSN(ctx context.Context) (string, error) {
	creds, err := r.Resolve(ctx)
	if err != nil {
		return "", err
	}
	return creds.DSN(), nil
}

// Invalidate drops the cached credentials so the next Resolve refetches.
func (r *DBResolver) Invalidate() {
	r.cache.Bust(r.secretName)
}

func (r *DBResolver) parse(raw map[string]string) (DBCredentials, error) {
	creds := r.defaults
	creds.Username = raw["username"]
	creds.Password = raw["password"]
	if creds.Username == "" || creds.Password == "" {
		return DBCredentials{}, fmt.Errorf("username and password are required")
	}
	if v := raw["host"]; v != "" {
		creds.Host = v
	}
	if v := raw["port"]; v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return DBCredentials{}, fmt.Errorf("invalid port %q", v)
		}
		creds.Port = p
	}
	if v := firstNonEmpty(raw["dbname"], raw["database"]); v != "" {
		creds.DBName = v
	}
	return creds, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
