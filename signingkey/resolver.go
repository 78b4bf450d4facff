// Package signingkey resolves references to network signing keys.
//
// Supported references:
//   - 0x-prefixed or bare hex: the key itself
//   - env:NAME: the value of an environment variable
//   - file:/path or file:///path: the trimmed contents of a file
//   - vault://mount/path#field: a field of a Vault KV v2 secret
//   - awssm://secret-id?region=...&field=...: an AWS Secrets Manager secret,
//     optionally a field of a JSON secret
package signingkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/hashicorp/vault/api"
)

var (
	// ErrUnsupportedReference is returned for references with an unknown scheme.
	ErrUnsupportedReference = errors.New("unsupported signing key reference")

	// ErrKeyNotFound is returned when a reference points at nothing.
	ErrKeyNotFound = errors.New("signing key not found")
)

// DefaultVaultField is read when a vault reference names no field.
const DefaultVaultField = "signingKey"

// Options configures access to remote secret stores.
type Options struct {
	// VaultAddress and VaultToken default to the VAULT_ADDR and VAULT_TOKEN environment.
	VaultAddress string
	VaultToken   string

	// AWSEndpoint overrides the Secrets Manager endpoint.
	AWSEndpoint string
	// AWSRegion is used when a reference has no region parameter.
	AWSRegion string
	// AWSCredentials default to the SDK credential chain.
	AWSCredentials *credentials.Credentials
}

// Resolver turns signing key references into hex-encoded keys.
type Resolver struct {
	opts Options
	log  *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(opts Options, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{opts: opts, log: log}
}

// Resolve returns the key a reference points at. Literal keys are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	ref = strings.TrimSpace(ref)

	switch {
	case strings.HasPrefix(ref, "env:"):
		return r.fromEnv(strings.TrimPrefix(ref, "env:"))
	case strings.HasPrefix(ref, "file:"):
		return r.fromFile(ref)
	case strings.Contains(ref, "://"):
		u, err := url.Parse(ref)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnsupportedReference, err)
		}
		switch strings.ToLower(u.Scheme) {
		case "vault":
			return r.fromVault(ctx, u)
		case "awssm":
			return r.fromSecretsManager(ctx, u)
		default:
			return "", fmt.Errorf("%w: scheme %s", ErrUnsupportedReference, u.Scheme)
		}
	default:
		return ref, nil
	}
}

func (r *Resolver) fromEnv(name string) (string, error) {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", fmt.Errorf("%w: environment variable %s is empty", ErrKeyNotFound, name)
	}
	return value, nil
}

func (r *Resolver) fromFile(ref string) (string, error) {
	path := strings.TrimPrefix(ref, "file:")
	path = strings.TrimPrefix(path, "//")

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrKeyNotFound, path)
		}
		return "", fmt.Errorf("could not read signing key file: %w", err)
	}

	value := strings.TrimSpace(string(data))
	if value == "" {
		return "", fmt.Errorf("%w: %s is empty", ErrKeyNotFound, path)
	}
	return value, nil
}

// fromVault reads vault://<mount>/<path>#<field> through the KV v2 API.
func (r *Resolver) fromVault(ctx context.Context, u *url.URL) (string, error) {
	mountPath := u.Host
	dataPath := strings.Trim(u.Path, "/")
	if mountPath == "" || dataPath == "" {
		return "", fmt.Errorf("%w: vault reference needs a mount and a path", ErrUnsupportedReference)
	}
	field := u.Fragment
	if field == "" {
		field = DefaultVaultField
	}

	config := api.DefaultConfig()
	if r.opts.VaultAddress != "" {
		config.Address = r.opts.VaultAddress
	}

	client, err := api.NewClient(config)
	if err != nil {
		return "", fmt.Errorf("failed to create Vault client: %w", err)
	}
	if r.opts.VaultToken != "" {
		client.SetToken(r.opts.VaultToken)
	}

	path := fmt.Sprintf("%s/data/%s", mountPath, dataPath)
	secret, err := client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		r.log.Error("Failed to read from Vault", slog.String("path", path), "err", err)
		return "", fmt.Errorf("could not read signing key from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: vault path %s", ErrKeyNotFound, path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("%w: vault path %s is not a KV v2 secret", ErrKeyNotFound, path)
	}
	value, ok := data[field].(string)
	if !ok || strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%w: vault path %s has no field %s", ErrKeyNotFound, path, field)
	}

	r.log.Debug("Signing key read from Vault", slog.String("path", path), slog.String("field", field))
	return strings.TrimSpace(value), nil
}

// fromSecretsManager reads awssm://<secret-id>?region=<region>&field=<field>.
func (r *Resolver) fromSecretsManager(ctx context.Context, u *url.URL) (string, error) {
	secretID := u.Host + u.Path
	if secretID == "" {
		return "", fmt.Errorf("%w: awssm reference needs a secret id", ErrUnsupportedReference)
	}

	region := u.Query().Get("region")
	if region == "" {
		region = r.opts.AWSRegion
	}

	cfg := aws.Config{Region: aws.String(region)}
	if r.opts.AWSEndpoint != "" {
		cfg.Endpoint = aws.String(r.opts.AWSEndpoint)
	}
	if r.opts.AWSCredentials != nil {
		cfg.Credentials = r.opts.AWSCredentials
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return "", fmt.Errorf("failed to create AWS session: %w", err)
	}

	out, err := secretsmanager.New(sess).GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		r.log.Error("Failed to read from Secrets Manager", slog.String("secretId", secretID), "err", err)
		return "", fmt.Errorf("could not read signing key from secrets manager: %w", err)
	}

	value := strings.TrimSpace(aws.StringValue(out.SecretString))
	if field := u.Query().Get("field"); field != "" {
		var fields map[string]string
		if err := json.Unmarshal([]byte(value), &fields); err != nil {
			return "", fmt.Errorf("secret %s is not a JSON object: %w", secretID, err)
		}
		value = strings.TrimSpace(fields[field])
	}
	if value == "" {
		return "", fmt.Errorf("%w: secret %s", ErrKeyNotFound, secretID)
	}

	r.log.Debug("Signing key read from Secrets Manager", slog.String("secretId", secretID))
	return value, nil
}
