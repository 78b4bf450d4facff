package signingkey

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestResolve_LocalReferences(t *testing.T) {
	dir := t.TempDir()
	keyFile := filepath.Join(dir, "key.hex")
	require.NoError(t, os.WriteFile(keyFile, []byte(testKey+"\n"), 0o600))
	emptyFile := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(emptyFile, nil, 0o600))

	t.Setenv("KANON_TEST_KEY", testKey)
	t.Setenv("KANON_EMPTY_KEY", "")

	resolver := NewResolver(Options{}, testLogger)

	tests := []struct {
		name    string
		ref     string
		want    string
		wantErr error
	}{
		{name: "literal", ref: testKey, want: testKey},
		{name: "literal with prefix", ref: " 0x" + testKey + " ", want: "0x" + testKey},
		{name: "env", ref: "env:KANON_TEST_KEY", want: testKey},
		{name: "empty env", ref: "env:KANON_EMPTY_KEY", wantErr: ErrKeyNotFound},
		{name: "file", ref: "file:" + keyFile, want: testKey},
		{name: "file url", ref: "file://" + keyFile, want: testKey},
		{name: "missing file", ref: "file:" + filepath.Join(dir, "missing"), wantErr: ErrKeyNotFound},
		{name: "empty file", ref: "file:" + emptyFile, wantErr: ErrKeyNotFound},
		{name: "unknown scheme", ref: "gcpsm://projects/x/secrets/y", wantErr: ErrUnsupportedReference},
		{name: "vault without path", ref: "vault://secret", wantErr: ErrUnsupportedReference},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolver.Resolve(context.Background(), tt.ref)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_Vault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("X-Vault-Token"))
		switch r.URL.Path {
		case "/v1/secret/data/kanon/mainnet":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"data": map[string]interface{}{
					"data":     map[string]interface{}{"signingKey": testKey, "other": "value"},
					"metadata": map[string]interface{}{"version": 1},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"errors":[]}`))
		}
	}))
	defer server.Close()

	resolver := NewResolver(Options{VaultAddress: server.URL, VaultToken: "test-token"}, testLogger)

	key, err := resolver.Resolve(context.Background(), "vault://secret/kanon/mainnet")
	require.NoError(t, err)
	assert.Equal(t, testKey, key)

	other, err := resolver.Resolve(context.Background(), "vault://secret/kanon/mainnet#other")
	require.NoError(t, err)
	assert.Equal(t, "value", other)

	_, err = resolver.Resolve(context.Background(), "vault://secret/kanon/mainnet#missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	_, err = resolver.Resolve(context.Background(), "vault://secret/kanon/sepolia")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestResolve_SecretsManager(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secretsmanager.GetSecretValue", r.Header.Get("X-Amz-Target"))

		var input struct {
			SecretId string
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&input))

		secrets := map[string]string{
			"kanon/plain": testKey,
			"kanon/json":  `{"signingKey":"` + testKey + `"}`,
		}
		secret, ok := secrets[input.SecretId]
		w.Header().Set("Content-Type", "application/x-amz-json-1.1")
		if !ok {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"__type":"ResourceNotFoundException","Message":"Secrets Manager can't find the specified secret."}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{
			"ARN":          "arn:aws:secretsmanager:eu-west-1:000000000000:secret:" + input.SecretId,
			"Name":         input.SecretId,
			"SecretString": secret,
		})
	}))
	defer server.Close()

	resolver := NewResolver(Options{
		AWSEndpoint:    server.URL,
		AWSCredentials: credentials.NewStaticCredentials("AKIDEXAMPLE", "secret", ""),
	}, testLogger)

	key, err := resolver.Resolve(context.Background(), "awssm://kanon/plain?region=eu-west-1")
	require.NoError(t, err)
	assert.Equal(t, testKey, key)

	key, err = resolver.Resolve(context.Background(), "awssm://kanon/json?region=eu-west-1&field=signingKey")
	require.NoError(t, err)
	assert.Equal(t, testKey, key)

	_, err = resolver.Resolve(context.Background(), "awssm://kanon/missing?region=eu-west-1")
	assert.Error(t, err)
}
