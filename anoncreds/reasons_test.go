package anoncreds

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ajna-inc/kanon-registry/interfaces"
)

func TestFailureReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "unclassified error text is withheld",
			err:  errors.New(`Post "https://mainnet.infura.io/v3/project-key": EOF`),
			want: "unknownError: internal error",
		},
		{
			name: "connection failure",
			err: fmt.Errorf("could not create resource: %w", &interfaces.LedgerError{
				Kind:    interfaces.ErrNetworkUnavailable,
				Network: "mainnet",
				Method:  "connect",
				Err:     errors.New(`Post "https://mainnet.infura.io/v3/project-key": EOF`),
			}),
			want: "networkUnavailable: connect on network mainnet failed",
		},
		{
			name: "unknown network keeps its message",
			err:  fmt.Errorf("%w: devnet", interfaces.ErrUnknownNetwork),
			want: "unknownNetwork: unknown network: devnet",
		},
		{
			name: "deadline",
			err:  fmt.Errorf("waiting for receipt: %w", context.DeadlineExceeded),
			want: "timeout: deadline exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FailureReason(tt.err))
		})
	}
}
