package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateServices(t *testing.T) {
	ok := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name     string
		required []string
		checks   map[string]Check
		wantErr  string
	}{
		{name: "nothing required", required: nil},
		{name: "all healthy", required: []string{"Database", " redis "}, checks: map[string]Check{"database": ok, "redis": ok}},
		{name: "service down", required: []string{"gorse"}, checks: map[string]Check{"gorse": down}, wantErr: "connection refused"},
		{name: "not configured", required: []string{"redis"}, checks: map[string]Check{"database": ok}, wantErr: "not configured"},
		{name: "optional down is ignored", required: []string{"database"}, checks: map[string]Check{"database": ok, "gorse": down}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sv := NewServiceValidator(tt.required)
			for name, check := range tt.checks {
				sv.Register(name, check)
			}
			err := sv.ValidateServices(context.Background())
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProbeTimeout(t *testing.T) {
	sv := NewServiceValidator([]string{"upstream"}).WithTimeout(20 * time.Millisecond)
	sv.Register("upstream", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	err := sv.ValidateServices(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnknown(t *testing.T) {
	assert.Empty(t, Unknown([]string{"database", "REDIS"}))
	assert.Equal(t, []string{"elasticsearch"}, Unknown([]string{"elasticsearch", "gorse"}))
}
