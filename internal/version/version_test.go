package version

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	prev := Version
	t.Cleanup(func() { Version = prev })
	Version = "v1.4.2"

	tests := []struct {
		constraint string
		wantErr    bool
	}{
		{"", false},
		{">= 1.0", false},
		{"~> 1.4", false},
		{">= 2.0", true},
		{"not a constraint", true},
	}
	for _, tt := range tests {
		t.Run(tt.constraint, func(t *testing.T) {
			err := Check(tt.constraint)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestDescribe(t *testing.T) {
	prev := Version
	t.Cleanup(func() { Version = prev })

	Version = "v0.9.0"
	info := Describe(">= 1.0")
	assert.Equal(t, "v0.9.0", info.Version)
	assert.False(t, info.Compatible)

	Version = "garbage"
	_, err := Current()
	require.Error(t, err)
	assert.Error(t, Check(">= 1.0"))
}

func TestLatest(t *testing.T) {
	prev := Version
	t.Cleanup(func() { Version = prev })
	Version = "v1.2.0"

	tag := "v1.3.0"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tag == "" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"tag_name":"` + tag + `"}`))
	}))
	t.Cleanup(srv.Close)

	latest, outdated, err := Latest(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "v1.3.0", latest)
	assert.True(t, outdated)

	tag = "v1.2.0"
	_, outdated, err = Latest(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.False(t, outdated)

	tag = ""
	_, _, err = Latest(context.Background(), srv.Client(), srv.URL)
	assert.Error(t, err)
}
