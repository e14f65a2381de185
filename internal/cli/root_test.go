package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEnv(t *testing.T) {
	tests := map[string]struct {
		arrange func(t *testing.T) string
		wantErr bool
		want    string
	}{
		"missing file is ignored": {
			arrange: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), ".env")
			},
			want: "",
		},
		"file sets variables": {
			arrange: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), ".env")
				require.NoError(t, os.WriteFile(p, []byte("QUIZDESK_SESSION_BUDGET=90s\n"), 0o600))
				return p
			},
			want: "90s",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			t.Setenv("QUIZDESK_SESSION_BUDGET", "")
			require.NoError(t, os.Unsetenv("QUIZDESK_SESSION_BUDGET"))

			err := loadEnv(tt.arrange(t))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, os.Getenv("QUIZDESK_SESSION_BUDGET"))
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("QUIZDESK_SESSION_BUDGET", "90s")

	c, err := loadConfig("")
	require.NoError(t, err)

	assert.Equal(t, 90*time.Second, c.Session.Budget)
	assert.Equal(t, int32(8080), c.HTTP.Port)
	assert.True(t, c.Relay.ClearOnRead)
}
