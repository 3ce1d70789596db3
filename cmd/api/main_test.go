package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/roster/internal/cache"
	"github.com/BradenHooton/roster/internal/config"
)

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := make([]string, 0, len(cmd.Commands()))
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}

	assert.Subset(t, names, []string{"serve", "migrate", "create-admin"})
}

func TestMigrateCmd_RejectsUnknownCommand(t *testing.T) {
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"migrate", "sideways"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sideways")
}

func TestCreateAdminCmd_RequiresEmailAndPassword(t *testing.T) {
	t.Setenv("ADMIN_PASSWORD", "")

	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"create-admin", "--email", "root@example.com"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
}

func TestCreateAdminCmd_Flags(t *testing.T) {
	cmd := NewCreateAdminCmd()

	for _, name := range []string{"name", "email", "password"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "Administrator", cmd.Flags().Lookup("name").DefValue)
}

func TestLoginCounter_FallsBackToMemory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	for name, cfg := range map[string]config.RedisConfig{
		"not configured": {},
		"unreachable":    {Addr: "127.0.0.1:1"},
	} {
		t.Run(name, func(t *testing.T) {
			counter, sweeper, closeCounter := loginCounter(context.Background(), cfg, logger)

			assert.IsType(t, &cache.MemoryCounter{}, counter)
			assert.NotNil(t, sweeper)
			require.NotNil(t, closeCounter)
			assert.NoError(t, closeCounter())
		})
	}
}
