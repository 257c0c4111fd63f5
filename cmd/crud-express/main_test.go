package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func useMemoryDirectory(t *testing.T) {
	t.Helper()
	t.Setenv("ENVIRONMENT", "development")
	t.Setenv("DIRECTORY_DRIVER", "memory")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := NewRootCmd()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "ping", "seed"} {
		assert.True(t, names[want], "missing %s subcommand", want)
	}
}

func TestPing_Memory(t *testing.T) {
	useMemoryDirectory(t)

	out, err := execute(t, "ping")

	require.NoError(t, err)
	assert.Contains(t, out, "memory directory reachable")
}

func TestMigrate_Memory(t *testing.T) {
	useMemoryDirectory(t)

	out, err := execute(t, "migrate")

	require.NoError(t, err)
	assert.Contains(t, out, "memory directory is up to date")
}

func TestInvalidConfig(t *testing.T) {
	useMemoryDirectory(t)
	t.Setenv("DIRECTORY_DRIVER", "sqlite")

	_, err := execute(t, "ping")

	require.Error(t, err)
	assertCode(t, err, "CONFIG_INVALID")
}

func TestSeed_RequiresFile(t *testing.T) {
	useMemoryDirectory(t)

	_, err := execute(t, "seed")

	assert.ErrorContains(t, err, `required flag(s) "file" not set`)
}

func TestSeed_MissingFile(t *testing.T) {
	useMemoryDirectory(t)

	_, err := execute(t, "seed", "--file", filepath.Join(t.TempDir(), "absent.json"))

	require.Error(t, err)
	assertCode(t, err, "SEED_FILE_INVALID")
}

func TestSeed_RegistersUsers(t *testing.T) {
	useMemoryDirectory(t)

	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"roleId": 1, "firstName": "Alice", "lastName": "Liddell", "username": "alice", "mobile": "+8801712345678", "email": "alice@x.com", "password": "Str0ng!Pass"},
		{"roleId": 2, "firstName": "Bob", "lastName": "Builder", "username": "bob", "mobile": "01712345678", "email": "bob@x.com", "password": "Str0ng!Pass"},
		{"roleId": 2, "firstName": "Bob", "lastName": "Again", "username": "bob", "mobile": "01712345678", "email": "bob2@x.com", "password": "Str0ng!Pass"},
		{"username": "x"}
	]`), 0o600))

	out, err := execute(t, "seed", "-f", path)

	require.NoError(t, err)
	assert.Contains(t, out, "created 2, skipped 1 existing, 1 invalid")
}

func TestSeed_MalformedFile(t *testing.T) {
	useMemoryDirectory(t)

	path := filepath.Join(t.TempDir(), "users.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o600))

	_, err := execute(t, "seed", "--file", path)

	require.Error(t, err)
	assertCode(t, err, "SEED_FAILED")
}
