package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestProfileRequestsUseFileNames(t *testing.T) {
	dir := t.TempDir()
	alice := writeProfile(t, dir, "alice.yaml", "target-roles: [backend engineer]\n")
	bob := writeProfile(t, dir, "bob.json", `{"targetRoles": ["data analyst"]}`)

	reqs, err := profileRequests([]string{alice, bob})
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, "alice", reqs[0].UserID)
	assert.Equal(t, []string{"backend engineer"}, reqs[0].Profile.TargetRoles)
	assert.Equal(t, "bob", reqs[1].UserID)
	assert.Equal(t, []string{"data analyst"}, reqs[1].Profile.TargetRoles)
}

func TestProfileRequestsRejectSameUser(t *testing.T) {
	dir := t.TempDir()
	first := writeProfile(t, dir, "carol.yaml", "target-roles: [qa]\n")
	second := writeProfile(t, dir, "carol.json", `{"targetRoles": ["qa"]}`)

	_, err := profileRequests([]string{first, second})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `same user "carol"`)
}

func TestProfileRequestsLoadErrors(t *testing.T) {
	_, err := profileRequests([]string{filepath.Join(t.TempDir(), "absent.yaml")})
	require.Error(t, err)
}
