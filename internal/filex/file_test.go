package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(old) }
}

func TestEnsureDir_RelativeResolvesAgainstCWD(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	got, err := EnsureDir("exports")
	require.NoError(t, err)

	want, err := filepath.EvalSymlinks(filepath.Join(tmp, "exports"))
	require.NoError(t, err)
	gotReal, err := filepath.EvalSymlinks(got)
	require.NoError(t, err)
	require.Equal(t, want, gotReal)

	fi, err := os.Stat(got)
	require.NoError(t, err)
	require.True(t, fi.IsDir())

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}
}

func TestEnsureDir_IdempotentAndNested(t *testing.T) {
	base := t.TempDir()
	dir := filepath.Join(base, "a", "b")

	first, err := EnsureDir(dir)
	require.NoError(t, err)
	second, err := EnsureDir(dir)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestEnsureDir_FailsIfFileWithSameNameExists(t *testing.T) {
	base := t.TempDir()
	p := filepath.Join(base, "taken")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o660))

	_, err := EnsureDir(p)
	require.Error(t, err)
}

func TestRemoveFiles_IgnoresMissing(t *testing.T) {
	base := t.TempDir()
	present := filepath.Join(base, "checker.session")
	require.NoError(t, os.WriteFile(present, []byte("s"), 0o600))

	err := RemoveFiles(present, filepath.Join(base, "checker.session-journal"), "")
	require.NoError(t, err)

	_, err = os.Stat(present)
	require.True(t, os.IsNotExist(err))
}

func TestRemoveFiles_ReportsRealFailure(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("directory removal semantics differ")
	}
	base := t.TempDir()
	dir := filepath.Join(base, "nonempty")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "child"), 0o700))

	err := RemoveFiles(dir)
	require.Error(t, err)
}
