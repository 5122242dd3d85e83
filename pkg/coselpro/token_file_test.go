package coselpro_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/coselpro/pkg/coselpro"
	"github.com/stretchr/testify/require"
)

func TestTokenFileRoundTrip(t *testing.T) {
	t.Parallel()

	file := &coselpro.TokenFile{Path: filepath.Join(t.TempDir(), coselpro.DefaultTokenFileName)}
	tok := coselpro.NewToken("abc.def.ghi", time.Now().Add(time.Hour).Truncate(time.Second), "Consultation")

	require.NoError(t, file.Save(tok))

	loaded, err := file.Load()
	require.NoError(t, err)
	require.True(t, tok.Equal(loaded))

	info, err := os.Stat(file.Path)
	require.NoError(t, err)
	require.Equal(t, fs.FileMode(0o600), info.Mode().Perm())
}

func TestTokenFileSaveTruncates(t *testing.T) {
	t.Parallel()

	file := &coselpro.TokenFile{Path: filepath.Join(t.TempDir(), coselpro.DefaultTokenFileName)}
	expire := time.Now().Add(time.Hour).Truncate(time.Second)

	require.NoError(t, file.Save(coselpro.NewToken(strings.Repeat("x", 512), expire, "A much longer user name")))
	short := coselpro.NewToken("short", expire, "B")
	require.NoError(t, file.Save(short))

	loaded, err := file.Load()
	require.NoError(t, err)
	require.True(t, short.Equal(loaded))

	data, err := os.ReadFile(file.Path)
	require.NoError(t, err)
	require.NotContains(t, string(data), "xxx")
}

func TestTokenFileLoadErrors(t *testing.T) {
	t.Parallel()

	t.Run("missing file", func(t *testing.T) {
		file := &coselpro.TokenFile{Path: filepath.Join(t.TempDir(), "absent.json")}

		_, err := file.Load()
		require.ErrorIs(t, err, coselpro.ErrTokenLoading)
		require.ErrorIs(t, err, fs.ErrNotExist)

		var tokErr *coselpro.TokenError
		require.ErrorAs(t, err, &tokErr)
		require.Equal(t, "load", tokErr.Op)
	})

	t.Run("not a token", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), coselpro.DefaultTokenFileName)
		require.NoError(t, os.WriteFile(path, []byte(`{"token":"abc"}`), 0o600))

		_, err := (&coselpro.TokenFile{Path: path}).Load()
		require.ErrorIs(t, err, coselpro.ErrTokenLoading)
	})

	t.Run("garbage", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), coselpro.DefaultTokenFileName)
		require.NoError(t, os.WriteFile(path, []byte("not json"), 0o600))

		_, err := (&coselpro.TokenFile{Path: path}).Load()
		require.ErrorIs(t, err, coselpro.ErrTokenLoading)
	})
}

func TestTokenFileSaveError(t *testing.T) {
	t.Parallel()

	file := &coselpro.TokenFile{Path: filepath.Join(t.TempDir(), "missing-dir", coselpro.DefaultTokenFileName)}

	err := file.Save(coselpro.NewToken("abc", time.Now().Add(time.Hour), "u"))
	require.ErrorIs(t, err, coselpro.ErrTokenSaving)

	var tokErr *coselpro.TokenError
	require.ErrorAs(t, err, &tokErr)
	require.Equal(t, "save", tokErr.Op)
}

func TestTokenFileRemove(t *testing.T) {
	t.Parallel()

	file := &coselpro.TokenFile{Path: filepath.Join(t.TempDir(), coselpro.DefaultTokenFileName)}
	require.NoError(t, file.Remove(), "removing a missing file is not an error")

	require.NoError(t, file.Save(coselpro.NewToken("abc", time.Now().Add(time.Hour), "u")))
	require.NoError(t, file.Remove())

	_, err := file.Load()
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestDefaultTokenFileUsesHome(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "plan9" {
		t.Skip("home directory is not read from $HOME")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)

	path, err := coselpro.DefaultTokenPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, coselpro.DefaultTokenFileName), path)

	tok := coselpro.NewToken("abc", time.Now().Add(time.Hour).Truncate(time.Second), "Consultation")
	require.NoError(t, tok.Save())

	loaded, err := coselpro.LoadToken()
	require.NoError(t, err)
	require.True(t, tok.Equal(loaded))

	_, err = os.Stat(filepath.Join(home, coselpro.DefaultTokenFileName))
	require.NoError(t, err)
}

func TestDefaultTokenPathFallsBackToWorkingDir(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "plan9" {
		t.Skip("home directory is not read from $HOME")
	}
	t.Setenv("HOME", "")

	cwd, err := os.Getwd()
	require.NoError(t, err)

	path, err := coselpro.DefaultTokenPath()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(cwd, coselpro.DefaultTokenFileName), path)
}
