package coselpro

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultTokenFileName is the cache file name in the user's home directory.
const DefaultTokenFileName = "coselpro_token.json"

// TokenStore persists the single cached token of the local user profile.
type TokenStore interface {
	Save(tok Token) error
	Load() (Token, error)
}

// TokenFile stores a Token as the whole content of a JSON file. The file is
// not locked; concurrent writers from different processes race and a reader
// may observe either version.
type TokenFile struct {
	// Path of the cache file. Empty means DefaultTokenPath, resolved on use.
	Path string
}

// DefaultTokenFile returns the cache in the user's home directory.
func DefaultTokenFile() *TokenFile { return &TokenFile{} }

// DefaultTokenPath returns DefaultTokenFileName in the home directory, or in
// the working directory when the home directory cannot be determined. It only
// fails when neither can be determined.
func DefaultTokenPath() (string, error) {
	dir, err := os.UserHomeDir()
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			return "", fmt.Errorf("no home directory (%v) and no working directory: %w", err, cwdErr)
		}
		dir = cwd
	}
	return filepath.Join(dir, DefaultTokenFileName), nil
}

func (f *TokenFile) path() (string, error) {
	if f.Path != "" {
		return f.Path, nil
	}
	return DefaultTokenPath()
}

// Save truncates the file and writes tok to it. The file is created with mode
// 0600 since it holds a bearer credential.
func (f *TokenFile) Save(tok Token) error {
	path, err := f.path()
	if err != nil {
		return &TokenError{Kind: ErrTokenSaving, Op: "save", Err: err}
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return &TokenError{Kind: ErrTokenSaving, Op: "save", Err: err}
	}

	if err := json.NewEncoder(file).Encode(tok); err != nil {
		_ = file.Close()
		return &TokenError{Kind: ErrTokenSaving, Op: "save", Err: fmt.Errorf("failed to encode token: %w", err)}
	}

	if err := file.Close(); err != nil {
		return &TokenError{Kind: ErrTokenSaving, Op: "save", Err: err}
	}
	return nil
}

// Load reads the token back. A missing file, an unreadable file and content
// that is not a token all fail with ErrTokenLoading; a missing file also
// matches fs.ErrNotExist.
func (f *TokenFile) Load() (Token, error) {
	path, err := f.path()
	if err != nil {
		return Token{}, &TokenError{Kind: ErrTokenLoading, Op: "load", Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Token{}, &TokenError{Kind: ErrTokenLoading, Op: "load", Err: err}
	}

	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return Token{}, &TokenError{Kind: ErrTokenLoading, Op: "load", Err: fmt.Errorf("failed to decode %s: %w", path, err)}
	}
	return tok, nil
}

// Remove deletes the cache file. Removing a missing file is not an error.
func (f *TokenFile) Remove() error {
	path, err := f.path()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Save writes t to the default token file.
func (t Token) Save() error { return DefaultTokenFile().Save(t) }

// LoadToken reads the default token file.
func LoadToken() (Token, error) { return DefaultTokenFile().Load() }
