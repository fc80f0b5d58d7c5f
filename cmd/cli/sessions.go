package main

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/and161185/smartnotes/internal/model"
)

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "smartnotes")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "smartnotes")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

// fileSessions keeps the signed-in session in token.json under the config dir.
type fileSessions struct{}

func (fileSessions) Save(s *model.Session) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tokenFile{AccessToken: s.AccessToken, ExpiresAt: s.ExpiresAt, UserID: s.UserID, Email: s.Email})
}

// Load returns nil when no token was saved.
func (fileSessions) Load() (*model.Session, error) {
	b, err := os.ReadFile(tokenPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return nil, err
	}
	return &model.Session{UserID: tf.UserID, Email: tf.Email, AccessToken: tf.AccessToken, ExpiresAt: tf.ExpiresAt}, nil
}

func (fileSessions) Clear() error {
	if err := os.Remove(tokenPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
