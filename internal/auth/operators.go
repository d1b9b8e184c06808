package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

const DefaultTokenExpiry = 24 * time.Hour

type Operator struct {
	Username     string `toml:"username" json:"username"`
	PasswordHash string `toml:"password_hash" json:"password_hash"`
	// Password is a plaintext fallback; prefer PasswordHash
	Password string `toml:"password" json:"password"`
	Role     string `toml:"role" json:"role"`
}

type Settings struct {
	JWTSecret   string `toml:"jwt_secret" json:"jwt_secret"`
	TokenExpiry string `toml:"token_expiry" json:"token_expiry"`
}

// OperatorsConfig is the content of the auth file.
type OperatorsConfig struct {
	Users    []Operator `toml:"users" json:"users"`
	Settings Settings   `toml:"settings" json:"settings"`
}

// LoadOperators reads the auth file. TOML is expected, unless the file has a
// .json extension. A missing file yields an empty config, so no one can log in.
func LoadOperators(path string) (*OperatorsConfig, error) {
	cfg := &OperatorsConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("auth file [%s] not found, no operator will be able to log in", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("read auth file: %w", err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshal auth file: %w", err)
		}
	} else {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode auth file: %w", err)
		}
	}

	for i, op := range cfg.Users {
		if op.Username == "" {
			return nil, fmt.Errorf("auth file: user #%d has no username", i)
		}
		if op.PasswordHash == "" && op.Password == "" {
			return nil, fmt.Errorf("auth file: user [%s] has no password", op.Username)
		}
		if op.PasswordHash == "" {
			log.Warnf("auth file: user [%s] has a plaintext password, consider using password_hash", op.Username)
		}
	}

	return cfg, nil
}

// ParseTokenExpiry accepts Go durations ("90m"), days ("7d") or bare seconds ("3600").
func ParseTokenExpiry(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultTokenExpiry, nil
	}

	var (
		expiry time.Duration
		err    error
	)
	switch {
	case strings.HasSuffix(raw, "d"):
		var days int
		days, err = strconv.Atoi(strings.TrimSuffix(raw, "d"))
		expiry = time.Duration(days) * 24 * time.Hour
	default:
		var seconds int
		if seconds, err = strconv.Atoi(raw); err == nil {
			expiry = time.Duration(seconds) * time.Second
		} else {
			expiry, err = time.ParseDuration(raw)
		}
	}
	if err != nil {
		return 0, fmt.Errorf("invalid token expiry [%s]: %w", raw, err)
	}
	if expiry <= 0 {
		return 0, fmt.Errorf("invalid token expiry [%s]: must be positive", raw)
	}

	return expiry, nil
}
