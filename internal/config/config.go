// Package config loads viewlink settings from an optional YAML file,
// VIEWLINK_* environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/baiirun/viewlink/internal/db"
	"github.com/baiirun/viewlink/internal/model"
)

const EnvPrefix = "VIEWLINK"

// Config keys.
const (
	KeyDBPath               = "db.path"
	KeyLogLevel             = "log.level"
	KeyLogFormat            = "log.format"
	KeySyncDefault          = "transfer.sync_default"
	KeyRejectDuplicateViews = "transfer.reject_duplicate_views"
	KeyKanbanLanes          = "kanban.default_lanes"
)

// flagKeys maps persistent CLI flags onto config keys.
var flagKeys = map[string]string{
	"db":        KeyDBPath,
	"log-level": KeyLogLevel,
}

type Config struct {
	DBPath               string
	LogLevel             string
	LogFormat            string
	SyncDefault          bool
	RejectDuplicateViews bool
	// DefaultLanes are the kanban lanes seeded by init. "todo" is always
	// among them.
	DefaultLanes []model.KanbanLane
}

// DefaultPath returns ~/.viewlink/config.yaml.
func DefaultPath() (string, error) {
	dbPath, err := db.DefaultPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(filepath.Dir(dbPath), "config.yaml"), nil
}

// Load reads configuration. An empty file means DefaultPath, which may be
// absent; an explicitly named file must exist. flags may be nil.
func Load(file string, flags *pflag.FlagSet) (*Config, error) {
	dbPath, err := db.DefaultPath()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetDefault(KeyDBPath, dbPath)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeySyncDefault, true)
	v.SetDefault(KeyRejectDuplicateViews, true)
	v.SetDefault(KeyKanbanLanes, []string{"todo", "in_progress", "done"})

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := file != ""
	if !explicit {
		if file, err = DefaultPath(); err != nil {
			return nil, err
		}
	}
	v.SetConfigFile(file)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		DBPath:               v.GetString(KeyDBPath),
		LogLevel:             strings.ToLower(v.GetString(KeyLogLevel)),
		LogFormat:            strings.ToLower(v.GetString(KeyLogFormat)),
		SyncDefault:          v.GetBool(KeySyncDefault),
		RejectDuplicateViews: v.GetBool(KeyRejectDuplicateViews),
		DefaultLanes:         lanes(v.GetStringSlice(KeyKanbanLanes)),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid %s: %q (want debug, info, warn or error)", KeyLogLevel, c.LogLevel)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid %s: %q (want text or json)", KeyLogFormat, c.LogFormat)
	}
	if c.DBPath == "" {
		return fmt.Errorf("%s must not be empty", KeyDBPath)
	}
	return nil
}

// lanes turns lane ids into lanes titled after them, making sure the lane
// todo-derived cards need is present.
func lanes(ids []string) []model.KanbanLane {
	var out []model.KanbanLane
	seen := map[string]bool{}
	add := func(id string) {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, model.KanbanLane{ID: id, Title: laneTitle(id), Position: len(out) + 1})
	}
	add(model.DefaultKanbanLane)
	for _, id := range ids {
		add(id)
	}
	return out
}

func laneTitle(id string) string {
	words := strings.FieldsFunc(id, func(r rune) bool { return r == '_' || r == '-' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
