package authz

import (
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode represents the global enforcement mode.
type Mode string

const (
	ModeDisabled Mode = "disabled"
	ModeShadow   Mode = "shadow"
	ModeEnforce  Mode = "enforce"
)

// FlagProvider supplies the current enforcement mode.
type FlagProvider interface {
	Mode() Mode
}

type StaticFlagProvider Mode

func (s StaticFlagProvider) Mode() Mode {
	return sanitizeMode(Mode(s))
}

// FileFlagProvider loads the mode from a YAML file and re-reads it only
// when the file's modification time changes.
type FileFlagProvider struct {
	path     string
	fallback Mode
	lastMode Mode
	lastMod  time.Time
	mu       sync.Mutex
}

func NewFileFlagProvider(path string, fallback Mode) *FileFlagProvider {
	return &FileFlagProvider{
		path:     path,
		fallback: sanitizeMode(fallback),
	}
}

type flagFile struct {
	Mode string `yaml:"mode"`
}

func (p *FileFlagProvider) Mode() Mode {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastMode == "" {
		p.lastMode = p.fallback
	}
	info, err := os.Stat(p.path)
	if err != nil {
		return p.lastMode
	}
	if !info.ModTime().After(p.lastMod) {
		return p.lastMode
	}

	data, err := os.ReadFile(p.path)
	if err != nil {
		return p.lastMode
	}
	var cfg flagFile
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return p.fallback
	}
	p.lastMod = info.ModTime()
	p.lastMode = sanitizeMode(Mode(cfg.Mode))
	return p.lastMode
}

func sanitizeMode(mode Mode) Mode {
	switch strings.ToLower(strings.TrimSpace(string(mode))) {
	case string(ModeDisabled):
		return ModeDisabled
	case string(ModeEnforce):
		return ModeEnforce
	default:
		return ModeShadow
	}
}
