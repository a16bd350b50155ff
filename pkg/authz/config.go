package authz

import (
	_ "embed"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/me-ChrisHandoko/my-gloria-sub005/pkg/configuration"
)

//go:embed model.conf
var defaultModel string

// Config captures all inputs necessary to initialize the Casbin enforcer.
// An empty ModelPath selects the built-in RBAC model; an empty PolicyPath
// starts with no policies.
type Config struct {
	ModelPath    string
	PolicyPath   string
	FlagPath     string
	FlagMode     Mode
	Logger       *logrus.Logger
	FlagProvider FlagProvider
}

func (c Config) validate() error {
	if c.ModelPath != "" && filepath.Ext(c.ModelPath) != ".conf" {
		return configError("model path %q must point to a .conf file", c.ModelPath)
	}
	return nil
}

func (c Config) normalized() Config {
	if c.ModelPath != "" {
		c.ModelPath = filepath.Clean(c.ModelPath)
	}
	if c.PolicyPath != "" {
		c.PolicyPath = filepath.Clean(c.PolicyPath)
	}
	if c.FlagPath != "" {
		c.FlagPath = filepath.Clean(c.FlagPath)
	}
	c.FlagMode = sanitizeMode(c.FlagMode)
	return c
}

// DefaultConfig builds a Config using the global configuration singleton.
func DefaultConfig() Config {
	cfg := configuration.Use()
	return Config{
		ModelPath:  cfg.Authz.ModelPath,
		PolicyPath: cfg.Authz.PolicyPath,
		FlagPath:   cfg.Authz.FlagConfigPath,
		FlagMode:   Mode(cfg.Authz.Mode),
		Logger:     cfg.Logger(),
	}
}
