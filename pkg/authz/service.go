package authz

import (
	"context"
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/sirupsen/logrus"
)

// Service provides helpers for enforcing authorization decisions.
type Service struct {
	cfg          Config
	enforcer     *casbin.Enforcer
	logger       *logrus.Entry
	flagProvider FlagProvider
	mu           sync.RWMutex
}

// NewService constructs a Service with the provided config.
func NewService(cfg Config) (*Service, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg = cfg.normalized()

	var logger *logrus.Entry
	if cfg.Logger != nil {
		logger = cfg.Logger.WithField("component", "authz")
	} else {
		logger = logrus.WithField("component", "authz")
	}

	var (
		m   model.Model
		err error
	)
	if cfg.ModelPath != "" {
		m, err = model.NewModelFromFile(cfg.ModelPath)
	} else {
		m, err = model.NewModelFromString(defaultModel)
	}
	if err != nil {
		return nil, fmt.Errorf("authz: failed to load model: %w", err)
	}

	var enf *casbin.Enforcer
	if cfg.PolicyPath != "" {
		enf, err = casbin.NewEnforcer(m, fileadapter.NewAdapter(cfg.PolicyPath))
	} else {
		enf, err = casbin.NewEnforcer(m)
	}
	if err != nil {
		return nil, fmt.Errorf("authz: failed to initialize enforcer: %w", err)
	}

	provider := cfg.FlagProvider
	if provider == nil {
		if cfg.FlagPath != "" {
			provider = NewFileFlagProvider(cfg.FlagPath, cfg.FlagMode)
		} else {
			provider = StaticFlagProvider(cfg.FlagMode)
		}
	}

	return &Service{
		cfg:          cfg,
		enforcer:     enf,
		logger:       logger,
		flagProvider: provider,
	}, nil
}

func (s *Service) Mode() Mode {
	return sanitizeMode(s.flagProvider.Mode())
}

// Allowed applies the enforcement mode to a Check result. Shadow mode logs
// denials and allows the request.
func (s *Service) Allowed(ctx context.Context, req Request) (bool, error) {
	mode := s.Mode()
	if mode == ModeDisabled {
		return true, nil
	}
	allowed, err := s.Check(ctx, req)
	if err != nil {
		return false, err
	}
	recordDecision(mode, req.Object, allowed)
	if allowed {
		return true, nil
	}

	fields := logrus.Fields{
		"subject": req.Subject,
		"object":  req.Object,
		"action":  req.Action,
		"mode":    mode,
	}
	if mode == ModeShadow {
		s.logger.WithContext(ctx).WithFields(fields).Warn("authz shadow deny")
		return true, nil
	}
	s.logger.WithContext(ctx).WithFields(fields).Warn("authz denied request")
	return false, nil
}

// Authorize returns an error if the request is denied.
func (s *Service) Authorize(ctx context.Context, req Request) error {
	allowed, err := s.Allowed(ctx, req)
	if err != nil {
		return err
	}
	if !allowed {
		return forbiddenError(req)
	}
	return nil
}

// Check evaluates a request without applying the enforcement mode.
func (s *Service) Check(ctx context.Context, req Request) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, err := s.enforcer.Enforce(req.Subject, req.Object, req.Action)
	if err != nil {
		return false, fmt.Errorf("authz: enforce failed: %w", err)
	}
	return res, nil
}

// HasRole reports whether subject holds role, directly or transitively.
func (s *Service) HasRole(subject, role string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	roles, err := s.enforcer.GetImplicitRolesForUser(subject)
	if err != nil {
		return false, fmt.Errorf("authz: role lookup failed: %w", err)
	}
	role = SubjectForRole(role)
	for _, r := range roles {
		if r == role {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) IsSuperadmin(subject string) (bool, error) {
	return s.HasRole(subject, RoleSuperadmin)
}

// Grant adds a policy in memory; it is not persisted.
func (s *Service) Grant(role, object, action string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.enforcer.AddPolicy(SubjectForRole(role), object, NormalizeAction(action))
	return err
}

// AssignRole adds a subject-to-role link in memory; it is not persisted.
func (s *Service) AssignRole(subject, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.enforcer.AddRoleForUser(subject, SubjectForRole(role))
	return err
}

// ReloadPolicy reloads policy data from disk.
func (s *Service) ReloadPolicy(ctx context.Context) error {
	if s.cfg.PolicyPath == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enforcer.LoadPolicy(); err != nil {
		return fmt.Errorf("authz: reload policy failed: %w", err)
	}
	s.logger.WithContext(ctx).Info("authz policy reloaded")
	return nil
}

var (
	defaultServiceOnce sync.Once
	defaultService     *Service
	defaultServiceErr  error
)

// Use returns a singleton Service configured via environment variables.
func Use() *Service {
	defaultServiceOnce.Do(func() {
		defaultService, defaultServiceErr = NewService(DefaultConfig())
	})
	if defaultServiceErr != nil {
		panic(defaultServiceErr)
	}
	return defaultService
}
