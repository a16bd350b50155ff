package authz

import (
	"strings"

	"github.com/google/uuid"
)

const (
	subjectUserPrefix     = "user"
	rolePrefix            = "role"
	subjectSeparator      = ":"
	defaultActionWildcard = "*"

	RoleSuperadmin = "role:superadmin"
)

// Request encapsulates all parameters required to evaluate a Casbin rule.
type Request struct {
	Subject string
	Object  string
	Action  string
}

func NewRequest(subject, object, action string) Request {
	return Request{
		Subject: subject,
		Object:  strings.ToLower(strings.TrimSpace(object)),
		Action:  NormalizeAction(action),
	}
}

// SubjectForUser builds a subject identifier in the form user:{userID}.
func SubjectForUser(userID uuid.UUID) string {
	userPart := "anonymous"
	if userID != uuid.Nil {
		userPart = userID.String()
	}
	return subjectUserPrefix + subjectSeparator + userPart
}

// SubjectForRole returns the canonical identifier for a role-based subject.
func SubjectForRole(roleSlug string) string {
	roleSlug = strings.TrimSpace(roleSlug)
	if roleSlug == "" {
		roleSlug = "unnamed"
	}
	if strings.HasPrefix(roleSlug, rolePrefix+subjectSeparator) {
		return roleSlug
	}
	return rolePrefix + subjectSeparator + strings.ToLower(roleSlug)
}

// NormalizeAction returns a normalized action string.
func NormalizeAction(action string) string {
	action = strings.ToLower(strings.TrimSpace(action))
	if action == "" {
		return defaultActionWildcard
	}
	return action
}
