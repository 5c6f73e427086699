package domain

import (
	"fmt"
	"strings"
)

// Kind is the closed set of notification categories.
type Kind string

const (
	// KindStatusChange marks a non-terminal task status transition.
	KindStatusChange Kind = "status-change"
	// KindAssignment marks a task being assigned to a user.
	KindAssignment Kind = "assignment"
	// KindProjectUpdate marks a change to project-level fields.
	KindProjectUpdate Kind = "project-update"
	// KindMilestone marks a task reaching a terminal completed state.
	KindMilestone Kind = "milestone"
	// KindComment marks a new comment on a task or project.
	KindComment Kind = "comment"
	// KindSystemAlert marks an operator-initiated announcement.
	KindSystemAlert Kind = "system-alert"
)

// Kinds lists every valid notification kind.
func Kinds() []Kind {
	return []Kind{
		KindStatusChange,
		KindAssignment,
		KindProjectUpdate,
		KindMilestone,
		KindComment,
		KindSystemAlert,
	}
}

// IsValid reports whether k names a known notification kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindStatusChange, KindAssignment, KindProjectUpdate, KindMilestone, KindComment, KindSystemAlert:
		return true
	default:
		return false
	}
}

// String returns the wire token for the kind.
func (k Kind) String() string {
	return string(k)
}

// ParseKind normalizes a producer-provided kind token.
func ParseKind(raw string) (Kind, error) {
	kind := Kind(strings.ToLower(strings.TrimSpace(raw)))
	if !kind.IsValid() {
		return "", fmt.Errorf("unknown notification kind %q", raw)
	}
	return kind, nil
}
