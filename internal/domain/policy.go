package domain

import "strings"

// CollaborationPolicy decides who may mutate tasks inside a project.
type CollaborationPolicy string

// CollaborationPolicy values.
const (
	PolicyAllMembers  CollaborationPolicy = "ALL_MEMBERS"
	PolicyCreatorOnly CollaborationPolicy = "CREATOR_ONLY"
)

// ParseCollaborationPolicy maps loose user input onto a policy; empty defaults to PolicyAllMembers.
func ParseCollaborationPolicy(raw string) (CollaborationPolicy, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	switch CollaborationPolicy(normalized) {
	case "":
		return PolicyAllMembers, nil
	case PolicyAllMembers:
		return PolicyAllMembers, nil
	case PolicyCreatorOnly:
		return PolicyCreatorOnly, nil
	default:
		return "", ErrInvalidPolicy
	}
}

// IsValid reports whether p is a known policy.
func (p CollaborationPolicy) IsValid() bool {
	return p == PolicyAllMembers || p == PolicyCreatorOnly
}

// Label returns the human-readable policy name.
func (p CollaborationPolicy) Label() string {
	switch p {
	case PolicyAllMembers:
		return "all members"
	case PolicyCreatorOnly:
		return "creator only"
	default:
		return string(p)
	}
}
