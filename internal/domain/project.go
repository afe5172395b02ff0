package domain

import (
	"slices"
	"strings"
	"time"
)

// Project groups tasks under one collaboration policy.
type Project struct {
	ID          string
	Name        string
	Description string
	CreatorID   string
	TeamID      string
	Policy      CollaborationPolicy
	MemberIDs   []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewProject constructs a new value for this package.
func NewProject(id, name, creatorID string, policy CollaborationPolicy, now time.Time) (Project, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	creatorID = strings.TrimSpace(creatorID)
	if id == "" || creatorID == "" {
		return Project{}, ErrInvalidID
	}
	if name == "" {
		return Project{}, ErrInvalidName
	}
	if policy == "" {
		policy = PolicyAllMembers
	}
	if !policy.IsValid() {
		return Project{}, ErrInvalidPolicy
	}

	return Project{
		ID:        id,
		Name:      name,
		CreatorID: creatorID,
		Policy:    policy,
		MemberIDs: []string{creatorID},
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Clone returns a deep copy of the project.
func (p Project) Clone() Project {
	p.MemberIDs = slices.Clone(p.MemberIDs)
	return p
}

// HasMember reports whether the user belongs to the project; the creator always does.
func (p Project) HasMember(userID string) bool {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false
	}
	return p.CreatorID == userID || slices.Contains(p.MemberIDs, userID)
}

// AddMembers enrolls users, keeping the member list normalized.
func (p *Project) AddMembers(userIDs ...string) {
	p.MemberIDs = NormalizeIDs(append(slices.Clone(p.MemberIDs), userIDs...))
}

// UpdateDetails updates state for the requested operation.
func (p *Project) UpdateDetails(name, description string, policy CollaborationPolicy, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	if !policy.IsValid() {
		return ErrInvalidPolicy
	}
	p.Name = name
	p.Description = strings.TrimSpace(description)
	p.Policy = policy
	p.UpdatedAt = now.UTC()
	return nil
}
