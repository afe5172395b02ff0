package domain

import (
	"slices"
	"strings"
	"time"
)

// Team is a named group of users whose rows share a calendar view.
type Team struct {
	ID        string
	Name      string
	CreatorID string
	MemberIDs []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTeam constructs a team with its creator enrolled.
func NewTeam(id, name, creatorID string, memberIDs []string, now time.Time) (Team, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	creatorID = strings.TrimSpace(creatorID)
	if id == "" || creatorID == "" {
		return Team{}, ErrInvalidID
	}
	if name == "" {
		return Team{}, ErrInvalidName
	}
	return Team{
		ID:        id,
		Name:      name,
		CreatorID: creatorID,
		MemberIDs: NormalizeIDs(append([]string{creatorID}, memberIDs...)),
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// Clone returns a deep copy of the team.
func (t Team) Clone() Team {
	t.MemberIDs = slices.Clone(t.MemberIDs)
	return t
}

// HasMember reports whether the user belongs to the team.
func (t Team) HasMember(userID string) bool {
	userID = strings.TrimSpace(userID)
	return userID != "" && (t.CreatorID == userID || slices.Contains(t.MemberIDs, userID))
}

// AddMembers enrolls users, keeping the member list normalized.
func (t *Team) AddMembers(userIDs ...string) {
	t.MemberIDs = NormalizeIDs(append(slices.Clone(t.MemberIDs), userIDs...))
}

// Rename renames the team.
func (t *Team) Rename(name string, now time.Time) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrInvalidName
	}
	t.Name = name
	t.UpdatedAt = now.UTC()
	return nil
}
