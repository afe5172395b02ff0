package app

import (
	"github.com/hylla/kalend/internal/domain"
)

// Action names a mutation verb.
type Action string

// Action values.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ResourceKind names the collection a mutation targets.
type ResourceKind string

// ResourceKind values.
const (
	ResourceTask    ResourceKind = "task"
	ResourceProject ResourceKind = "project"
	ResourceTeam    ResourceKind = "team"
)

// Resource describes the target of a permission check.
type Resource struct {
	Kind ResourceKind
	// Project is the owning project for task resources.
	Project domain.Project
	// CreatorID is the owner of project and team resources.
	CreatorID string
}

// TaskResource describes a task owned by project.
func TaskResource(project domain.Project) Resource {
	return Resource{Kind: ResourceTask, Project: project}
}

// CanMutate reports whether actor may perform action on res.
func CanMutate(actor domain.User, action Action, res Resource) bool {
	return Authorize(actor, action, res) == nil
}

// Authorize returns a *PermissionDeniedError when actor may not perform action on res.
func Authorize(actor domain.User, action Action, res Resource) error {
	if actor.ID == "" {
		return &PermissionDeniedError{Action: action, Resource: res.Kind, Reason: "sign in to make changes"}
	}
	if actor.Admin {
		return nil
	}
	switch res.Kind {
	case ResourceTask:
		project := res.Project
		switch project.Policy {
		case domain.PolicyCreatorOnly:
			if project.CreatorID == actor.ID {
				return nil
			}
			return &PermissionDeniedError{
				Action:   action,
				Resource: res.Kind,
				Policy:   project.Policy,
				Reason:   "only the project creator can change tasks in " + projectLabel(project),
			}
		case domain.PolicyAllMembers:
			if project.HasMember(actor.ID) {
				return nil
			}
			return &PermissionDeniedError{
				Action:   action,
				Resource: res.Kind,
				Policy:   project.Policy,
				Reason:   "you are not a member of " + projectLabel(project),
			}
		default:
			return &PermissionDeniedError{Action: action, Resource: res.Kind, Policy: project.Policy, Reason: "unknown collaboration policy"}
		}
	case ResourceProject, ResourceTeam:
		if action == ActionCreate || res.CreatorID == actor.ID {
			return nil
		}
		return &PermissionDeniedError{
			Action:   action,
			Resource: res.Kind,
			Reason:   "only the " + string(res.Kind) + " creator can " + string(action) + " it",
		}
	default:
		return &PermissionDeniedError{Action: action, Resource: res.Kind}
	}
}

func projectLabel(project domain.Project) string {
	if project.Name != "" {
		return "project " + project.Name
	}
	return "this project"
}
