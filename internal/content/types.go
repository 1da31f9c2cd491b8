// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package content defines the data model for backend-stored page content
// and the REST client used to read and write it.
package content

// Well-known section content fields. The content key set is open-ended;
// these are the fields the site itself renders and edits. Unknown keys
// must survive a partial update untouched.
const (
	FieldTitle       = "title"
	FieldSubtitle    = "subtitle"
	FieldDescription = "description"
	FieldButtonText  = "buttonText"
	FieldButtonURL   = "buttonUrl"
	FieldImageURL    = "imageUrl"
	FieldImageAlt    = "imageAlt"
	FieldBody        = "body"
)

// Section is a backend-stored unit of page content: an opaque id and a
// field-to-value mapping. A section belongs to a page; PageID may be empty
// when the parent is unknown to the caller.
type Section struct {
	ID       string            `json:"id"`
	PageID   string            `json:"page_id,omitempty"`
	Kind     string            `json:"kind,omitempty"`
	Position int               `json:"position,omitempty"`
	Content  map[string]string `json:"content"`
}

// Field returns the value of a content field, or empty string if absent.
func (s *Section) Field(name string) string {
	if s.Content == nil {
		return ""
	}
	return s.Content[name]
}

// MergedContent returns a copy of the section's content with the given
// fields overlaid. The receiver is not modified and unknown remote keys
// are preserved; a write payload must always be the full remote content
// with the edited fields merged in, never the edited fields alone.
func (s *Section) MergedContent(fields map[string]string) map[string]string {
	merged := make(map[string]string, len(s.Content)+len(fields))
	for k, v := range s.Content {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}

// Permission grants a set of actions on a resource.
type Permission struct {
	Resource string   `json:"resource"`
	Actions  []string `json:"actions"`
}

// Allows reports whether the permission grants the action on the resource.
// Matching is exact and case-sensitive.
func (p Permission) Allows(resource, action string) bool {
	if p.Resource != resource {
		return false
	}
	for _, a := range p.Actions {
		if a == action {
			return true
		}
	}
	return false
}

// Role is a named set of permissions.
type Role struct {
	Name        string       `json:"name"`
	Permissions []Permission `json:"permissions"`
}

// Identity is the resolved user record for the current credential.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Roles []Role `json:"roles"`
}

// Can reports whether any of the identity's roles carries a permission
// matching the resource with the action in its actions set.
func (id *Identity) Can(resource, action string) bool {
	if id == nil {
		return false
	}
	for _, role := range id.Roles {
		for _, perm := range role.Permissions {
			if perm.Allows(resource, action) {
				return true
			}
		}
	}
	return false
}
