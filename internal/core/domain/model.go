package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Attribute names of a user record
const (
	UsernameKey = "username"
	NameKey     = "name"
	EmailKey    = "email"
)

// AttributeKey identifies a single attribute entry in a store
type AttributeKey struct {
	GroupID string
	Name    string
}

// Attribute is one (group, attribute name) -> value fact
type Attribute struct {
	GroupID string `json:"groupId"`
	Name    string `json:"attributeName"`
	Value   string `json:"value"`
}

// ValidateAttributeNames rejects empty attribute names.
func ValidateAttributeNames(names ...string) error {
	for _, name := range names {
		if name == "" {
			return fmt.Errorf("attribute name cannot be empty: %w", ErrInvalidInput)
		}
	}
	return nil
}

// ValidateAttributeBatch rejects an empty batch or one with an empty name.
func ValidateAttributeBatch(attrs map[string]string) error {
	if len(attrs) == 0 {
		return fmt.Errorf("no attributes given: %w", ErrInvalidInput)
	}
	for name := range attrs {
		if err := ValidateAttributeNames(name); err != nil {
			return err
		}
	}
	return nil
}

// SortAttributes orders attributes by group id, then attribute name.
func SortAttributes(attrs []Attribute) {
	sort.Slice(attrs, func(i, j int) bool {
		if attrs[i].GroupID != attrs[j].GroupID {
			return attrs[i].GroupID < attrs[j].GroupID
		}
		return attrs[i].Name < attrs[j].Name
	})
}

// User is the record assembled from all attributes sharing one group id
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// UserFromAttributes assembles a user from a group's attributes.
// Attribute names are matched case-insensitively; unknown names are ignored.
func UserFromAttributes(attrs []Attribute) *User {
	user := &User{}
	for _, attr := range attrs {
		user.ID = attr.GroupID
		switch strings.ToLower(attr.Name) {
		case UsernameKey:
			user.Username = attr.Value
		case NameKey:
			user.Name = attr.Value
		case EmailKey:
			user.Email = attr.Value
		}
	}
	return user
}

// Attributes returns the user's fields keyed by attribute name
func (u *User) Attributes() map[string]string {
	return map[string]string{
		UsernameKey: u.Username,
		NameKey:     u.Name,
		EmailKey:    u.Email,
	}
}

// AttributeQuery selects attributes by name, by value, or both.
// A nil field does not filter.
type AttributeQuery struct {
	Name  *string
	Value *string
}

// UserRequest is the body accepted by the create and update endpoints
type UserRequest struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// UserError is the body returned for failed user requests
type UserError struct {
	StatusString string `json:"statusString"`
	ErrorMessage string `json:"errorMessage"`
}
