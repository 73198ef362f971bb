package session

import (
	"encoding/json"
	"maps"
	"strings"
)

// User is the signed-in profile plus the in-memory access token.
type User struct {
	ID         int    `json:"id"`
	Email      string `json:"email"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	Department string `json:"department,omitempty"`
	Role       string `json:"role,omitempty"`
	Access     string `json:"access,omitempty"`

	// Extra keeps profile fields this client does not model.
	Extra map[string]any `json:"-"`
}

var userFields = map[string]struct{}{
	"id": {}, "email": {}, "first_name": {}, "last_name": {},
	"department": {}, "role": {}, "access": {},
}

// UnmarshalJSON decodes known fields and stores the rest in Extra.
func (u *User) UnmarshalJSON(data []byte) error {
	type plain User
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k := range userFields {
		delete(all, k)
	}
	*u = User(p)
	if len(all) > 0 {
		u.Extra = all
	}
	return nil
}

// MarshalJSON writes known fields and Extra side by side.
func (u User) MarshalJSON() ([]byte, error) {
	type plain User
	known, err := json.Marshal(plain(u))
	if err != nil {
		return nil, err
	}
	if len(u.Extra) == 0 {
		return known, nil
	}
	out := make(map[string]any, len(u.Extra)+len(userFields))
	maps.Copy(out, u.Extra)
	var fields map[string]any
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	maps.Copy(out, fields)
	return json.Marshal(out)
}

// Name returns the display name, falling back to the email address.
func (u *User) Name() string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// Clone returns a copy of u with its own Extra map; nil stays nil.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Extra != nil {
		c.Extra = maps.Clone(u.Extra)
	}
	return &c
}

// withAccess returns a copy of u holding the given access token.
func (u *User) withAccess(access string) *User {
	c := u.Clone()
	c.Access = access
	return c
}
