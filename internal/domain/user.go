package domain

import (
	"time"
)

// User is an account record as stored in the directory.
type User struct {
	ID           string
	RoleID       int
	FirstName    string
	MiddleName   *string
	LastName     string
	Username     string
	Mobile       string
	Email        string
	PasswordHash string
	RegisteredAt time.Time
	LastLogin    *time.Time
	Intro        *string
	Profile      *string
}

// PublicUser is the client-facing view of a User. It has no field for the
// password hash, so no response can leak it.
type PublicUser struct {
	ID           string     `json:"id"`
	RoleID       int        `json:"roleId"`
	FirstName    string     `json:"firstName"`
	MiddleName   *string    `json:"middleName"`
	LastName     string     `json:"lastName"`
	Username     string     `json:"username"`
	Mobile       string     `json:"mobile"`
	Email        string     `json:"email"`
	RegisteredAt time.Time  `json:"registeredAt"`
	LastLogin    *time.Time `json:"lastLogin"`
	Intro        *string    `json:"intro"`
	Profile      *string    `json:"profile"`
}

// Public returns the client-facing view of u.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:           u.ID,
		RoleID:       u.RoleID,
		FirstName:    u.FirstName,
		MiddleName:   u.MiddleName,
		LastName:     u.LastName,
		Username:     u.Username,
		Mobile:       u.Mobile,
		Email:        u.Email,
		RegisteredAt: u.RegisteredAt,
		LastLogin:    u.LastLogin,
		Intro:        u.Intro,
		Profile:      u.Profile,
	}
}

// PublicUsers maps Public over users.
func PublicUsers(users []User) []PublicUser {
	out := make([]PublicUser, len(users))
	for i := range users {
		out[i] = users[i].Public()
	}
	return out
}

// UserUpdate is a partial update. Nil fields are left unchanged.
type UserUpdate struct {
	RoleID     *int    `json:"roleId"`
	FirstName  *string `json:"firstName"`
	MiddleName *string `json:"middleName"`
	LastName   *string `json:"lastName"`
	Username   *string `json:"username"`
	Mobile     *string `json:"mobile"`
	Email      *string `json:"email"`
	Intro      *string `json:"intro"`
	Profile    *string `json:"profile"`
}

// Fields lists the names of the fields set in the update, in declaration
// order.
func (u UserUpdate) Fields() []string {
	var fields []string
	add := func(name string, set bool) {
		if set {
			fields = append(fields, name)
		}
	}
	add("roleId", u.RoleID != nil)
	add("firstName", u.FirstName != nil)
	add("middleName", u.MiddleName != nil)
	add("lastName", u.LastName != nil)
	add("username", u.Username != nil)
	add("mobile", u.Mobile != nil)
	add("email", u.Email != nil)
	add("intro", u.Intro != nil)
	add("profile", u.Profile != nil)
	return fields
}

// IsEmpty reports whether the update sets no field.
func (u UserUpdate) IsEmpty() bool {
	return len(u.Fields()) == 0
}

// Apply copies the set fields onto user.
func (u UserUpdate) Apply(user *User) {
	if u.RoleID != nil {
		user.RoleID = *u.RoleID
	}
	if u.FirstName != nil {
		user.FirstName = *u.FirstName
	}
	if u.MiddleName != nil {
		user.MiddleName = u.MiddleName
	}
	if u.LastName != nil {
		user.LastName = *u.LastName
	}
	if u.Username != nil {
		user.Username = *u.Username
	}
	if u.Mobile != nil {
		user.Mobile = *u.Mobile
	}
	if u.Email != nil {
		user.Email = *u.Email
	}
	if u.Intro != nil {
		user.Intro = u.Intro
	}
	if u.Profile != nil {
		user.Profile = u.Profile
	}
}

// UserFilter selects a page of users, newest registration first.
type UserFilter struct {
	RoleID *int
	Offset int
	Limit  int
}
