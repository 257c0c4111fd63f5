// Package schema declares the request schemas of the user endpoints.
package schema

import (
	"fmt"

	"github.com/razikuljoni/crud-express/pkg/pagination"
	"github.com/razikuljoni/crud-express/pkg/validator"
)

// Schema identifiers.
const (
	RegisterUserID = "registerUser"
	LoginUserID    = "loginUser"
	GetUserByIDID  = "getUserById"
	UpdateUserID   = "updateUser"
	DeleteUserID   = "deleteUser"
	ListUsersID    = "listUsers"
)

var trim = []validator.Normalizer{validator.Trim}

func userIDParam() validator.Field {
	return validator.Field{Name: "id", Kind: validator.String, Required: true, Rules: []validator.Rule{
		{Tag: "objectid", Message: "Invalid user ID format"},
	}}
}

// profileFields are the user attributes shared by registration and update.
// required controls whether the mandatory registration fields are required.
func profileFields(required bool) []validator.Field {
	return []validator.Field{
		{Name: "roleId", Kind: validator.Int, Required: required, Rules: []validator.Rule{
			{Tag: "gt=0", Message: "Role ID must be a positive integer"},
		}},
		{Name: "firstName", Kind: validator.String, Required: required, Normalize: trim, Rules: []validator.Rule{
			{Tag: "min=1", Message: "First name is required"},
			{Tag: "max=50", Message: "First name must be max 50 characters"},
		}},
		{Name: "middleName", Kind: validator.String, Normalize: trim, Rules: []validator.Rule{
			{Tag: "max=50", Message: "Middle name must be max 50 characters"},
		}},
		{Name: "lastName", Kind: validator.String, Required: required, Normalize: trim, Rules: []validator.Rule{
			{Tag: "min=1", Message: "Last name is required"},
			{Tag: "max=50", Message: "Last name must be max 50 characters"},
		}},
		{Name: "username", Kind: validator.String, Required: required, Normalize: trim, Rules: []validator.Rule{
			{Tag: "min=3", Message: "Username must be at least 3 characters"},
			{Tag: "max=50", Message: "Username must be max 50 characters"},
			{Tag: "username", Message: "Username can only contain letters, numbers, and underscores"},
		}},
		{Name: "mobile", Kind: validator.String, Required: required, Normalize: trim, Rules: []validator.Rule{
			{Tag: "min=10", Message: "Mobile number must be at least 10 digits"},
			{Tag: "max=15", Message: "Mobile number must be max 15 digits"},
			{Tag: "mobile", Message: "Invalid mobile number format"},
		}},
		{Name: "email", Kind: validator.String, Required: required, Normalize: []validator.Normalizer{validator.Trim, validator.Lower}, Rules: []validator.Rule{
			{Tag: "email", Message: "Invalid email format"},
			{Tag: "max=50", Message: "Email must be max 50 characters"},
		}},
		{Name: "intro", Kind: validator.String, Normalize: trim, Rules: []validator.Rule{
			{Tag: "max=500", Message: "Intro must be max 500 characters"},
		}},
		{Name: "profile", Kind: validator.String, Normalize: trim, Rules: []validator.Rule{
			{Tag: "max=2000", Message: "Profile must be max 2000 characters"},
		}},
	}
}

// The password is never normalized.
var passwordField = validator.Field{Name: "password", Kind: validator.String, Required: true, Rules: []validator.Rule{
	{Tag: "min=8", Message: "Password must be at least 8 characters"},
	{Tag: "max=255", Message: "Password must be max 255 characters"},
	{Tag: "hasupper", Message: "Password must contain at least one uppercase letter"},
	{Tag: "haslower", Message: "Password must contain at least one lowercase letter"},
	{Tag: "hasdigit", Message: "Password must contain at least one number"},
	{Tag: "special", Message: "Password must contain at least one special character"},
}}

var (
	RegisterUser = &validator.Schema{
		Name: RegisterUserID,
		Body: append(profileFields(true), passwordField),
	}

	LoginUser = &validator.Schema{
		Name: LoginUserID,
		Body: []validator.Field{
			{Name: "usernameOrEmail", Kind: validator.String, Required: true, Normalize: trim, Rules: []validator.Rule{
				{Tag: "min=3", Message: "Username or email is required"},
			}},
			{Name: "password", Kind: validator.String, Required: true, Rules: []validator.Rule{
				{Tag: "min=1", Message: "Password is required"},
			}},
		},
	}

	GetUserByID = &validator.Schema{
		Name:   GetUserByIDID,
		Params: []validator.Field{userIDParam()},
	}

	UpdateUser = &validator.Schema{
		Name:   UpdateUserID,
		Body:   profileFields(false),
		Params: []validator.Field{userIDParam()},
	}

	DeleteUser = &validator.Schema{
		Name:   DeleteUserID,
		Params: []validator.Field{userIDParam()},
	}

	ListUsers = &validator.Schema{
		Name: ListUsersID,
		Query: []validator.Field{
			{Name: "page", Kind: validator.Int, Rules: []validator.Rule{
				{Tag: "gte=1", Message: "Page must be a positive integer"},
				{Tag: fmt.Sprintf("lte=%d", pagination.MaxPage), Message: fmt.Sprintf("Page must be at most %d", pagination.MaxPage)},
			}},
			{Name: "limit", Kind: validator.Int, Rules: []validator.Rule{
				{Tag: "gte=1", Message: "Limit must be between 1 and 100"},
				{Tag: "lte=100", Message: "Limit must be between 1 and 100"},
			}},
			{Name: "roleId", Kind: validator.Int, Rules: []validator.Rule{
				{Tag: "gt=0", Message: "Role ID must be a positive integer"},
			}},
		},
	}
)

var registry = map[string]*validator.Schema{
	RegisterUserID: RegisterUser,
	LoginUserID:    LoginUser,
	GetUserByIDID:  GetUserByID,
	UpdateUserID:   UpdateUser,
	DeleteUserID:   DeleteUser,
	ListUsersID:    ListUsers,
}

// Lookup returns the schema registered under id.
func Lookup(id string) (*validator.Schema, bool) {
	s, ok := registry[id]
	return s, ok
}

// Validate evaluates in against the schema registered under id.
func Validate(id string, in validator.Input) (validator.Output, error) {
	s, ok := Lookup(id)
	if !ok {
		return validator.Output{}, fmt.Errorf("unknown schema %q", id)
	}
	return s.Validate(in)
}
