package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name" validate:"required,max=5"`
	Email string `json:"email" validate:"required,email"`
}

func TestStruct(t *testing.T) {
	require.NoError(t, Struct(sample{Name: "bob", Email: "bob@example.com"}))

	err := Struct(sample{Name: "toolong", Email: "nope"})
	var errs Errors
	require.True(t, errors.As(err, &errs))
	assert.True(t, errs.Has("max"))
	assert.True(t, errs.Has("email"))
	assert.False(t, errs.Has("required"))
	assert.Equal(t, "name must be at most 5 characters long", errs.Details()["name"])
	assert.Equal(t, "email must be a valid email address", errs.Details()["email"])

	err = Struct(sample{})
	require.True(t, errors.As(err, &errs))
	assert.True(t, errs.Has("required"))
	assert.Contains(t, err.Error(), "name is required")
}

type credentials struct {
	Username string `json:"username" validate:"nospace"`
	Password string `json:"password" validate:"maxbytes=8"`
}

func TestCustomRules(t *testing.T) {
	require.NoError(t, Struct(credentials{Username: "bob", Password: "12345678"}))

	tests := []struct {
		name  string
		input credentials
		tag   string
	}{
		{name: "inner space", input: credentials{Username: "b ob"}, tag: "nospace"},
		{name: "tab", input: credentials{Username: "b\tob"}, tag: "nospace"},
		{name: "newline", input: credentials{Username: "b\nob"}, tag: "nospace"},
		{name: "multibyte over limit", input: credentials{Password: strings.Repeat("é", 5)}, tag: "maxbytes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errs Errors
			require.True(t, errors.As(Struct(tt.input), &errs))
			assert.True(t, errs.Has(tt.tag))
		})
	}
}
