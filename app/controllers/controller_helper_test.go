package controllers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageBounds(t *testing.T) {
	offset, limit := pageBounds(1, 0, 20, 100)
	assert.Equal(t, 0, offset)
	assert.Equal(t, 20, limit)

	offset, limit = pageBounds(3, 500, 20, 100)
	assert.Equal(t, 200, offset)
	assert.Equal(t, 100, limit)
}

func TestValidationMessage(t *testing.T) {
	err := validate.Struct(registerRequest{Email: "nope"})
	msg := validationMessage(err)
	assert.Contains(t, msg, "name failed required")
	assert.Contains(t, msg, "email failed email")
	assert.Contains(t, msg, "password failed required")
}
