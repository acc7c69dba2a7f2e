package platformerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap(t *testing.T) {
	base := errors.New("boom")

	wrapped := Wrap(base, "creating user")
	assert.True(t, Is(wrapped, base))
	assert.Equal(t, "creating user: boom", wrapped.Error())

	assert.Nil(t, Wrap(nil, "creating user"))
}

func TestWrapf(t *testing.T) {
	wrapped := Wrapf(ErrNotFound, "order %s", "o-1")
	assert.True(t, Is(wrapped, ErrNotFound))
	assert.Equal(t, "order o-1: not found", wrapped.Error())
}

func TestSentinelsAreDistinct(t *testing.T) {
	kinds := []error{ErrValidation, ErrConflict, ErrNotFound, ErrCancelled, ErrTransient, ErrPermanent, ErrInternal}
	for i, a := range kinds {
		for j, b := range kinds {
			if i == j {
				continue
			}
			assert.False(t, Is(a, b), "%v should not match %v", a, b)
		}
	}
}
