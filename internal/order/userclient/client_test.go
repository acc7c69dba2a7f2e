package userclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ordersync/platform/pkg/platformerrors"
)

func TestIsActiveUserReturnsTrueForActiveUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"u-1","status":"active"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	active, err := c.IsActiveUser(context.Background(), "u-1")

	assert.NoError(t, err)
	assert.True(t, active)
}

func TestIsActiveUserFalseForInactiveUser(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"u-1","status":"inactive"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	active, err := c.IsActiveUser(context.Background(), "u-1")

	assert.NoError(t, err)
	assert.False(t, active)
}

func TestIsActiveUserNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	_, err := c.IsActiveUser(context.Background(), "missing")

	assert.True(t, platformerrors.Is(err, platformerrors.ErrValidation))
}

func TestIsActiveUserServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, 0)
	_, err := c.IsActiveUser(context.Background(), "u-1")

	assert.True(t, platformerrors.Is(err, platformerrors.ErrTransient))
}
