package http

import (
	"testing"

	"github.com/ordersync/platform/pkg/platformerrors"
)

// TestCreateUserRequestRejectsBlankFields covers spec.md §8 S3: an
// empty-name, empty-email payload fails validation before it ever reaches
// the application layer.
func TestCreateUserRequestRejectsBlankFields(t *testing.T) {
	req := &createUserRequest{Name: "", Email: ""}
	err := req.Validate()
	if err == nil {
		t.Fatal("expected validation error for blank name and email")
	}
	if !platformerrors.Is(err, platformerrors.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestCreateUserRequestRejectsMalformedEmail(t *testing.T) {
	req := &createUserRequest{Name: "Alice", Email: "not-an-email"}
	err := req.Validate()
	if err == nil {
		t.Fatal("expected validation error for malformed email")
	}
}

func TestCreateUserRequestAcceptsValidPayload(t *testing.T) {
	req := &createUserRequest{Name: "Alice", Email: "alice@example.com"}
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestChangeUserStatusRequestRejectsBlankStatus(t *testing.T) {
	req := &changeUserStatusRequest{Status: ""}
	if err := req.Validate(); err == nil {
		t.Fatal("expected validation error for blank status")
	}
}
