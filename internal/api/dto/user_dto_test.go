package dto

import (
	"testing"

	"github.com/spec-kit/field-service/internal/validation"
)

func TestSignupRequest_NormalizeThenValidate(t *testing.T) {
	req := SignupRequest{Name: "  Jane ", Email: "  Jane@X.com ", Password: "secret1"}
	req.Normalize()
	if req.Name != "Jane" || req.Email != "jane@x.com" {
		t.Fatalf("Normalize() = %+v", req)
	}
	if err := validation.ValidateStruct(&req); err != nil {
		t.Fatalf("ValidateStruct() error = %v", err)
	}
}

func TestSignupRequest_ShortPassword(t *testing.T) {
	req := SignupRequest{Name: "Jane", Email: "jane@x.com", Password: "12345"}
	if err := validation.ValidateStruct(&req); err == nil {
		t.Fatal("expected validation error for short password")
	}
}
