package validation

import (
	"testing"

	apperrors "github.com/spec-kit/field-service/pkg/util/errorutil"
)

type sampleRequest struct {
	Name     string  `json:"name" validate:"notblank"`
	Email    string  `json:"email" validate:"required,email"`
	Password string  `json:"password" validate:"required,min=6"`
	Note     *string `json:"note" validate:"omitempty,max=5"`
}

func TestValidateStruct_Valid(t *testing.T) {
	req := sampleRequest{Name: "Jane", Email: "jane@x.com", Password: "secret1"}
	if err := ValidateStruct(&req); err != nil {
		t.Fatalf("ValidateStruct() error = %v", err)
	}
}

func TestValidateStruct_ListsEveryField(t *testing.T) {
	req := sampleRequest{Name: "   ", Email: "not-an-email", Password: "123"}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected validation error")
	}

	de := apperrors.ToDomainError(err)
	if de.Code != apperrors.CodeValidation {
		t.Fatalf("Code = %q", de.Code)
	}

	got := map[string]string{}
	for _, f := range de.Fields {
		got[f.Field] = f.Message
	}
	want := map[string]string{
		"name":     "name is required",
		"email":    "email must be a valid email address",
		"password": "password must be at least 6 characters",
	}
	for field, msg := range want {
		if got[field] != msg {
			t.Errorf("field %s message = %q, want %q", field, got[field], msg)
		}
	}
	if de.Message != "Validation failed: name, email, password" {
		t.Errorf("Message = %q", de.Message)
	}
}

func TestValidateStruct_OptionalPointer(t *testing.T) {
	long := "too long"
	req := sampleRequest{Name: "Jane", Email: "jane@x.com", Password: "secret1", Note: &long}
	err := ValidateStruct(&req)
	if err == nil {
		t.Fatal("expected max error on note")
	}
	de := apperrors.ToDomainError(err)
	if len(de.Fields) != 1 || de.Fields[0].Field != "note" {
		t.Fatalf("Fields = %+v", de.Fields)
	}
}

func TestNewFieldsError(t *testing.T) {
	err := NewFieldsError(apperrors.FieldError{Field: "status", Message: "status is invalid"})
	de := apperrors.ToDomainError(err)
	if de.Message != "Validation failed: status" {
		t.Errorf("Message = %q", de.Message)
	}
}
