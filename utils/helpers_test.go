package utils

import (
	"reflect"
	"testing"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("password123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if hash == "password123" {
		t.Fatal("hash must not equal the plain password")
	}
	if err := CheckPassword("password123", hash); err != nil {
		t.Errorf("CheckPassword with correct password: %v", err)
	}
	if err := CheckPassword("wrong", hash); err == nil {
		t.Error("CheckPassword with wrong password should fail")
	}
}

func TestGenerateRandomString(t *testing.T) {
	a, err := GenerateRandomString(12)
	if err != nil {
		t.Fatalf("GenerateRandomString: %v", err)
	}
	if len(a) != 12 {
		t.Errorf("length = %d, want 12", len(a))
	}
	b, err := GenerateRandomString(12)
	if err != nil {
		t.Fatalf("GenerateRandomString: %v", err)
	}
	if a == b {
		t.Error("two random strings should differ")
	}
}

func TestRoleHelpers(t *testing.T) {
	for _, role := range []string{"manager", "studio_owner", "customer"} {
		if !IsValidRole(role) {
			t.Errorf("IsValidRole(%s) = false", role)
		}
	}
	if IsValidRole("admin") {
		t.Error("IsValidRole(admin) = true")
	}

	if !IsStaffRole("manager") || !IsStaffRole("studio_owner") {
		t.Error("managers and studio owners are staff")
	}
	if IsStaffRole("customer") {
		t.Error("customers are not staff")
	}
}

func TestIsValidLeadStatus(t *testing.T) {
	for _, status := range []string{"new", "contacted", "trial_booked", "converted", "lost"} {
		if !IsValidLeadStatus(status) {
			t.Errorf("IsValidLeadStatus(%s) = false", status)
		}
	}
	if IsValidLeadStatus("maybe") {
		t.Error("IsValidLeadStatus(maybe) = true")
	}
}

func TestParsePackageSizes(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []int
	}{
		{"configured", `[5, 10, 25]`, []int{5, 10, 25}},
		{"empty input", ``, []int{10, 20}},
		{"malformed", `{"oops":`, []int{10, 20}},
		{"empty list", `[]`, []int{10, 20}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ParsePackageSizes([]byte(tc.raw))
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("ParsePackageSizes(%q) = %v, want %v", tc.raw, got, tc.want)
			}
		})
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  hello\x00world  "); got != "helloworld" {
		t.Errorf("SanitizeString = %q, want %q", got, "helloworld")
	}
}
