package app

import "testing"

func TestNormalizeMatric(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"csc/2021/001", "CSC/2021/001", false},
		{"  EEE/2019/120 ", "EEE/2019/120", false},
		{"CSC2021001", "", true},
		{"CS/2021/001", "", true},
		{"CSC/21/001", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizeMatric(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("NormalizeMatric(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("NormalizeMatric(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeInstitutionEmail(t *testing.T) {
	cases := []struct {
		in      string
		domain  string
		want    string
		wantErr bool
	}{
		{"Ada@Students.Test", "students.test", "ada@students.test", false},
		{"ada@gmail.com", "students.test", "", true},
		{"ada@gmail.com", "", "ada@gmail.com", false},
		{"not-an-email", "", "", true},
		{"@students.test", "students.test", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizeInstitutionEmail(tc.in, tc.domain)
		if (err != nil) != tc.wantErr {
			t.Fatalf("NormalizeInstitutionEmail(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("NormalizeInstitutionEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("abc12"); !IsValidation(err) {
		t.Fatalf("expected short password to fail, got %v", err)
	}
	if err := ValidatePassword("abcdefg"); !IsValidation(err) {
		t.Fatalf("expected password without a digit to fail, got %v", err)
	}
	if err := ValidatePassword("abcde1"); err != nil {
		t.Fatalf("expected valid password, got %v", err)
	}
}
