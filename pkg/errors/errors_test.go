package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodePackageNotFound, "package %s is not tracked", "flask")
	if err.Code != ErrCodePackageNotFound {
		t.Errorf("Code = %s", err.Code)
	}
	want := "PACKAGE_NOT_FOUND: package flask is not tracked"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCodeInstaller, cause, "install %s", "werkzeug")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause lost from chain")
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}
}

func TestIsMatchesThroughChain(t *testing.T) {
	inner := New(ErrCodeManifestNotFound, "manifest missing")
	outer := fmt.Errorf("load: %w", inner)

	if !Is(outer, ErrCodeManifestNotFound) {
		t.Error("Is should unwrap standard wrapping")
	}
	if Is(outer, ErrCodeManifestParse) {
		t.Error("Is matched the wrong code")
	}
	if Is(fmt.Errorf("plain"), ErrCodeManifestNotFound) {
		t.Error("Is matched a plain error")
	}
}

func TestGetCode(t *testing.T) {
	if code := GetCode(New(ErrCodeNetwork, "down")); code != ErrCodeNetwork {
		t.Errorf("GetCode = %s", code)
	}
	if code := GetCode(fmt.Errorf("plain")); code != "" {
		t.Errorf("GetCode for plain error = %s, want empty", code)
	}
}

func TestValidatePackageName(t *testing.T) {
	valid := []string{"flask", "Werkzeug", "typing_extensions", "zope.interface", "ruff-lsp", "a"}
	for _, name := range valid {
		if err := ValidatePackageName(name); err != nil {
			t.Errorf("ValidatePackageName(%q): %v", name, err)
		}
	}

	invalid := []string{
		"",
		"../etc/passwd",
		"pkg//name",
		"pkg\\name",
		"pkg\x00name",
		"pkg\nname",
		"-leading",
		"trailing-",
		string(make([]byte, 300)),
	}
	for _, name := range invalid {
		err := ValidatePackageName(name)
		if !Is(err, ErrCodeInvalidPackage) {
			t.Errorf("ValidatePackageName(%q): expected INVALID_PACKAGE, got %v", name, err)
		}
	}
}

func TestValidateManifestPath(t *testing.T) {
	if err := ValidateManifestPath("pyproject.toml"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateManifestPath(""); !Is(err, ErrCodeInvalidPath) {
		t.Errorf("expected INVALID_PATH for empty, got %v", err)
	}
	if err := ValidateManifestPath("bad\x00path"); !Is(err, ErrCodeInvalidPath) {
		t.Errorf("expected INVALID_PATH for null byte, got %v", err)
	}
}
