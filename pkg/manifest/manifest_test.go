package manifest

import (
	"testing"

	"github.com/lemanyk/moppi/pkg/errors"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"pyproject.toml", "pyproject.toml"},
		{"/some/dir/pyproject.toml", "pyproject.toml"},
		{"custom.toml", "pyproject.toml"},
		{"moppi.yaml", "moppi.yaml"},
		{"deps.yml", "moppi.yaml"},
	}
	for _, tt := range tests {
		c, err := Detect(tt.path)
		if err != nil {
			t.Errorf("Detect(%q): %v", tt.path, err)
			continue
		}
		if c.Type() != tt.want {
			t.Errorf("Detect(%q) = %s, want %s", tt.path, c.Type(), tt.want)
		}
	}
}

func TestDetectUnsupported(t *testing.T) {
	_, err := Detect("requirements.txt")
	if !errors.Is(err, errors.ErrCodeUnsupported) {
		t.Errorf("expected UNSUPPORTED, got %v", err)
	}
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		in          string
		name        string
		version     string
		expectError bool
	}{
		{"werkzeug==2.2.2", "werkzeug", "2.2.2", false},
		{"Werkzeug == 2.2.2", "Werkzeug", "2.2.2", false},
		{"requests>=2.0", "requests", "2.0", false},
		{"requests<=2.0", "requests", "2.0", false},
		{"packaging (==23.0)", "packaging", "23.0", false},
		{"flask", "flask", "", false},
		{"", "", "", true},
		{"==1.0", "", "", true},
	}
	for _, tt := range tests {
		name, version, err := parseSpec(tt.in)
		if tt.expectError {
			if err == nil {
				t.Errorf("parseSpec(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("parseSpec(%q): %v", tt.in, err)
			continue
		}
		if name != tt.name || version != tt.version {
			t.Errorf("parseSpec(%q) = (%q, %q), want (%q, %q)", tt.in, name, version, tt.name, tt.version)
		}
	}
}
