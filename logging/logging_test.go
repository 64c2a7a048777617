package logging

import "testing"

func TestMaskEmail(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"john.doe@example.com", "joh***@example.com"},
		{"a@x.com", "a***@x.com"},
		{"@x.com", "***@x.com"},
		{"not-an-email", "***"},
	}
	for _, tc := range cases {
		if got := MaskEmail(tc.in); got != tc.want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestMaskIP(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", ""},
		{"192.168.1.100", "192.168.*.*"},
		{"2001:db8:85a3:0:0:8a2e:0:1", "2001:db8:85a3:0:*:*:*:*"},
		{"localhost", "***"},
	}
	for _, tc := range cases {
		if got := MaskIP(tc.in); got != tc.want {
			t.Fatalf("MaskIP(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNewSelectsEncoder(t *testing.T) {
	for _, env := range []string{EnvProduction, "development", ""} {
		logger, err := New(env)
		if err != nil {
			t.Fatalf("New(%q): %v", env, err)
		}
		_ = logger.Sync()
	}
}
