package provision

import "testing"

func TestSafeRedirect(t *testing.T) {
	const host = "app.example"
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"/dashboard", "/dashboard"},
		{"/a/b?x=1#frag", "/a/b?x=1#frag"},
		{"//evil.example/", "/"},
		{"/\\evil.example", "/"},
		{"\\\\evil.example", "/"},
		{"https://app.example/settings", "https://app.example/settings"},
		{"http://APP.example/x", "http://APP.example/x"},
		{"https://evil.example/", "/"},
		{"https://app.example.evil.example/", "/"},
		{"https://user@app.example/", "/"},
		{"javascript:alert(1)", "/"},
		{"ftp://app.example/", "/"},
		{"dashboard", "/"},
		{"/ok\r\nSet-Cookie: x", "/"},
	}
	for _, tc := range tests {
		if got := SafeRedirect(tc.in, host, "/"); got != tc.want {
			t.Errorf("SafeRedirect(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	if got := SafeRedirect("https://app.example/", "", "/"); got != "/" {
		t.Errorf("absolute URL without a request host must fall back, got %q", got)
	}
}
