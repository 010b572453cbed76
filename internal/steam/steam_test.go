package steam

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGenVerifyCode(t *testing.T) {
	code, err := GenVerifyCode()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(code, "[pugbot:") || !strings.HasSuffix(code, "]") {
		t.Errorf("code %q has wrong shape", code)
	}
	if len(code) != len("[pugbot:")+6+1 {
		t.Errorf("code %q has wrong length", code)
	}

	other, _ := GenVerifyCode()
	if code == other {
		t.Error("two generated codes are identical")
	}
}

func TestProfileURL(t *testing.T) {
	v := NewVerifier(nil, "https://example.test")
	cases := []struct {
		ref  string
		want string
	}{
		{"76561197960265731", "https://example.test/profiles/76561197960265731?xml=1"},
		{"550", "https://example.test/id/550?xml=1"},
		{"gaben", "https://example.test/id/gaben?xml=1"},
	}
	for _, c := range cases {
		if got := v.ProfileURL(c.ref); got != c.want {
			t.Errorf("ProfileURL(%q) = %q, want %q", c.ref, got, c.want)
		}
	}
}

func profileServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestVerifySuccess(t *testing.T) {
	srv := profileServer(t, `<?xml version="1.0"?>
<profile>
	<steamID64>76561197960265731</steamID64>
	<steamID>player</steamID>
	<privacyState>public</privacyState>
	<headline>verified [pugbot:AbC123] here</headline>
</profile>`)

	v := NewVerifier(srv.Client(), srv.URL)
	id, err := v.Verify("player", "[pugbot:AbC123]")
	if err != nil {
		t.Fatal(err)
	}
	if id != 76561197960265731 {
		t.Errorf("steam id = %d", id)
	}
}

func TestVerifyCodeMissing(t *testing.T) {
	srv := profileServer(t, `<?xml version="1.0"?>
<profile>
	<steamID64>76561197960265731</steamID64>
	<privacyState>public</privacyState>
	<summary>nothing here</summary>
</profile>`)

	v := NewVerifier(srv.Client(), srv.URL)
	if _, err := v.Verify("player", "[pugbot:AbC123]"); !errors.Is(err, ErrCodeNotFound) {
		t.Errorf("err = %v, want ErrCodeNotFound", err)
	}
}

func TestVerifyPrivateProfile(t *testing.T) {
	srv := profileServer(t, `<?xml version="1.0"?>
<profile>
	<steamID64>76561197960265731</steamID64>
	<privacyState>private</privacyState>
</profile>`)

	v := NewVerifier(srv.Client(), srv.URL)
	if _, err := v.Verify("player", "[pugbot:x]"); !errors.Is(err, ErrPrivate) {
		t.Errorf("err = %v, want ErrPrivate", err)
	}
}

func TestVerifyProfileError(t *testing.T) {
	srv := profileServer(t, `<?xml version="1.0"?>
<response><error>The specified profile could not be found.</error></response>`)

	v := NewVerifier(srv.Client(), srv.URL)
	_, err := v.Verify("ghost", "[pugbot:x]")
	if err == nil || !strings.Contains(err.Error(), "could not be found") {
		t.Errorf("err = %v", err)
	}
}

func TestVerifyNoCode(t *testing.T) {
	v := NewVerifier(nil, "")
	if _, err := v.Verify("player", ""); !errors.Is(err, ErrNoCode) {
		t.Errorf("err = %v, want ErrNoCode", err)
	}
}

func TestVerifyUnreachable(t *testing.T) {
	srv := profileServer(t, "")
	url := srv.URL
	srv.Close()

	v := NewVerifier(nil, url)
	if _, err := v.Verify("player", "[pugbot:x]"); !errors.Is(err, ErrProfileFetch) {
		t.Errorf("err = %v, want ErrProfileFetch", err)
	}
}
