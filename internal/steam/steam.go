// Package steam links IRC users to Steam profiles via a verification
// code the user places in their public profile text.
package steam

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Verification failures surfaced to the user.
var (
	ErrNoCode       = errors.New("steam: no verification code requested yet")
	ErrProfileFetch = errors.New("steam: could not reach the community site")
	ErrPrivate      = errors.New("steam: profile must be public")
	ErrCodeNotFound = errors.New("steam: verification code not found in profile")
)

// DefaultCommunityURL is the Steam community site.
const DefaultCommunityURL = "https://steamcommunity.com"

// steamID64Base is the lowest valid 64-bit Steam id; anything below
// is treated as a vanity profile name.
const steamID64Base = 76561197960265728

// GenVerifyCode returns a fresh verification tag of the form
// [pugbot:XXXXXX].
func GenVerifyCode() (string, error) {
	raw := make([]byte, 8)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate verify code: %w", err)
	}
	code := base64.StdEncoding.EncodeToString(raw)[:6]
	return fmt.Sprintf("[pugbot:%s]", code), nil
}

// profile is the subset of the community XML profile we inspect.
type profile struct {
	Error        string `xml:"error"`
	SteamID64    int64  `xml:"steamID64"`
	SteamID      string `xml:"steamID"`
	PrivacyState string `xml:"privacyState"`
	Headline     string `xml:"headline"`
	Location     string `xml:"location"`
	RealName     string `xml:"realname"`
	Summary      string `xml:"summary"`
}

// searchFields are the free-text fields the code may be placed in.
func (p *profile) searchFields() []string {
	return []string{p.SteamID, p.Headline, p.Location, p.RealName, p.Summary}
}

// Verifier checks verification codes against community profiles.
type Verifier struct {
	client  *http.Client
	baseURL string
}

// NewVerifier creates a verifier. A nil client gets a short default
// timeout; an empty baseURL targets the real community site.
func NewVerifier(client *http.Client, baseURL string) *Verifier {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if baseURL == "" {
		baseURL = DefaultCommunityURL
	}
	return &Verifier{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

// ProfileURL maps a user-supplied profile reference to the XML
// profile endpoint: full 64-bit ids use /profiles/, everything else
// is a vanity /id/ name.
func (v *Verifier) ProfileURL(ref string) string {
	kind := "id"
	if n, err := strconv.ParseInt(ref, 10, 64); err == nil && n >= steamID64Base {
		kind = "profiles"
	}
	return fmt.Sprintf("%s/%s/%s?xml=1", v.baseURL, kind, ref)
}

// Verify fetches the referenced profile and checks that code appears
// in at least one of its text fields. On success it returns the
// profile's 64-bit Steam id.
func (v *Verifier) Verify(ref, code string) (int64, error) {
	if code == "" {
		return 0, ErrNoCode
	}

	resp, err := v.client.Get(v.ProfileURL(ref))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProfileFetch, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: %s", ErrProfileFetch, resp.Status)
	}

	var p profile
	if err := xml.NewDecoder(resp.Body).Decode(&p); err != nil {
		return 0, fmt.Errorf("parse profile: %w", err)
	}
	if p.Error != "" {
		return 0, fmt.Errorf("steam: %s", p.Error)
	}
	if !strings.EqualFold(p.PrivacyState, "public") {
		return 0, ErrPrivate
	}

	for _, field := range p.searchFields() {
		if strings.Contains(field, code) {
			if p.SteamID64 == 0 {
				return 0, fmt.Errorf("steam: profile carries no steamID64")
			}
			return p.SteamID64, nil
		}
	}
	return 0, ErrCodeNotFound
}
