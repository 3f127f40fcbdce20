package session

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"mediport.org/internal/rbac"
	"mediport.org/internal/storage"
)

// brokenKV simulates an unavailable storage tier: every operation fails.
type brokenKV struct{}

func (brokenKV) Get(string) (string, bool, error) { return "", false, errors.New("storage down") }
func (brokenKV) Set(string, string) error         { return errors.New("storage down") }
func (brokenKV) Delete(string) error              { return errors.New("storage down") }

func newTestContext(opts ...Option) *Context {
	return NewContext(storage.NewMemory(), storage.NewMemory(), "https://portal.example.org", opts...)
}

func TestTokenTiers(t *testing.T) {
	t.Run("remembered token lands in durable tier", func(t *testing.T) {
		durable, scoped := storage.NewMemory(), storage.NewMemory()
		c := NewContext(durable, scoped, "")
		c.SetToken("tok-durable", true)
		if _, ok, _ := scoped.Get("portal.token"); ok {
			t.Fatalf("token leaked into scoped tier")
		}
		if c.Token() != "tok-durable" {
			t.Fatalf("token not readable")
		}
	})
	t.Run("unremembered token stays scoped", func(t *testing.T) {
		durable, scoped := storage.NewMemory(), storage.NewMemory()
		c := NewContext(durable, scoped, "")
		c.SetToken("tok-scoped", false)
		if _, ok, _ := durable.Get("portal.token"); ok {
			t.Fatalf("token leaked into durable tier")
		}
		if c.Token() != "tok-scoped" {
			t.Fatalf("token not readable from scoped tier")
		}
	})
	t.Run("clear removes both tiers", func(t *testing.T) {
		c := newTestContext()
		c.SetToken("a", true)
		c.SetToken("b", false)
		c.ClearToken()
		if c.Token() != "" {
			t.Fatalf("expected no token after clear")
		}
	})
	t.Run("broken storage degrades to absent", func(t *testing.T) {
		c := NewContext(brokenKV{}, brokenKV{}, "")
		c.SetToken("tok", true)
		if c.Token() != "" {
			t.Fatalf("broken tier must read as absent")
		}
		if c.IsAuthenticated() {
			t.Fatalf("broken tier must look unauthenticated")
		}
		c.ClearToken()
		c.Logout()
	})
}

func TestIsExpiredBoundary(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)
	c := newTestContext(WithClock(func() time.Time { return now }))
	skew := DefaultExpirySkew

	expAt := func(offset int64) string {
		return mintToken(t, jwt.MapClaims{"exp": now.Unix() + offset})
	}

	cases := []struct {
		name    string
		token   string
		expired bool
	}{
		{"just inside the skew window", expAt(int64(skew/time.Second) - 1), true},
		{"exactly at the skew boundary", expAt(int64(skew / time.Second)), true},
		{"just outside the skew window", expAt(int64(skew/time.Second) + 1), false},
		{"long expired", expAt(-3600), true},
		{"literal zero exp", mintToken(t, jwt.MapClaims{"exp": 0}), true},
		{"no exp claim", mintToken(t, jwt.MapClaims{"sub": "x"}), false},
		{"undecodable token", "garbage", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := c.IsExpired(tc.token, skew); got != tc.expired {
				t.Fatalf("IsExpired = %v, want %v", got, tc.expired)
			}
		})
	}
}

func TestIsAuthenticatedMatrix(t *testing.T) {
	now := time.Unix(1_800_000_000, 0)

	t.Run("no token", func(t *testing.T) {
		c := newTestContext(WithClock(func() time.Time { return now }))
		if c.IsAuthenticated() {
			t.Fatalf("absent token must not authenticate")
		}
	})
	t.Run("expired token", func(t *testing.T) {
		c := newTestContext(WithClock(func() time.Time { return now }))
		c.SetToken(mintToken(t, jwt.MapClaims{"exp": now.Unix() - 60}), true)
		if c.IsAuthenticated() {
			t.Fatalf("expired token must not authenticate")
		}
	})
	t.Run("valid token", func(t *testing.T) {
		c := newTestContext(WithClock(func() time.Time { return now }))
		c.SetToken(mintToken(t, jwt.MapClaims{"exp": now.Unix() + 3600}), true)
		if !c.IsAuthenticated() {
			t.Fatalf("valid token must authenticate")
		}
	})
}

func TestRolesAndPrimaryRole(t *testing.T) {
	c := newTestContext()
	c.SetToken(mintToken(t, jwt.MapClaims{
		"roles": []string{"PATIENT", "DOCTOR"},
	}), false)

	if !c.HasAnyRole("DOCTOR", "NURSE") {
		t.Fatalf("expected role intersection")
	}
	if c.HasAnyRole("NURSE") {
		t.Fatalf("unexpected role intersection")
	}
	primary, ok := c.PrimaryRole()
	if !ok || primary != rbac.RoleDoctor {
		t.Fatalf("primary = %q, ok=%v", primary, ok)
	}

	c.ClearToken()
	if len(c.Roles()) != 0 {
		t.Fatalf("roles must be empty without a token")
	}
	if _, ok := c.PrimaryRole(); ok {
		t.Fatalf("primary role undefined without roles")
	}
}

func TestProfileLifecycle(t *testing.T) {
	c := newTestContext()
	c.SetToken("t.t.t", true)

	var pushes []*Profile
	unsubscribe := c.Subscribe(func(p *Profile) { pushes = append(pushes, p) })
	defer unsubscribe()

	c.SetProfile(Profile{
		Username:  "superadmin",
		Roles:     []string{"SUPER_ADMIN"},
		AvatarURL: "uploads/avatar.png",
		Active:    true,
	})

	p, ok := c.Profile()
	if !ok {
		t.Fatalf("expected stored profile")
	}
	if p.AvatarURL != "https://portal.example.org/uploads/avatar.png" {
		t.Fatalf("avatar not absolutized: %s", p.AvatarURL)
	}
	if len(pushes) != 1 || pushes[0] == nil || pushes[0].Username != "superadmin" {
		t.Fatalf("subscriber not pushed on write: %+v", pushes)
	}

	email := "root@hospital.example"
	c.UpdateProfile(ProfilePatch{Email: &email})
	p, _ = c.Profile()
	if p.Email != email || p.Username != "superadmin" {
		t.Fatalf("patch not merged: %+v", p)
	}

	c.ClearProfile()
	if _, ok := c.Profile(); ok {
		t.Fatalf("profile must be absent after clear")
	}
	if last := pushes[len(pushes)-1]; last != nil {
		t.Fatalf("subscriber must see nil on clear")
	}
}

func TestProfileAbsoluteAvatarUntouched(t *testing.T) {
	c := newTestContext()
	c.SetProfile(Profile{Username: "u", AvatarURL: "https://cdn.example.org/a.png"})
	p, _ := c.Profile()
	if p.AvatarURL != "https://cdn.example.org/a.png" {
		t.Fatalf("absolute avatar URL was rewritten: %s", p.AvatarURL)
	}
}

func TestProfileParseFailureIsAbsent(t *testing.T) {
	durable := storage.NewMemory()
	_ = durable.Set("portal.profile", "{not json")
	c := NewContext(durable, storage.NewMemory(), "")
	if _, ok := c.Profile(); ok {
		t.Fatalf("unparseable profile must read as absent")
	}
}

func TestHospitalScope(t *testing.T) {
	c := newTestContext()
	c.SetToken(mintToken(t, jwt.MapClaims{"hospitalId": "h-1"}), false)

	if c.HospitalID() != "h-1" {
		t.Fatalf("expected token scope as default")
	}
	c.SetHospitalID("h-9")
	if c.HospitalID() != "h-9" {
		t.Fatalf("override must win")
	}
	c.SetHospitalID("")
	if c.HospitalID() != "h-1" {
		t.Fatalf("empty override must fall back to token scope")
	}
}

func TestLogoutClearsEverything(t *testing.T) {
	c := newTestContext()
	c.SetToken("t.t.t", true)
	c.SetProfile(Profile{Username: "superadmin"})
	c.SetHospitalID("h-2")
	c.SetPasswordDigest("digest")

	c.Logout()

	if c.Token() != "" {
		t.Fatalf("token survived logout")
	}
	if _, ok := c.Profile(); ok {
		t.Fatalf("profile survived logout")
	}
	if c.HospitalID() != "" {
		t.Fatalf("hospital override survived logout")
	}
	if _, ok := c.PasswordDigest(); ok {
		t.Fatalf("password digest survived logout")
	}
}

func TestClientIDStable(t *testing.T) {
	c := newTestContext()
	first := c.ClientID()
	if first == "" {
		t.Fatalf("expected minted client id")
	}
	if second := c.ClientID(); second != first {
		t.Fatalf("client id must be stable: %s != %s", second, first)
	}
}

func TestNavOrderRoundTrip(t *testing.T) {
	c := newTestContext()
	if got := c.NavOrder(); got != nil {
		t.Fatalf("expected no preference yet, got %v", got)
	}
	c.SetNavOrder([]string{"patients", "labs", "billing"})
	got := c.NavOrder()
	if len(got) != 3 || got[1] != "labs" {
		t.Fatalf("nav order not preserved: %v", got)
	}
}

func TestResolveLandingPath(t *testing.T) {
	if p := newTestContext().ResolveLandingPath(); p != LandingPath {
		t.Fatalf("unexpected landing path %q", p)
	}
}
