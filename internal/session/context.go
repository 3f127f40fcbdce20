// Package session owns the client's authenticated state: the bearer
// token, the user profile, and the active hospital scope. Every mutation
// goes through Context; other packages only read through it. Storage and
// decode failures are absorbed here and surface as absent values, so a
// broken storage tier is indistinguishable from "never logged in".
package session

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"mediport.org/internal/obs"
	"mediport.org/internal/rbac"
	"mediport.org/internal/storage"
)

// Fixed navigation targets. These are contract, not configuration.
const (
	LoginPath     = "/login"
	LandingPath   = "/dashboard"
	ForbiddenPath = "/error/403"
)

// DefaultExpirySkew is subtracted from the exp claim so a token is
// treated as expired slightly before the server would reject it.
const DefaultExpirySkew = 10 * time.Second

// Storage keys. Stable across restarts; the durable tier carries them in
// the state database, the scoped tier in process memory.
const (
	tokenKey     = "portal.token"
	profileKey   = "portal.profile"
	navOrderKey  = "portal.nav_order"
	clientIDKey  = "portal.client_id"
	pwdDigestKey = "portal.password_digest"
)

// Context is the single authority over session state. It reads the
// durable tier first and falls back to the scoped tier, mirroring how the
// token may have been stored with or without "remember me".
type Context struct {
	durable storage.KV
	scoped  storage.KV
	baseURL string
	now     func() time.Time

	mu          sync.RWMutex
	hospitalID  string
	cached      *Profile
	subscribers map[int]func(*Profile)
	nextSubID   int
}

// Option configures a Context.
type Option func(*Context)

// WithClock overrides the time source, for tests.
func WithClock(fn func() time.Time) Option {
	return func(c *Context) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewContext builds the session authority over the two storage tiers.
// baseURL is the portal origin used to absolutize relative avatar URLs.
func NewContext(durable, scoped storage.KV, baseURL string, opts ...Option) *Context {
	c := &Context{
		durable:     durable,
		scoped:      scoped,
		baseURL:     baseURL,
		now:         time.Now,
		subscribers: make(map[int]func(*Profile)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// profileTier picks the tier the profile belongs in: wherever the token
// lives, so that "remember me" covers the profile too.
func (c *Context) profileTier() storage.KV {
	if _, ok := read(c.durable, tokenKey); ok {
		return c.durable
	}
	if _, ok := read(c.scoped, tokenKey); ok {
		return c.scoped
	}
	return c.durable
}

// read swallows storage failures; an unreadable tier reports absent.
func read(kv storage.KV, key string) (string, bool) {
	if kv == nil {
		return "", false
	}
	v, ok, err := kv.Get(key)
	if err != nil {
		return "", false
	}
	return v, ok
}

// Token returns the stored bearer token, durable tier first.
func (c *Context) Token() string {
	if v, ok := read(c.durable, tokenKey); ok {
		return v
	}
	v, _ := read(c.scoped, tokenKey)
	return v
}

// SetToken stores the token in the durable tier when remember is true,
// otherwise only for the lifetime of the process.
func (c *Context) SetToken(token string, remember bool) {
	tier := c.scoped
	if remember {
		tier = c.durable
	}
	if tier != nil {
		_ = tier.Set(tokenKey, token)
	}
}

// ClearToken removes the token from both tiers unconditionally.
func (c *Context) ClearToken() {
	if c.durable != nil {
		_ = c.durable.Delete(tokenKey)
	}
	if c.scoped != nil {
		_ = c.scoped.Delete(tokenKey)
	}
}

// Claims decodes the current token's payload. ok is false when no token
// is stored or its payload is unusable.
func (c *Context) Claims() (Claims, bool) {
	token := c.Token()
	if token == "" {
		return Claims{}, false
	}
	return DecodeClaims(token)
}

// Roles returns the role claims of the current token, empty when absent.
func (c *Context) Roles() []string {
	claims, ok := c.Claims()
	if !ok {
		return nil
	}
	return claims.Roles
}

// PrimaryRole resolves the highest-priority role of the current session.
func (c *Context) PrimaryRole() (rbac.Role, bool) {
	return rbac.Primary(c.Roles())
}

// HasAnyRole reports whether the session holds at least one of the
// expected roles.
func (c *Context) HasAnyRole(expected ...string) bool {
	return rbac.HasAny(c.Roles(), expected)
}

// IsExpired reports whether the token is past its expiry, allowing for
// clock skew. A token without an exp claim is deliberately treated as not
// expired; tightening that would lock out every such session.
func (c *Context) IsExpired(token string, skew time.Duration) bool {
	claims, ok := DecodeClaims(token)
	if !ok || !claims.HasExpiry {
		return false
	}
	return c.now().Unix() >= claims.ExpiresAt-int64(skew/time.Second)
}

// IsAuthenticated reports whether a token is stored and not expired.
func (c *Context) IsAuthenticated() bool {
	token := c.Token()
	if token == "" {
		return false
	}
	return !c.IsExpired(token, DefaultExpirySkew)
}

// SetProfile persists the profile and pushes it to subscribers. Relative
// avatar URLs are absolutized first.
func (c *Context) SetProfile(p Profile) {
	p.AvatarURL = normalizeAvatarURL(c.baseURL, p.AvatarURL)
	if data, err := json.Marshal(p); err == nil {
		if tier := c.profileTier(); tier != nil {
			_ = tier.Set(profileKey, string(data))
		}
	}
	c.mu.Lock()
	copied := p
	c.cached = &copied
	c.mu.Unlock()
	c.notify(&copied)
}

// Profile returns the stored profile. A missing or unparseable blob
// reports absent. The first successful read primes the subscriber state.
func (c *Context) Profile() (Profile, bool) {
	c.mu.RLock()
	if c.cached != nil {
		p := *c.cached
		c.mu.RUnlock()
		return p, true
	}
	c.mu.RUnlock()

	raw, ok := read(c.durable, profileKey)
	if !ok {
		raw, ok = read(c.scoped, profileKey)
	}
	if !ok {
		return Profile{}, false
	}
	var p Profile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Profile{}, false
	}
	c.mu.Lock()
	if c.cached == nil {
		copied := p
		c.cached = &copied
	}
	c.mu.Unlock()
	return p, true
}

// UpdateProfile merges a patch into the stored profile through the normal
// write path. A patch against an absent profile is a no-op.
func (c *Context) UpdateProfile(patch ProfilePatch) {
	p, ok := c.Profile()
	if !ok {
		return
	}
	if patch.FirstName != nil {
		p.FirstName = *patch.FirstName
	}
	if patch.LastName != nil {
		p.LastName = *patch.LastName
	}
	if patch.Email != nil {
		p.Email = *patch.Email
	}
	if patch.Phone != nil {
		p.Phone = *patch.Phone
	}
	if patch.AvatarURL != nil {
		p.AvatarURL = *patch.AvatarURL
	}
	c.SetProfile(p)
}

// ClearProfile removes the persisted profile and clears the publication.
func (c *Context) ClearProfile() {
	if c.durable != nil {
		_ = c.durable.Delete(profileKey)
	}
	if c.scoped != nil {
		_ = c.scoped.Delete(profileKey)
	}
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
	c.notify(nil)
}

// Subscribe registers a profile listener and returns its unsubscribe
// func. Listeners are pushed on every successful profile write or clear.
func (c *Context) Subscribe(fn func(*Profile)) func() {
	c.mu.Lock()
	id := c.nextSubID
	c.nextSubID++
	c.subscribers[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subscribers, id)
		c.mu.Unlock()
	}
}

func (c *Context) notify(p *Profile) {
	c.mu.RLock()
	fns := make([]func(*Profile), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		fns = append(fns, fn)
	}
	c.mu.RUnlock()
	for _, fn := range fns {
		fn(p)
	}
}

// HospitalID returns the active hospital scope: an explicit override
// wins, otherwise the value embedded in the token.
func (c *Context) HospitalID() string {
	c.mu.RLock()
	override := c.hospitalID
	c.mu.RUnlock()
	if override != "" {
		return override
	}
	claims, ok := c.Claims()
	if !ok {
		return ""
	}
	return claims.HospitalID
}

// SetHospitalID records a tenant-switch override. Empty resets to the
// token's own scope.
func (c *Context) SetHospitalID(id string) {
	c.mu.Lock()
	c.hospitalID = id
	c.mu.Unlock()
}

// NavOrder returns the persisted navigation-order preference.
func (c *Context) NavOrder() []string {
	raw, ok := read(c.durable, navOrderKey)
	if !ok {
		return nil
	}
	var order []string
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		return nil
	}
	return order
}

// SetNavOrder persists the navigation-order preference.
func (c *Context) SetNavOrder(order []string) {
	data, err := json.Marshal(order)
	if err != nil || c.durable == nil {
		return
	}
	_ = c.durable.Set(navOrderKey, string(data))
}

// ClientID returns the stable installation identifier, minting one on
// first use.
func (c *Context) ClientID() string {
	if v, ok := read(c.durable, clientIDKey); ok {
		return v
	}
	id := uuid.NewString()
	if c.durable != nil {
		_ = c.durable.Set(clientIDKey, id)
	}
	return id
}

// SetPasswordDigest caches the lock-screen verification digest for the
// lifetime of the process only.
func (c *Context) SetPasswordDigest(digest string) {
	if c.scoped != nil {
		_ = c.scoped.Set(pwdDigestKey, digest)
	}
}

// PasswordDigest returns the cached lock-screen digest, if any.
func (c *Context) PasswordDigest() (string, bool) {
	return read(c.scoped, pwdDigestKey)
}

// ResolveLandingPath is the fixed post-login destination.
func (c *Context) ResolveLandingPath() string {
	return LandingPath
}

// Logout clears the token, profile, hospital override and lock-screen
// digest. Navigation is the caller's responsibility.
func (c *Context) Logout() {
	c.ClearToken()
	c.ClearProfile()
	if c.scoped != nil {
		_ = c.scoped.Delete(pwdDigestKey)
	}
	c.mu.Lock()
	c.hospitalID = ""
	c.mu.Unlock()
	obs.CountLogout()
}
