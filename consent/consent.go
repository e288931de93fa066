// Package consent stores the user's email-contact consent and address.
//
// The address may only be stored while consent is granted; trying otherwise
// is a caller bug and returns ErrConsentRequired.
package consent

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stevemurr/localstate/schema"
	"github.com/stevemurr/localstate/store"
)

const SchemaVersion = 1

var (
	ErrConsentRequired = errors.New("consent: email requires granted consent")
	ErrInvalidEmail    = errors.New("consent: invalid email address")
)

// Flags reads and writes consent keys under one namespace.
type Flags struct {
	kv    store.Store
	ns    string
	guard *schema.Guard
	log   *zap.Logger
}

func New(kv store.Store, namespace string, log *zap.Logger) *Flags {
	if log == nil {
		log = zap.NewNop()
	}
	return &Flags{
		kv:    kv,
		ns:    namespace + ".",
		guard: schema.NewGuard(SchemaVersion, nil, log),
		log:   log.With(zap.String("namespace", namespace)),
	}
}

func (f *Flags) key(name string) string { return f.ns + name }

// ensure stamps the namespace's schema marker, clearing consent written by
// a newer build.
func (f *Flags) ensure(ctx context.Context) {
	f.guard.EnsureVersion(ctx, schema.KeyMarker{Store: f.kv, Key: f.key("schema_version")}, func(ctx context.Context) error {
		_, err := store.RemovePrefix(ctx, f.kv, f.ns)
		return err
	})
}

// Granted reports whether consent is on. Unreadable or mistyped values read
// as not granted.
func (f *Flags) Granted(ctx context.Context) bool {
	f.ensure(ctx)
	v, _, err := f.kv.GetBool(ctx, f.key("granted"))
	if err != nil {
		f.log.Warn("consent flag unreadable, treating as not granted", zap.Error(err))
		return false
	}
	return v
}

// GrantedAt returns when consent was last granted.
func (f *Flags) GrantedAt(ctx context.Context) (time.Time, bool) {
	f.ensure(ctx)
	raw, ok, err := f.kv.GetString(ctx, f.key("granted_at"))
	if err != nil || !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Grant turns consent on.
func (f *Flags) Grant(ctx context.Context, at time.Time) {
	f.ensure(ctx)
	if err := f.kv.SetBool(ctx, f.key("granted"), true); err != nil {
		f.log.Error("grant consent", zap.Error(err))
		return
	}
	if err := f.kv.SetString(ctx, f.key("granted_at"), at.UTC().Format(time.RFC3339Nano)); err != nil {
		f.log.Error("record consent time", zap.Error(err))
	}
}

// Revoke turns consent off and forgets the stored address.
func (f *Flags) Revoke(ctx context.Context) {
	f.ensure(ctx)
	if err := f.kv.SetBool(ctx, f.key("granted"), false); err != nil {
		f.log.Error("revoke consent", zap.Error(err))
	}
	for _, name := range []string{"email", "granted_at"} {
		if _, err := f.kv.Remove(ctx, f.key(name)); err != nil {
			f.log.Error("remove consent field", zap.String("key", f.key(name)), zap.Error(err))
		}
	}
}

// Email returns the stored address.
func (f *Flags) Email(ctx context.Context) (string, bool) {
	f.ensure(ctx)
	v, ok, err := f.kv.GetString(ctx, f.key("email"))
	if err != nil {
		f.log.Warn("email unreadable", zap.Error(err))
		return "", false
	}
	return v, ok
}

// SetEmail stores the address. Consent must already be granted.
func (f *Flags) SetEmail(ctx context.Context, email string) error {
	if !f.Granted(ctx) {
		return ErrConsentRequired
	}
	email = strings.TrimSpace(email)
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	if err := f.kv.SetString(ctx, f.key("email"), email); err != nil {
		f.log.Error("store email", zap.Error(err))
	}
	return nil
}
