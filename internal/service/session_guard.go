package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/iliyamo/storefront-session/internal/model"
	"github.com/iliyamo/storefront-session/internal/queue"
	"github.com/iliyamo/storefront-session/internal/repository"
	"github.com/iliyamo/storefront-session/internal/utils"
)

// AccountStore is the part of the credential store that creates and reads
// accounts.
type AccountStore interface {
	Insert(ctx context.Context, identity, passwordHash, role string) (uint64, error)
	FindByIdentity(ctx context.Context, identity string) (model.Account, error)
	FindByID(ctx context.Context, id uint64) (model.Account, error)
}

// RefreshTokenStore is the part of the credential store that owns the
// per-account refresh token slot.
type RefreshTokenStore interface {
	SetRefreshToken(ctx context.Context, accountID uint64, tokenHash *string) error
	FindByRefreshToken(ctx context.Context, tokenHash string) (model.Account, error)
	ClearRefreshToken(ctx context.Context, tokenHash string) (bool, error)
}

// Merger reconciles anonymous client state into an account.
type Merger interface {
	Merge(ctx context.Context, accountID uint64, state model.AnonymousState) (MergeReport, error)
}

// EventPublisher receives audit events.  Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.AuthEvent) error
}

// LoginResult is what a successful login or registration hands back.
type LoginResult struct {
	Account        model.Account
	Access         utils.AccessToken
	Refresh        utils.RefreshToken
	Reconciliation Reconciliation
}

// Reconciliation reports the outcome of the login-time merge.  A failed
// merge does not undo the login: Applied is false, Err says why, and the
// client keeps its anonymous state so it can resubmit it.
type Reconciliation struct {
	Applied bool
	Report  MergeReport
	Err     error
}

// GuardDeps groups the collaborators of a SessionGuard.  Events may be nil.
type GuardDeps struct {
	Accounts AccountStore
	Tokens   RefreshTokenStore
	Issuer   *utils.TokenIssuer
	Hasher   *utils.PasswordHasher
	Merger   Merger
	Events   EventPublisher
	Log      zerolog.Logger
}

// SessionGuard authenticates requests, checks roles, and owns the session
// lifecycle: registration, login, refresh and logout.
//
// Refresh tokens are not rotated on refresh: the token issued at login stays
// valid until it expires or the account logs in or out again.  This keeps a
// single point of rotation (login) at the cost of a longer replay window for
// a stolen cookie.
type SessionGuard struct {
	accounts AccountStore
	tokens   RefreshTokenStore
	issuer   *utils.TokenIssuer
	hasher   *utils.PasswordHasher
	merger   Merger
	events   EventPublisher
	log      zerolog.Logger
	now      func() time.Time
}

func NewSessionGuard(d GuardDeps) *SessionGuard {
	return &SessionGuard{
		accounts: d.Accounts,
		tokens:   d.Tokens,
		issuer:   d.Issuer,
		hasher:   d.Hasher,
		merger:   d.Merger,
		events:   d.Events,
		log:      d.Log,
		now:      time.Now,
	}
}

const bearerPrefix = "Bearer "

// Authenticate validates an Authorization header value.  Every failure,
// from a missing header to an expired token, is the same ErrUnauthorized.
func (g *SessionGuard) Authenticate(header string) (*utils.Claims, error) {
	raw, ok := strings.CutPrefix(header, bearerPrefix)
	if !ok || raw == "" || strings.ContainsAny(raw, " \t") {
		return nil, ErrUnauthorized
	}
	claims, err := g.issuer.Verify(raw, utils.KindAccess)
	if err != nil {
		return nil, ErrUnauthorized
	}
	return claims, nil
}

// Authorize requires claims to carry exactly role.  An admin is not a user.
func (g *SessionGuard) Authorize(claims *utils.Claims, role string) error {
	if claims == nil {
		return ErrUnauthorized
	}
	if claims.Role != role {
		return ErrForbidden
	}
	return nil
}

// Register creates a user account and signs it in, merging anon.
func (g *SessionGuard) Register(ctx context.Context, c Credentials, anon model.AnonymousState) (LoginResult, error) {
	if err := c.validateNew(); err != nil {
		return LoginResult{}, invalid(err)
	}
	acct, err := g.create(ctx, c, model.RoleUser)
	if err != nil {
		return LoginResult{}, err
	}
	g.publish(ctx, queue.EventRegistered, acct)
	return g.startSession(ctx, acct, anon)
}

// CreateAdmin creates an admin account without signing it in.
func (g *SessionGuard) CreateAdmin(ctx context.Context, c Credentials) (model.Account, error) {
	if err := c.validateNew(); err != nil {
		return model.Account{}, invalid(err)
	}
	acct, err := g.create(ctx, c, model.RoleAdmin)
	if err != nil {
		return model.Account{}, err
	}
	g.publish(ctx, queue.EventRegistered, acct)
	return acct, nil
}

func (g *SessionGuard) create(ctx context.Context, c Credentials, role string) (model.Account, error) {
	hash, err := g.hasher.Hash(c.Password)
	if err != nil {
		return model.Account{}, fmt.Errorf("hash password: %w", err)
	}
	id, err := g.accounts.Insert(ctx, c.Identity, hash, role)
	if errors.Is(err, repository.ErrIdentityExists) {
		return model.Account{}, ErrConflict
	}
	if err != nil {
		return model.Account{}, fmt.Errorf("insert account: %w", err)
	}
	return model.Account{ID: id, Identity: c.Identity, PasswordHash: hash, Role: role, CreatedAt: g.now().UTC()}, nil
}

// Login verifies credentials, issues a token pair and merges anon.  A wrong
// password and an unknown identity fail identically and issue nothing.
func (g *SessionGuard) Login(ctx context.Context, c Credentials, anon model.AnonymousState) (LoginResult, error) {
	if err := c.Validate(); err != nil {
		return LoginResult{}, invalid(err)
	}
	acct, err := g.accounts.FindByIdentity(ctx, c.Identity)
	if errors.Is(err, repository.ErrNotFound) {
		g.hasher.Burn(c.Password)
		return LoginResult{}, ErrUnauthorized
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("find account: %w", err)
	}
	if !g.hasher.Verify(acct.PasswordHash, c.Password) {
		return LoginResult{}, ErrUnauthorized
	}
	res, err := g.startSession(ctx, acct, anon)
	if err != nil {
		return LoginResult{}, err
	}
	g.publish(ctx, queue.EventLoggedIn, acct)
	return res, nil
}

// startSession issues both tokens, stores the refresh token as the account's
// only live one, then runs reconciliation.  Anonymous state the merger
// rejects, invalid input included, is reported and does not undo the session.
func (g *SessionGuard) startSession(ctx context.Context, acct model.Account, anon model.AnonymousState) (LoginResult, error) {
	access, err := g.issuer.IssueAccessToken(acct)
	if err != nil {
		return LoginResult{}, err
	}
	refresh, err := g.issuer.IssueRefreshToken(acct)
	if err != nil {
		return LoginResult{}, err
	}
	hash := utils.HashRefreshRaw(refresh.Raw)
	if err := g.tokens.SetRefreshToken(ctx, acct.ID, &hash); err != nil {
		return LoginResult{}, fmt.Errorf("store refresh token: %w", err)
	}
	acct.RefreshToken = &hash

	res := LoginResult{Account: acct, Access: access, Refresh: refresh}
	report, err := g.merger.Merge(ctx, acct.ID, anon)
	if err != nil {
		g.log.Error().Err(err).Uint64("account_id", acct.ID).Msg("reconciliation failed")
		res.Reconciliation = Reconciliation{Err: err}
		return res, nil
	}
	res.Reconciliation = Reconciliation{Applied: true, Report: report}
	return res, nil
}

// Refresh exchanges a refresh token for a new access token.  The token must
// both verify and be the one stored on its account.  A stored token that
// no longer verifies is cleared, so a stale cookie cannot be replayed.
func (g *SessionGuard) Refresh(ctx context.Context, raw string) (utils.AccessToken, model.Account, error) {
	if raw == "" {
		return utils.AccessToken{}, model.Account{}, ErrNoRefreshToken
	}
	hash := utils.HashRefreshRaw(raw)
	acct, err := g.tokens.FindByRefreshToken(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return utils.AccessToken{}, model.Account{}, ErrInvalidRefreshToken
	}
	if err != nil {
		return utils.AccessToken{}, model.Account{}, fmt.Errorf("find refresh token: %w", err)
	}

	claims, err := g.issuer.Verify(raw, utils.KindRefresh)
	if err != nil || claims.AccountID != acct.ID {
		if _, cerr := g.tokens.ClearRefreshToken(ctx, hash); cerr != nil {
			return utils.AccessToken{}, model.Account{}, fmt.Errorf("clear refresh token: %w", cerr)
		}
		g.publish(ctx, queue.EventSessionExpired, acct)
		return utils.AccessToken{}, model.Account{}, ErrExpiredSession
	}

	// Claims come from the current row, so role changes apply immediately.
	access, err := g.issuer.IssueAccessToken(acct)
	if err != nil {
		return utils.AccessToken{}, model.Account{}, err
	}
	return access, acct, nil
}

// Logout clears the stored refresh token if raw is still the live token.  Unknown or
// empty tokens are not an error.
func (g *SessionGuard) Logout(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	hash := utils.HashRefreshRaw(raw)
	acct, err := g.tokens.FindByRefreshToken(ctx, hash)
	if errors.Is(err, repository.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find refresh token: %w", err)
	}
	cleared, err := g.tokens.ClearRefreshToken(ctx, hash)
	if err != nil {
		return fmt.Errorf("clear refresh token: %w", err)
	}
	if cleared {
		g.publish(ctx, queue.EventLoggedOut, acct)
	}
	return nil
}

// Sync merges anonymous state for an already signed-in account.  It is the
// retry path when the merge at login did not apply.
func (g *SessionGuard) Sync(ctx context.Context, accountID uint64, anon model.AnonymousState) (MergeReport, error) {
	return g.merger.Merge(ctx, accountID, anon)
}

func (g *SessionGuard) publish(ctx context.Context, typ string, acct model.Account) {
	if g.events == nil {
		return
	}
	ev := queue.AuthEvent{
		Type:       typ,
		AccountID:  acct.ID,
		Identity:   acct.Identity,
		Role:       acct.Role,
		OccurredAt: g.now().UTC().Format(time.RFC3339),
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := g.events.Publish(pctx, ev); err != nil {
		g.log.Warn().Err(err).Str("event", typ).Uint64("account_id", acct.ID).Msg("audit publish failed")
	}
}
