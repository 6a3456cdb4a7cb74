package mosdac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/italolelis/mosdac_downloader/internal/logctx"
	"github.com/italolelis/mosdac_downloader/internal/retry"
	"golang.org/x/oauth2"
)

// State is where an AuthSession sits in its lifecycle.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateAuthenticated   State = "authenticated"
	StateRefreshing      State = "refreshing"
	StateTokenExpired    State = "token_expired"
	StateLoggedOut       State = "logged_out"
)

const defaultLogoutTimeout = 5 * time.Second

// AuthSession owns the token pair for one run. It is the only writer of the
// tokens; downloads read the current access token through Token, which makes
// it usable as an oauth2.TokenSource.
type AuthSession struct {
	client        *Client
	creds         Credentials
	timer         retry.Timer
	logoutTimeout time.Duration

	mu      sync.RWMutex
	state   State
	session Session
}

var _ oauth2.TokenSource = (*AuthSession)(nil)

// AuthOption configures an AuthSession.
type AuthOption func(*AuthSession)

// WithTimer replaces the clock used between logout attempts.
func WithTimer(t retry.Timer) AuthOption {
	return func(a *AuthSession) {
		a.timer = t
	}
}

// WithLogoutTimeout bounds each individual logout request.
func WithLogoutTimeout(d time.Duration) AuthOption {
	return func(a *AuthSession) {
		a.logoutTimeout = d
	}
}

// NewAuthSession creates an unauthenticated session for creds.
func NewAuthSession(client *Client, creds Credentials, opts ...AuthOption) *AuthSession {
	a := &AuthSession{
		client:        client,
		creds:         creds,
		logoutTimeout: defaultLogoutTimeout,
		state:         StateUnauthenticated,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// State returns the current lifecycle state.
func (a *AuthSession) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.state
}

// Session returns a copy of the held token pair and whether one is held.
func (a *AuthSession) Session() (Session, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return a.session, a.session.AccessToken != ""
}

// Token implements oauth2.TokenSource.
func (a *AuthSession) Token() (*oauth2.Token, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.session.AccessToken == "" {
		return nil, ErrNotAuthenticated
	}

	return &oauth2.Token{
		AccessToken:  a.session.AccessToken,
		RefreshToken: a.session.RefreshToken,
		TokenType:    "Bearer",
	}, nil
}

// Login exchanges the credentials for a token pair.
func (a *AuthSession) Login(ctx context.Context) (Session, error) {
	logger := logctx.LoggerFromContext(ctx).With("operation", "login")

	body := map[string]string{
		"username": a.creds.Username,
		"password": a.creds.Password,
	}

	resp, err := a.client.postJSON(ctx, "gettoken", a.client.endpoints.url(tokenPath), body)
	if err != nil {
		if ctx.Err() != nil {
			return Session{}, ctx.Err()
		}

		return Session{}, &AuthError{Operation: "gettoken", Kind: AuthNetworkFailure, Message: err.Error(), Err: err}
	}

	status := resp.StatusCode()
	if status != http.StatusOK {
		apiErr := ParseAPIError(status, resp.Body())

		var kind AuthErrorKind

		switch status {
		case http.StatusBadRequest:
			kind = AuthValidation
		case http.StatusUnauthorized:
			kind = AuthInvalidCredentials
		default:
			kind = AuthServiceUnavailable
		}

		logger.Debug("login rejected", "status", status, "code", apiErr.Code)

		return Session{}, &AuthError{Operation: "gettoken", Kind: kind, Message: apiErr.Text(), Err: apiErr}
	}

	var tokens tokenResponse
	if err := json.Unmarshal(resp.Body(), &tokens); err != nil || tokens.AccessToken == "" {
		return Session{}, &AuthError{
			Operation: "gettoken",
			Kind:      AuthServiceUnavailable,
			Message:   "token response did not contain an access token",
			Err:       err,
		}
	}

	session := Session{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		Username:     a.creds.Username,
	}

	a.mu.Lock()
	a.session = session
	a.state = StateAuthenticated
	a.mu.Unlock()

	logger.Info("login successful", "username", a.creds.Username)

	return session, nil
}

// Refresh trades the refresh token for a new pair. Both tokens are replaced
// together. Any failure leaves the session in StateTokenExpired and is fatal
// for the run.
func (a *AuthSession) Refresh(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx).With("operation", "refresh")

	a.mu.Lock()
	refreshToken := a.session.RefreshToken
	a.state = StateRefreshing
	a.mu.Unlock()

	fail := func(msg string, err error) error {
		a.mu.Lock()
		a.state = StateTokenExpired
		a.mu.Unlock()

		logger.Error("token refresh failed", "reason", msg)

		return &AuthError{Operation: "refresh-token", Kind: AuthInvalidRefreshToken, Message: msg, Err: err}
	}

	if refreshToken == "" {
		return fail("no refresh token held", ErrNotAuthenticated)
	}

	body := map[string]string{"refresh_token": refreshToken}

	resp, err := a.client.postJSON(ctx, "refresh_token", a.client.endpoints.url(refreshPath), body)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return fail(err.Error(), err)
	}

	if resp.StatusCode() != http.StatusOK {
		apiErr := ParseAPIError(resp.StatusCode(), resp.Body())

		return fail(apiErr.Text(), apiErr)
	}

	var tokens tokenResponse
	if err := json.Unmarshal(resp.Body(), &tokens); err != nil || tokens.AccessToken == "" || tokens.RefreshToken == "" {
		return fail("refresh response did not contain a token pair", err)
	}

	a.mu.Lock()
	a.session.AccessToken = tokens.AccessToken
	a.session.RefreshToken = tokens.RefreshToken
	a.state = StateAuthenticated
	a.mu.Unlock()

	logger.Info("access token refreshed")

	return nil
}

// Logout ends the server-side session. It is best effort: failures are
// logged and never returned. Connection failures are retried on the logout
// schedule; any HTTP answer ends the attempts. Calling Logout a second time
// does nothing.
func (a *AuthSession) Logout(ctx context.Context) {
	logger := logctx.LoggerFromContext(ctx).With("operation", "logout")

	a.mu.Lock()
	if a.state == StateLoggedOut {
		a.mu.Unlock()

		return
	}

	username := a.session.Username
	if username == "" {
		username = a.creds.Username
	}
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.session = Session{}
		a.state = StateLoggedOut
		a.mu.Unlock()
	}()

	body := map[string]string{"username": username}

	notify := func(err error, wait time.Duration) {
		logger.Warn("logout attempt failed, retrying", "error", err, "wait", wait)
	}

	err := retry.Do(ctx, retry.LogoutPolicy(), a.timer, notify, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, a.logoutTimeout)
		defer cancel()

		resp, err := a.client.postJSON(attemptCtx, "logout", a.client.endpoints.url(logoutPath), body)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(ctx.Err())
			}

			return err
		}

		if resp.StatusCode() != http.StatusOK {
			return retry.Permanent(ParseAPIError(resp.StatusCode(), resp.Body()))
		}

		return nil
	})
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			logger.Error("logout rejected", "status", apiErr.StatusCode, "error", apiErr.Text())

			return
		}

		logger.Error("logout failed", "error", fmt.Errorf("giving up after retries: %w", err))

		return
	}

	logger.Info("logout successful", "username", username)
}
