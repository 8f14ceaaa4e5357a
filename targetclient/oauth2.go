package targetclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// tokenManager owns the current token. mutex guards token reads and writes;
// refreshMutex is held across a refresh and its updater call, so at most one
// refresh is in flight and waiting callers pick up its result.
type tokenManager struct {
	config     *oauth2.Config
	httpClient *http.Client
	updater    func(*oauth2.Token)
	logger     *slog.Logger

	refreshMutex sync.Mutex

	mutex sync.Mutex
	token *oauth2.Token
}

// currentToken returns the token without refreshing it.
func (tm *tokenManager) currentToken() *oauth2.Token {
	tm.mutex.Lock()
	defer tm.mutex.Unlock()
	return tm.token
}

// getValidToken returns a valid access token, refreshing if necessary.
// It returns nil when the client has no token at all.
func (tm *tokenManager) getValidToken(ctx context.Context) (*oauth2.Token, error) {
	if tok := tm.currentToken(); tok == nil || tok.Valid() {
		return tok, nil
	}

	tm.refreshMutex.Lock()
	defer tm.refreshMutex.Unlock()

	// Another caller may have refreshed while we waited.
	tok := tm.currentToken()
	if tok == nil || tok.Valid() {
		return tok, nil
	}
	return tm.refresh(ctx, tok)
}

// refreshToken replaces a token the server rejected. If stale was already
// replaced by another caller, the replacement is returned without a new refresh.
func (tm *tokenManager) refreshToken(ctx context.Context, stale *oauth2.Token) (*oauth2.Token, error) {
	tm.refreshMutex.Lock()
	defer tm.refreshMutex.Unlock()

	tok := tm.currentToken()
	if tok == nil {
		return nil, &APIError{Kind: KindAuth, Status: http.StatusUnauthorized, Message: "no token to refresh"}
	}
	if tok.AccessToken != stale.AccessToken {
		return tok, nil
	}
	return tm.refresh(ctx, tok)
}

// refresh runs the refresh_token grant for current. Caller holds refreshMutex.
func (tm *tokenManager) refresh(ctx context.Context, current *oauth2.Token) (*oauth2.Token, error) {
	if current.RefreshToken == "" {
		return nil, &APIError{
			Kind:    KindAuth,
			Status:  http.StatusUnauthorized,
			Message: "token expired and no refresh token is set",
		}
	}

	// Force the refresher past its validity check.
	expired := *current
	expired.Expiry = time.Unix(1, 0)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, tm.httpClient)
	tok, err := tm.config.TokenSource(ctx, &expired).Token()
	if err != nil {
		return nil, refreshError(err)
	}

	tm.logger.Info("token refreshed", "token_url", tm.config.Endpoint.TokenURL, "expiry", tok.Expiry)

	tm.mutex.Lock()
	tm.token = tok
	tm.mutex.Unlock()

	tm.notify(tok)
	return tok, nil
}

// notify hands tok to the updater. It runs without mutex so the updater may
// read the client's token.
func (tm *tokenManager) notify(tok *oauth2.Token) {
	if tm.updater == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			tm.logger.Warn("token updater panicked", "panic", r)
		}
	}()
	tm.updater(tok)
}

func refreshError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		message := retrieveErr.ErrorCode
		if message == "" {
			message = "failed to refresh token"
		}
		return &APIError{
			Kind:    KindAuth,
			Status:  http.StatusUnauthorized,
			Message: message,
			Body:    retrieveErr.Body,
			Err:     err,
		}
	}
	return &APIError{
		Kind:    KindAuth,
		Status:  http.StatusUnauthorized,
		Message: "failed to refresh token",
		Err:     fmt.Errorf("token endpoint: %w", err),
	}
}
