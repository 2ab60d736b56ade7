package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
)

const (
	loginFailedMessage    = "Authentication failed. Please check your credentials and try again."
	refreshFailedMessage  = "Session expired. Please login again."
	defaultTokenType      = "Bearer"
	defaultOAuthClientID  = "test-client"
	defaultOAuthSecretKey = "test-secret"
)

// OAuthConfig describes the upstream token endpoint.
type OAuthConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	// HTTPClient performs the token exchange; nil uses http.DefaultClient.
	HTTPClient *http.Client
}

// OAuthRefresher performs password and refresh_token grants against a form-encoded
// token endpoint, sending the client credentials in the request body.
type OAuthRefresher struct {
	cfg        oauth2.Config
	httpClient *http.Client
	tokens     TokenStore
}

// NewOAuthRefresher builds a refresher. Tokens obtained through Login are written to tokens.
func NewOAuthRefresher(cfg OAuthConfig, tokens TokenStore) *OAuthRefresher {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		clientID = defaultOAuthClientID
	}
	secret := cfg.ClientSecret
	if secret == "" {
		secret = defaultOAuthSecretKey
	}
	return &OAuthRefresher{
		cfg: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: secret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		httpClient: cfg.HTTPClient,
		tokens:     tokens,
	}
}

// Login exchanges credentials for a token pair and stores it.
func (o *OAuthRefresher) Login(ctx context.Context, username, password string) (TokenPair, error) {
	tok, err := o.cfg.PasswordCredentialsToken(o.withClient(ctx), username, password)
	if err != nil {
		log.WithError(err).Warn("oauth: password grant failed")
		return TokenPair{}, exchangeError(KindAuthRequired, loginFailedMessage, err)
	}
	pair := pairFromToken(tok)
	if o.tokens != nil {
		o.tokens.SetPair(pair)
	}
	return pair, nil
}

// Refresh performs a refresh_token grant. The caller decides where to store the result.
func (o *OAuthRefresher) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if refreshToken == "" {
		return TokenPair{}, newError(KindAuthRequired, http.StatusUnauthorized, "", errNoRefreshToken)
	}
	src := o.cfg.TokenSource(o.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return TokenPair{}, exchangeError(KindAuthExpired, refreshFailedMessage, err)
	}
	return pairFromToken(tok), nil
}

func (o *OAuthRefresher) withClient(ctx context.Context) context.Context {
	if o.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
}

func exchangeError(kind Kind, message string, err error) *Error {
	status := http.StatusUnauthorized
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= http.StatusInternalServerError {
		return newError(KindServer, retrieveErr.Response.StatusCode, "", err)
	}
	if !errors.As(err, &retrieveErr) {
		if errors.Is(err, context.DeadlineExceeded) {
			return newError(KindTimeout, 0, "", err)
		}
		if errors.Is(err, context.Canceled) {
			return newError(KindCancelled, 0, "", err)
		}
		return newError(KindNetwork, 0, "", err)
	}
	return newError(kind, status, message, err)
}

func pairFromToken(tok *oauth2.Token) TokenPair {
	if tok == nil {
		return TokenPair{}
	}
	pair := TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
	}
	if pair.TokenType == "" {
		pair.TokenType = defaultTokenType
	}
	if !tok.Expiry.IsZero() {
		if remaining := time.Until(tok.Expiry).Round(time.Second); remaining > 0 {
			pair.ExpiresIn = int(remaining / time.Second)
		}
	}
	return pair
}
