// Package auth signs users in through GitHub or an OpenID Connect provider
// and issues the bearer tokens the API accepts.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"design-studio/core"
)

const stateCookie = "oauth_state"

// provider turns an authorization code into a user.
type provider interface {
	config() *oauth2.Config
	user(ctx context.Context, token *oauth2.Token) (*core.User, error)
}

var (
	active      provider
	frontendURL = "/"
)

// OIDCClaims represents the claims from OIDC token
type OIDCClaims struct {
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Picture           string `json:"picture"`
	Sub               string `json:"sub"`
}

// InitAuth reads the signing secret and the login provider from the
// environment. OIDC wins when both providers are configured.
func InitAuth(ctx context.Context) {
	SetSecret([]byte(os.Getenv("JWT_SECRET")))
	if len(jwtSecret) == 0 {
		logrus.Warn("JWT_SECRET is not set. Authentication will not work.")
	}
	if u := os.Getenv("FRONTEND_URL"); u != "" {
		frontendURL = u
	}

	switch {
	case os.Getenv("OIDC_ISSUER_URL") != "" && os.Getenv("OIDC_CLIENT_ID") != "":
		p, err := newOIDC(ctx, os.Getenv("OIDC_ISSUER_URL"), os.Getenv("OIDC_CLIENT_ID"),
			os.Getenv("OIDC_CLIENT_SECRET"), os.Getenv("OIDC_REDIRECT_URL"))
		if err != nil {
			logrus.WithError(err).Error("Failed to initialize OIDC provider")
			return
		}
		active = p
		logrus.Info("OIDC authentication provider initialized")
	case os.Getenv("GITHUB_CLIENT_ID") != "" && os.Getenv("GITHUB_CLIENT_SECRET") != "":
		active = newGitHub(os.Getenv("GITHUB_CLIENT_ID"), os.Getenv("GITHUB_CLIENT_SECRET"),
			os.Getenv("GITHUB_REDIRECT_URL"), "https://api.github.com/user")
		logrus.Info("GitHub authentication provider initialized")
	default:
		logrus.Warn("No authentication provider configured.")
	}
}

func HandleLogin(w http.ResponseWriter, r *http.Request) {
	if active == nil {
		http.Error(w, "Authentication not configured", http.StatusInternalServerError)
		return
	}

	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		http.Error(w, "Failed to generate login state", http.StatusInternalServerError)
		return
	}
	state := hex.EncodeToString(b)
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Secure:   r.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, active.config().AuthCodeURL(state, oauth2.AccessTypeOnline), http.StatusTemporaryRedirect)
}

// HandleCallback finishes the login and redirects to the frontend with the
// token in the query string. Failures redirect without one.
func HandleCallback(w http.ResponseWriter, r *http.Request) {
	if active == nil {
		http.Error(w, "Authentication not configured", http.StatusInternalServerError)
		return
	}

	cookie, err := r.Cookie(stateCookie)
	state := r.FormValue("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(state)) != 1 {
		logrus.Warn("Login callback with missing or mismatched state")
		http.Redirect(w, r, frontendURL, http.StatusTemporaryRedirect)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/", MaxAge: -1})

	code := r.FormValue("code")
	if code == "" {
		logrus.Error("no code in callback")
		http.Redirect(w, r, frontendURL, http.StatusTemporaryRedirect)
		return
	}
	token, err := active.config().Exchange(r.Context(), code)
	if err != nil {
		logrus.Errorf("failed to exchange token: %s", err.Error())
		http.Redirect(w, r, frontendURL, http.StatusTemporaryRedirect)
		return
	}
	user, err := active.user(r.Context(), token)
	if err != nil {
		logrus.Errorf("failed to load user: %s", err.Error())
		http.Redirect(w, r, frontendURL, http.StatusTemporaryRedirect)
		return
	}

	jwtToken, err := CreateJWT(user)
	if err != nil {
		logrus.Errorf("failed to create JWT: %s", err.Error())
		http.Redirect(w, r, frontendURL, http.StatusTemporaryRedirect)
		return
	}
	logrus.WithField("subject", user.Subject).Info("User signed in")
	http.Redirect(w, r, withToken(frontendURL, jwtToken), http.StatusTemporaryRedirect)
}

func withToken(base, token string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "token=" + url.QueryEscape(token)
}

type githubProvider struct {
	oauth   *oauth2.Config
	userURL string
}

func newGitHub(clientID, clientSecret, redirectURL, userURL string) *githubProvider {
	return &githubProvider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		},
		userURL: userURL,
	}
}

func (g *githubProvider) config() *oauth2.Config { return g.oauth }

func (g *githubProvider) user(ctx context.Context, token *oauth2.Token) (*core.User, error) {
	resp, err := g.oauth.Client(ctx, token).Get(g.userURL)
	if err != nil {
		return nil, fmt.Errorf("get user from github: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get user from github: status %d", resp.StatusCode)
	}

	var githubUser struct {
		ID        int64  `json:"id"`
		Login     string `json:"login"`
		Email     string `json:"email"`
		AvatarURL string `json:"avatar_url"`
		Name      string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&githubUser); err != nil {
		return nil, fmt.Errorf("decode github user: %w", err)
	}
	return &core.User{
		Subject:   fmt.Sprintf("github:%d", githubUser.ID),
		Login:     githubUser.Login,
		Email:     githubUser.Email,
		AvatarURL: githubUser.AvatarURL,
		Name:      githubUser.Name,
		CreatedAt: time.Now(),
	}, nil
}

type oidcProvider struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
}

func newOIDC(ctx context.Context, issuer, clientID, clientSecret, redirectURL string) (*oidcProvider, error) {
	p, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, err
	}
	return &oidcProvider{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
			Endpoint:     p.Endpoint(),
		},
		verifier: p.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (o *oidcProvider) config() *oauth2.Config { return o.oauth }

func (o *oidcProvider) user(ctx context.Context, token *oauth2.Token) (*core.User, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("no id_token in token response")
	}
	idToken, err := o.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id token: %w", err)
	}
	var claims OIDCClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("extract id token claims: %w", err)
	}

	user := &core.User{
		Subject:   claims.Sub,
		Login:     claims.PreferredUsername,
		Email:     claims.Email,
		AvatarURL: claims.Picture,
		Name:      claims.Name,
		CreatedAt: time.Now(),
	}
	// If preferred_username is not available, use email
	if user.Login == "" {
		user.Login = user.Email
	}
	return user, nil
}
