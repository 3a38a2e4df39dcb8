// Copyright IBM Corp. 2020, 2025
// SPDX-License-Identifier: MPL-2.0

package oidc

import (
	"bytes"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/stretchr/testify/require"
)

const (
	// TestClientID is the default client id accepted by the TestProvider
	TestClientID = "test-client-id"

	// TestClientSecret is the default client secret accepted by the
	// TestProvider
	TestClientSecret = "test-client-secret"

	// TestAuthCode is the default authorization code accepted by the
	// TestProvider
	TestAuthCode = "test-auth-code"

	// TestAccessToken is the default access token issued by the TestProvider
	// and required by its Graph endpoints
	TestAccessToken = "test-access-token"
)

// TestProvider is a local TLS server emulating the Microsoft Entra v2.0
// endpoints and the Microsoft Graph endpoints used by FetchClaims.  Every
// tenant path is accepted.
//
//	/{tenant}/v2.0/.well-known/openid-configuration
//	/{tenant}/oauth2/v2.0/authorize
//	/{tenant}/oauth2/v2.0/token
//	/{tenant}/oauth2/v2.0/logout
//	/{tenant}/discovery/v2.0/keys
//	/v1.0/me
//	/v1.0/me/photo/$value
//	/v1.0/users/{id}
type TestProvider struct {
	httpServer *httptest.Server
	caCert     string

	mu                  sync.Mutex
	clientID            string
	clientSecret        string
	expectedAuthCode    string
	allowedRedirectURIs []string
	accessToken         string
	idTokenNonce        string
	omitIDToken         bool
	codeChallenge       string
	tokenErrorCode      string
	tokenErrorDesc      string
	tokenStatus         int
	user                map[string]interface{}
	userStatus          int
	mailVerified        *bool
	photo               []byte
	graphDelay          time.Duration
	tokenRequests       int

	ecdsaPublicKey  string
	ecdsaPrivateKey string

	t *testing.T
}

// StartTestProvider creates a disposable TestProvider which is stopped when
// the test completes.
func StartTestProvider(t *testing.T) *TestProvider {
	t.Helper()
	require := require.New(t)

	verified := true
	p := &TestProvider{
		clientID:         TestClientID,
		clientSecret:     TestClientSecret,
		expectedAuthCode: TestAuthCode,
		accessToken:      TestAccessToken,
		user:             TestClaims(),
		userStatus:       http.StatusOK,
		mailVerified:     &verified,
		photo:            []byte("foo"),
		t:                t,
	}
	p.ecdsaPublicKey, p.ecdsaPrivateKey = TestGenerateKeys(t)

	p.httpServer = httptest.NewUnstartedServer(p)
	p.httpServer.Config.ErrorLog = log.New(io.Discard, "", 0)
	p.httpServer.StartTLS()
	t.Cleanup(p.httpServer.Close)

	var buf bytes.Buffer
	err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: p.httpServer.Certificate().Raw})
	require.NoError(err)
	p.caCert = buf.String()
	return p
}

// Stop stops the running TestProvider.
func (p *TestProvider) Stop() {
	p.httpServer.Close()
}

// Addr returns the base URL of the test provider; it is also the Graph URL.
func (p *TestProvider) Addr() string { return p.httpServer.URL }

// Authority returns the authority URL of the "common" tenant.
func (p *TestProvider) Authority() string { return p.Addr() + "/" + DefaultTenant }

// CACert returns the pem-encoded CA certificate used by the test provider's
// HTTPS server.
func (p *TestProvider) CACert() string { return p.caCert }

// TestConfig returns a Config for the test provider.
func (p *TestProvider) TestConfig(opt ...Option) *Config {
	p.t.Helper()
	p.mu.Lock()
	id, secret := p.clientID, p.clientSecret
	p.mu.Unlock()
	opt = append([]Option{WithGraphURL(p.Addr()), WithProviderCA(p.CACert())}, opt...)
	c, err := NewConfig(id, ClientSecret(secret), p.Authority(), opt...)
	require.NoError(p.t, err)
	return c
}

// SigningKeys returns the pem-encoded key pair which signs the id_tokens.
func (p *TestProvider) SigningKeys() (pub, priv string) {
	return p.ecdsaPublicKey, p.ecdsaPrivateKey
}

// SetClientCreds configures the client credentials the token endpoint
// accepts.
func (p *TestProvider) SetClientCreds(clientID, clientSecret string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clientID = clientID
	p.clientSecret = clientSecret
}

// SetExpectedAuthCode configures the code returned from authorize and
// accepted by the token endpoint.
func (p *TestProvider) SetExpectedAuthCode(code string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.expectedAuthCode = code
}

// SetAllowedRedirectURIs restricts the redirect URIs accepted by the token
// endpoint.  Empty allows any.
func (p *TestProvider) SetAllowedRedirectURIs(uris []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.allowedRedirectURIs = uris
}

// SetIDTokenNonce sets the nonce claim of issued id_tokens.  The authorize
// endpoint also records the nonce it is sent.
func (p *TestProvider) SetIDTokenNonce(nonce string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idTokenNonce = nonce
}

// OmitIDTokens makes the token endpoint return no id_token.
func (p *TestProvider) OmitIDTokens() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.omitIDToken = true
}

// SetTokenError makes the token endpoint reply with an oauth error.  An empty
// code restores successful replies.
func (p *TestProvider) SetTokenError(status int, code, description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokenStatus = status
	p.tokenErrorCode = code
	p.tokenErrorDesc = description
}

// SetUser sets the /me document and its status code.
func (p *TestProvider) SetUser(status int, user map[string]interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userStatus = status
	p.user = user
}

// SetMailVerified sets the mailVerified flag; nil makes /users/{id} fail.
func (p *TestProvider) SetMailVerified(v *bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mailVerified = v
}

// SetPhoto sets the profile photo; nil makes the photo endpoint return 404.
func (p *TestProvider) SetPhoto(b []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.photo = b
}

// SetGraphDelay delays every Graph response by d.
func (p *TestProvider) SetGraphDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.graphDelay = d
}

// TokenRequests returns the number of token endpoint requests served.
func (p *TestProvider) TokenRequests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokenRequests
}

func (p *TestProvider) writeJSON(w http.ResponseWriter, status int, out interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(out)
}

func (p *TestProvider) writeAuthErrorResponse(w http.ResponseWriter, req *http.Request, errorCode, errorMessage string) {
	qv := req.URL.Query()
	v := url.Values{"state": {qv.Get("state")}, "error": {errorCode}}
	if errorMessage != "" {
		v.Set("error_description", errorMessage)
	}
	http.Redirect(w, req, qv.Get("redirect_uri")+"?"+v.Encode(), http.StatusFound)
}

func (p *TestProvider) writeTokenErrorResponse(w http.ResponseWriter, statusCode int, errorCode, errorMessage string) {
	body := struct {
		Code string `json:"error"`
		Desc string `json:"error_description,omitempty"`
	}{
		Code: errorCode,
		Desc: errorMessage,
	}
	p.writeJSON(w, statusCode, &body)
}

func (p *TestProvider) writeGraphError(w http.ResponseWriter, status int, code, message string) {
	body := map[string]interface{}{
		"error": map[string]string{"code": code, "message": message},
	}
	p.writeJSON(w, status, body)
}

// ServeHTTP implements the test provider's http.Handler.
func (p *TestProvider) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if strings.HasPrefix(req.URL.Path, "/v1.0/") {
		p.mu.Lock()
		delay := p.graphDelay
		p.mu.Unlock()
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-req.Context().Done():
				return
			}
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	path := req.URL.Path
	switch {
	case strings.HasSuffix(path, "/v2.0/.well-known/openid-configuration"):
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		tenant := p.Addr() + strings.TrimSuffix(path, "/v2.0/.well-known/openid-configuration")
		reply := struct {
			Issuer             string `json:"issuer"`
			AuthEndpoint       string `json:"authorization_endpoint"`
			TokenEndpoint      string `json:"token_endpoint"`
			JWKSURI            string `json:"jwks_uri"`
			EndSessionEndpoint string `json:"end_session_endpoint"`
		}{
			Issuer:             p.Addr() + "/{tenantid}/v2.0",
			AuthEndpoint:       tenant + "/oauth2/v2.0/authorize",
			TokenEndpoint:      tenant + "/oauth2/v2.0/token",
			JWKSURI:            tenant + "/discovery/v2.0/keys",
			EndSessionEndpoint: tenant + "/oauth2/v2.0/logout",
		}
		p.writeJSON(w, http.StatusOK, &reply)

	case strings.HasSuffix(path, "/discovery/v2.0/keys"):
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		block, _ := pem.Decode([]byte(p.ecdsaPublicKey))
		require.NotNil(p.t, block)
		pub, err := x509.ParsePKIXPublicKey(block.Bytes)
		require.NoError(p.t, err)
		p.writeJSON(w, http.StatusOK, &jose.JSONWebKeySet{Keys: []jose.JSONWebKey{
			{Key: pub, KeyID: "test-key", Algorithm: string(jose.ES256), Use: "sig"},
		}})

	case strings.HasSuffix(path, "/oauth2/v2.0/authorize"):
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		qv := req.URL.Query()
		switch {
		case qv.Get("response_type") != "code":
			p.writeAuthErrorResponse(w, req, "unsupported_response_type", "")
			return
		case qv.Get("client_id") != p.clientID:
			p.writeAuthErrorResponse(w, req, "unauthorized_client", "unknown client")
			return
		case qv.Get("state") == "":
			p.writeAuthErrorResponse(w, req, "invalid_request", "missing state parameter")
			return
		case qv.Get("redirect_uri") == "":
			w.WriteHeader(http.StatusBadRequest)
			return
		case p.expectedAuthCode == "":
			p.writeAuthErrorResponse(w, req, "access_denied", "")
			return
		}
		p.idTokenNonce = qv.Get("nonce")
		if qv.Get("code_challenge_method") == "S256" {
			p.codeChallenge = qv.Get("code_challenge")
		}
		v := url.Values{"state": {qv.Get("state")}, "code": {p.expectedAuthCode}}
		http.Redirect(w, req, qv.Get("redirect_uri")+"?"+v.Encode(), http.StatusFound)

	case strings.HasSuffix(path, "/oauth2/v2.0/token"):
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		p.tokenRequests++
		if p.tokenErrorCode != "" {
			p.writeTokenErrorResponse(w, p.tokenStatus, p.tokenErrorCode, p.tokenErrorDesc)
			return
		}
		switch {
		case req.FormValue("grant_type") != "authorization_code":
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "unsupported_grant_type", "bad grant_type")
			return
		case req.FormValue("client_id") != p.clientID || req.FormValue("client_secret") != p.clientSecret:
			p.writeTokenErrorResponse(w, http.StatusUnauthorized, "invalid_client", "AADSTS7000215: Invalid client secret provided.")
			return
		case len(p.allowedRedirectURIs) > 0 && !contains(p.allowedRedirectURIs, req.FormValue("redirect_uri")):
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_request", "redirect_uri is not allowed")
			return
		case req.FormValue("code") != p.expectedAuthCode:
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "unexpected auth code")
			return
		case p.codeChallenge != "" && s256(req.FormValue("code_verifier")) != p.codeChallenge:
			p.writeTokenErrorResponse(w, http.StatusBadRequest, "invalid_grant", "code_verifier does not match the code_challenge")
			return
		}
		reply := struct {
			AccessToken string `json:"access_token"`
			TokenType   string `json:"token_type"`
			ExpiresIn   int    `json:"expires_in"`
			Scope       string `json:"scope"`
			IDToken     string `json:"id_token,omitempty"`
		}{
			AccessToken: p.accessToken,
			TokenType:   "Bearer",
			ExpiresIn:   3600,
			Scope:       req.FormValue("scope"),
		}
		if !p.omitIDToken {
			now := time.Now()
			std := jwt.Claims{
				Subject:   "AAAAAAAAAAAAAAAAAAAAAIkzqFVrSaSaFHy782bbtaQ",
				Issuer:    p.Addr() + "/9188040d-6c67-4c5b-b112-36a304b66dad/v2.0",
				Audience:  jwt.Audience{p.clientID},
				IssuedAt:  jwt.NewNumericDate(now),
				NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
				Expiry:    jwt.NewNumericDate(now.Add(time.Hour)),
			}
			private := map[string]interface{}{
				"preferred_username": p.user["userPrincipalName"],
				"name":               p.user["displayName"],
			}
			if p.idTokenNonce != "" {
				private["nonce"] = p.idTokenNonce
			}
			reply.IDToken = TestSignJWT(p.t, p.ecdsaPrivateKey, std, private)
		}
		p.writeJSON(w, http.StatusOK, &reply)

	case strings.HasSuffix(path, "/oauth2/v2.0/logout"):
		target := req.URL.Query().Get("post_logout_redirect_uri")
		if target == "" {
			w.WriteHeader(http.StatusOK)
			return
		}
		http.Redirect(w, req, target, http.StatusFound)

	case strings.HasPrefix(path, "/v1.0/"):
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if req.Header.Get("Authorization") != "Bearer "+p.accessToken {
			p.writeGraphError(w, http.StatusUnauthorized, "InvalidAuthenticationToken", "Access token is empty.")
			return
		}
		switch {
		case path == "/v1.0/me":
			if p.userStatus != http.StatusOK {
				p.writeGraphError(w, p.userStatus, "Request_ResourceNotFound", "Resource does not exist.")
				return
			}
			p.writeJSON(w, http.StatusOK, p.user)
		case path == "/v1.0/me/photo/$value":
			if p.photo == nil {
				p.writeGraphError(w, http.StatusNotFound, "ImageNotFound", "Exception of type 'Microsoft.Fast.Profile.Core.Exception.ImageNotFoundException' was thrown.")
				return
			}
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write(p.photo)
		case strings.HasPrefix(path, "/v1.0/users/"):
			if p.mailVerified == nil || req.URL.Query().Get("$select") != "mailVerified" {
				p.writeGraphError(w, http.StatusBadRequest, "BadRequest", "Could not find a property named 'mailVerified'.")
				return
			}
			p.writeJSON(w, http.StatusOK, map[string]interface{}{"mailVerified": *p.mailVerified})
		default:
			w.WriteHeader(http.StatusNotFound)
		}

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func s256(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func contains(l []string, s string) bool {
	for _, e := range l {
		if e == s {
			return true
		}
	}
	return false
}
