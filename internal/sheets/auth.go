package sheets

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	sheetsScope  = "https://www.googleapis.com/auth/spreadsheets"
	jwtGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// Credentials is the service-account material needed to mint access tokens.
type Credentials struct {
	ClientEmail string
	PrivateKey  string // PEM-encoded RSA key
	TokenURI    string // defaults to Google's token endpoint
}

func (c Credentials) complete() bool {
	return strings.TrimSpace(c.ClientEmail) != "" && strings.TrimSpace(c.PrivateKey) != ""
}

type tokenSource interface {
	Token(ctx context.Context) (string, error)
}

// jwtSource exchanges a signed service-account JWT for a bearer token and
// caches it until shortly before expiry.
type jwtSource struct {
	creds Credentials
	http  *http.Client
	key   *rsa.PrivateKey

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newJWTSource(creds Credentials, httpc *http.Client) (*jwtSource, error) {
	key, err := parseRSAKey(creds.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("service account key: %w", err)
	}
	if strings.TrimSpace(creds.TokenURI) == "" {
		creds.TokenURI = "https://oauth2.googleapis.com/token"
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	return &jwtSource{creds: creds, http: httpc, key: key}, nil
}

func parseRSAKey(pemData string) (*rsa.PrivateKey, error) {
	// Railway-style env vars carry the key with literal "\n" sequences.
	pemData = strings.ReplaceAll(pemData, `\n`, "\n")
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block found")
	}
	if k, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rk, ok := k.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not RSA")
		}
		return rk, nil
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

func (s *jwtSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && time.Now().Before(s.expires.Add(-time.Minute)) {
		return s.token, nil
	}

	assertion, err := s.signAssertion(time.Now())
	if err != nil {
		return "", err
	}

	form := url.Values{
		"grant_type": {jwtGrantType},
		"assertion":  {assertion},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.creds.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
		Error       string `json:"error"`
		ErrorDesc   string `json:"error_description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("token response: %w", err)
	}
	if resp.StatusCode/100 != 2 || out.AccessToken == "" {
		if out.Error != "" {
			return "", fmt.Errorf("token exchange failed: %s (%s)", out.Error, out.ErrorDesc)
		}
		return "", fmt.Errorf("token exchange failed: http=%d", resp.StatusCode)
	}

	s.token = out.AccessToken
	ttl := time.Duration(out.ExpiresIn) * time.Second
	if ttl <= 0 {
		ttl = time.Hour
	}
	s.expires = time.Now().Add(ttl)
	return s.token, nil
}

func (s *jwtSource) signAssertion(now time.Time) (string, error) {
	b64 := base64.RawURLEncoding

	header, _ := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT"})
	claims, _ := json.Marshal(map[string]any{
		"iss":   s.creds.ClientEmail,
		"scope": sheetsScope,
		"aud":   s.creds.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})

	signing := b64.EncodeToString(header) + "." + b64.EncodeToString(claims)
	digest := sha256.Sum256([]byte(signing))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign assertion: %w", err)
	}
	return signing + "." + b64.EncodeToString(sig), nil
}

// staticToken is a fixed-token source (tests).
type staticToken string

func (t staticToken) Token(context.Context) (string, error) { return string(t), nil }
