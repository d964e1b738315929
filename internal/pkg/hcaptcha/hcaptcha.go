package hcaptcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuelReschke/PerkFox/internal/pkg/env"
)

// DefaultVerifyURL is the hCaptcha siteverify endpoint
const DefaultVerifyURL = "https://hcaptcha.com/siteverify"

// ErrEmptyToken is returned when the client sent no captcha token.
var ErrEmptyToken = errors.New("hCaptcha token is empty")

type Response struct {
	Success     bool     `json:"success"`
	ChallengeTS string   `json:"challenge_ts"`
	Hostname    string   `json:"hostname"`
	ErrorCodes  []string `json:"error-codes"`
}

// Verifier checks captcha tokens against the siteverify endpoint
type Verifier struct {
	secret    string
	verifyURL string
	client    *http.Client
}

// NewVerifier creates a verifier for secret. An empty verifyURL means
// DefaultVerifyURL; a nil client gets a 5s timeout client.
func NewVerifier(secret, verifyURL string, client *http.Client) *Verifier {
	if verifyURL == "" {
		verifyURL = DefaultVerifyURL
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Verifier{secret: secret, verifyURL: verifyURL, client: client}
}

// FromEnv returns a verifier when HCAPTCHA_SECRET is set and nil otherwise.
func FromEnv() *Verifier {
	secret := env.GetEnv("HCAPTCHA_SECRET", "")
	if secret == "" {
		return nil
	}
	return NewVerifier(secret, env.GetEnv("HCAPTCHA_VERIFY_URL", ""), nil)
}

// Verify reports whether token is a solved challenge. A failed challenge
// returns false with an error naming the hCaptcha error codes.
func (v *Verifier) Verify(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, ErrEmptyToken
	}

	formData := url.Values{
		"secret":   {v.secret},
		"response": {token},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(formData.Encode()))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("failed to send request to hCaptcha API: %w", err)
	}
	defer resp.Body.Close()

	var response Response
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return false, fmt.Errorf("failed to decode hCaptcha API response: %w", err)
	}

	if !response.Success {
		errorMsg := "hCaptcha validation failed"
		if len(response.ErrorCodes) > 0 {
			errorMsg = errorMsg + ": " + strings.Join(response.ErrorCodes, ", ")
		}
		return false, errors.New(errorMsg)
	}

	return true, nil
}
