package video

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// DefaultTokenTTL is how long issued room tokens stay valid. Twilio caps
// video access tokens at 24 hours; sessions are expected to reconnect well
// before that.
const DefaultTokenTTL = 4 * time.Hour

var ErrMissingCredentials = errors.New("video credentials not configured")

// TwilioProvider mints Twilio-compatible video access tokens: an HS256 JWT
// carrying a room grant, signed with the API secret. Token minting is
// local, so the only failure mode is missing configuration.
type TwilioProvider struct {
	accountSID string
	apiKey     string
	apiSecret  string
	ttl        time.Duration
}

// NewTwilioProvider builds a provider from Twilio credentials.
func NewTwilioProvider(accountSID, apiKey, apiSecret string) *TwilioProvider {
	return &TwilioProvider{
		accountSID: accountSID,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		ttl:        DefaultTokenTTL,
	}
}

// GetTokenForTown issues a token granting the player access to the town's
// video room.
func (p *TwilioProvider) GetTokenForTown(townID, playerID string) (string, error) {
	if p.accountSID == "" || p.apiKey == "" || p.apiSecret == "" {
		return "", ErrMissingCredentials
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"jti": fmt.Sprintf("%s-%d", p.apiKey, now.Unix()),
		"iss": p.apiKey,
		"sub": p.accountSID,
		"iat": now.Unix(),
		"exp": now.Add(p.ttl).Unix(),
		"grants": map[string]interface{}{
			"identity": playerID,
			"video": map[string]interface{}{
				"room": townID,
			},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["cty"] = "twilio-fpa;v=1"

	signed, err := token.SignedString([]byte(p.apiSecret))
	if err != nil {
		return "", fmt.Errorf("sign video token: %w", err)
	}
	return signed, nil
}
