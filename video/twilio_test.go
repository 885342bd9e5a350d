package video

import (
	"testing"

	"github.com/golang-jwt/jwt/v4"
)

func TestTwilioProviderGetTokenForTown(t *testing.T) {
	provider := NewTwilioProvider("AC123", "SK456", "topsecret")

	signed, err := provider.GetTokenForTown("town1", "player1")
	if err != nil {
		t.Fatalf("Failed to mint token: %v", err)
	}

	token, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			t.Fatalf("Unexpected signing method: %v", token.Header["alg"])
		}
		return []byte("topsecret"), nil
	})
	if err != nil {
		t.Fatalf("Failed to parse token: %v", err)
	}
	if !token.Valid {
		t.Fatal("Expected a valid token")
	}

	if cty := token.Header["cty"]; cty != "twilio-fpa;v=1" {
		t.Errorf("Expected twilio content type header, got '%v'", cty)
	}

	claims := token.Claims.(jwt.MapClaims)
	if claims["iss"] != "SK456" {
		t.Errorf("Expected issuer SK456, got '%v'", claims["iss"])
	}
	if claims["sub"] != "AC123" {
		t.Errorf("Expected subject AC123, got '%v'", claims["sub"])
	}

	grants, ok := claims["grants"].(map[string]interface{})
	if !ok {
		t.Fatal("Expected grants claim")
	}
	if grants["identity"] != "player1" {
		t.Errorf("Expected identity 'player1', got '%v'", grants["identity"])
	}
	videoGrant, ok := grants["video"].(map[string]interface{})
	if !ok || videoGrant["room"] != "town1" {
		t.Errorf("Expected video room grant for 'town1', got '%v'", grants["video"])
	}
}

func TestTwilioProviderMissingCredentials(t *testing.T) {
	provider := NewTwilioProvider("", "", "")
	if _, err := provider.GetTokenForTown("town1", "player1"); err != ErrMissingCredentials {
		t.Errorf("Expected ErrMissingCredentials, got %v", err)
	}
}

func TestFakeProvider(t *testing.T) {
	fake := NewFakeProvider()

	token, err := fake.GetTokenForTown("town1", "player1")
	if err != nil {
		t.Fatalf("Failed to get token: %v", err)
	}
	if token == "" {
		t.Error("Expected a token")
	}

	requests := fake.Requests()
	if len(requests) != 1 || requests[0].TownID != "town1" || requests[0].PlayerID != "player1" {
		t.Errorf("Expected recorded request, got %+v", requests)
	}
}
