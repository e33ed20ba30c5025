package security

import (
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type StationIdentity struct {
	Id      int
	Name    string
	Station string
}

// IdentityClaims includes Identity and standard JWT claims

type Identity struct {
	ID         int    `json:"nameid"`
	UniqueName string `json:"unique_name"`
	Station    string `json:"station"`
	SID        string `json:"sid"`
}

type IdentityClaims struct {
	Identity
	jwt.RegisteredClaims
}

// CreateStationToken mints the bearer token a station presents to the
// Guestsheet service and to its own HTTP API. The sid is unique per token so
// sessions can be told apart in the ledger's audit trail.
func CreateStationToken(identity *StationIdentity, base64Secret string, expiresInSeconds int64) (string, error) {
	secretBytes, err := base64.StdEncoding.DecodeString(base64Secret)
	if err != nil {
		return "", err
	}
	claims := IdentityClaims{
		Identity: Identity{
			ID:         identity.Id,
			UniqueName: identity.Name,
			Station:    identity.Station,
			SID:        uuid.NewString(),
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "wristband",
			Audience:  []string{"guestsheet"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Duration(expiresInSeconds) * time.Second)),
		},
	}

	// Use HS256 signing method (symmetric key)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(secretBytes))
}
