package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims represents the claims in our JWT token
type JWTClaims struct {
	Role     string `json:"role"` // "caregiver" or "device"
	DeviceID string `json:"device_id,omitempty"`
	jwt.RegisteredClaims
}

const (
	RoleCaregiver = "caregiver"
	RoleDevice    = "device"
)

var jwtSecret = []byte("companion-dev-secret")

// SetSecret installs the signing secret from server configuration. Must be
// called before any token is issued.
func SetSecret(secret string) {
	if secret != "" {
		jwtSecret = []byte(secret)
	}
}

// GenerateCaregiverToken generates a JWT token for the caregiver panel,
// issued after the admin password check.
func GenerateCaregiverToken() (string, error) {
	claims := &JWTClaims{
		Role: RoleCaregiver,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(12 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// GenerateDeviceToken generates a JWT token for an elder device connecting
// to the streaming endpoint.
func GenerateDeviceToken(deviceID string) (string, error) {
	claims := &JWTClaims{
		Role:     RoleDevice,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrInvalidKey
}
