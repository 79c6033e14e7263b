package session

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"

	"github.com/golang-jwt/jwt/v5"
)

func LoadKeyFiles(privatePath, publicPath string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	privPEM, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read private key: %w", err)
	}
	var pubPEM []byte
	if publicPath != "" {
		if pubPEM, err = os.ReadFile(publicPath); err != nil {
			return nil, nil, fmt.Errorf("read public key: %w", err)
		}
	}
	return ParseKeys(privPEM, pubPEM)
}

// ParseKeys decodes a PEM private key and an optional PEM public key.
// Without a public key it is derived from the private one.
func ParseKeys(privatePEM, publicPEM []byte) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
	if err != nil {
		return nil, nil, fmt.Errorf("private key: %w", err)
	}
	if len(publicPEM) == 0 {
		return priv, &priv.PublicKey, nil
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(publicPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("public key: %w", err)
	}
	if !pub.Equal(&priv.PublicKey) {
		return nil, nil, errors.New("public key does not match private key")
	}
	return priv, pub, nil
}
