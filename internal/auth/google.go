package auth

import (
	googleAuthIDTokenVerifier "github.com/futurenda/google-auth-id-token-verifier"
	"github.com/pkg/errors"

	"github.com/zhou-shi/pentama-app/internal/config"
)

// GoogleIdentity is the verified subset of a Google ID token.
type GoogleIdentity struct {
	Subject string
	Email   string
	Name    string
}

// GoogleVerifier checks Google Sign-In ID tokens.
type GoogleVerifier interface {
	VerifyIDToken(idToken string) (GoogleIdentity, error)
}

type googleIDTokenVerifier struct {
	clientID string
}

func NewGoogleVerifier(cfg *config.AppConfig) GoogleVerifier {
	return &googleIDTokenVerifier{clientID: cfg.GoogleClientID}
}

func (g *googleIDTokenVerifier) VerifyIDToken(idToken string) (GoogleIdentity, error) {
	if g.clientID == "" {
		return GoogleIdentity{}, errors.New("google sign-in is not configured")
	}
	v := googleAuthIDTokenVerifier.Verifier{}
	if err := v.VerifyIDToken(idToken, []string{g.clientID}); err != nil {
		return GoogleIdentity{}, ErrInvalidToken
	}
	claimSet, err := googleAuthIDTokenVerifier.Decode(idToken)
	if err != nil {
		return GoogleIdentity{}, errors.Wrap(err, "decode google id token")
	}
	return GoogleIdentity{Subject: claimSet.Sub, Email: claimSet.Email, Name: claimSet.Name}, nil
}
