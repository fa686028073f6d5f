package service

import (
	"context"
	"crypto/subtle"
	"fmt"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("auth")

// AuthService checks API bearer tokens. An empty token disables the check.
type AuthService struct {
	token string
}

func NewAuthService(token string) *AuthService {
	return &AuthService{token: token}
}

func (s *AuthService) Enabled() bool {
	return s.token != ""
}

func (s *AuthService) AuthToken(ctx context.Context, token string) error {
	_, span := tracer.Start(ctx, "Auth.Service.AuthToken")
	defer span.End()

	if !s.Enabled() {
		return nil
	}

	if token == "" {
		err := fmt.Errorf("missing token")
		span.RecordError(err)
		return err
	}

	if subtle.ConstantTimeCompare([]byte(token), []byte(s.token)) != 1 {
		err := fmt.Errorf("invalid token")
		span.RecordError(err)
		return err
	}

	return nil
}
