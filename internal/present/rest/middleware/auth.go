package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/mediafetch/internal/present/rest/presenter"
	"github.com/totegamma/mediafetch/internal/service"
)

var tracer = otel.Tracer("auth")

type AuthMiddleware struct {
	auth *service.AuthService
}

func NewAuthMiddleware(auth *service.AuthService) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// RequireToken rejects requests without the configured bearer token.
func (s *AuthMiddleware) RequireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.auth.Enabled() {
			return next(c)
		}

		ctx, span := tracer.Start(c.Request().Context(), "Auth.Middleware.RequireToken")
		defer span.End()

		authHeader := c.Request().Header.Get("authorization")
		token := ""
		if authHeader != "" {
			split := strings.Split(authHeader, " ")
			if len(split) != 2 || split[0] != "Bearer" {
				span.RecordError(fmt.Errorf("invalid authentication header"))
				return presenter.Error(c, http.StatusUnauthorized, "invalid authentication header")
			}
			token = split[1]
		}

		if err := s.auth.AuthToken(ctx, token); err != nil {
			span.RecordError(errors.Wrap(err, "AuthMiddleware.RequireToken: s.auth.AuthToken failed"))
			return presenter.Error(c, http.StatusUnauthorized, err.Error())
		}

		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}
