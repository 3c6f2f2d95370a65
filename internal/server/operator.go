// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/noldarim/clickstream/internal/config"
)

const (
	// OperatorHeader echoes the identity stamped on mutations.
	OperatorHeader = "X-Click-Stream-Operator"
	// RequestContextHeader carries the API gateway authorizer context.
	RequestContextHeader = "x-amzn-request-context"

	unknownOperator = "unknown"
)

const operatorKey contextKey = "operator"

// Operator resolves who is calling: the configured claim of a verified bearer
// token, else the email of the gateway authorizer context, else "unknown".
// The result is stored in the request context and echoed in OperatorHeader.
func Operator(cfg config.AuthConfig) func(http.Handler) http.Handler {
	claim := cfg.OperatorClaim
	if claim == "" {
		claim = "email"
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})}
	if cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.JWTIssuer))
	}
	parser := jwt.NewParser(opts...)
	secret := []byte(cfg.JWTSecret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			operator := ""
			if len(secret) > 0 {
				operator = operatorFromBearer(r.Header.Get("Authorization"), parser, secret, claim)
			}
			if operator == "" {
				operator = operatorFromRequestContext(r.Header.Get(RequestContextHeader))
			}
			if operator == "" {
				operator = unknownOperator
			}

			w.Header().Set(OperatorHeader, operator)
			ctx := context.WithValue(r.Context(), operatorKey, operator)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetOperator retrieves the operator from context.
func GetOperator(ctx context.Context) string {
	if op, ok := ctx.Value(operatorKey).(string); ok {
		return op
	}
	return ""
}

func operatorFromBearer(header string, parser *jwt.Parser, secret []byte, claim string) string {
	raw, found := strings.CutPrefix(header, "Bearer ")
	if !found || raw == "" {
		return ""
	}

	token, err := parser.Parse(raw, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		getLog().Debug().Err(err).Msg("Rejected bearer token")
		return ""
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	if value, ok := claims[claim].(string); ok && value != "" {
		return value
	}
	sub, _ := claims.GetSubject()
	return sub
}

type requestContext struct {
	Authorizer struct {
		Email  string            `json:"email"`
		Claims map[string]string `json:"claims"`
	} `json:"authorizer"`
}

func operatorFromRequestContext(header string) string {
	if header == "" {
		return ""
	}
	var rc requestContext
	if err := json.Unmarshal([]byte(header), &rc); err != nil {
		getLog().Debug().Err(err).Msg("Malformed request context header")
		return ""
	}
	if rc.Authorizer.Email != "" {
		return rc.Authorizer.Email
	}
	return rc.Authorizer.Claims["email"]
}
