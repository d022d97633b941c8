package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/nhle/storefront/internal/model"
)

// Login exchanges email and password for a token pair and the user.
func (c *Client) Login(ctx context.Context, email, password string) (model.Tokens, model.User, error) {
	var resp loginResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   loginRequest{Email: email, Password: password},
		result: &resp,
		public: true,
	})
	if err != nil {
		var apiErr *Error
		if errors.As(err, &apiErr) && apiErr.Kind == KindUnauthenticated {
			apiErr.Message = "Invalid email or password."
		}
		return model.Tokens{}, model.User{}, err
	}
	return model.Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, resp.User, nil
}

// Refresh exchanges a refresh token for a new access token.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (model.Tokens, error) {
	var resp refreshResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/refresh",
		body:   refreshRequest{RefreshToken: refreshToken},
		result: &resp,
		public: true,
	})
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, nil
}
