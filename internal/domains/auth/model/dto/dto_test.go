package dto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"lodge/infras/jwt"
	"lodge/internal/domains/auth/model/dto"
	"lodge/shared/constant"
)

func TestLoginResponse_FromTokenPair(t *testing.T) {
	tokenPair := &jwt.TokenPair{
		AccessToken:  "test-access-token",
		RefreshToken: "test-refresh-token",
		TokenType:    "Bearer",
		ExpiresIn:    900,
	}

	var response dto.LoginResponse
	response.FromTokenPair(tokenPair)

	assert.Equal(t, tokenPair.AccessToken, response.AccessToken)
	assert.Equal(t, tokenPair.RefreshToken, response.RefreshToken)
	assert.Equal(t, "Bearer", response.TokenType)
	assert.Equal(t, int64(900), response.ExpiresIn)
}

func TestRefreshTokenResponse_FromTokenPair(t *testing.T) {
	tokenPair := &jwt.TokenPair{
		AccessToken:  "new-access-token",
		RefreshToken: "new-refresh-token",
	}

	var response dto.RefreshTokenResponse
	response.FromTokenPair(tokenPair)

	assert.Equal(t, tokenPair.AccessToken, response.AccessToken)
	assert.Equal(t, tokenPair.RefreshToken, response.RefreshToken)
}

func TestRegisterRequest_ToUserModel(t *testing.T) {
	fullName := "Front Desk"

	t.Run("defaults to staff", func(t *testing.T) {
		req := dto.RegisterRequest{Email: "Desk@Example.com", Password: "plain", FullName: &fullName}

		user := req.ToUserModel("admin-id", "hashed")

		assert.NotEmpty(t, user.ID)
		assert.Equal(t, "desk@example.com", user.Email)
		assert.Equal(t, "hashed", user.Password)
		assert.Equal(t, constant.RoleStaff, user.Role)
		assert.Equal(t, &fullName, user.FullName)
		assert.True(t, user.Active)
		assert.Equal(t, "admin-id", user.CreatedBy)
		assert.Equal(t, "admin-id", user.ModifiedBy)
	})

	t.Run("keeps admin role", func(t *testing.T) {
		req := dto.RegisterRequest{Email: "owner@example.com", Role: constant.RoleAdmin}

		assert.Equal(t, constant.RoleAdmin, req.ToUserModel("admin-id", "hashed").Role)
	})
}
