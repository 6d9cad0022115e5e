package auth

import (
	"testing"
	"time"

	"restoran-pos-terminal/internal/config"
	"restoran-pos-terminal/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestTokenCarriesTerminalIdentity(t *testing.T) {
	cfg := &config.Config{
		JWTSecret:  "test-secret",
		BranchID:   3,
		TerminalID: "kasa-2",
	}
	user := &models.User{Name: "Ayşe", Role: models.RoleCashier}
	user.ID = 7

	tokenStr, err := GenerateToken(cfg, user)
	require.NoError(t, err)

	token, err := jwt.ParseWithClaims(tokenStr, &TerminalClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(cfg.JWTSecret), nil
	})
	require.NoError(t, err)
	require.True(t, token.Valid)

	claims, ok := token.Claims.(*TerminalClaims)
	require.True(t, ok)
	require.EqualValues(t, 7, claims.UserID)
	require.Equal(t, "Ayşe", claims.Name)
	require.Equal(t, models.RoleCashier, claims.Role)
	require.EqualValues(t, 3, claims.BranchID)
	require.Equal(t, "kasa-2", claims.TerminalID)

	remaining := time.Until(claims.ExpiresAt.Time)
	require.Greater(t, remaining, 11*time.Hour)
	require.LessOrEqual(t, remaining, tokenTTL)
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret", BranchID: 1, TerminalID: "kasa-1"}
	user := &models.User{Name: "Mehmet", Role: models.RoleManager}
	user.ID = 1

	tokenStr, err := GenerateToken(cfg, user)
	require.NoError(t, err)

	_, err = jwt.ParseWithClaims(tokenStr, &TerminalClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte("başka-anahtar"), nil
	})
	require.Error(t, err)
}
