package auth

import (
	"time"

	"restoran-pos-terminal/internal/config"
	"restoran-pos-terminal/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

// Token vardiya boyu geçerlidir; kapanışta yeniden giriş beklenir.
const tokenTTL = 12 * time.Hour

// TerminalClaims: token hangi terminalde üretildiyse onu da taşır,
// böylece kayıtlar terminal kimliğiyle ilişkilendirilebilir.
type TerminalClaims struct {
	UserID     uint            `json:"user_id"`
	Name       string          `json:"name"`
	Role       models.UserRole `json:"role"`
	BranchID   uint            `json:"branch_id"`
	TerminalID string          `json:"terminal_id"`
	jwt.RegisteredClaims
}

func GenerateToken(cfg *config.Config, user *models.User) (string, error) {
	now := time.Now()
	claims := &TerminalClaims{
		UserID:     user.ID,
		Name:       user.Name,
		Role:       user.Role,
		BranchID:   cfg.BranchID,
		TerminalID: cfg.TerminalID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}
