package admin

import (
	"strings"

	"restoran-pos-terminal/internal/config"
	"restoran-pos-terminal/internal/models"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var validate = validator.New()

type CreateStaffRequest struct {
	Name     string          `json:"name" validate:"required"`
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=6"`
	Role     models.UserRole `json:"role"` // cashier | driver | server
}

type StaffResponse struct {
	ID     uint            `json:"id"`
	Name   string          `json:"name"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	Active bool            `json:"active"`
}

// POST /api/admin/staff
func CreateStaffHandler(db *gorm.DB, cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateStaffRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		body.Email = strings.TrimSpace(strings.ToLower(body.Email))
		if err := validate.Struct(body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "İsim, geçerli email ve en az 6 haneli şifre zorunlu")
		}

		switch body.Role {
		case models.RoleCashier, models.RoleDriver, models.RoleServer:
			// ok
		default:
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz rol (cashier|driver|server)")
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şifre hashlenemedi")
		}

		branchID := cfg.BranchID
		user := models.User{
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: string(hash),
			Role:         body.Role,
			BranchID:     &branchID,
			Active:       true,
		}
		if err := db.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Personel oluşturulamadı")
		}

		return c.Status(fiber.StatusCreated).JSON(StaffResponse{
			ID: user.ID, Name: user.Name, Email: user.Email, Role: user.Role, Active: user.Active,
		})
	}
}

// GET /api/admin/staff
func ListStaffHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var users []models.User
		if err := db.Where("role <> ?", models.RoleManager).
			Order("name asc").Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Personel listelenemedi")
		}

		resp := make([]StaffResponse, 0, len(users))
		for _, u := range users {
			resp = append(resp, StaffResponse{
				ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, Active: u.Active,
			})
		}
		return c.JSON(resp)
	}
}

// DELETE /api/admin/staff/:id
func DeactivateStaffHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "id geçersiz")
		}

		var user models.User
		if err := db.First(&user, id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Personel bulunamadı")
		}
		if user.Role == models.RoleManager {
			return fiber.NewError(fiber.StatusForbidden, "Yönetici pasife alınamaz")
		}

		if err := db.Model(&user).Update("active", false).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Personel güncellenemedi")
		}
		return c.JSON(fiber.Map{"id": user.ID, "active": false})
	}
}
