package auth

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/spesenwerk/receipt-ocr-service/internal/db"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token       string `json:"token"`
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	CompanyID   string `json:"company_id"`
	CompanyName string `json:"company_name"`
	Role        string `json:"role"`
}

// Login checks credentials against the users table and issues a token bound
// to the user's company.
func Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	if db.Pool == nil {
		return nil, fmt.Errorf("database not available")
	}

	var (
		userID       string
		passwordHash string
		companyID    string
		companyName  string
		role         string
	)

	err := db.Pool.QueryRow(ctx, `
		SELECT u.id, u.password_hash, u.company_id, c.name, u.role
		FROM users u
		JOIN companies c ON c.id = u.company_id
		WHERE u.email = $1 AND u.active = true
	`, req.Email).Scan(&userID, &passwordHash, &companyID, &companyName, &role)
	if err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
		return nil, fmt.Errorf("invalid credentials")
	}

	token, err := GenerateToken(userID, req.Email, companyID, companyName, role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &LoginResponse{
		Token:       token,
		UserID:      userID,
		Email:       req.Email,
		CompanyID:   companyID,
		CompanyName: companyName,
		Role:        role,
	}, nil
}
