package main

import (
	"flag"
	"fmt"
	"os"

	"taxirn/internal/model"
	"taxirn/internal/shared/auth"
	"taxirn/internal/shared/config"
)

func main() {
	userID := flag.String("user", "550e8400-e29b-41d4-a716-446655440000", "User ID (UUID)")
	email := flag.String("email", "test@example.com", "Email address")
	role := flag.String("role", model.RoleUser, "Role (USER|DRIVER|ADMIN)")
	flag.Parse()

	if !model.IsValidRole(*role) {
		fmt.Fprintf(os.Stderr, "Error: unknown role %q\n", *role)
		os.Exit(1)
	}

	cfg := config.Load()
	jwtService := auth.NewJWTService(cfg.JWT)

	token, err := jwtService.GenerateToken(*userID, *email, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating JWT token: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n✅ JWT Token generated successfully!\n\n")
	fmt.Printf("User ID:   %s\n", *userID)
	fmt.Printf("Email:     %s\n", *email)
	fmt.Printf("Role:      %s\n", *role)
	fmt.Printf("\nToken:\n%s\n", token)
	fmt.Printf("\n📋 Copy this for API requests:\n")
	fmt.Printf("Authorization: Bearer %s\n", token)
	fmt.Printf("\n💡 Example curl:\n")
	fmt.Printf("curl -X POST http://localhost:%d/map/points \\\n", cfg.Services.MapServicePort)
	fmt.Printf("  -H 'Authorization: Bearer %s' \\\n", token)
	fmt.Printf("  -H 'Content-Type: application/json' \\\n")
	fmt.Printf("  -d '{\"role\": \"start\", \"lat\": 10.6427, \"lng\": -71.6125}'\n\n")
}
