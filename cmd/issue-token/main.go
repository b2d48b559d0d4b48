package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/garyjia/travel-claims/internal/config"
	"github.com/garyjia/travel-claims/internal/domain/entity"
	"github.com/garyjia/travel-claims/internal/infrastructure/auth"
)

// Mints a bearer token for local testing of the claims API.
// The secret and issuer come from the same configuration the server reads.

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	userID := flag.String("user", "", "user id (token subject)")
	employeeID := flag.String("employee", "", "employee id, required for the employee role")
	name := flag.String("name", "", "display name")
	role := flag.String("role", string(entity.RoleEmployee), "employee, hr, director or office")
	ttl := flag.Duration("ttl", 0, "token lifetime, defaults to auth.token_ttl")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	actor := entity.Actor{
		UserID:     *userID,
		EmployeeID: *employeeID,
		Name:       *name,
		Role:       entity.Role(*role),
	}
	if actor.UserID == "" {
		actor.UserID = actor.EmployeeID
	}
	if actor.Role == entity.RoleEmployee && actor.EmployeeID == "" {
		fmt.Fprintln(os.Stderr, "-employee is required for the employee role")
		os.Exit(2)
	}

	lifetime := cfg.Auth.TokenTTL
	if *ttl > 0 {
		lifetime = *ttl
	}

	token, err := auth.NewJWTService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, lifetime).Issue(&actor)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to issue token: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "role=%s user=%s employee=%s expires=%s\n",
		actor.Role, actor.UserID, actor.EmployeeID, time.Now().Add(lifetime).Format(time.RFC3339))
	fmt.Println(token)
}
