// seed-admin creates the initial admin user. Intended for fresh deployments;
// running it against a database that already has the admin is a no-op.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/careloop/hms/internal/model"
	"github.com/careloop/hms/internal/storage"
	"github.com/careloop/hms/libs/db"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	var (
		email     = flag.String("email", getenv("ADMIN_EMAIL", "admin@hospital.com"), "admin email")
		password  = flag.String("password", getenv("ADMIN_PASSWORD", ""), "admin password")
		firstName = flag.String("first-name", getenv("ADMIN_FIRST_NAME", "Admin"), "admin first name")
		lastName  = flag.String("last-name", getenv("ADMIN_LAST_NAME", "User"), "admin last name")
	)
	flag.Parse()

	if strings.TrimSpace(*password) == "" {
		fatal("ADMIN_PASSWORD is required")
	}
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		fatal("db connection failed: " + err.Error())
	}
	defer pool.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		fatal("password hash failed: " + err.Error())
	}

	users := storage.NewUserRepository(pool)
	admin := model.User{
		ID:           uuid.NewString(),
		FirstName:    strings.TrimSpace(*firstName),
		LastName:     strings.TrimSpace(*lastName),
		Email:        strings.ToLower(strings.TrimSpace(*email)),
		Role:         model.RoleAdmin,
		PasswordHash: string(hash),
	}
	if err := users.Create(ctx, admin); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			fmt.Println("admin already exists:", admin.Email)
			return
		}
		fatal("admin insert failed: " + err.Error())
	}
	fmt.Println("admin created:", admin.Email)
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "error:", msg)
	os.Exit(1)
}
