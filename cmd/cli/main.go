package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/oparadev/personnelbase/internal/domain"
	"github.com/oparadev/personnelbase/internal/infrastructure/logger"
	"github.com/oparadev/personnelbase/internal/repository"
	"github.com/oparadev/personnelbase/pkg/config"
	"github.com/oparadev/personnelbase/pkg/database"
)

// The CLI talks straight to the database, bypassing the API. It exists for
// the operations the API deliberately cannot do: creating the first admin
// and recovering a locked-out one.
func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "migrate":
		runMigrate()
	case "admin":
		handleAdmin(args)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func handleAdmin(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: personnelbase admin <bootstrap|reset-password>")
		os.Exit(1)
	}

	switch args[0] {
	case "bootstrap":
		bootstrapAdmin(args[1:])
	case "reset-password":
		resetPassword(args[1:])
	default:
		fmt.Printf("unknown admin command: %s\n", args[0])
		os.Exit(1)
	}
}

func runMigrate() {
	_, db, cleanup := connect()
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := repository.Migrate(ctx, db.GetDB()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("migrations applied")
}

// bootstrapAdmin creates the initial administrator account. Safe to re-run:
// an existing account with the same army number is left alone.
func bootstrapAdmin(args []string) {
	fs := flag.NewFlagSet("bootstrap", flag.ExitOnError)
	armyNumber := fs.String("army-number", "", "admin army number")
	firstName := fs.String("first-name", "Admin", "first name")
	lastName := fs.String("last-name", "User", "last name")
	password := fs.String("password", "", "initial password (generated when omitted)")
	fs.Parse(args)

	if *armyNumber == "" {
		fmt.Println("Error: -army-number is required")
		fs.PrintDefaults()
		os.Exit(1)
	}

	log, db, cleanup := connect()
	defer cleanup()
	userRepo := repository.NewPostgresUserRepository(db.GetDB(), log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if existing, err := userRepo.GetByArmyNumber(ctx, *armyNumber); err == nil {
		fmt.Printf("account %s already exists (role %s), nothing to do\n", existing.ArmyNumber, existing.Role)
		return
	} else if domain.KindOf(err) != domain.KindNotFound {
		fmt.Fprintf(os.Stderr, "lookup failed: %v\n", err)
		os.Exit(1)
	}

	if admins, err := userRepo.CountByRole(ctx, domain.RoleAdmin); err == nil && admins > 0 {
		fmt.Printf("note: %d admin account(s) already exist\n", admins)
	}

	plaintext := *password
	generated := false
	if plaintext == "" {
		plaintext = randomPassword()
		generated = true
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash failed: %v\n", err)
		os.Exit(1)
	}

	admin := &domain.User{
		FirstName:          *firstName,
		LastName:           *lastName,
		ArmyNumber:         *armyNumber,
		Role:               domain.RoleAdmin,
		AccessAllDB:        true,
		AllowedTenantIDs:   []string{},
		PasswordHash:       string(hash),
		MustChangePassword: generated,
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		fmt.Fprintf(os.Stderr, "create failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("admin created: %s (id %s)\n", admin.ArmyNumber, admin.ID)
	if generated {
		fmt.Printf("generated password: %s\n", plaintext)
	}
}

// resetPassword sets a fresh credential for any account by army number.
func resetPassword(args []string) {
	fs := flag.NewFlagSet("reset-password", flag.ExitOnError)
	armyNumber := fs.String("army-number", "", "account army number")
	password := fs.String("password", "", "new password (generated when omitted)")
	fs.Parse(args)

	if *armyNumber == "" {
		fmt.Println("Error: -army-number is required")
		fs.PrintDefaults()
		os.Exit(1)
	}

	log, db, cleanup := connect()
	defer cleanup()
	userRepo := repository.NewPostgresUserRepository(db.GetDB(), log)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := userRepo.GetByArmyNumber(ctx, *armyNumber)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lookup failed: %v\n", err)
		os.Exit(1)
	}

	plaintext := *password
	generated := false
	if plaintext == "" {
		plaintext = randomPassword()
		generated = true
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash failed: %v\n", err)
		os.Exit(1)
	}

	user.PasswordHash = string(hash)
	user.GeneratedPasswordHash = string(hash)
	user.MustChangePassword = true
	if err := userRepo.Update(ctx, user); err != nil {
		fmt.Fprintf(os.Stderr, "update failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("password reset for %s\n", user.ArmyNumber)
	if generated {
		fmt.Printf("generated password: %s\n", plaintext)
	}
}

func connect() (log *slog.Logger, pool *database.ConnectionPool, cleanup func()) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log = logger.NewLogger("warn")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err = database.NewConnectionPool(ctx, &database.Config{
		Host:     cfg.DatabaseHost,
		Port:     cfg.DatabasePort,
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	}, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to database: %v\n", err)
		os.Exit(1)
	}

	return log, pool, func() { pool.Close() }
}

func randomPassword() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate password: %v\n", err)
		os.Exit(1)
	}
	return hex.EncodeToString(buf)
}

func printUsage() {
	fmt.Print(`personnelbase CLI

Usage:
  personnelbase <command> [options]

Commands:
  migrate                 Apply database migrations
  admin bootstrap         Create the initial administrator account
  admin reset-password    Reset an account's password by army number
  help                    Show this help message

Configuration comes from the same environment variables the server reads
(DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSLMODE).

Examples:
  personnelbase migrate
  personnelbase admin bootstrap -army-number 00000001
  personnelbase admin reset-password -army-number 12345678
`)
}
