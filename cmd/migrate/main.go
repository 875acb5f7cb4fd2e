package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"dashchat/internal/auth"
	"dashchat/internal/database"
	apperrors "dashchat/internal/errors"
	"dashchat/internal/migrations"
	"dashchat/internal/models"

	"github.com/sirupsen/logrus"
)

// seedUser is a user entry in a seed file. Password is plain text and is
// hashed before it is stored.
type seedUser struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CompanyID string `json:"company_id"`
	Password  string `json:"password"`
}

type seedFile struct {
	Users     []seedUser       `json:"users"`
	Companies []models.Company `json:"companies"`
}

// seedResult counts what a seed run wrote.
type seedResult struct {
	Users     int
	Companies int
}

func main() {
	dbPath := flag.String("db", "./dashchat.db", "Path to the database file")
	seedPath := flag.String("seed", "", "Optional JSON file with users and companies to upsert")
	flag.Parse()

	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if err := run(context.Background(), *dbPath, *seedPath, logger); err != nil {
		logger.Fatalf("Migration failed: %v", err)
	}
}

func run(ctx context.Context, dbPath, seedPath string, logger *logrus.Logger) error {
	// database.New brings the schema up to date
	db, err := database.New(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	available, err := migrations.Load()
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"db":         dbPath,
		"migrations": len(available),
	}).Info("Schema is up to date")

	if seedPath == "" {
		return nil
	}

	f, err := os.Open(seedPath)
	if err != nil {
		return fmt.Errorf("failed to open seed file: %w", err)
	}
	defer f.Close()

	result, err := seed(ctx, db, f)
	if err != nil {
		return err
	}
	logger.WithFields(logrus.Fields{
		"users":     result.Users,
		"companies": result.Companies,
	}).Info("Seed data applied")
	return nil
}

// seedStore is the part of the database seeding writes to.
type seedStore interface {
	SaveUser(ctx context.Context, user *models.User) error
	SaveCompany(ctx context.Context, company *models.Company) error
}

// seed upserts users before companies so owner and accountant ids resolve.
func seed(ctx context.Context, store seedStore, r io.Reader) (seedResult, error) {
	var data seedFile
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&data); err != nil {
		return seedResult{}, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "invalid seed file")
	}

	var result seedResult
	for i, u := range data.Users {
		if strings.TrimSpace(u.ID) == "" {
			return result, apperrors.NewValidationError(fmt.Sprintf("users[%d].id", i), "", "is required")
		}
		switch u.Role {
		case models.RoleAdmin, models.RoleOwner, models.RoleAccountant:
		default:
			return result, apperrors.NewValidationError(fmt.Sprintf("users[%d].role", i), u.Role, "must be admin, owner or accountant")
		}

		user := &models.User{
			ID:        u.ID,
			Name:      u.Name,
			Email:     u.Email,
			Role:      u.Role,
			CompanyID: u.CompanyID,
		}
		if u.Password != "" {
			hash, err := auth.HashPassword(u.Password)
			if err != nil {
				return result, err
			}
			user.PasswordHash = hash
		}
		if err := store.SaveUser(ctx, user); err != nil {
			return result, err
		}
		result.Users++
	}

	for i := range data.Companies {
		c := &data.Companies[i]
		if strings.TrimSpace(c.ID) == "" {
			return result, apperrors.NewValidationError(fmt.Sprintf("companies[%d].id", i), "", "is required")
		}
		if err := store.SaveCompany(ctx, c); err != nil {
			return result, err
		}
		result.Companies++
	}
	return result, nil
}
