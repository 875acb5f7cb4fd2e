package integration

import (
	"context"
	"testing"

	"dashchat/internal/auth"
	"dashchat/internal/database"
	"dashchat/internal/models"

	"github.com/stretchr/testify/require"
)

// TestPassword is the password of every fixture user.
const TestPassword = "correct horse"

// Fixtures is the directory every environment starts with: one admin, two
// companies with their owners and an accountant serving both, and one
// accountant without clients.
type Fixtures struct {
	Users     []models.User
	Companies []models.Company
}

// DefaultFixtures returns the standard directory.
func DefaultFixtures() *Fixtures {
	return &Fixtures{
		Users: []models.User{
			{ID: "admin", Name: "Ada Admin", Email: "ada@example.com", Role: models.RoleAdmin},
			{ID: "olivia", Name: "Olivia Owner", Email: "olivia@example.com", Role: models.RoleOwner, CompanyID: "acme"},
			{ID: "oscar", Name: "Oscar Owner", Email: "oscar@example.com", Role: models.RoleOwner, CompanyID: "globex"},
			{ID: "anna", Name: "Anna Accountant", Email: "anna@example.com", Role: models.RoleAccountant},
			{ID: "idle", Name: "Ian Idle", Email: "ian@example.com", Role: models.RoleAccountant},
		},
		Companies: []models.Company{
			{ID: "acme", Name: "Acme", OwnerID: "olivia", AccountantIDs: []string{"anna"}},
			{ID: "globex", Name: "Globex", OwnerID: "oscar", AccountantIDs: []string{"anna"}},
		},
	}
}

// User returns the fixture user with id.
func (f *Fixtures) User(id string) models.User {
	for _, u := range f.Users {
		if u.ID == id {
			return u
		}
	}
	return models.User{}
}

// Seed writes the fixtures to db.
func (f *Fixtures) Seed(t *testing.T, db *database.Database) {
	t.Helper()
	ctx := context.Background()

	hash, err := auth.HashPassword(TestPassword)
	require.NoError(t, err)

	for _, u := range f.Users {
		u.PasswordHash = hash
		require.NoError(t, db.SaveUser(ctx, &u))
	}
	for _, c := range f.Companies {
		require.NoError(t, db.SaveCompany(ctx, &c))
	}
}
