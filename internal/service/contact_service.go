package service

import (
	"context"
	"sync"

	"dashchat/internal/auth"
	"dashchat/internal/credentials"
	apperrors "dashchat/internal/errors"
	"dashchat/internal/metrics"
	"dashchat/internal/models"

	"github.com/sirupsen/logrus"
)

// Directory lists the organizations and users known to the message store.
type Directory interface {
	ListCompanies(ctx context.Context) ([]models.Company, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

// ContactService resolves the contacts the signed-in user may chat with.
type ContactService struct {
	tokens    credentials.TokenSource
	directory Directory
	logger    *logrus.Logger
	errLog    *apperrors.Logger
}

// NewContactService creates a new contact service instance
func NewContactService(tokens credentials.TokenSource, directory Directory, logger *logrus.Logger) *ContactService {
	return &ContactService{
		tokens:    tokens,
		directory: directory,
		logger:    logger,
		errLog:    apperrors.WrapLogger(logger),
	}
}

// Identity decodes the stored credential. A missing or malformed token yields
// the zero Identity.
func (s *ContactService) Identity() auth.Identity {
	token, err := s.tokens.Token()
	if err != nil {
		s.errLog.LogWarn(err, "Failed to read stored credential")
		return auth.Identity{}
	}
	return auth.Decode(token)
}

// Resolve fetches companies and users in parallel and returns the contacts
// visible to the stored identity. Failures degrade to an empty list.
func (s *ContactService) Resolve(ctx context.Context) []models.Contact {
	identity := s.Identity()
	if identity.IsZero() {
		s.logger.Debug("Skipping contact resolution: no identity")
		return []models.Contact{}
	}

	var (
		wg                     sync.WaitGroup
		companies              []models.Company
		users                  []models.User
		companiesErr, usersErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		companies, companiesErr = s.directory.ListCompanies(ctx)
	}()
	go func() {
		defer wg.Done()
		users, usersErr = s.directory.ListUsers(ctx)
	}()
	wg.Wait()

	for _, err := range []error{companiesErr, usersErr} {
		if err != nil {
			metrics.IncrementCounter(metrics.ContactResolutionFail, nil, "Contact resolutions that degraded to an empty list")
			s.errLog.LogWarn(err, "Failed to resolve contacts", logrus.Fields{
				LogFieldRole: identity.Role,
			})
			return []models.Contact{}
		}
	}

	contacts := FilterContacts(identity, companies, users)
	metrics.IncrementCounter(metrics.ContactResolutions, map[string]string{
		LogFieldRole: identity.Role,
	}, "Contact resolutions")

	s.logger.WithFields(logrus.Fields{
		LogFieldRole:  identity.Role,
		LogFieldCount: len(contacts),
	}).Debug("Resolved contacts")
	return contacts
}

// FilterContacts applies the role rules to the directory:
// owners see the accountants of their companies, accountants see the owners of
// the companies they serve, admins see everyone but themselves. Any other role
// sees nobody. Users keep their directory order.
func FilterContacts(identity auth.Identity, companies []models.Company, users []models.User) []models.Contact {
	contacts := make([]models.Contact, 0)
	if identity.IsZero() {
		return contacts
	}

	// visible user id -> company that links the viewer to them
	visible := make(map[string]*models.Company)
	switch identity.Role {
	case models.RoleOwner:
		for i := range companies {
			c := &companies[i]
			if c.OwnerID != identity.UserID {
				continue
			}
			for _, accountantID := range c.AccountantIDs {
				if _, seen := visible[accountantID]; !seen {
					visible[accountantID] = c
				}
			}
		}
	case models.RoleAccountant:
		for i := range companies {
			c := &companies[i]
			if !c.HasAccountant(identity.UserID) || c.OwnerID == "" {
				continue
			}
			if _, seen := visible[c.OwnerID]; !seen {
				visible[c.OwnerID] = c
			}
		}
	case models.RoleAdmin:
		for i := range users {
			visible[users[i].ID] = nil
		}
	default:
		return contacts
	}
	delete(visible, identity.UserID)

	for i := range users {
		company, ok := visible[users[i].ID]
		if !ok {
			continue
		}
		contacts = append(contacts, models.ContactFromUser(&users[i], company))
	}
	return contacts
}
