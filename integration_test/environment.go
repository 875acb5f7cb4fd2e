// Package integration_test runs the dashchat server and its client packages
// against each other over real HTTP and websocket connections.
package integration

import (
	"context"
	"io"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"dashchat/internal/auth"
	"dashchat/internal/credentials"
	"dashchat/internal/database"
	"dashchat/internal/models"
	"dashchat/internal/server"
	"dashchat/internal/service"
	"dashchat/pkg/chatapi"
	"dashchat/pkg/livechannel"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const testSecret = "integration-secret-0123456789abcdef"

// MaxContentLength is the content limit the environment's server enforces.
const MaxContentLength = 200

// TestEnvironment is one server with a fresh database and the fixture directory.
type TestEnvironment struct {
	t        *testing.T
	name     string
	dir      string
	logger   *logrus.Logger
	config   *models.Config
	db       *database.Database
	hub      *service.Hub
	uploader *memoryUploader
	fixtures *Fixtures
	server   *httptest.Server
}

// NewTestEnvironment starts a server for t. It is torn down by t.Cleanup.
func NewTestEnvironment(t *testing.T, name string) *TestEnvironment {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	env := &TestEnvironment{
		t:        t,
		name:     name,
		dir:      t.TempDir(),
		logger:   logger,
		config:   environmentConfig(),
		uploader: newMemoryUploader(),
		fixtures: DefaultFixtures(),
	}

	db, err := database.New(filepath.Join(env.dir, name+".db"))
	require.NoError(t, err)
	env.db = db
	env.fixtures.Seed(t, db)

	issuer, err := auth.NewTokenIssuer(env.config.Auth.JWTSecret, env.config.Auth.Issuer, time.Hour)
	require.NoError(t, err)

	messages := service.NewMessageService(db, env.config.Messages, logger)
	env.hub = service.NewHub(messages, logger)

	srv := server.NewServer(server.Dependencies{
		Config:    env.config,
		Logger:    logger,
		Store:     db,
		Tokens:    issuer,
		Auth:      service.NewAuthService(db, issuer, logger),
		Messages:  messages,
		Documents: service.NewDocumentService(db, env.uploader, env.config.Documents, logger),
		Hub:       env.hub,
	})
	env.server = httptest.NewServer(srv.Handler())

	t.Cleanup(env.Cleanup)
	return env
}

func environmentConfig() *models.Config {
	return &models.Config{
		Server: models.ServerConfig{
			ReadTimeoutSec:     5,
			WriteTimeoutSec:    5,
			IdleTimeoutSec:     5,
			RateLimitPerMinute: 6000,
			RateLimitBurst:     1000,
		},
		Auth: models.AuthConfig{
			JWTSecret:     testSecret,
			Issuer:        "dashchat-integration",
			TokenTTLHours: 1,
		},
		Messages: models.MessagesConfig{MaxContentLength: MaxContentLength, DefaultPageSize: 100},
	}
}

// Cleanup closes live connections, the server and the database.
func (e *TestEnvironment) Cleanup() {
	e.hub.Close()
	e.server.Close()
	_ = e.db.Close()
}

// URL is the server's base URL.
func (e *TestEnvironment) URL() string {
	return e.server.URL
}

// Session is one signed-in client: its credential store and the clients
// that read the token from it.
type Session struct {
	User   models.User
	Store  *credentials.Store
	API    *chatapi.Client
	env    *TestEnvironment
	logger *logrus.Logger
}

// Login signs userID in with the fixture password and stores the token in a
// fresh credential store.
func (e *TestEnvironment) Login(userID string) *Session {
	e.t.Helper()
	s := e.Anonymous(userID)

	user := e.fixtures.User(userID)
	require.NotEmpty(e.t, user.ID, "unknown fixture user %s", userID)

	resp, err := s.API.Login(testContext(e.t, 5*time.Second), user.Email, TestPassword)
	require.NoError(e.t, err)
	require.NoError(e.t, s.Store.SetToken(resp.Token))
	require.NoError(e.t, s.Store.Set(credentials.UserKey, resp.User.ID))

	s.User = resp.User
	return s
}

// Anonymous returns a session with an empty credential store.
func (e *TestEnvironment) Anonymous(name string) *Session {
	e.t.Helper()
	store, err := credentials.Open(filepath.Join(e.dir, "credentials-"+name))
	require.NoError(e.t, err)
	e.t.Cleanup(func() { _ = store.Close() })

	return &Session{
		Store:  store,
		API:    chatapi.NewClientWithLogger(e.server.URL, store, nil, e.logger),
		env:    e,
		logger: e.logger,
	}
}

// Contacts resolves the session's contacts through the HTTP directory.
func (s *Session) Contacts(ctx context.Context) []models.Contact {
	return service.NewContactService(s.Store, s.API, s.logger).Resolve(ctx)
}

// Live connects a live channel client for the session. It is closed with the test.
func (s *Session) Live(ctx context.Context) *livechannel.Client {
	s.env.t.Helper()
	lc := livechannel.New(s.env.server.URL, s.Store, s.logger)
	require.NoError(s.env.t, lc.Connect(ctx))
	s.env.t.Cleanup(func() { _ = lc.Close() })
	return lc
}

// Composer returns a composer for the session. live may be nil.
func (s *Session) Composer(live service.LiveChannel) *service.Composer {
	return service.NewComposer(s.API, live, s.logger)
}
