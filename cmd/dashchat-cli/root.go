package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"dashchat/internal/auth"
	"dashchat/internal/credentials"
	apperrors "dashchat/internal/errors"
	"dashchat/pkg/chatapi"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Environment variables read by the CLI when the matching flag is not set.
const (
	serverEnv  = "DASHCHAT_SERVER"
	dataDirEnv = "DASHCHAT_DATA_DIR"

	defaultServer = "http://localhost:8082"
)

// app is the state shared by every command of one invocation.
type app struct {
	server  string
	dataDir string
	verbose bool

	logger *logrus.Logger
	store  *credentials.Store
}

func newApp() *app {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	return &app{logger: logger}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "dashchat-cli",
		Short: "Command line client for the dashchat message store",
		Long: `dashchat-cli signs in to a dashchat server, lists the contacts and
conversations visible to you and sends messages over HTTP or the live channel.`,
		Version:       fmt.Sprintf("%s (commit: %s)", Version, GitCommit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open(cmd)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.PersistentFlags().StringVarP(&a.server, "server", "s", "", "server base URL (default is the last server logged in to, then $"+serverEnv+")")
	root.PersistentFlags().StringVar(&a.dataDir, "data-dir", "", "directory holding stored credentials (default is $"+dataDirEnv+" or ~/.dashchat)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newContactsCmd(a),
		newConversationsCmd(a),
		newSendCmd(a),
	)
	return root
}

// open applies the global flags and opens the credential store.
func (a *app) open(cmd *cobra.Command) error {
	a.logger.SetOutput(cmd.ErrOrStderr())
	if a.verbose {
		a.logger.SetLevel(logrus.DebugLevel)
	}

	dir, err := a.resolveDataDir()
	if err != nil {
		return err
	}
	store, err := credentials.Open(dir)
	if err != nil {
		return err
	}
	a.store = store

	if a.server == "" {
		stored, err := store.Get(credentials.ServerKey)
		if err != nil {
			return err
		}
		a.server = firstNonEmpty(stored, os.Getenv(serverEnv), defaultServer)
	}
	a.server = strings.TrimSuffix(a.server, "/")

	a.logger.WithFields(logrus.Fields{
		"server":   a.server,
		"data_dir": dir,
	}).Debug("CLI initialized")
	return nil
}

func (a *app) resolveDataDir() (string, error) {
	if a.dataDir != "" {
		return a.dataDir, nil
	}
	if dir := os.Getenv(dataDirEnv); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeMissingConfig, "cannot locate home directory; pass --data-dir")
	}
	return filepath.Join(home, ".dashchat"), nil
}

func (a *app) close() {
	if a.store == nil {
		return
	}
	if err := a.store.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close credential store")
	}
	a.store = nil
}

// client returns a message store client authenticated with the stored token.
func (a *app) client() *chatapi.Client {
	return chatapi.NewClientWithLogger(a.server, a.store, nil, a.logger)
}

// identity decodes the stored token. Callers that need a signed-in user get
// an authentication error when there is none.
func (a *app) identity() (auth.Identity, error) {
	token, err := a.store.Token()
	if err != nil {
		return auth.Identity{}, err
	}
	identity := auth.Decode(token)
	if identity.IsZero() {
		return identity, apperrors.NewAuthError("not logged in").
			WithUserMessage("Not logged in. Run dashchat-cli login first")
	}
	return identity, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func printf(w io.Writer, format string, args ...interface{}) {
	_, _ = fmt.Fprintf(w, format, args...)
}
