package config

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"dashchat/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigWatcher_Start_InvalidPath(t *testing.T) {
	watcher := NewConfigWatcher("/nonexistent/config.json", logrus.New())

	err := watcher.Start(context.Background())
	assert.Error(t, err)
	assert.Nil(t, watcher.GetConfig())
}

func TestConfigWatcher_ReloadsAndNotifies(t *testing.T) {
	path := writeConfig(t, `{"database": {"path": "a.db"}, "auth": {"jwt_secret": "`+testSecret+`"}, "retentionDays": 30}`)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	watcher := NewConfigWatcher(path, logger)
	watcher.SetPollInterval(10 * time.Millisecond)

	var mu sync.Mutex
	var seen []int
	watcher.OnConfigChange(func(cfg *models.Config) {
		mu.Lock()
		seen = append(seen, cfg.RetentionDays)
		mu.Unlock()
	})
	watcher.OnConfigChange(func(*models.Config) { panic("callback failure must not stop the watcher") })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- watcher.Start(ctx) }()

	require.Eventually(t, func() bool { return watcher.GetConfig() != nil }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 30, watcher.GetConfig().RetentionDays)

	require.NoError(t, os.WriteFile(path, []byte(`{"database": {"path": "a.db"}, "auth": {"jwt_secret": "`+testSecret+`"}, "retentionDays": 60}`), 0600))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1 && seen[0] == 60
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 60, watcher.GetConfig().RetentionDays)

	cancel()
	assert.NoError(t, <-done)
}

func TestConfigWatcher_KeepsConfigOnBadReload(t *testing.T) {
	path := writeConfig(t, `{"database": {"path": "a.db"}, "auth": {"jwt_secret": "`+testSecret+`"}}`)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	watcher := NewConfigWatcher(path, logger)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	watcher.config = cfg

	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0600))
	watcher.reloadConfig()

	assert.Same(t, cfg, watcher.GetConfig())
}
