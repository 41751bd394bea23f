package logs

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silverlining-sec/nimbus/pkg/options"
	"github.com/silverlining-sec/nimbus/pkg/types"
)

func TestConfigureWritesJSONToLogFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nimbus.log")
	require.NoError(t, Configure(false, path))
	t.Cleanup(func() { _ = Configure(false, "") })

	slog.Info("vault migration finished", slog.Int("items", 3))
	slog.Debug("detail only the file should see")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var messages []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		messages = append(messages, entry["msg"].(string))
	}
	assert.Contains(t, messages, "vault migration finished")
	assert.Contains(t, messages, "detail only the file should see")
}

func TestConfigureGatesConsoleDebugOnVerbose(t *testing.T) {
	t.Cleanup(func() { _ = Configure(false, "") })

	require.NoError(t, Configure(false, ""))
	assert.False(t, ConsoleLogger().Enabled(context.Background(), slog.LevelDebug))

	require.NoError(t, Configure(true, ""))
	assert.True(t, ConsoleLogger().Enabled(context.Background(), slog.LevelDebug))
}

func TestNewStageLoggerHonorsPerRunVerbose(t *testing.T) {
	t.Cleanup(func() { _ = Configure(false, "") })
	require.NoError(t, Configure(false, ""))

	quiet := NewStageLogger(context.Background(), nil, "TestStage")
	assert.False(t, quiet.Enabled(context.Background(), slog.LevelDebug))

	opts := []*types.Option{options.WithDefaultValue(options.VerboseOpt, "true")}
	verbose := NewStageLogger(context.Background(), opts, "TestStage")
	assert.True(t, verbose.Enabled(context.Background(), slog.LevelDebug))
}
