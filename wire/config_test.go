package wire

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultConfigEverythingEnabled(t *testing.T) {
	cfg := DefaultConfig()
	require.True(t, cfg.CalltraceEnabled)
	require.True(t, cfg.CalltraceCallArgs)
	require.True(t, cfg.FlowEnabled)
	require.True(t, cfg.EventsEnabled)
	require.True(t, cfg.TraceEnabled)
	require.True(t, cfg.HistoryEnabled)
	require.True(t, cfg.ReplEnabled)
	require.True(t, cfg.Telemetry)
}

func TestParseConfigPartialUpdateKeepsOtherDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`{"calltrace.callArgs": false}`))
	require.NoError(t, err)
	require.False(t, cfg.CalltraceCallArgs)
	require.True(t, cfg.CalltraceEnabled)
	require.True(t, cfg.FlowEnabled)
}

func TestParseConfigRejectsUnknownFlowUI(t *testing.T) {
	_, err := ParseConfig([]byte(`{"flow.ui": "sideways"}`))
	require.Error(t, err)
}

func TestParseConfigEmptyPayloadReturnsDefaults(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestCallTreeModeDowngradesWhenCallArgsDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CalltraceCallArgs = false
	enabled, callArgs := cfg.CallTreeMode()
	require.True(t, enabled)
	require.False(t, callArgs)
}

func TestCallTreeModeDisabledEntirely(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CalltraceEnabled = false
	enabled, callArgs := cfg.CallTreeMode()
	require.False(t, enabled)
	require.False(t, callArgs)
}
