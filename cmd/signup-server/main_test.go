package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-signup/config"
)

func TestDumpConfigPrintsJSON(t *testing.T) {
	cfg := config.Defaults()
	cfg.Server.Addr = ":9999"

	var buf bytes.Buffer
	dumpConfig(&buf, cfg)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 3)
	assert.Equal(t, "============", lines[0])
	assert.Equal(t, "============", lines[len(lines)-1])

	body := strings.Join(lines[1:len(lines)-1], "\n")
	decoded := map[string]any{}
	require.NoError(t, json.Unmarshal([]byte(body), &decoded), body)

	server, ok := decoded["server"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, ":9999", server["addr"])
}

func TestRootCommandFlags(t *testing.T) {
	cmd := newRootCmd()
	for _, name := range []string{"config", "addr", "latency"} {
		assert.NotNil(t, cmd.Flags().Lookup(name), name)
	}
}
