package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runCLI executes the root command with args plus a throwaway config file,
// returning captured stdout, stderr, and the execution error. Commands that
// need stdin pass it via in.
func runCLI(t *testing.T, in io.Reader, args ...string) (string, string, error) {
	t.Helper()

	root := NewRootCommand()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	if in != nil {
		root.SetIn(in)
	}
	root.SetArgs(append([]string{"-c", writeTestConfig(t, minimalConfigYAML), "--no-color"}, args...))
	err := root.Execute()
	return out.String(), errOut.String(), err
}

const minimalConfigYAML = "logging:\n  level: error\n"

func writeTestConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "landquant.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func writeFeaturesFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "features.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestRootCommand_ListsSubcommands(t *testing.T) {
	root := NewRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"scan", "score", "detect", "search", "profiles"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommand_UnknownOutputFormat(t *testing.T) {
	_, _, err := runCLI(t, nil, "profiles", "--offline", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestRootCommand_BadConfigPathFails(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	root.SetArgs([]string{"-c", "/nonexistent/landquant.yaml", "profiles", "--offline"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestFormatTable(t *testing.T) {
	got := FormatTable(
		[]string{"ID", "Name"},
		[][]string{
			{"1", "alpha"},
			{"2", "a-much-longer-name"},
		},
	)

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "ID  Name", strings.TrimRight(lines[0], " "))
	assert.Contains(t, lines[1], "--")
	assert.Contains(t, lines[3], "a-much-longer-name")
	// Columns line up: every data cell starts where its header starts.
	assert.Equal(t, strings.Index(lines[0], "Name"), strings.Index(lines[3], "a-much-longer-name"))
}

func TestPrintResultJSON(t *testing.T) {
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}
	require.NoError(t, PrintResult(root, payload{Name: "quantum", Count: 3}, "json"))

	var got payload
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, payload{Name: "quantum", Count: 3}, got)
}

func TestParseCoordinate(t *testing.T) {
	c, err := parseCoordinate("33.45, -112.07")
	require.NoError(t, err)
	assert.InDelta(t, 33.45, c.Lat, 1e-9)
	assert.InDelta(t, -112.07, c.Lon, 1e-9)

	for _, bad := range []string{"", "33.45", "a,b", "95.0,-112.07", "33.45,-181.0"} {
		_, err := parseCoordinate(bad)
		assert.Error(t, err, "coordinate %q should not parse", bad)
	}
}
