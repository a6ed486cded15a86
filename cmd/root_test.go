package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nlcdFixture = "../internal/lcc/testdata/nlcd.lcc"

// resetFlags restores every flag of cmd and its children to its default so
// tests sharing the global commands do not leak state.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTabulation(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tab.csv")
	body := "HUC12,VALUE_11,VALUE_21,VALUE_41\nu1,60,10,30\nu2,0,0,0\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"lcc", "fields", "lcp", "lccc", "serve", "runs"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "attila", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRunCommands_Flags(t *testing.T) {
	for _, cmd := range []*cobra.Command{lcpCmd, lcccCmd} {
		for _, name := range []string{"lcc", "empty-classes", "tabulation", "units", "output", "format", "max-field-length", "class"} {
			assert.NotNil(t, cmd.Flags().Lookup(name), "%s should have --%s", cmd.Name(), name)
		}
	}
	assert.Equal(t, "-1", lcpCmd.Flags().Lookup("max-field-length").DefValue)
	assert.NotNil(t, lcpCmd.Flags().Lookup("family"))
	assert.NotNil(t, lcccCmd.Flags().Lookup("coefficient"))
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestLCP_EndToEnd(t *testing.T) {
	out := filepath.Join(t.TempDir(), "lcp.csv")

	_, stderr, err := execute(t, "lcp",
		"--lcc", nlcdFixture,
		"--empty-classes", "keep",
		"--tabulation", writeTabulation(t),
		"--unit-field", "HUC12",
		"-o", out,
	)
	require.NoError(t, err)
	assert.Contains(t, stderr, "lcp: 2 units")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "HUC12,NINDEX,pfor,pwetl,UINDEX,pdev,pagt,pwater,LC_Effect,LC_Excl,LC_Overlap", lines[0])
	assert.Equal(t, "u1,75,75,0,25,25,0,-1,40,60,100", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "u2,"))
}

func TestLCP_RepeatedInOneProcess(t *testing.T) {
	tab := writeTabulation(t)
	for i := range 2 {
		out := filepath.Join(t.TempDir(), "lcp.csv")
		_, _, err := execute(t, "lcp",
			"--lcc", nlcdFixture,
			"--empty-classes", "keep",
			"--tabulation", tab,
			"--unit-field", "HUC12",
			"-o", out,
		)
		require.NoError(t, err, "run %d", i)
	}
	for _, c := range []*cobra.Command{lcpCmd, lcccCmd} {
		if ctx := c.Context(); ctx != nil {
			assert.NoError(t, ctx.Err(), "%s keeps a cancelled context", c.Name())
		}
	}
}

func TestLCCC_EndToEnd(t *testing.T) {
	out := filepath.Join(t.TempDir(), "lccc.csv")

	_, _, err := execute(t, "lccc",
		"--lcc", nlcdFixture,
		"--empty-classes", "keep",
		"--tabulation", writeTabulation(t),
		"--unit-field", "HUC12",
		"--coefficient", "NITROGEN",
		"-o", out,
	)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Equal(t, "HUC12,N_Load,LC_Effect,LC_Excl,LC_Overlap", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "u1,4.1875,"), lines[1])
}

func TestLCP_RequiresEmptyClassPolicy(t *testing.T) {
	_, _, err := execute(t, "lcp",
		"--lcc", nlcdFixture,
		"--tabulation", writeTabulation(t),
		"--unit-field", "HUC12",
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty-classes")
}

func TestLCP_UnknownClass(t *testing.T) {
	_, _, err := execute(t, "lcp",
		"--lcc", nlcdFixture,
		"--empty-classes", "keep",
		"--tabulation", writeTabulation(t),
		"--unit-field", "HUC12",
		"--class", "for,nope",
		"-o", filepath.Join(t.TempDir(), "out.csv"),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot build output fields")
}

func TestLCCShow(t *testing.T) {
	stdout, _, err := execute(t, "lcc", "show", "--lcc", nlcdFixture, "--empty-classes", "keep")
	require.NoError(t, err)
	assert.Contains(t, stdout, "name: NLCD 2001")
	assert.Contains(t, stdout, "field_name: PCTIA")

	stdout, _, err = execute(t, "lcc", "show", "--lcc", nlcdFixture, "--empty-classes", "keep", "--format", "tree")
	require.NoError(t, err)
	assert.Contains(t, stdout, "NI  All natural land use")
	assert.Contains(t, stdout, "  for")
}

func TestLCCValues(t *testing.T) {
	stdout, _, err := execute(t, "lcc", "values", "--lcc", nlcdFixture, "--empty-classes", "keep")
	require.NoError(t, err)
	assert.NotContains(t, stdout, "11\tOpen Water")
	assert.Contains(t, stdout, "41\tDeciduous Forest")

	stdout, _, err = execute(t, "lcc", "values", "--all", "--lcc", nlcdFixture, "--empty-classes", "keep")
	require.NoError(t, err)
	assert.Contains(t, stdout, "11\tOpen Water  (excluded)")
}

func TestFields(t *testing.T) {
	stdout, _, err := execute(t, "fields", "--lcc", nlcdFixture, "--empty-classes", "keep",
		"--family", "rlcp", "--class", "for,wetl", "--area-fields")
	require.NoError(t, err)
	assert.Contains(t, stdout, "rfor")
	assert.Contains(t, stdout, "wetl_A")
	assert.Contains(t, stdout, "LC_Overlap")
}

func TestRuns_RecordsHistory(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ATTILA_HISTORY_DRIVER", "sqlite")
	t.Setenv("ATTILA_HISTORY_PATH", filepath.Join(dir, "runs.db"))

	_, _, err := execute(t, "lcp",
		"--lcc", nlcdFixture,
		"--empty-classes", "keep",
		"--tabulation", writeTabulation(t),
		"--unit-field", "HUC12",
		"-o", filepath.Join(dir, "lcp.csv"),
	)
	require.NoError(t, err)

	stdout, _, err := execute(t, "runs", "list", "--family", "lcp")
	require.NoError(t, err)
	assert.Contains(t, stdout, "FAMILY")
	assert.Contains(t, stdout, "NLCD 2001")

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	id := strings.Fields(lines[1])[0]

	_, _, err = execute(t, "runs", "show", "missing-run")
	require.Error(t, err)

	stdout, _, err = execute(t, "runs", "list", "--family", "lccc")
	require.NoError(t, err)
	assert.Empty(t, strings.TrimSpace(stdout))
	assert.Len(t, id, 8)
}

func TestRuns_RequiresDriver(t *testing.T) {
	_, _, err := execute(t, "runs", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "history.driver is required")
}

func TestRoot_ConfigFlag(t *testing.T) {
	fixture, err := filepath.Abs(nlcdFixture)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "attila.yaml")
	body := "lcc:\n  path: " + fixture + "\n  empty_classes: keep\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	stdout, _, err := execute(t, "lcc", "values", "--config", path, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, stdout, "41\tDeciduous Forest")

	_, _, err = execute(t, "lcc", "values", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}
