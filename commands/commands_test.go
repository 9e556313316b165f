package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"auto_x_thread_publisher/config"
	"auto_x_thread_publisher/draft"
	"auto_x_thread_publisher/publisher"
	"auto_x_thread_publisher/thread"
)

func testFlags(t *testing.T) *Flags {
	t.Helper()
	t.Chdir(t.TempDir())
	cfg, err := config.Load("")
	require.NoError(t, err)
	return &Flags{Config: cfg, ThreadsDir: filepath.Join(t.TempDir(), "threads")}
}

func runApp(t *testing.T, flags *Flags, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := &cli.Command{Name: "xthread", Writer: &out}
	app = NewLsCmd(flags).Register(app)
	app = NewPreviewCmd(flags).Register(app)
	app = NewInitCmd(flags).Register(app)
	app = NewNewCmd(flags).Register(app)
	app = NewPublishCmd(flags).Register(app)

	err := app.Run(context.Background(), append([]string{"xthread"}, args...))
	return out.String(), err
}

func seed(t *testing.T, flags *Flags) string {
	t.Helper()
	id, err := flags.Store().Save("Rust vs Go", []draft.Post{
		draft.NewPost("1/2 Two languages", "rust crab"),
		draft.NewPost("2/2 Pick one", "gopher"),
	})
	require.NoError(t, err)
	return id
}

func TestStore_ThreadsDirOverride(t *testing.T) {
	flags := testFlags(t)
	assert.Equal(t, flags.ThreadsDir, flags.Store().Root())

	flags.ThreadsDir = ""
	assert.Equal(t, "threads", flags.Store().Root())
}

func TestLs(t *testing.T) {
	flags := testFlags(t)
	id := seed(t, flags)

	out, err := runApp(t, flags, "ls")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ID"))
	assert.Contains(t, lines[1], id)
	assert.Contains(t, lines[1], "DRAFT")
	assert.Contains(t, lines[1], "Rust vs Go")
}

func TestLs_JSON(t *testing.T) {
	flags := testFlags(t)
	id := seed(t, flags)

	out, err := runApp(t, flags, "ls", "--json")
	require.NoError(t, err)

	var info draftInfo
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(out)), &info))
	assert.Equal(t, id, info.ID)
	assert.Equal(t, 2, info.Tweets)
	assert.NotEmpty(t, info.Created)
}

func TestLs_Empty(t *testing.T) {
	out, err := runApp(t, testFlags(t), "ls")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestPreview(t *testing.T) {
	flags := testFlags(t)
	id := seed(t, flags)

	out, err := runApp(t, flags, "preview", "--style", "notty", "thread_"+id)
	require.NoError(t, err)
	assert.Contains(t, out, "Rust vs Go")
	assert.Contains(t, out, "Pick one")

	_, err = runApp(t, flags, "preview", "missing")
	require.Error(t, err)
	_, err = runApp(t, flags, "preview")
	require.Error(t, err)
}

func TestInit(t *testing.T) {
	flags := testFlags(t)
	flags.ConfigPath = filepath.Join(t.TempDir(), "xthread.toml")

	out, err := runApp(t, flags, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote")
	assert.FileExists(t, flags.ConfigPath)

	_, err = runApp(t, flags, "init")
	require.ErrorContains(t, err, "already exists")
}

func TestNew_ArgumentAndKeyChecks(t *testing.T) {
	flags := testFlags(t)

	_, err := runApp(t, flags, "new")
	require.ErrorContains(t, err, "topic is required")

	t.Setenv(flags.Config.LLM.APIKeyEnv, "")
	_, err = runApp(t, flags, "new", "some", "topic")
	require.ErrorContains(t, err, "setup generator")

	entries, _ := os.ReadDir(flags.ThreadsDir)
	assert.Empty(t, entries, "nothing runs without a key")
}

func TestPublish_RequiresID(t *testing.T) {
	_, err := runApp(t, testFlags(t), "publish")
	require.Error(t, err)
}

func TestAgent_Mock(t *testing.T) {
	flags := testFlags(t)
	flags.Config.LLM.Provider = "mock"

	agent, err := flags.Agent()
	require.NoError(t, err)
	th, err := agent.Generate(context.Background(), "tea", 2)
	require.NoError(t, err)
	assert.Len(t, th.Posts, 2)

	mgr, err := flags.Manager(agent)
	require.NoError(t, err)
	assert.NotNil(t, mgr)
}

func TestReport(t *testing.T) {
	var out bytes.Buffer
	c := &cli.Command{Writer: &out}

	report(c, thread.Result{Declined: true})
	assert.Contains(t, out.String(), "Nothing was saved")

	out.Reset()
	report(c, thread.Result{Declined: true, ThreadID: "20260101_000000"})
	assert.Contains(t, out.String(), "Draft kept as 20260101_000000")

	out.Reset()
	report(c, thread.Result{
		ThreadID:       "20260101_000000",
		ImagesAttached: 2,
		Publish:        publisher.Result{State: publisher.Submitted, Slots: 3, Hazards: []int{1}},
	})
	assert.Contains(t, out.String(), "Published 20260101_000000: 3 tweets, 2 images (submitted)")
	assert.Contains(t, out.String(), "Check tweets [2]")
}
