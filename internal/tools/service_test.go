package tools

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tasq/tasqmcp/internal/core"
	"github.com/tasq/tasqmcp/internal/project"
)

type call struct {
	args []string
	dir  string
}

type reply struct {
	out string
	err error
}

// fakeExecutor answers by the space-joined argument vector.
type fakeExecutor struct {
	replies map[string]reply
	calls   []call
}

func (f *fakeExecutor) Execute(_ context.Context, args []string, dir string) (string, error) {
	f.calls = append(f.calls, call{args: append([]string(nil), args...), dir: dir})
	r, ok := f.replies[strings.Join(args, " ")]
	if !ok {
		return "", nil
	}
	return r.out, r.err
}

func (f *fakeExecutor) argv() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, strings.Join(c.args, " "))
	}
	return out
}

func newProject(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "proj")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, project.DefaultMarker), 0o755))
	return dir
}

func newService(t *testing.T, wd string, replies map[string]reply) (*Service, *fakeExecutor) {
	t.Helper()
	fake := &fakeExecutor{replies: replies}
	resolver := project.NewResolver(project.DefaultMarker)
	resolver.Getwd = func() (string, error) { return wd, nil }
	return NewService(resolver, fake, nil), fake
}

var commandFailed = core.CommandFailed(errors.New("exit status 1"), "TasQ command failed: database is locked")

func TestPriorityOutOfRangeStartsNoSubprocess(t *testing.T) {
	dir := newProject(t)
	for _, p := range []int{-1, 0, 6, 100} {
		svc, fake := newService(t, dir, nil)

		_, err := svc.AddTask(context.Background(), AddTaskParams{Description: "x", Priority: p, ProjectDir: dir})
		require.Error(t, err)
		assert.True(t, core.IsKind(err, core.KindInvalidArgument), "add priority %d", p)

		_, err = svc.SetTaskPriority(context.Background(), SetTaskPriorityParams{TaskIdentifier: "1", Priority: p, ProjectDir: dir})
		require.Error(t, err)
		assert.True(t, core.IsKind(err, core.KindInvalidArgument), "set priority %d", p)

		assert.Empty(t, fake.calls)
	}
}

func TestPriorityValidatedBeforeResolution(t *testing.T) {
	svc, fake := newService(t, t.TempDir(), nil)

	_, err := svc.AddTask(context.Background(), AddTaskParams{Description: "x", Priority: 9, ProjectDir: "/does/not/exist"})
	assert.True(t, core.IsKind(err, core.KindInvalidArgument))
	assert.Equal(t, "Priority must be between 1 and 5", err.Error())
	assert.Empty(t, fake.calls)
}

func TestAddTask(t *testing.T) {
	dir := newProject(t)
	svc, fake := newService(t, dir, map[string]reply{"add buy milk --priority 2": {out: "Added task: buy milk (priority: 2)"}})

	res, err := svc.AddTask(context.Background(), AddTaskParams{Description: "buy milk", Priority: 2, ProjectDir: project.AutoDetect})
	require.NoError(t, err)
	assert.Equal(t, "✅ Task added: buy milk (priority: 2)", res.String())
	require.Len(t, fake.calls, 1)
	assert.Equal(t, dir, fake.calls[0].dir)
}

func TestAddTaskProjectNotFound(t *testing.T) {
	svc, fake := newService(t, t.TempDir(), nil)
	svc.resolver.Marker = ".tasqmcp-test-marker"

	_, err := svc.AddTask(context.Background(), AddTaskParams{Description: "x", Priority: 3, ProjectDir: project.AutoDetect})
	require.Error(t, err)
	assert.True(t, core.IsKind(err, core.KindProjectNotFound))
	assert.Contains(t, err.Error(), "tasq init")
	assert.Contains(t, err.Error(), "project_dir")
	assert.Empty(t, fake.calls)
}

func TestListTasks(t *testing.T) {
	dir := newProject(t)
	svc, fake := newService(t, dir, map[string]reply{
		"list --pending": {out: "T1 buy milk\nT2 write docs"},
	})

	res, err := svc.ListTasks(context.Background(), ListTasksParams{ProjectDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "📋 **Tasks:**\nT1 buy milk\nT2 write docs", res.String())

	res, err = svc.ListTasks(context.Background(), ListTasksParams{ShowCompleted: true, ProjectDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "📝 No tasks found.", res.String())

	assert.Equal(t, []string{"list --pending", "list --completed"}, fake.argv())
}

func TestListTasksPropagatesFailure(t *testing.T) {
	dir := newProject(t)
	svc, _ := newService(t, dir, map[string]reply{"list --pending": {err: commandFailed}})

	_, err := svc.ListTasks(context.Background(), ListTasksParams{ProjectDir: dir})
	assert.True(t, core.IsKind(err, core.KindCommandFailed))
}

func TestGetNextTask(t *testing.T) {
	dir := newProject(t)
	svc, _ := newService(t, dir, nil)

	res, err := svc.GetNextTask(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "🎉 No pending tasks! All caught up.", res.String())
	assert.NotContains(t, res.String(), "**Next task:**")

	svc, _ = newService(t, dir, map[string]reply{"next": {out: "Next task: [3] !!!! ship it"}})
	res, err = svc.GetNextTask(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "⏭️ **Next task:**\nNext task: [3] !!!! ship it", res.String())
}

func TestCompleteTaskChainsNext(t *testing.T) {
	dir := newProject(t)
	svc, fake := newService(t, dir, map[string]reply{
		"complete 7": {out: "Task 7 done"},
		"next":       {out: "Next task: [8] !!! review"},
	})

	res, err := svc.CompleteTask(context.Background(), CompleteTaskParams{TaskIdentifier: "7", ProjectDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "✅ Task 7 done\n\n⏭️ **Next task:**\nNext task: [8] !!! review", res.String())
	assert.Equal(t, []string{"complete 7", "next"}, fake.argv())
}

func TestCompleteTaskAllDone(t *testing.T) {
	dir := newProject(t)
	svc, _ := newService(t, dir, map[string]reply{"complete 7": {out: "Task 7 done"}})

	res, err := svc.CompleteTask(context.Background(), CompleteTaskParams{TaskIdentifier: "7", ProjectDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "✅ Task 7 done\n\n🎉 All tasks completed! Great work!", res.String())
	assert.Empty(t, res.Warning)
}

func TestCompleteTaskNextFailureIsWarning(t *testing.T) {
	dir := newProject(t)
	svc, _ := newService(t, dir, map[string]reply{
		"complete 7": {out: "Task 7 done"},
		"next":       {err: commandFailed},
	})

	res, err := svc.CompleteTask(context.Background(), CompleteTaskParams{TaskIdentifier: "7", ProjectDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "✅ Task 7 done", res.Text)
	assert.Equal(t, "Could not fetch next task: TasQ command failed: database is locked", res.Warning)
	assert.Equal(t, "✅ Task 7 done\n\n⚠️ Could not fetch next task: TasQ command failed: database is locked", res.String())
}

func TestCompleteTaskPrimaryFailurePropagates(t *testing.T) {
	dir := newProject(t)
	svc, fake := newService(t, dir, map[string]reply{"complete 7": {err: commandFailed}})

	_, err := svc.CompleteTask(context.Background(), CompleteTaskParams{TaskIdentifier: "7", ProjectDir: dir})
	assert.True(t, core.IsKind(err, core.KindCommandFailed))
	assert.Equal(t, []string{"complete 7"}, fake.argv())
}

func TestSetTaskPriority(t *testing.T) {
	dir := newProject(t)
	svc, _ := newService(t, dir, map[string]reply{"set-priority milk 1": {out: "Set priority 1 for task: buy milk"}})

	res, err := svc.SetTaskPriority(context.Background(), SetTaskPriorityParams{TaskIdentifier: "milk", Priority: 1, ProjectDir: dir})
	require.NoError(t, err)
	assert.Equal(t, "🔄 Set priority 1 for task: buy milk", res.String())
}

func TestGetProjectStatus(t *testing.T) {
	dir := newProject(t)
	svc, fake := newService(t, dir, map[string]reply{
		"list":             {out: "T1\nT2\nT3\nT4"},
		"list --pending":   {out: "T1\nT2"},
		"list --completed": {out: "T3"},
		"next":             {out: "T1 buy milk"},
	})

	res := svc.GetProjectStatus(context.Background(), dir)
	want := "📊 **Project: proj**\n" +
		"📁 Path: " + dir + "\n" +
		"📝 Total tasks: 4\n" +
		"⏳ Pending: 2\n" +
		"✅ Completed: 1\n\n" +
		"⏭️ **Next task:**\nT1 buy milk\n\n" +
		"📋 **Pending tasks:**\nT1\nT2"
	assert.Equal(t, want, res.String())
	assert.Equal(t, []string{"list", "list --pending", "list --completed", "next"}, fake.argv())
}

func TestGetProjectStatusEmptyAndNextFailure(t *testing.T) {
	dir := newProject(t)
	svc, _ := newService(t, dir, map[string]reply{"next": {err: commandFailed}})

	res := svc.GetProjectStatus(context.Background(), dir)
	assert.Contains(t, res.Text, "📝 Total tasks: 0\n")
	assert.Contains(t, res.Text, "⏳ Pending: 0\n")
	assert.Contains(t, res.Text, "✅ Completed: 0\n\n")
	assert.NotContains(t, res.Text, "Next task")
	assert.NotContains(t, res.Text, "database is locked")
	assert.True(t, strings.HasSuffix(res.Text, "🎉 All tasks completed!"))
}

func TestGetProjectStatusNeverFails(t *testing.T) {
	dir := newProject(t)
	cases := map[string]map[string]reply{
		"all":       {"list": {err: commandFailed}},
		"pending":   {"list --pending": {err: commandFailed}},
		"completed": {"list --completed": {err: commandFailed}},
		"not found": {"list": {err: core.ExecutableNotFound(nil, "TasQ binary not found.")}},
	}
	for name, replies := range cases {
		t.Run(name, func(t *testing.T) {
			svc, _ := newService(t, dir, replies)
			res := svc.GetProjectStatus(context.Background(), dir)
			assert.True(t, strings.HasPrefix(res.Text, "❌ Error getting project status: "), res.Text)
		})
	}

	svc, fake := newService(t, t.TempDir(), nil)
	res := svc.GetProjectStatus(context.Background(), filepath.Join(t.TempDir(), "nowhere"))
	assert.Contains(t, res.Text, "❌ Error getting project status: No .tasq directory found in")
	assert.Empty(t, fake.calls)
}

func TestOpenTaskUI(t *testing.T) {
	dir := newProject(t)
	svc, fake := newService(t, filepath.Join(dir, project.DefaultMarker), nil)

	res, err := svc.OpenTaskUI(context.Background(), project.AutoDetect)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "2. Navigate to: `"+dir+"`")
	assert.Contains(t, res.Text, "3. Run: `tasq`")
	assert.Empty(t, fake.calls)

	_, err = svc.OpenTaskUI(context.Background(), t.TempDir())
	assert.True(t, core.IsKind(err, core.KindProjectNotFound))
}

func TestInitProject(t *testing.T) {
	dir := t.TempDir()
	svc, fake := newService(t, dir, map[string]reply{"init": {out: "✅ Created .tasq/ directory structure"}})

	res, err := svc.InitProject(context.Background(), project.AutoDetect)
	require.NoError(t, err)
	assert.Equal(t, "🚀 ✅ Created .tasq/ directory structure", res.String())
	require.Len(t, fake.calls, 1)
	assert.Equal(t, dir, fake.calls[0].dir)
}

func TestInitProjectAlreadyInitialized(t *testing.T) {
	dir := newProject(t)
	svc, fake := newService(t, t.TempDir(), nil)

	res, err := svc.InitProject(context.Background(), dir)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "already initialized")
	assert.Empty(t, fake.calls)
}

func TestInitProjectMissingDirectory(t *testing.T) {
	svc, fake := newService(t, t.TempDir(), nil)

	_, err := svc.InitProject(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.True(t, core.IsKind(err, core.KindInvalidArgument))
	assert.Empty(t, fake.calls)
}

func TestCallAppliesDefaults(t *testing.T) {
	dir := newProject(t)
	svc, fake := newService(t, dir, nil)

	res, err := svc.Call(context.Background(), ToolAddTask, json.RawMessage(`{"description":"write docs"}`))
	require.NoError(t, err)
	assert.Equal(t, "✅ Task added: write docs (priority: 3)", res.String())

	_, err = svc.Call(context.Background(), ToolListTasks, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"add write docs --priority 3", "list --pending"}, fake.argv())
	assert.Equal(t, dir, fake.calls[0].dir)
}

func TestCallValidation(t *testing.T) {
	dir := newProject(t)
	svc, fake := newService(t, dir, nil)

	tests := []struct {
		name string
		tool string
		raw  string
	}{
		{name: "missing description", tool: ToolAddTask, raw: `{}`},
		{name: "explicit zero priority", tool: ToolAddTask, raw: `{"description":"x","priority":0}`},
		{name: "priority wrong type", tool: ToolAddTask, raw: `{"description":"x","priority":"high"}`},
		{name: "missing identifier", tool: ToolCompleteTask, raw: `{}`},
		{name: "missing priority", tool: ToolSetTaskPriority, raw: `{"task_identifier":"1"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Call(context.Background(), tt.tool, json.RawMessage(tt.raw))
			require.Error(t, err)
			assert.True(t, core.IsKind(err, core.KindInvalidArgument), err.Error())
		})
	}
	assert.Empty(t, fake.calls)
}

func TestCallUnknownTool(t *testing.T) {
	svc, _ := newService(t, t.TempDir(), nil)
	_, err := svc.Call(context.Background(), "delete_everything", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)
}

func TestDefinitionsCoverEveryTool(t *testing.T) {
	svc, _ := newService(t, t.TempDir(), nil)
	for _, def := range Definitions() {
		name, _ := def["name"].(string)
		_, err := svc.Call(context.Background(), name, json.RawMessage(`{"project_dir":"/nonexistent/tasqmcp"}`))
		assert.NotErrorIs(t, err, ErrUnknownTool, name)
	}
	assert.Len(t, Definitions(), 8)
}

func TestPolicyHidesAndBlocksTools(t *testing.T) {
	dir := newProject(t)
	svc, fake := newService(t, dir, map[string]reply{"next": {out: "T1"}})
	svc.WithPolicy(core.NewToolPolicy([]string{ToolGetNextTask}))

	defs := svc.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, ToolGetNextTask, defs[0]["name"])

	_, err := svc.Call(context.Background(), ToolAddTask, json.RawMessage(`{"description":"x"}`))
	assert.ErrorIs(t, err, core.ErrToolNotAllowed)
	assert.Empty(t, fake.calls)

	_, err = svc.Call(context.Background(), "delete_everything", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)

	res, err := svc.Call(context.Background(), ToolGetNextTask, nil)
	require.NoError(t, err)
	assert.Equal(t, "⏭️ **Next task:**\nT1", res.Text)
}
