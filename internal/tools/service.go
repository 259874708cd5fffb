// Package tools implements the task tools exposed to agents. Each handler
// resolves the project directory, runs tasq through an Executor and formats
// the output for a human reader.
package tools

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tasq/tasqmcp/internal/core"
	"github.com/tasq/tasqmcp/internal/project"
	"github.com/tasq/tasqmcp/internal/tasq"
)

const (
	MinPriority     = 1
	MaxPriority     = 5
	DefaultPriority = 3
)

type Service struct {
	resolver *project.Resolver
	exec     tasq.Executor
	policy   *core.ToolPolicy
	logger   *slog.Logger
}

func NewService(resolver *project.Resolver, exec tasq.Executor, logger *slog.Logger) *Service {
	if resolver == nil {
		resolver = project.NewResolver(project.DefaultMarker)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{resolver: resolver, exec: exec, logger: logger}
}

// WithPolicy restricts the tools the service lists and runs.
func (s *Service) WithPolicy(policy *core.ToolPolicy) *Service {
	s.policy = policy
	return s
}

type AddTaskParams struct {
	Description string
	Priority    int
	ProjectDir  string
}

type ListTasksParams struct {
	ShowCompleted bool
	ProjectDir    string
}

type CompleteTaskParams struct {
	TaskIdentifier string
	ProjectDir     string
}

type SetTaskPriorityParams struct {
	TaskIdentifier string
	Priority       int
	ProjectDir     string
}

func (s *Service) AddTask(ctx context.Context, p AddTaskParams) (Result, error) {
	if err := validatePriority(p.Priority); err != nil {
		return Result{}, err
	}
	dir, err := s.resolver.Resolve(p.ProjectDir)
	if err != nil {
		return Result{}, err
	}
	if _, err := s.exec.Execute(ctx, tasq.AddArgs(p.Description, p.Priority), dir); err != nil {
		return Result{}, err
	}
	return Result{Text: fmt.Sprintf("✅ Task added: %s (priority: %d)", p.Description, p.Priority)}, nil
}

func (s *Service) ListTasks(ctx context.Context, p ListTasksParams) (Result, error) {
	filter := tasq.ListPending
	if p.ShowCompleted {
		filter = tasq.ListCompleted
	}
	dir, err := s.resolver.Resolve(p.ProjectDir)
	if err != nil {
		return Result{}, err
	}
	out, err := s.exec.Execute(ctx, tasq.ListArgs(filter), dir)
	if err != nil {
		return Result{}, err
	}
	if out == "" {
		return Result{Text: "📝 No tasks found."}, nil
	}
	return Result{Text: "📋 **Tasks:**\n" + out}, nil
}

func (s *Service) GetNextTask(ctx context.Context, projectDir string) (Result, error) {
	dir, err := s.resolver.Resolve(projectDir)
	if err != nil {
		return Result{}, err
	}
	out, err := s.exec.Execute(ctx, tasq.NextArgs(), dir)
	if err != nil {
		return Result{}, err
	}
	if out == "" {
		return Result{Text: "🎉 No pending tasks! All caught up."}, nil
	}
	return Result{Text: nextTaskBlock(out)}, nil
}

// CompleteTask completes a task and then reports what is next in line. A
// failure of the follow-up lookup becomes a warning on the result.
func (s *Service) CompleteTask(ctx context.Context, p CompleteTaskParams) (Result, error) {
	dir, err := s.resolver.Resolve(p.ProjectDir)
	if err != nil {
		return Result{}, err
	}
	out, err := s.exec.Execute(ctx, tasq.CompleteArgs(p.TaskIdentifier), dir)
	if err != nil {
		return Result{}, err
	}
	res := Result{Text: "✅ " + out}

	next := s.next(ctx, dir)
	switch {
	case !next.ok():
		s.logger.Warn("next task lookup failed after completion", "dir", dir, "err", next.err)
		res.Warning = "Could not fetch next task: " + next.err.Error()
	case next.output == "":
		res.Text += "\n\n🎉 All tasks completed! Great work!"
	default:
		res.Text += "\n\n" + nextTaskBlock(next.output)
	}
	return res, nil
}

func (s *Service) SetTaskPriority(ctx context.Context, p SetTaskPriorityParams) (Result, error) {
	if err := validatePriority(p.Priority); err != nil {
		return Result{}, err
	}
	dir, err := s.resolver.Resolve(p.ProjectDir)
	if err != nil {
		return Result{}, err
	}
	out, err := s.exec.Execute(ctx, tasq.SetPriorityArgs(p.TaskIdentifier, p.Priority), dir)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: "🔄 " + out}, nil
}

// GetProjectStatus never fails: any error is rendered into the returned text.
//
// Total, pending and completed are counted from three separate listings, so
// total is whatever `tasq list` prints and need not equal pending+completed.
func (s *Service) GetProjectStatus(ctx context.Context, projectDir string) Result {
	text, err := s.projectStatus(ctx, projectDir)
	if err != nil {
		s.logger.Warn("project status failed", "project_dir", projectDir, "err", err)
		return Result{Text: "❌ Error getting project status: " + err.Error()}
	}
	return Result{Text: text}
}

func (s *Service) projectStatus(ctx context.Context, projectDir string) (string, error) {
	dir, err := s.resolver.Resolve(projectDir)
	if err != nil {
		return "", err
	}
	all, err := s.exec.Execute(ctx, tasq.ListArgs(tasq.ListAll), dir)
	if err != nil {
		return "", err
	}
	pending, err := s.exec.Execute(ctx, tasq.ListArgs(tasq.ListPending), dir)
	if err != nil {
		return "", err
	}
	completed, err := s.exec.Execute(ctx, tasq.ListArgs(tasq.ListCompleted), dir)
	if err != nil {
		return "", err
	}
	// A failed next lookup just means there is no next block.
	next := s.next(ctx, dir)

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}

	status := fmt.Sprintf("📊 **Project: %s**\n", filepath.Base(absDir))
	status += fmt.Sprintf("📁 Path: %s\n", absDir)
	status += fmt.Sprintf("📝 Total tasks: %d\n", tasq.CountLines(all))
	status += fmt.Sprintf("⏳ Pending: %d\n", tasq.CountLines(pending))
	status += fmt.Sprintf("✅ Completed: %d\n\n", tasq.CountLines(completed))

	if next.ok() && next.output != "" {
		status += nextTaskBlock(next.output) + "\n\n"
	}

	if pending != "" {
		status += "📋 **Pending tasks:**\n" + pending
	} else {
		status += "🎉 All tasks completed!"
	}
	return status, nil
}

// OpenTaskUI only resolves the project; it never starts the interactive UI.
func (s *Service) OpenTaskUI(_ context.Context, projectDir string) (Result, error) {
	dir, err := s.resolver.Resolve(projectDir)
	if err != nil {
		return Result{}, err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: fmt.Sprintf(uiInstructions, absDir, tasq.DefaultProgram)}, nil
}

// InitProject runs `tasq init` in the given directory unless it is already a
// project root. AutoDetect means the working directory itself.
func (s *Service) InitProject(ctx context.Context, projectDir string) (Result, error) {
	dir := projectDir
	if projectDir == project.AutoDetect {
		wd, err := s.resolver.WorkingDir()
		if err != nil {
			return Result{}, fmt.Errorf("resolve working directory: %w", err)
		}
		dir = wd
	} else {
		info, err := os.Stat(projectDir)
		if err != nil || !info.IsDir() {
			return Result{}, core.InvalidArgument("Directory %s does not exist.", projectDir)
		}
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return Result{}, err
	}
	if s.resolver.HasMarker(dir) {
		return Result{Text: fmt.Sprintf("ℹ️ TasQ is already initialized in %s", absDir)}, nil
	}

	out, err := s.exec.Execute(ctx, tasq.InitArgs(), dir)
	if err != nil {
		return Result{}, err
	}
	if out == "" {
		return Result{Text: fmt.Sprintf("🚀 TasQ initialized in %s", absDir)}, nil
	}
	return Result{Text: "🚀 " + out}, nil
}

func (s *Service) next(ctx context.Context, dir string) step {
	out, err := s.exec.Execute(ctx, tasq.NextArgs(), dir)
	return step{output: out, err: err}
}

func nextTaskBlock(out string) string {
	return "⏭️ **Next task:**\n" + out
}

func validatePriority(priority int) error {
	if priority < MinPriority || priority > MaxPriority {
		return core.InvalidArgument("Priority must be between %d and %d", MinPriority, MaxPriority)
	}
	return nil
}

const uiInstructions = `
🖥️ **Open TasQ Interactive UI:**

To open the interactive terminal UI for task management:

1. Open a terminal
2. Navigate to: ` + "`%s`" + `
3. Run: ` + "`%s`" + `

**TUI Controls:**
- ↑/↓ or j/k: Navigate tasks
- Space: Toggle completion
- Enter: View task details
- i: Add new task
- d: Delete task
- +/-: Change priority
- c: Toggle show completed
- q: Quit

The TUI provides a rich interactive interface for managing your tasks!
`
