package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tasq/tasqmcp/internal/core"
	"github.com/tasq/tasqmcp/internal/project"
)

const (
	ToolAddTask          = "add_task"
	ToolListTasks        = "list_tasks"
	ToolGetNextTask      = "get_next_task"
	ToolCompleteTask     = "complete_task"
	ToolSetTaskPriority  = "set_task_priority"
	ToolGetProjectStatus = "get_project_status"
	ToolOpenTaskUI       = "open_task_ui"
	ToolInitProject      = "init_project"
)

// ErrUnknownTool is returned by Call for names not in Definitions.
var ErrUnknownTool = errors.New("unknown tool")

var projectDirSchema = map[string]any{
	"type":        "string",
	"description": "Project directory (defaults to auto-detect nearest .tasq directory)",
	"default":     project.AutoDetect,
}

var prioritySchema = map[string]any{
	"type":        "integer",
	"description": "Task priority (1=urgent, 2=high, 3=normal, 4=low, 5=very low)",
	"minimum":     MinPriority,
	"maximum":     MaxPriority,
}

func withDefault(schema map[string]any, value any) map[string]any {
	out := make(map[string]any, len(schema)+1)
	for k, v := range schema {
		out[k] = v
	}
	out["default"] = value
	return out
}

// Definitions returns the tool table in MCP tools/list form.
func Definitions() []map[string]any {
	return []map[string]any{
		{
			"name":        ToolAddTask,
			"description": "Add a new task to the current project",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"description": map[string]string{"type": "string", "description": "Task description"},
					"priority":    withDefault(prioritySchema, DefaultPriority),
					"project_dir": projectDirSchema,
				},
				"required": []string{"description"},
			},
		},
		{
			"name":        ToolListTasks,
			"description": "List pending tasks in the current project, or completed tasks when show_completed is set",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"show_completed": map[string]any{"type": "boolean", "description": "List completed tasks instead of pending ones", "default": false},
					"project_dir":    projectDirSchema,
				},
			},
		},
		{
			"name":        ToolGetNextTask,
			"description": "Get the next highest priority pending task",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"project_dir": projectDirSchema,
				},
			},
		},
		{
			"name":        ToolCompleteTask,
			"description": "Mark a task as completed and automatically return the next task",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_identifier": map[string]string{"type": "string", "description": "Task ID or search term"},
					"project_dir":     projectDirSchema,
				},
				"required": []string{"task_identifier"},
			},
		},
		{
			"name":        ToolSetTaskPriority,
			"description": "Set the priority of a task",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"task_identifier": map[string]string{"type": "string", "description": "Task ID or search term"},
					"priority":        prioritySchema,
					"project_dir":     projectDirSchema,
				},
				"required": []string{"task_identifier", "priority"},
			},
		},
		{
			"name":        ToolGetProjectStatus,
			"description": "Get an overview of the project's task status",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"project_dir": projectDirSchema,
				},
			},
		},
		{
			"name":        ToolOpenTaskUI,
			"description": "Instructions for opening the TasQ interactive UI",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"project_dir": projectDirSchema,
				},
			},
		},
		{
			"name":        ToolInitProject,
			"description": "Initialize TasQ in a directory (runs 'tasq init' unless a .tasq directory already exists there)",
			"inputSchema": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"project_dir": map[string]any{
						"type":        "string",
						"description": "Directory to initialize (defaults to the server's working directory)",
						"default":     project.AutoDetect,
					},
				},
			},
		},
	}
}

// Definitions returns the tool table filtered by the service policy.
func (s *Service) Definitions() []map[string]any {
	all := Definitions()
	out := make([]map[string]any, 0, len(all))
	for _, def := range all {
		if s.policy.Allowed(def["name"].(string)) {
			out = append(out, def)
		}
	}
	return out
}

func known(name string) bool {
	for _, def := range Definitions() {
		if def["name"] == name {
			return true
		}
	}
	return false
}

type addTaskArgs struct {
	Description *string `json:"description"`
	Priority    *int    `json:"priority"`
	ProjectDir  *string `json:"project_dir"`
}

type listTasksArgs struct {
	ShowCompleted *bool   `json:"show_completed"`
	ProjectDir    *string `json:"project_dir"`
}

type projectArgs struct {
	ProjectDir *string `json:"project_dir"`
}

type completeTaskArgs struct {
	TaskIdentifier *string `json:"task_identifier"`
	ProjectDir     *string `json:"project_dir"`
}

type setTaskPriorityArgs struct {
	TaskIdentifier *string `json:"task_identifier"`
	Priority       *int    `json:"priority"`
	ProjectDir     *string `json:"project_dir"`
}

// Call decodes raw JSON arguments for the named tool, applies defaults and
// runs the handler.
func (s *Service) Call(ctx context.Context, name string, raw json.RawMessage) (Result, error) {
	if !known(name) {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	if err := s.policy.CheckTool(name); err != nil {
		return Result{}, err
	}

	switch name {
	case ToolAddTask:
		var args addTaskArgs
		if err := decodeArgs(raw, &args); err != nil {
			return Result{}, err
		}
		if args.Description == nil {
			return Result{}, missing("description")
		}
		return s.AddTask(ctx, AddTaskParams{
			Description: *args.Description,
			Priority:    intOr(args.Priority, DefaultPriority),
			ProjectDir:  stringOr(args.ProjectDir, project.AutoDetect),
		})

	case ToolListTasks:
		var args listTasksArgs
		if err := decodeArgs(raw, &args); err != nil {
			return Result{}, err
		}
		return s.ListTasks(ctx, ListTasksParams{
			ShowCompleted: args.ShowCompleted != nil && *args.ShowCompleted,
			ProjectDir:    stringOr(args.ProjectDir, project.AutoDetect),
		})

	case ToolGetNextTask:
		var args projectArgs
		if err := decodeArgs(raw, &args); err != nil {
			return Result{}, err
		}
		return s.GetNextTask(ctx, stringOr(args.ProjectDir, project.AutoDetect))

	case ToolCompleteTask:
		var args completeTaskArgs
		if err := decodeArgs(raw, &args); err != nil {
			return Result{}, err
		}
		if args.TaskIdentifier == nil {
			return Result{}, missing("task_identifier")
		}
		return s.CompleteTask(ctx, CompleteTaskParams{
			TaskIdentifier: *args.TaskIdentifier,
			ProjectDir:     stringOr(args.ProjectDir, project.AutoDetect),
		})

	case ToolSetTaskPriority:
		var args setTaskPriorityArgs
		if err := decodeArgs(raw, &args); err != nil {
			return Result{}, err
		}
		if args.TaskIdentifier == nil {
			return Result{}, missing("task_identifier")
		}
		if args.Priority == nil {
			return Result{}, missing("priority")
		}
		return s.SetTaskPriority(ctx, SetTaskPriorityParams{
			TaskIdentifier: *args.TaskIdentifier,
			Priority:       *args.Priority,
			ProjectDir:     stringOr(args.ProjectDir, project.AutoDetect),
		})

	case ToolGetProjectStatus:
		var args projectArgs
		if err := decodeArgs(raw, &args); err != nil {
			return Result{}, err
		}
		return s.GetProjectStatus(ctx, stringOr(args.ProjectDir, project.AutoDetect)), nil

	case ToolOpenTaskUI:
		var args projectArgs
		if err := decodeArgs(raw, &args); err != nil {
			return Result{}, err
		}
		return s.OpenTaskUI(ctx, stringOr(args.ProjectDir, project.AutoDetect))

	case ToolInitProject:
		var args projectArgs
		if err := decodeArgs(raw, &args); err != nil {
			return Result{}, err
		}
		return s.InitProject(ctx, stringOr(args.ProjectDir, project.AutoDetect))

	default:
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
}

func decodeArgs(raw json.RawMessage, v any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &core.Error{Kind: core.KindInvalidArgument, Detail: "invalid arguments: " + err.Error(), Err: err}
	}
	return nil
}

func missing(field string) error {
	return core.InvalidArgument("missing required argument: %s", field)
}

func stringOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}

func intOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
