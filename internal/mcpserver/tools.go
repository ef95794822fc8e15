package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/crewly-ai/crewly/internal/memory"
	"github.com/crewly-ai/crewly/internal/scheduler"
)

func registerTools(s *server.MCPServer, mem *memory.Store, sched *scheduler.Store, logger *slog.Logger) {
	s.AddTool(
		mcp.NewTool("record_knowledge",
			mcp.WithDescription("Record a fact the agent learned, persisted across sessions."),
			mcp.WithString("agent_id", mcp.Required(), mcp.Description("The agent recording the fact")),
			mcp.WithString("fact", mcp.Required(), mcp.Description("The fact to remember")),
		),
		recordKnowledgeHandler(mem),
	)

	s.AddTool(
		mcp.NewTool("log_activity",
			mcp.WithDescription("Append an entry to the project's daily activity log."),
			mcp.WithString("project", mcp.Required(), mcp.Description("Absolute project path")),
			mcp.WithString("role", mcp.Required(), mcp.Description("The agent's role")),
			mcp.WithString("agent_id", mcp.Required(), mcp.Description("The agent logging the entry")),
			mcp.WithString("entry", mcp.Required(), mcp.Description("What happened")),
		),
		logActivityHandler(mem),
	)

	s.AddTool(
		mcp.NewTool("set_focus",
			mcp.WithDescription("Set the project's current focus (overwrites the previous focus)."),
			mcp.WithString("project", mcp.Required(), mcp.Description("Absolute project path")),
			mcp.WithString("focus", mcp.Required(), mcp.Description("The new focus")),
		),
		setFocusHandler(mem),
	)

	s.AddTool(
		mcp.NewTool("record_decision",
			mcp.WithDescription("Log a decision with a pending outcome. Record the outcome later with record_outcome."),
			mcp.WithString("project", mcp.Required(), mcp.Description("Absolute project path")),
			mcp.WithString("decision_id", mcp.Required(), mcp.Description("Stable identifier for the decision")),
			mcp.WithString("description", mcp.Required(), mcp.Description("What was decided and why")),
		),
		recordDecisionHandler(mem),
	)

	s.AddTool(
		mcp.NewTool("record_outcome",
			mcp.WithDescription("Record a decision's outcome. Only the first outcome sticks; later calls are ignored."),
			mcp.WithString("project", mcp.Required(), mcp.Description("Absolute project path")),
			mcp.WithString("decision_id", mcp.Required(), mcp.Description("The decision to update")),
			mcp.WithString("outcome", mcp.Required(), mcp.Description("How the decision turned out")),
		),
		recordOutcomeHandler(mem),
	)

	s.AddTool(
		mcp.NewTool("record_learning",
			mcp.WithDescription("Record what worked or what failed for the project's learning log."),
			mcp.WithString("project", mcp.Required(), mcp.Description("Absolute project path")),
			mcp.WithString("kind", mcp.Required(), mcp.Description("Either 'worked' or 'failed'")),
			mcp.WithString("entry", mcp.Required(), mcp.Description("The lesson learned")),
		),
		recordLearningHandler(mem),
	)

	s.AddTool(
		mcp.NewTool("list_tasks",
			mcp.WithDescription("List the project's task files across milestones and states."),
			mcp.WithString("project", mcp.Required(), mcp.Description("Absolute project path")),
		),
		listTasksHandler(),
	)

	s.AddTool(
		mcp.NewTool("schedule_reminder",
			mcp.WithDescription("Persist a scheduled message; the daemon arms it."),
			mcp.WithString("name", mcp.Required(), mcp.Description("Short name for the schedule")),
			mcp.WithString("body", mcp.Required(), mcp.Description("Message body delivered when the timer fires")),
			mcp.WithNumber("amount", mcp.Required(), mcp.Description("Delay amount")),
			mcp.WithString("unit", mcp.Description("Delay unit: seconds, minutes, hours, days (default minutes)")),
			mcp.WithBoolean("recurring", mcp.Description("Rearm after each firing")),
		),
		scheduleReminderHandler(sched),
	)

	logger.Info("registered MCP tools", "count", 8)
}

func recordKnowledgeHandler(mem *memory.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		agentID, err := req.RequireString("agent_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		fact, err := req.RequireString("fact")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := mem.AppendKnowledge(agentID, fact); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("recorded"), nil
	}
}

func logActivityHandler(mem *memory.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project, err := req.RequireString("project")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		role, err := req.RequireString("role")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		agentID, err := req.RequireString("agent_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		entry, err := req.RequireString("entry")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := mem.LogDaily(project, role, agentID, entry); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("logged"), nil
	}
}

func setFocusHandler(mem *memory.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project, err := req.RequireString("project")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		focus, err := req.RequireString("focus")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := mem.SetCurrentFocus(project, focus); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("focus updated"), nil
	}
}

func recordDecisionHandler(mem *memory.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project, err := req.RequireString("project")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		decisionID, err := req.RequireString("decision_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		description, err := req.RequireString("description")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := mem.LogDecision(project, decisionID, description); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("decision logged"), nil
	}
}

func recordOutcomeHandler(mem *memory.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project, err := req.RequireString("project")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		decisionID, err := req.RequireString("decision_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		outcome, err := req.RequireString("outcome")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := mem.UpdateDecisionOutcome(project, decisionID, outcome); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("outcome recorded"), nil
	}
}

func recordLearningHandler(mem *memory.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project, err := req.RequireString("project")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		kind, err := req.RequireString("kind")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		entry, err := req.RequireString("entry")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		switch kind {
		case "worked":
			err = mem.RecordWhatWorked(project, entry)
		case "failed":
			err = mem.RecordWhatFailed(project, entry)
		default:
			return mcp.NewToolResultError(fmt.Sprintf("unknown kind %q, want 'worked' or 'failed'", kind)), nil
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("recorded"), nil
	}
}

func listTasksHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		project, err := req.RequireString("project")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		tasks, err := scheduler.ListTasks(project)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		type taskRow struct {
			Milestone  string `json:"milestone"`
			State      string `json:"state"`
			TargetRole string `json:"targetRole"`
			StepID     string `json:"stepId"`
			Body       string `json:"body"`
		}
		rows := make([]taskRow, 0, len(tasks))
		for _, task := range tasks {
			rows = append(rows, taskRow{
				Milestone:  task.Milestone,
				State:      string(task.State),
				TargetRole: task.Header.TargetRole,
				StepID:     task.Header.StepID,
				Body:       task.Body,
			})
		}
		formatted, _ := json.MarshalIndent(rows, "", "  ")
		return mcp.NewToolResultText(string(formatted)), nil
	}
}

func scheduleReminderHandler(sched *scheduler.Store) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := req.RequireString("name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		body, err := req.RequireString("body")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		amount, err := req.RequireFloat("amount")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		unit := req.GetString("unit", string(scheduler.UnitMinutes))

		msg := scheduler.Message{
			ID:          uuid.NewString(),
			Name:        name,
			Body:        body,
			Delay:       scheduler.Delay{Amount: int(amount), Unit: scheduler.DelayUnit(unit)},
			IsRecurring: req.GetBool("recurring", false),
			IsActive:    true,
		}
		if err := msg.Delay.Validate(); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if err := sched.Upsert(msg); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(msg.ID), nil
	}
}
