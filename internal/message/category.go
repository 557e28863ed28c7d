package message

// ToolCategory is the deterministic, case-sensitive classification of a
// tool name.
type ToolCategory string

const (
	CategoryBash        ToolCategory = "bash"
	CategoryFileRead    ToolCategory = "file_read"
	CategoryFileWrite   ToolCategory = "file_write"
	CategorySearch      ToolCategory = "search"
	CategoryAgent       ToolCategory = "agent"
	CategoryPlanning    ToolCategory = "planning"
	CategoryWeb         ToolCategory = "web"
	CategoryInteraction ToolCategory = "interaction"
	CategoryOther       ToolCategory = "other"
)

var toolCategories = map[string]ToolCategory{
	"Bash":            CategoryBash,
	"KillShell":       CategoryBash,
	"Read":            CategoryFileRead,
	"Write":           CategoryFileWrite,
	"Edit":            CategoryFileWrite,
	"NotebookEdit":    CategoryFileWrite,
	"Glob":            CategorySearch,
	"Grep":            CategorySearch,
	"Task":            CategoryAgent,
	"TaskOutput":      CategoryAgent,
	"TodoWrite":       CategoryPlanning,
	"EnterPlanMode":   CategoryPlanning,
	"ExitPlanMode":    CategoryPlanning,
	"WebFetch":        CategoryWeb,
	"WebSearch":       CategoryWeb,
	"AskUserQuestion": CategoryInteraction,
}

// CategoryForTool returns the category for a tool name, or CategoryOther
// for any name not in the table.
func CategoryForTool(name string) ToolCategory {
	if c, ok := toolCategories[name]; ok {
		return c
	}
	return CategoryOther
}
