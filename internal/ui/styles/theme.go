package styles

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tgienger/taskboard/internal/models"
)

// Theme represents a color scheme for the application
type Theme struct {
	Name string

	// Base colors
	Background    lipgloss.Color
	Foreground    lipgloss.Color
	ForegroundDim lipgloss.Color

	// Accent colors
	Primary   lipgloss.Color
	Secondary lipgloss.Color
	Accent    lipgloss.Color

	// Semantic colors
	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color
	Info    lipgloss.Color

	// UI element colors
	Border      lipgloss.Color
	BorderFocus lipgloss.Color
	Selection   lipgloss.Color
	DropTarget  lipgloss.Color

	// Column header colors
	Backlog    lipgloss.Color
	InProgress lipgloss.Color
	Review     lipgloss.Color
	Done       lipgloss.Color
}

// TokyoNight is the default color theme
var TokyoNight = Theme{
	Name: "Tokyo Night",

	Background:    lipgloss.Color("#1a1b26"),
	Foreground:    lipgloss.Color("#c0caf5"),
	ForegroundDim: lipgloss.Color("#565f89"),

	Primary:   lipgloss.Color("#7aa2f7"),
	Secondary: lipgloss.Color("#bb9af7"),
	Accent:    lipgloss.Color("#7dcfff"),

	Success: lipgloss.Color("#9ece6a"),
	Warning: lipgloss.Color("#e0af68"),
	Error:   lipgloss.Color("#f7768e"),
	Info:    lipgloss.Color("#7aa2f7"),

	Border:      lipgloss.Color("#3b4261"),
	BorderFocus: lipgloss.Color("#7aa2f7"),
	Selection:   lipgloss.Color("#33467c"),
	DropTarget:  lipgloss.Color("#bb9af7"),

	Backlog:    lipgloss.Color("#737aa2"),
	InProgress: lipgloss.Color("#7aa2f7"),
	Review:     lipgloss.Color("#e0af68"),
	Done:       lipgloss.Color("#9ece6a"),
}

// Current holds the active theme
var Current = TokyoNight

// MaxWidth is the maximum width of forms and the task editor
const MaxWidth = 80

// BoardMaxWidth caps the board so four columns stay readable on wide terminals
const BoardMaxWidth = 160

// ContentWidth returns the actual content width to use (min of terminal width and MaxWidth)
func ContentWidth(terminalWidth int) int {
	if terminalWidth > MaxWidth {
		return MaxWidth
	}
	return terminalWidth
}

// BoardWidth is ContentWidth for the board
func BoardWidth(terminalWidth int) int {
	if terminalWidth > BoardMaxWidth {
		return BoardMaxWidth
	}
	return terminalWidth
}

// CenterView wraps content and centers it horizontally if terminal is wider than MaxWidth
func CenterView(content string, terminalWidth, terminalHeight int) string {
	if terminalWidth <= MaxWidth {
		return content
	}
	return lipgloss.Place(terminalWidth, terminalHeight,
		lipgloss.Center, lipgloss.Top,
		content,
	)
}

// ColumnColor is the header color of a board column
func ColumnColor(s models.Status) lipgloss.Color {
	t := Current
	switch s {
	case models.StatusInProgress:
		return t.InProgress
	case models.StatusReview:
		return t.Review
	case models.StatusDone:
		return t.Done
	}
	return t.Backlog
}

// PriorityColor is the badge color of a priority
func PriorityColor(p models.Priority) lipgloss.Color {
	t := Current
	switch p {
	case models.PriorityHigh:
		return t.Error
	case models.PriorityMedium:
		return t.Warning
	}
	return t.Success
}

// DueColor is the badge color of a due state
func DueColor(d models.DueState) lipgloss.Color {
	t := Current
	switch d {
	case models.DueOverdue:
		return t.Error
	case models.DueAtRisk:
		return t.Warning
	case models.DueCompleted:
		return t.Success
	}
	return t.Info
}

// Styles holds all the pre-computed styles for the UI
type Styles struct {
	// Title bar
	Title      lipgloss.Style
	TitleMuted lipgloss.Style

	// Board
	Column       lipgloss.Style
	ColumnTarget lipgloss.Style
	ColumnTitle  lipgloss.Style
	Card         lipgloss.Style
	CardSelected lipgloss.Style
	CardDragged  lipgloss.Style
	Badge        lipgloss.Style

	// Filter bar
	FilterBar    lipgloss.Style
	FilterActive lipgloss.Style

	// Buttons
	Button        lipgloss.Style
	ButtonFocused lipgloss.Style
	ButtonPrimary lipgloss.Style

	// Input fields
	Input        lipgloss.Style
	InputFocused lipgloss.Style
	FieldError   lipgloss.Style

	// Lists
	ListItem     lipgloss.Style
	ListSelected lipgloss.Style

	// Dialogs
	Modal lipgloss.Style

	// Notifications
	ToastInfo    lipgloss.Style
	ToastSuccess lipgloss.Style
	ToastError   lipgloss.Style

	// Help text
	Help     lipgloss.Style
	HelpKey  lipgloss.Style
	HelpDesc lipgloss.Style
}

// NewStyles creates styles based on the current theme
func NewStyles() *Styles {
	t := Current

	return &Styles{
		Title: lipgloss.NewStyle().
			Foreground(t.Primary).
			Bold(true),

		TitleMuted: lipgloss.NewStyle().
			Foreground(t.ForegroundDim),

		Column: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border),

		ColumnTarget: lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(t.DropTarget),

		ColumnTitle: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1),

		Card: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Border(lipgloss.NormalBorder()).
			BorderForeground(t.Border),

		CardSelected: lipgloss.NewStyle().
			Foreground(t.Primary).
			Border(lipgloss.NormalBorder()).
			BorderForeground(t.BorderFocus).
			Bold(true),

		CardDragged: lipgloss.NewStyle().
			Foreground(t.ForegroundDim).
			Border(lipgloss.NormalBorder()).
			BorderForeground(t.DropTarget).
			Faint(true),

		Badge: lipgloss.NewStyle().
			Bold(true),

		FilterBar: lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border),

		FilterActive: lipgloss.NewStyle().
			Foreground(t.Warning).
			Bold(true),

		Button: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 2),

		ButtonFocused: lipgloss.NewStyle().
			Foreground(t.Primary).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.BorderFocus).
			Padding(0, 2).
			Bold(true),

		ButtonPrimary: lipgloss.NewStyle().
			Foreground(t.Background).
			Background(t.Primary).
			Padding(0, 2).
			Bold(true),

		Input: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(0, 1),

		InputFocused: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.BorderFocus).
			Padding(0, 1),

		FieldError: lipgloss.NewStyle().
			Foreground(t.Error),

		ListItem: lipgloss.NewStyle().
			Foreground(t.Foreground).
			Padding(0, 2),

		ListSelected: lipgloss.NewStyle().
			Foreground(t.Primary).
			Background(t.Selection).
			Padding(0, 2).
			Bold(true),

		Modal: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.BorderFocus).
			Padding(1, 2),

		ToastInfo: lipgloss.NewStyle().
			Foreground(t.Background).
			Background(t.Info).
			Padding(0, 1),

		ToastSuccess: lipgloss.NewStyle().
			Foreground(t.Background).
			Background(t.Success).
			Padding(0, 1),

		ToastError: lipgloss.NewStyle().
			Foreground(t.Background).
			Background(t.Error).
			Padding(0, 1),

		Help: lipgloss.NewStyle().
			Foreground(t.ForegroundDim).
			Padding(1, 2),

		HelpKey: lipgloss.NewStyle().
			Foreground(t.Primary).
			Bold(true),

		HelpDesc: lipgloss.NewStyle().
			Foreground(t.ForegroundDim),
	}
}
