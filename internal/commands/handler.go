package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hamzawahab/hotdrop/internal/coordinator"
	"github.com/hamzawahab/hotdrop/internal/session"
)

var ErrUnknownCommand = errors.New("unknown command")

// Result carries command execution outcome back to the UI.
type Result struct {
	Output string
	Clear  bool
	Quit   bool
}

type Handler struct {
	session *session.Session
}

func New(session *session.Session) *Handler {
	return &Handler{session: session}
}

// Handle parses command input and executes matching action.
func (h *Handler) Handle(input string) (Result, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return Result{}, nil
	}
	if !strings.HasPrefix(trimmed, "@") {
		return Result{Output: "Commands must start with @. Type @help for options."}, nil
	}
	parts := strings.Fields(trimmed)
	cmd := strings.ToLower(strings.TrimPrefix(parts[0], "@"))
	args := strings.TrimSpace(strings.TrimPrefix(trimmed, parts[0]))

	switch cmd {
	case "help":
		return Result{Output: helpText(h.session.Role)}, nil
	case "status":
		return h.cmdStatus()
	case "pick":
		return h.cmdPick()
	case "dest":
		return h.cmdDest(args)
	case "send":
		return h.cmdSend(args)
	case "clear":
		return Result{Clear: true}, nil
	case "exit", "quit":
		return Result{Quit: true}, nil
	default:
		return Result{}, ErrUnknownCommand
	}
}

func (h *Handler) cmdStatus() (Result, error) {
	st := h.session.Status()
	lines := []string{
		fmt.Sprintf("Role: %s", st.Role),
		fmt.Sprintf("Hotkey: %s", st.Binding),
		fmt.Sprintf("Local IP: %s", st.LocalIP),
	}
	switch st.Role {
	case coordinator.RoleReceiver:
		dest := st.Destination
		if dest == "" {
			dest = "(none selected)"
		}
		lines = append(lines,
			fmt.Sprintf("Listening on: %s", st.ListenAddr),
			fmt.Sprintf("Save directory: %s", dest),
			fmt.Sprintf("Queued connections: %d", st.Pending),
		)
	case coordinator.RoleSender:
		lines = append(lines, fmt.Sprintf("Server: %s", st.ServerAddr))
	}
	return Result{Output: strings.Join(lines, "\n")}, nil
}

func (h *Handler) cmdPick() (Result, error) {
	if err := h.session.Pick(); err != nil {
		return Result{}, err
	}
	if h.session.Role == coordinator.RoleSender {
		return Result{Output: "Opening file picker..."}, nil
	}
	return Result{Output: "Opening folder picker..."}, nil
}

func (h *Handler) cmdDest(arg string) (Result, error) {
	if h.session.Role != coordinator.RoleReceiver {
		return Result{Output: "@dest is only available in server mode."}, nil
	}
	if strings.TrimSpace(arg) == "" {
		return Result{Output: "Usage: @dest <dir>"}, nil
	}
	dir, err := normalizePathArg(arg)
	if err != nil {
		return Result{}, err
	}
	abs, err := h.session.SetDestination(dir)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: fmt.Sprintf("Save directory set to %s", abs)}, nil
}

func (h *Handler) cmdSend(arg string) (Result, error) {
	if h.session.Role != coordinator.RoleSender {
		return Result{Output: "@send is only available in client mode."}, nil
	}
	if strings.TrimSpace(arg) == "" {
		return Result{Output: "Usage: @send <path>"}, nil
	}
	path, err := normalizePathArg(arg)
	if err != nil {
		return Result{}, err
	}
	abs, err := h.session.Send(path)
	if err != nil {
		return Result{}, err
	}
	return Result{Output: fmt.Sprintf("Queued %s for %s", filepath.Base(abs), h.session.Status().ServerAddr)}, nil
}

func normalizePathArg(input string) (string, error) {
	path := strings.TrimSpace(input)
	if path == "" {
		return "", errors.New("empty path")
	}
	if len(path) >= 2 {
		if (path[0] == '"' && path[len(path)-1] == '"') || (path[0] == '\'' && path[len(path)-1] == '\'') {
			path = strings.TrimSpace(path[1 : len(path)-1])
		}
	}
	if path == "" {
		return "", errors.New("empty path")
	}
	if strings.HasPrefix(path, "~") {
		if len(path) > 1 && path[1] != '/' && path[1] != '\\' {
			return "", fmt.Errorf("unsupported home expansion for %s", path)
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		if path == "~" {
			path = home
		} else {
			cleaned := strings.TrimPrefix(path, "~")
			cleaned = strings.TrimPrefix(cleaned, "/")
			cleaned = strings.TrimPrefix(cleaned, "\\")
			path = filepath.Join(home, cleaned)
		}
	}
	if !filepath.IsAbs(path) {
		cwd, _ := os.Getwd()
		path = filepath.Join(cwd, path)
	}
	return filepath.Clean(path), nil
}

func helpText(role coordinator.Role) string {
	const (
		reset   = "\033[0m"
		heading = "\033[36m"
		accent  = "\033[96m"
		dim     = "\033[90m"
	)

	var b strings.Builder
	b.WriteString(reset)
	b.WriteString(heading + "hotdrop Command Guide" + reset + "\n")
	b.WriteString(dim + "Prefix every command with @. Quote paths that contain spaces." + reset + "\n\n")

	b.WriteString(heading + "Transfer" + reset + "\n")
	b.WriteString("  " + accent + "@pick" + reset + "\n")
	if role == coordinator.RoleSender {
		b.WriteString("    Same as the hotkey: choose a file and send it." + "\n")
		b.WriteString("  " + accent + "@send <path>" + reset + "\n")
		b.WriteString("    Send a file without opening the picker. ~ expansion supported." + "\n\n")
	} else {
		b.WriteString("    Same as the hotkey: choose the folder incoming files go to." + "\n")
		b.WriteString("  " + accent + "@dest <dir>" + reset + "\n")
		b.WriteString("    Set the save folder without opening the picker." + "\n\n")
	}

	b.WriteString(heading + "Session" + reset + "\n")
	b.WriteString("  " + accent + "@status" + reset + "\n")
	b.WriteString("    Show the hotkey, addresses and save folder." + "\n")
	b.WriteString("  " + accent + "@clear" + reset + "\n")
	b.WriteString("    Clear the screen." + "\n")
	b.WriteString("  " + accent + "@help" + reset + "\n")
	b.WriteString("    View this guide again." + "\n")
	b.WriteString("  " + accent + "@exit" + reset + "\n")
	b.WriteString("    Quit hotdrop." + "\n")

	return strings.TrimRight(b.String(), "\n")
}
