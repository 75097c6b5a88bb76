package ui

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/hamzawahab/hotdrop/internal/config"
	"github.com/hamzawahab/hotdrop/internal/coordinator"
)

// ErrInvalidChoice is returned for anything other than 1 or 2.
var ErrInvalidChoice = errors.New("invalid selection")

// Choice is the outcome of the startup prompt.
type Choice struct {
	Role   coordinator.Role
	Server string
}

// PromptRole asks which mode to run in and, for a client, the server
// address. An empty address means localhost. Nothing past the last answer
// is consumed from in, so the console can take over the same stream.
func PromptRole(in io.Reader, out io.Writer) (Choice, error) {
	fmt.Fprintln(out, colorPrimary+"hotdrop file transfer"+colorReset)
	fmt.Fprintln(out, "=====================")
	fmt.Fprintln(out, "1. Server mode (receive files)")
	fmt.Fprintln(out, "2. Client mode (send files)")
	fmt.Fprint(out, "Select (1/2): ")

	answer, err := readAnswer(in)
	if err != nil {
		return Choice{}, err
	}
	switch answer {
	case "1":
		fmt.Fprintln(out, "Server mode selected.")
		return Choice{Role: coordinator.RoleReceiver}, nil
	case "2":
		fmt.Fprintln(out, "Client mode selected.")
		fmt.Fprint(out, "Server IP address: ")
		server, err := readAnswer(in)
		if err != nil {
			return Choice{}, err
		}
		if server == "" {
			fmt.Fprintf(out, "No address entered; using %s.\n", config.DefaultServerHost)
			server = config.DefaultServerHost
		}
		return Choice{Role: coordinator.RoleSender, Server: server}, nil
	default:
		return Choice{}, fmt.Errorf("%w: %q", ErrInvalidChoice, answer)
	}
}

// readAnswer reads one byte at a time up to a newline. End of input ends
// the answer.
func readAnswer(r io.Reader) (string, error) {
	var (
		line []byte
		b    [1]byte
	)
	for {
		n, err := r.Read(b[:])
		if n == 1 {
			if b[0] == '\n' {
				break
			}
			line = append(line, b[0])
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return strings.TrimSpace(string(line)), nil
}
