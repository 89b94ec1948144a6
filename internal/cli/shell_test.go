package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"testing"
)

// stubExec records which commands the shell dispatched.
type stubExec struct {
	loggedIn bool
	calls    []string
}

func (s *stubExec) isLoggedIn() bool { return s.loggedIn }
func (s *stubExec) status() string   { return "guest" }

func (s *stubExec) Signup(ctx context.Context) error {
	s.calls = append(s.calls, "signup")
	return nil
}
func (s *stubExec) Login(ctx context.Context) error {
	s.calls = append(s.calls, "login")
	return nil
}
func (s *stubExec) Logout(ctx context.Context) error {
	s.calls = append(s.calls, "logout")
	return nil
}
func (s *stubExec) WhoAmI(ctx context.Context) error {
	s.calls = append(s.calls, "whoami")
	return nil
}
func (s *stubExec) Profile(ctx context.Context) error {
	s.calls = append(s.calls, "profile")
	return nil
}
func (s *stubExec) Upload(ctx context.Context, paths []string) error {
	s.calls = append(s.calls, "upload "+strings.Join(paths, ","))
	return nil
}
func (s *stubExec) List(ctx context.Context) error {
	s.calls = append(s.calls, "list")
	return nil
}
func (s *stubExec) RemoveAsset(ctx context.Context, arg string) error {
	s.calls = append(s.calls, "rm "+arg)
	return nil
}
func (s *stubExec) AssetURL(ctx context.Context, arg string) error {
	s.calls = append(s.calls, "url "+arg)
	return nil
}

func runShellWith(t *testing.T, stub *stubExec, input string) []string {
	t.Helper()

	orig := printlnFn
	defer func() { printlnFn = orig }()
	var printed []string
	printlnFn = func(a ...any) (int, error) {
		printed = append(printed, fmt.Sprint(a...))
		return 0, nil
	}

	RunShell(context.Background(), stub, bufio.NewReader(strings.NewReader(input)))
	return printed
}

func TestRunShell_DispatchesCommands(t *testing.T) {
	stub := &stubExec{}
	runShellWith(t, stub, "login\nwhoami\nupload a.pdf b.pdf\nlist\nrm 2\nurl 1\nexit\n")

	want := []string{"login", "whoami", "upload a.pdf,b.pdf", "list", "rm 2", "url 1"}
	if len(stub.calls) != len(want) {
		t.Fatalf("unexpected calls: %v", stub.calls)
	}
	for i := range want {
		if stub.calls[i] != want[i] {
			t.Fatalf("call %d: expected %q, got %q", i, want[i], stub.calls[i])
		}
	}
}

func TestRunShell_ExitsOnEOF(t *testing.T) {
	stub := &stubExec{}
	runShellWith(t, stub, "whoami\n")

	if len(stub.calls) != 1 || stub.calls[0] != "whoami" {
		t.Fatalf("unexpected calls: %v", stub.calls)
	}
}

func TestRunShell_UnknownCommand(t *testing.T) {
	stub := &stubExec{}
	printed := runShellWith(t, stub, "frobnicate\nexit\n")

	if len(stub.calls) != 0 {
		t.Fatalf("unexpected dispatch: %v", stub.calls)
	}
	found := false
	for _, line := range printed {
		if strings.Contains(line, "Unknown command") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an unknown-command message, printed: %v", printed)
	}
}

func TestRunShell_HelpVariesWithLogin(t *testing.T) {
	printed := runShellWith(t, &stubExec{loggedIn: false}, "help\nexit\n")
	joined := strings.Join(printed, "\n")
	if !strings.Contains(joined, "signup, login") {
		t.Fatalf("expected guest help, printed: %v", printed)
	}

	printed = runShellWith(t, &stubExec{loggedIn: true}, "help\nexit\n")
	joined = strings.Join(printed, "\n")
	if !strings.Contains(joined, "whoami") || !strings.Contains(joined, "logout") {
		t.Fatalf("expected logged-in help, printed: %v", printed)
	}
}

func TestRunShell_RmRequiresArgument(t *testing.T) {
	stub := &stubExec{}
	printed := runShellWith(t, stub, "rm\nexit\n")

	if len(stub.calls) != 0 {
		t.Fatalf("unexpected dispatch: %v", stub.calls)
	}
	found := false
	for _, line := range printed {
		if strings.Contains(line, "Usage: rm") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected usage message, printed: %v", printed)
	}
}
