package git

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/masmgr/gitchanges/internal/locator"
	"k8s.io/klog/v2"
)

// gitCommand is one invocation of the git executable.
type gitCommand struct {
	bin     string
	gitDir  string
	config  []string // -c key=value pairs
	env     []string
	args    []string
	display []string // args with secrets removed, for logs
}

// gitError is a failed git invocation.
type gitError struct {
	args     []string
	exitCode int
	stderr   string
	err      error
}

func (e *gitError) Error() string {
	msg := fmt.Sprintf("git %s failed", strings.Join(e.args, " "))
	if e.exitCode > 0 {
		msg += fmt.Sprintf(" with exit code %d", e.exitCode)
	}
	if e.stderr != "" {
		msg += ": " + e.stderr
	}
	return msg
}

func (e *gitError) Unwrap() error {
	return e.err
}

// exitCode returns the exit status of a failed git run, or -1 when git did
// not run to completion.
func exitCode(err error) int {
	var gerr *gitError
	if errors.As(err, &gerr) {
		return gerr.exitCode
	}
	return -1
}

func (c *gitCommand) withAuth(cred *locator.Credential) error {
	switch {
	case cred.IsSSH():
		if cred.SSHKeyPassphrase != "" {
			return fmt.Errorf("ssh keys protected by a passphrase are not supported by the native helper")
		}
		ssh := "ssh -o IdentitiesOnly=yes -o BatchMode=yes -i " + shellQuote(cred.SSHKeyPath)
		if cred.Username != "" {
			ssh += " -l " + shellQuote(cred.Username)
		}
		c.env = append(c.env, "GIT_SSH_COMMAND="+ssh)
	case cred.IsBasic():
		token := base64.StdEncoding.EncodeToString([]byte(cred.Username + ":" + cred.Password))
		c.config = append(c.config, "http.extraHeader=Authorization: Basic "+token)
	}
	return nil
}

func (c *gitCommand) fullArgs() []string {
	var args []string
	for _, kv := range c.config {
		args = append(args, "-c", kv)
	}
	if c.gitDir != "" {
		args = append(args, "--git-dir="+c.gitDir)
	}
	return append(args, c.args...)
}

// waitDelay bounds how long a killed git may keep its output pipes open,
// for instance through an ssh child that outlives it.
const waitDelay = 2 * time.Second

func (c *gitCommand) displayArgs() []string {
	if c.display != nil {
		return c.display
	}
	return c.args
}

func (c *gitCommand) prepare(ctx context.Context) *exec.Cmd {
	klog.V(2).Infof("Running git command: git %s", strings.Join(c.displayArgs(), " "))

	cmd := exec.CommandContext(ctx, c.bin, c.fullArgs()...)
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")
	cmd.Env = append(cmd.Env, c.env...)
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)
	return cmd
}

func (c *gitCommand) failure(ctx context.Context, err error, stderr *bytes.Buffer) error {
	gerr := &gitError{
		args:     c.displayArgs(),
		exitCode: -1,
		stderr:   strings.TrimSpace(stderr.String()),
		err:      err,
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		gerr.exitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		gerr.err = ctxErr
	}
	return gerr
}

// run executes the command and returns its stdout.
func (c *gitCommand) run(ctx context.Context) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := c.prepare(ctx)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.Bytes(), c.failure(ctx, err, &stderr)
	}
	return stdout.Bytes(), nil
}

// stream executes the command with stdin and hands its stdout to consume
// while git is still running. git is stopped when consume fails.
func (c *gitCommand) stream(ctx context.Context, stdin io.Reader, consume func(*bufio.Reader) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var stderr bytes.Buffer
	cmd := c.prepare(ctx)
	cmd.Stdin = stdin
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return c.failure(ctx, err, &stderr)
	}

	cerr := consume(bufio.NewReader(stdout))
	if cerr != nil {
		cancel()
	}
	if err := cmd.Wait(); err != nil && cerr == nil {
		return c.failure(ctx, err, &stderr)
	}
	return cerr
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
