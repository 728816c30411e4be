package adb

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os/exec"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Runner executes external commands.
type Runner interface {
	// Run executes the command and returns its stdout. On failure the
	// output also carries stderr so the error is readable.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
	// Start executes the command and returns its stdout as a stream.
	// Closing the stream stops the command.
	Start(ctx context.Context, name string, args ...string) (io.ReadCloser, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

var _ Runner = ExecRunner{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	log.WithField("cmd", name+" "+strings.Join(args, " ")).Debug("running command")
	cmd := exec.CommandContext(ctx, name, args...)
	// adb prints server start notices on stderr; they are not values
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	log.WithFields(log.Fields{
		"output": strings.TrimSpace(string(out)),
		"stderr": strings.TrimSpace(stderr.String()),
	}).Trace("command output")
	if err != nil {
		return append(out, stderr.Bytes()...), err
	}
	return out, nil
}

func (ExecRunner) Start(ctx context.Context, name string, args ...string) (io.ReadCloser, error) {
	log.WithField("cmd", name+" "+strings.Join(args, " ")).Debug("starting command")
	ctx, cancel := context.WithCancel(ctx)
	cmd := exec.CommandContext(ctx, name, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, err
	}
	return &cmdStream{ReadCloser: stdout, cmd: cmd, cancel: cancel}, nil
}

type cmdStream struct {
	io.ReadCloser
	cmd    *exec.Cmd
	cancel context.CancelFunc
	once   sync.Once
	err    error
}

func (s *cmdStream) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.err = s.cmd.Wait()
		var exitErr *exec.ExitError
		if errors.As(s.err, &exitErr) {
			// killed by our own cancel
			s.err = nil
		}
	})
	return s.err
}

// FakeRunner returns canned output keyed by the command's arguments
// joined with single spaces, excluding the binary name.
type FakeRunner struct {
	mu      sync.Mutex
	Outputs map[string]string
	Errors  map[string]error
	Streams map[string]string
	Calls   []string
}

var _ Runner = (*FakeRunner)(nil)

func (f *FakeRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	key := strings.Join(args, " ")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, key)
	if err, ok := f.Errors[key]; ok {
		return []byte(f.Outputs[key]), err
	}
	out, ok := f.Outputs[key]
	if !ok {
		return nil, errors.New("fake: no output for " + key)
	}
	return []byte(out), nil
}

func (f *FakeRunner) Start(_ context.Context, _ string, args ...string) (io.ReadCloser, error) {
	key := strings.Join(args, " ")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, key)
	if err, ok := f.Errors[key]; ok {
		return nil, err
	}
	s, ok := f.Streams[key]
	if !ok {
		return nil, errors.New("fake: no stream for " + key)
	}
	return io.NopCloser(strings.NewReader(s)), nil
}

// Set replaces the output for key.
func (f *FakeRunner) Set(key, out string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Outputs == nil {
		f.Outputs = make(map[string]string)
	}
	f.Outputs[key] = out
	delete(f.Errors, key)
}

// Fail makes key return err.
func (f *FakeRunner) Fail(key string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errors == nil {
		f.Errors = make(map[string]error)
	}
	f.Errors[key] = err
}
