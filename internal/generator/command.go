package generator

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"passfuse/internal/candidate"
	"passfuse/internal/identity"
	"passfuse/internal/services"
)

// Environment passed to command generators.
const (
	EnvIdentity            = "PASSFUSE_IDENTITY"
	EnvTopN                = "PASSFUSE_TOP_N"
	EnvSamplingTemperature = "PASSFUSE_SAMPLING_TEMPERATURE"
)

const stderrTailBytes = 2048

// Command runs an external program once per identity. The identity is written
// to stdin as a target line; stdout lines "password[\tscore]" are streamed as
// they arrive. Model options travel as environment variables.
type Command struct {
	name        string
	binary      string
	args        []string
	required    []identity.Field
	topN        int
	temperature float64
}

// CommandOptions configures a Command.
type CommandOptions struct {
	Args                []string
	Required            []identity.Field
	TopN                int
	SamplingTemperature float64
}

// NewCommand checks that binary resolves and builds the generator.
func NewCommand(name, binary string, opts CommandOptions) (*Command, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, fmt.Errorf("command generator %s: binary required", name)
	}
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("command generator %s: %w", name, err)
	}
	return &Command{
		name:        name,
		binary:      binary,
		args:        append([]string(nil), opts.Args...),
		required:    append([]identity.Field(nil), opts.Required...),
		topN:        opts.TopN,
		temperature: opts.SamplingTemperature,
	}, nil
}

func (c *Command) Name() string { return c.name }

func (c *Command) Required() []identity.Field { return c.required }

func (c *Command) Generate(ctx context.Context, rec identity.Record) (candidate.Stream, error) {
	cmd := exec.CommandContext(ctx, c.binary, c.args...) //nolint:gosec
	cmd.Stdin = strings.NewReader(rec.Line() + "\n")
	cmd.Env = append(os.Environ(),
		EnvIdentity+"="+rec.Key(),
		EnvTopN+"="+strconv.Itoa(c.topN),
		EnvSamplingTemperature+"="+strconv.FormatFloat(c.temperature, 'f', -1, 64),
	)
	stderr := &tailBuffer{limit: stderrTailBytes}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "generate", c.name, "start command", err)
	}

	var (
		waitOnce sync.Once
		waitErr  error
		finished bool
	)
	wait := func() error {
		waitOnce.Do(func() { waitErr = cmd.Wait() })
		return waitErr
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	next := func() (string, bool, error) {
		if scanner.Scan() {
			return scanner.Text(), true, nil
		}
		if err := scanner.Err(); err != nil {
			return "", false, fmt.Errorf("scan output: %w", err)
		}
		finished = true
		if err := wait(); err != nil {
			return "", false, services.Wrap(services.ErrExternalTool, "generate", c.name,
				"command failed: "+strings.TrimSpace(stderr.String()), err)
		}
		return "", false, nil
	}
	closeFn := func() error {
		if !finished && cmd.Process != nil {
			// The consumer stopped early; the exit status no longer matters.
			_ = cmd.Process.Kill()
		}
		_ = wait()
		return nil
	}
	return candidate.NewRanked(c.name, next, candidate.ParseLine, closeFn), nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	limit int
	data  []byte
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, p...)
	if over := len(b.data) - b.limit; over > 0 {
		b.data = b.data[over:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.data)
}
