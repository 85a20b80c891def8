package git

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"gourcewall/internal/platform/logger"
)

// runner runs one git command in dir and returns stdout
type runner func(ctx context.Context, dir string, args ...string) ([]byte, error)

func execRunner(bin string, log logger.Logger) runner {
	return func(ctx context.Context, dir string, args ...string) ([]byte, error) {
		cmd := exec.CommandContext(ctx, bin, args...)
		cmd.Dir = dir
		// never block on a credential prompt
		cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		start := time.Now()
		err := cmd.Run()
		if err != nil {
			msg := strings.TrimSpace(stderr.String())
			if ctx.Err() != nil {
				return nil, fmt.Errorf("git %s: %w", args[0], ctx.Err())
			}
			return nil, fmt.Errorf("git %s: %w (stderr: %s)", args[0], err, msg)
		}
		log.Debug().Strs("args", args).Dur("dur", time.Since(start)).Msg("git ok")
		return stdout.Bytes(), nil
	}
}
