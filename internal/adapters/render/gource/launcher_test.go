package gource

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	perr "gourcewall/internal/platform/errors"
	"gourcewall/internal/platform/logger"
	kit "gourcewall/internal/platform/testkit"
)

func grid() Options {
	return Options{ScreenW: 1920, ScreenH: 1080, Rows: 3, Cols: 2, ConfigPath: "/etc/gource.ini"}
}

func TestViewportAndWindowPosition(t *testing.T) {
	t.Parallel()

	l := NewLauncher(grid(), logger.Nop())
	if w, h := l.Viewport(); w != 958 || h != 357 {
		t.Fatalf("viewport = %dx%d", w, h)
	}
	cases := []struct{ pos, x, y int }{
		{0, 0, 0}, {1, 960, 0}, {2, 0, 360}, {5, 960, 720},
	}
	for _, tc := range cases {
		if x, y := l.WindowPosition(tc.pos); x != tc.x || y != tc.y {
			t.Errorf("WindowPosition(%d) = %d,%d want %d,%d", tc.pos, x, y, tc.x, tc.y)
		}
	}
}

func TestArgs(t *testing.T) {
	t.Parallel()

	spec := SpawnSpec{Key: "acme/api/feature/login", Position: 3, RepoPath: "/repos/acme_api_feature_login"}

	got := strings.Join(NewLauncher(grid(), logger.Nop()).Args(spec), " ")
	want := "--load-config /etc/gource.ini --user-image-dir /repos/acme_api_feature_login/.git/avatar --viewport 958x357 --title api / feature / login -"
	if got != want {
		t.Fatalf("Args =\n%s\nwant\n%s", got, want)
	}

	o := grid()
	o.PlaceWindows = true
	o.Loop = true
	got = strings.Join(NewLauncher(o, logger.Nop()).Args(spec), " ")
	kit.MustContain(t, got, "--window-position 960x360")
	if !strings.HasSuffix(got, "--loop /repos/acme_api_feature_login") {
		t.Fatalf("loop args = %s", got)
	}
}

// script writes an executable shell script standing in for the renderer
func script(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no sh available")
	}
	p := filepath.Join(t.TempDir(), "fake-gource")
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	return p
}

func waitDone(t *testing.T, p *Process, d time.Duration) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(d):
		t.Fatalf("process %s did not exit within %v", p.ID(), d)
	}
}

func TestSpawn_FeedsInOrderAndTerminates(t *testing.T) {
	out := filepath.Join(t.TempDir(), "stdin.log")
	t.Setenv("FAKE_GOURCE_OUT", out)

	o := grid()
	o.Bin = script(t, `cat > "$FAKE_GOURCE_OUT"`)
	o.TermGrace = 2 * time.Second
	l := NewLauncher(o, logger.Nop())

	p, err := l.Spawn(context.Background(), SpawnSpec{Key: "acme/api/main", RepoPath: t.TempDir()}, []byte("user:Ada\n100"))
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if p.ID() == "" || p.Key() != "acme/api/main" || p.Position() != 0 {
		t.Fatalf("identity = %q %q %d", p.ID(), p.Key(), p.Position())
	}
	p.Feed([]byte("user:Bob\n200\n"))
	p.Feed(nil)

	kit.Eventually(t, 3*time.Second, 20*time.Millisecond, func() bool {
		b, _ := os.ReadFile(out)
		return string(b) == "user:Ada\n100\nuser:Bob\n200\n"
	}, "renderer never received both feeds")

	if err := p.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if err := p.Terminate(); err != nil {
		t.Fatalf("second Terminate: %v", err)
	}
	waitDone(t, p, 3*time.Second)

	p.Feed([]byte("user:Late\n300"))
	if p.Pending() != 0 {
		t.Fatalf("feed after terminate was queued")
	}
}

func TestTerminate_KillsAfterGrace(t *testing.T) {
	o := grid()
	o.Bin = script(t, "trap '' TERM\nwhile :; do sleep 1; done")
	o.TermGrace = 100 * time.Millisecond
	l := NewLauncher(o, logger.Nop())

	p, err := l.Spawn(context.Background(), SpawnSpec{Key: "acme/api/main", RepoPath: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	// give the shell time to install its trap
	time.Sleep(200 * time.Millisecond)
	_ = p.Terminate()
	waitDone(t, p, 3*time.Second)
}

func TestTerminate_AfterExitIsNotAnError(t *testing.T) {
	o := grid()
	o.Bin = script(t, "exit 0")
	p, err := NewLauncher(o, logger.Nop()).Spawn(context.Background(), SpawnSpec{Key: "acme/api/main", RepoPath: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	waitDone(t, p, 3*time.Second)
	if err := p.ExitErr(); err != nil {
		t.Fatalf("ExitErr after clean exit: %v", err)
	}
	if err := p.Terminate(); err != nil {
		t.Fatalf("Terminate after exit: %v", err)
	}
}

func TestExitErr_ReportsFailedExit(t *testing.T) {
	o := grid()
	o.Bin = script(t, "exit 3")
	p, err := NewLauncher(o, logger.Nop()).Spawn(context.Background(), SpawnSpec{Key: "acme/api/main", RepoPath: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	waitDone(t, p, 3*time.Second)
	if err := p.ExitErr(); err == nil || !strings.Contains(err.Error(), "exit status 3") {
		t.Fatalf("ExitErr = %v", err)
	}
}

func TestSpawn_LoopModeIgnoresFeeds(t *testing.T) {
	o := grid()
	o.Loop = true
	o.Bin = script(t, "exec sleep 30")
	p, err := NewLauncher(o, logger.Nop()).Spawn(context.Background(), SpawnSpec{Key: "acme/api/main", RepoPath: t.TempDir()}, []byte("user:Ada\n1"))
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	p.Feed([]byte("user:Bob\n2"))
	if p.Pending() != 0 {
		t.Fatalf("loop mode queued a feed")
	}
	_ = p.Terminate()
	waitDone(t, p, 5*time.Second)
}

func TestSpawn_Errors(t *testing.T) {
	t.Parallel()

	o := grid()
	o.Bin = filepath.Join(t.TempDir(), "no-such-renderer")
	l := NewLauncher(o, logger.Nop())

	_, err := l.Spawn(context.Background(), SpawnSpec{Key: "acme/api/main", RepoPath: t.TempDir()}, nil)
	if !perr.IsCode(err, perr.ErrorCodeSpawn) {
		t.Fatalf("missing binary code = %v (%v)", perr.CodeOf(err), err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.Spawn(ctx, SpawnSpec{Key: "acme/api/main"}, nil)
	if !perr.IsCode(err, perr.ErrorCodeSpawn) {
		t.Fatalf("canceled ctx code = %v", perr.CodeOf(err))
	}
}
