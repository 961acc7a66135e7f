package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"
	"github.com/vibein/vibechat/internal/client"
	"github.com/vibein/vibechat/internal/config"
	"github.com/vibein/vibechat/internal/profile"
	"github.com/vibein/vibechat/internal/tui"
)

func main() {
	profileFlag := pflag.StringP("profile", "p", "", "profile name (overrides config default)")
	noStart := pflag.Bool("no-start", false, "do not start the daemon when it is not running")
	pflag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fatal(err)
	}

	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		fatal(err)
	}
	if err := config.ApplyEnv(cfg, profile.EnvPath(name)); err != nil {
		fatal(err)
	}

	socketPath := profile.SocketPath(name)
	if !probeDaemon(socketPath) {
		if *noStart {
			fatal(fmt.Errorf("daemon not running for profile %q", name))
		}
		fmt.Fprintf(os.Stderr, "daemon not running for profile %q, starting...\n", name)
		if err := startDaemon(name); err != nil {
			fatal(fmt.Errorf("start daemon: %w", err))
		}
		if !waitForDaemon(socketPath, 10*time.Second) {
			fatal(errors.New("daemon did not become ready"))
		}
	}

	c, err := client.New(socketPath)
	if err != nil {
		fatal(fmt.Errorf("connect to daemon: %w", err))
	}
	defer func() { _ = c.Close() }()

	if err := tui.NewApp(c, name, cfg.Backend.URL).Run(); err != nil {
		fatal(err)
	}
}

// probeDaemon runs a health check against the profile's socket.
func probeDaemon(socketPath string) bool {
	if _, err := os.Stat(socketPath); err != nil {
		return false
	}
	c, err := client.New(socketPath)
	if err != nil {
		return false
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ok, err := c.Healthy(ctx)
	return err == nil && ok
}

// startDaemon launches vibechatd next to this binary, or from PATH.
func startDaemon(name string) error {
	daemon := "vibechatd"
	if exe, err := os.Executable(); err == nil {
		if p := filepath.Join(filepath.Dir(exe), daemon); fileExists(p) {
			daemon = p
		}
	}

	cmd := exec.Command(daemon, "--profile", name)
	// Inherit stderr so daemon startup errors are visible.
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func waitForDaemon(socketPath string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if probeDaemon(socketPath) {
			return true
		}
		time.Sleep(300 * time.Millisecond)
	}
	return false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
