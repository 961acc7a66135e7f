package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"github.com/vibein/vibechat/internal/config"
	"github.com/vibein/vibechat/internal/daemon"
	"github.com/vibein/vibechat/internal/profile"
	"go.uber.org/fx"
)

func main() {
	profileFlag := pflag.StringP("profile", "p", "", "profile name (overrides config default)")
	noPush := pflag.Bool("no-push", false, "do not open the push socket")
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
	if *noPush {
		cfg.Push.Enabled = false
	}
	if err := cfg.Validate(); err != nil {
		fatal(err)
	}

	app := fx.New(
		daemon.Module(daemon.Params{Profile: name, Config: cfg}),
	)
	app.Run()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
