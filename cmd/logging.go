package cmd

import (
	"fmt"
	"strings"

	"github.com/soerenfi/raytracing/log"
	"github.com/urfave/cli"
)

var logger = log.New("raytracing")

func setupLogging(ctx *cli.Context) error {
	if name := ctx.GlobalString("log-level"); name != "" {
		level, err := log.ParseLevel(name)
		if err != nil {
			return err
		}
		log.SetLevel(level)
	}

	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}

	for _, entry := range ctx.GlobalStringSlice("log-module") {
		module, level, err := parseModuleLevel(entry)
		if err != nil {
			return err
		}
		log.SetModuleLevel(module, level)
	}
	return nil
}

// Parse a module=level pair.
func parseModuleLevel(entry string) (string, log.Level, error) {
	module, name, ok := strings.Cut(entry, "=")
	module = strings.TrimSpace(module)
	if !ok || module == "" {
		return "", log.Notice, fmt.Errorf("invalid module log level %q; expected module=level", entry)
	}
	level, err := log.ParseLevel(name)
	if err != nil {
		return "", log.Notice, err
	}
	return module, level, nil
}

// Log the error returned by a command and get the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	logger.Error(err.Error())
	return 1
}
