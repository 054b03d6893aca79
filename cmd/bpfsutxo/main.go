package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/qinglongcn/bpfsutxo"
	"github.com/sirupsen/logrus"
)

func main() {
	subCmd, cfg, config := parseCommandLine()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		printErrorAndExit(err)
	}
	if err := bpfsutxo.SetLog("", "", level); err != nil {
		printErrorAndExit(err)
	}

	switch subCmd {
	case runScriptSubCmd:
		err = runScript(config.(*runScriptConfig))
	case vectorsSubCmd:
		err = runVectors(config.(*vectorsConfig))
	case keygenSubCmd:
		err = keygen(config.(*keygenConfig))
	case serveSubCmd:
		err = serve(cfg, config.(*serveConfig))
	default:
		err = errors.Errorf("Unknown sub-command '%s'\n", subCmd)
	}

	if err != nil {
		printErrorAndExit(err)
	}
}

func printErrorAndExit(err error) {
	fmt.Fprintf(os.Stderr, "%s\n", err)
	os.Exit(1)
}
