package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
)

const (
	runScriptSubCmd = "run-script"
	vectorsSubCmd   = "vectors"
	keygenSubCmd    = "keygen"
	serveSubCmd     = "serve"
)

type configFlags struct {
	LogLevel string `long:"loglevel" description:"Logging level {trace, debug, info, warn, error}" default:"info"`
}

type runScriptConfig struct {
	Witness string `long:"witness" short:"w" description:"The witness in short form, e.g. \"1 2\""`
	Lock    string `long:"lock" short:"l" description:"The lock script in short form, e.g. \"ADD 3 EQUAL\"" required:"true"`
	Flags   string `long:"flags" short:"f" description:"Comma separated execution flags: MINIMALDATA, MINIMALIF" default:"MINIMALDATA,MINIMALIF"`
}

type vectorsConfig struct {
	Dir     string `long:"dir" short:"d" description:"The directory holding the vector files (default: <root>/vectors)"`
	File    string `long:"file" description:"Run only this vector file"`
	Verbose bool   `long:"verbose" short:"v" description:"Print every failing vector"`
}

type keygenConfig struct {
	Seed   string `long:"seed" short:"s" description:"The wallet seed (encoded in hex), a random seed is generated when empty"`
	Index  uint32 `long:"index" short:"i" description:"The hardened child index to derive"`
	Scheme string `long:"scheme" description:"The signature scheme {schnorr, ecdsa}" default:"schnorr"`
}

type serveConfig struct {
	RootPath         string `long:"root" short:"r" description:"The root directory of the ledger files"`
	InstanceId       string `long:"instance" description:"The instance identifier (default: primary MAC address)"`
	InMemory         bool   `long:"inmemory" description:"Keep the ledger in memory only"`
	AllowNonStandard bool   `long:"allow-nonstandard" description:"Accept transactions that fail the standardness policy"`
	Demo             bool   `long:"demo" description:"Seed an output, spend it and commit the spend after startup"`
}

func parseCommandLine() (subCommand string, cfg *configFlags, config interface{}) {
	cfg = &configFlags{}
	parser := flags.NewParser(cfg, flags.PrintErrors|flags.HelpFlag)

	runScriptConf := &runScriptConfig{}
	parser.AddCommand(runScriptSubCmd, "Execute a script",
		"Executes a witness, then a lock script on the resulting stack, and prints the result. The result is OK only if the final stack top is true", runScriptConf)

	vectorsConf := &vectorsConfig{}
	parser.AddCommand(vectorsSubCmd, "Run the script conformance vectors",
		"Runs the JSON vector files of a directory, writing the built-in vectors first when none exist", vectorsConf)

	keygenConf := &keygenConfig{}
	parser.AddCommand(keygenSubCmd, "Derive a signing key",
		"Derives a key from an HD wallet seed and prints its tagged public key and address", keygenConf)

	serveConf := &serveConfig{}
	parser.AddCommand(serveSubCmd, "Open a ledger",
		"Opens a ledger and keeps it open until the process is interrupted", serveConf)

	_, err := parser.Parse()

	if err != nil {
		var flagsErr *flags.Error
		if ok := errors.As(err, &flagsErr); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		} else {
			os.Exit(1)
		}
		return "", nil, nil
	}

	switch parser.Command.Active.Name {
	case runScriptSubCmd:
		config = runScriptConf
	case vectorsSubCmd:
		config = vectorsConf
	case keygenSubCmd:
		config = keygenConf
	case serveSubCmd:
		config = serveConf
	}

	return parser.Command.Active.Name, cfg, config
}
