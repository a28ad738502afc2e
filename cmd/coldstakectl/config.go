// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/jessevdk/go-flags"
	"github.com/navcoin/coldstaked/chaincfg"
)

var (
	coldstakedHomeDir = btcutil.AppDataDir("coldstaked", false)
	ctlHomeDir        = btcutil.AppDataDir("coldstakectl", false)
	defaultConfigFile = filepath.Join(ctlHomeDir, "coldstakectl.conf")
	defaultRPCServer  = "localhost"
)

// listCommands categorizes and lists all of the usable commands along with
// their one-line usage.
func listCommands() {
	methods := btcjson.RegisteredCmdMethods()
	usages := make([]string, 0, len(methods))
	for _, method := range methods {
		if !servedMethods[method] {
			continue
		}
		usage, err := btcjson.MethodUsageText(method)
		if err != nil {
			// This should never happen since the method was just
			// returned from the package, but be safe.
			fmt.Fprintln(os.Stderr, "Failed to obtain command usage:", err)
			continue
		}
		usages = append(usages, usage)
	}
	sort.Strings(usages)
	for _, usage := range usages {
		fmt.Println(usage)
	}
}

// config defines the configuration options for coldstakectl.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ShowVersion    bool   `short:"V" long:"version" description:"Display version information and exit"`
	ListCommands   bool   `short:"l" long:"listcommands" description:"List all of the supported commands and exit"`
	ConfigFile     string `short:"C" long:"configfile" description:"Path to configuration file"`
	RPCUser        string `short:"u" long:"rpcuser" description:"RPC username"`
	RPCPassword    string `short:"P" long:"rpcpass" default-mask:"-" description:"RPC password"`
	RPCServer      string `short:"s" long:"rpcserver" description:"RPC server to connect to"`
	TestNet        bool   `long:"testnet" description:"Connect to testnet"`
	RegressionTest bool   `long:"regtest" description:"Connect to the regression test network"`
}

// normalizeAddress returns addr with the RPC port of the selected network
// appended if there is not already a port specified.
func normalizeAddress(addr string, params *chaincfg.Params) string {
	_, _, err := net.SplitHostPort(addr)
	if err != nil {
		return net.JoinHostPort(addr, params.RPCPort)
	}
	return addr
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// createDefaultConfigFile writes the rpcuser and rpcpass found in the node
// config file to a new config file at destinationPath.  Nothing is written
// when the node config file does not hold both.
func createDefaultConfigFile(destinationPath, nodeConfigPath string) error {
	if !fileExists(nodeConfigPath) {
		return nil
	}
	content, err := os.ReadFile(nodeConfigPath)
	if err != nil {
		return err
	}

	// Extract the rpcuser
	rpcUserRegexp := regexp.MustCompile(`(?m)^\s*rpcuser=([^\s]+)`)
	userSubmatches := rpcUserRegexp.FindSubmatch(content)
	if userSubmatches == nil {
		// No user found, nothing to do
		return nil
	}

	// Extract the rpcpass
	rpcPassRegexp := regexp.MustCompile(`(?m)^\s*rpcpass=([^\s]+)`)
	passSubmatches := rpcPassRegexp.FindSubmatch(content)
	if passSubmatches == nil {
		// No password found, nothing to do
		return nil
	}

	// Create the destination directory if it does not exists
	err = os.MkdirAll(filepath.Dir(destinationPath), 0700)
	if err != nil {
		return err
	}

	contents := fmt.Sprintf("rpcuser=%s\nrpcpass=%s\n",
		userSubmatches[1], passSubmatches[1])
	return os.WriteFile(destinationPath, []byte(contents), 0600)
}

// loadConfig initializes and parses the config using a config file and the
// command line options.  The RPC credentials of the coldstaked config file are
// copied to a new coldstakectl config file when none exists.
func loadConfig(args []string) (*config, []string, error) {
	// Default config.
	cfg := config{
		ConfigFile: defaultConfigFile,
		RPCServer:  defaultRPCServer,
	}

	// Pre-parse the command line options to see if an alternative config
	// file, the version flag, or the list commands flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.HelpFlag)
	_, err := preParser.ParseArgs(args)
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, "")
			fmt.Fprintln(os.Stderr, "The special parameter `-` "+
				"indicates that a parameter should be read "+
				"from the\nnext unread line from standard input.")
			os.Exit(0)
		}
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", appVersion)
		os.Exit(0)
	}

	// Show the available commands and exit if the associated flag was
	// specified.
	if preCfg.ListCommands {
		listCommands()
		os.Exit(0)
	}

	// Use the RPC credentials of the node when there is no config file
	// yet.
	if preCfg.ConfigFile == defaultConfigFile && !fileExists(defaultConfigFile) {
		nodeConfigFile := filepath.Join(coldstakedHomeDir, "coldstaked.conf")
		err := createDefaultConfigFile(defaultConfigFile, nodeConfigFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating a default config "+
				"file: %v\n", err)
		}
	}

	// Load additional config from file.
	parser := flags.NewParser(&cfg, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			fmt.Fprintf(os.Stderr, "Error parsing config file: %v\n",
				err)
			return nil, nil, err
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		var e *flags.Error
		if !errors.As(err, &e) || e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, showHelpMessage)
		}
		return nil, nil, err
	}

	// Multiple networks can't be selected simultaneously.
	if cfg.TestNet && cfg.RegressionTest {
		str := "%s: the testnet and regtest params can't be used " +
			"together -- choose one of the two"
		err := fmt.Errorf(str, "loadConfig")
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	params := &chaincfg.MainNetParams
	switch {
	case cfg.TestNet:
		params = &chaincfg.TestNetParams
	case cfg.RegressionTest:
		params = &chaincfg.RegressionNetParams
	}
	cfg.RPCServer = normalizeAddress(cfg.RPCServer, params)

	return &cfg, remainingArgs, nil
}
