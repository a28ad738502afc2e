// Copyright (c) 2013-2015 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/rpcclient"

	// Registers the cold staking commands.
	_ "github.com/navcoin/coldstaked/rpcserver"
)

const (
	appVersion      = "0.1.0"
	showHelpMessage = "Specify -h to show available options"
	listCmdMessage  = "Specify -l to list available commands"
)

// servedMethods are the commands coldstaked answers.
var servedMethods = map[string]bool{
	"generate":              true,
	"getbalance":            true,
	"getblockchaininfo":     true,
	"getblockcount":         true,
	"getcoldstakingaddress": true,
	"getnewaddress":         true,
	"getstakinginfo":        true,
	"importprivkey":         true,
	"listunspent":           true,
	"sendtoaddress":         true,
	"validateaddress":       true,
}

// commandUsage display the usage for a specific command.
func commandUsage(method string) {
	usage, err := btcjson.MethodUsageText(method)
	if err != nil {
		// This should never happen since the method was already checked
		// before calling this function, but be safe.
		fmt.Fprintln(os.Stderr, "Failed to obtain command usage:", err)
		return
	}

	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintf(os.Stderr, "  %s\n", usage)
}

// usage displays the general usage when the help flag is not displayed and
// and an invalid command was specified.  The commandUsage function is used
// instead when a valid command was specified.
func usage(errorMessage string) {
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	fmt.Fprintln(os.Stderr, errorMessage)
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintf(os.Stderr, "  %s [OPTIONS] <command> <args...>\n\n",
		appName)
	fmt.Fprintln(os.Stderr, showHelpMessage)
	fmt.Fprintln(os.Stderr, listCmdMessage)
}

// errUnknownMethod is returned by buildParams for commands coldstaked does
// not answer.
var errUnknownMethod = errors.New("unrecognized command")

// buildParams converts the command line arguments of the method into the
// typed JSON parameters of its registered command.
func buildParams(method string, args []string) ([]json.RawMessage, error) {
	if !servedMethods[method] {
		return nil, errUnknownMethod
	}

	params := make([]interface{}, 0, len(args))
	for _, arg := range args {
		params = append(params, arg)
	}
	cmd, err := btcjson.NewCmd(method, params...)
	if err != nil {
		return nil, err
	}

	marshalledJSON, err := btcjson.MarshalCmd(btcjson.RpcVersion1, 1, cmd)
	if err != nil {
		return nil, err
	}
	var request btcjson.Request
	if err := json.Unmarshal(marshalledJSON, &request); err != nil {
		return nil, err
	}
	return request.Params, nil
}

// readStdinArgs replaces every `-` argument with the next line read from
// standard input.
func readStdinArgs(args []string, r io.Reader) ([]string, error) {
	bio := bufio.NewReader(r)
	result := make([]string, 0, len(args))
	for _, arg := range args {
		if arg != "-" {
			result = append(result, arg)
			continue
		}

		param, err := bio.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read data from "+
				"stdin: %w", err)
		}
		if err == io.EOF && len(param) == 0 {
			return nil, errors.New("not enough lines provided on " +
				"stdin")
		}
		result = append(result, strings.TrimRight(param, "\r\n"))
	}
	return result, nil
}

// formatResult renders the raw result of a command for display.
func formatResult(result json.RawMessage) (string, error) {
	strResult := string(result)
	switch {
	case strings.HasPrefix(strResult, "{") || strings.HasPrefix(strResult, "["):
		var dst bytes.Buffer
		if err := json.Indent(&dst, result, "", "  "); err != nil {
			return "", fmt.Errorf("failed to format result: %w", err)
		}
		return dst.String(), nil

	case strings.HasPrefix(strResult, `"`):
		var str string
		if err := json.Unmarshal(result, &str); err != nil {
			return "", fmt.Errorf("failed to unmarshal result: %w",
				err)
		}
		return str, nil

	case strResult == "null" || strResult == "":
		return "", nil
	}
	return strResult, nil
}

func main() {
	cfg, args, err := loadConfig(os.Args[1:])
	if err != nil {
		os.Exit(1)
	}
	if len(args) < 1 {
		usage("No command specified")
		os.Exit(1)
	}

	method := args[0]
	cmdArgs, err := readStdinArgs(args[1:], os.Stdin)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	params, err := buildParams(method, cmdArgs)
	if err != nil {
		if errors.Is(err, errUnknownMethod) {
			fmt.Fprintf(os.Stderr, "Unrecognized command '%s'\n",
				method)
			fmt.Fprintln(os.Stderr, listCmdMessage)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "%s command: %v\n", method, err)
		commandUsage(method)
		os.Exit(1)
	}

	client, err := rpcclient.New(&rpcclient.ConnConfig{
		Host:         cfg.RPCServer,
		User:         cfg.RPCUser,
		Pass:         cfg.RPCPassword,
		HTTPPostMode: true,
		DisableTLS:   true,
	}, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	result, err := client.RawRequest(method, params)
	client.Shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	str, err := formatResult(result)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if str != "" {
		fmt.Println(str)
	}
}
