// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/navcoin/coldstaked/address"
	"github.com/navcoin/coldstaked/blockchain"
	"github.com/navcoin/coldstaked/chaincfg"
	"github.com/navcoin/coldstaked/mining"
	"github.com/navcoin/coldstaked/stake"
	"github.com/navcoin/coldstaked/wallet"
)

// commandHandler is a handler function to handle an unmarshaled and parsed
// request into a marshalable response.  If the error is a *btcjson.RPCError
// or one of the errors translated by jsonError, the server responds with the
// matching JSON-RPC error code.
type commandHandler func(*Server, interface{}) (interface{}, error)

// rpcHandlers maps RPC command strings to appropriate handler functions.
var rpcHandlers = map[string]commandHandler{
	"generate":              handleGenerate,
	"getbalance":            handleGetBalance,
	"getblockchaininfo":     handleGetBlockChainInfo,
	"getblockcount":         handleGetBlockCount,
	"getcoldstakingaddress": handleGetColdStakingAddress,
	"getnewaddress":         handleGetNewAddress,
	"getstakinginfo":        handleGetStakingInfo,
	"importprivkey":         handleImportPrivKey,
	"listunspent":           handleListUnspent,
	"sendtoaddress":         handleSendToAddress,
	"validateaddress":       handleValidateAddress,
}

// Errors returned to clients verbatim.
var (
	ErrInsufficientFunds = &btcjson.RPCError{
		Code:    btcjson.ErrRPCWalletInsufficientFunds,
		Message: "Insufficient funds",
	}

	ErrInvalidAddress = &btcjson.RPCError{
		Code:    btcjson.ErrRPCInvalidAddressOrKey,
		Message: "Invalid address",
	}
)

// sanitizeRequest returns a sanitized string for the request which may be
// safely logged.  Private keys are never logged.
func sanitizeRequest(r *btcjson.Request) string {
	if r.Method == "importprivkey" {
		return fmt.Sprintf(`{"id":%v,"method":"%s","params":SANITIZED %d parameters}`,
			r.ID, r.Method, len(r.Params))
	}
	return fmt.Sprintf(`{"id":%v,"method":"%s","params":%s}`, r.ID,
		r.Method, r.Params)
}

// paramText renders a raw positional parameter as text.  Strings are
// unquoted and anything else is kept as its JSON encoding.
func paramText(param json.RawMessage) string {
	var s string
	if err := json.Unmarshal(param, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(param))
}

// parseCmd unmarshals the parameters of the request into the registered
// command type of its method.
func parseCmd(req *btcjson.Request) (interface{}, *btcjson.RPCError) {
	// Addresses given as numbers are rejected by the handler as invalid
	// addresses rather than as malformed parameters.
	if req.Method == "getcoldstakingaddress" {
		if len(req.Params) != 2 {
			return nil, btcjson.NewRPCError(btcjson.ErrRPCInvalidParams.Code,
				"getcoldstakingaddress requires a staking and a "+
					"spending address")
		}
		return NewGetColdStakingAddressCmd(paramText(req.Params[0]),
			paramText(req.Params[1])), nil
	}

	cmd, err := btcjson.UnmarshalCmd(req)
	if err != nil {
		var jerr btcjson.Error
		if errors.As(err, &jerr) && jerr.ErrorCode == btcjson.ErrUnregisteredMethod {
			return nil, btcjson.ErrRPCMethodNotFound
		}
		return nil, btcjson.NewRPCError(btcjson.ErrRPCInvalidParams.Code,
			err.Error())
	}
	return cmd, nil
}

// handleRequest parses the request and runs the handler of its method.
func (s *Server) handleRequest(req *btcjson.Request) (interface{}, *btcjson.RPCError) {
	handler, ok := rpcHandlers[req.Method]
	if !ok {
		return nil, btcjson.ErrRPCMethodNotFound
	}
	cmd, jsonErr := parseCmd(req)
	if jsonErr != nil {
		return nil, jsonErr
	}
	result, err := handler(s, cmd)
	if err != nil {
		return nil, jsonError(err)
	}
	return result, nil
}

// jsonError creates a JSON-RPC error from the Go error.
func jsonError(err error) *btcjson.RPCError {
	if err == nil {
		return nil
	}

	var rpcErr *btcjson.RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	var insufficient wallet.InsufficientFunds
	if errors.As(err, &insufficient) {
		return ErrInsufficientFunds
	}

	code := btcjson.ErrRPCMisc
	var addrErr address.Error
	var ruleErr mining.RuleError
	switch {
	case errors.As(err, &addrErr):
		code = btcjson.ErrRPCInvalidAddressOrKey
	case errors.As(err, &ruleErr):
		code = btcjson.ErrRPCVerifyRejected
	case errors.Is(err, wallet.ErrNonPositiveAmount):
		code = btcjson.ErrRPCType
	}
	return &btcjson.RPCError{
		Code:    code,
		Message: err.Error(),
	}
}

// handleGetColdStakingAddress implements the getcoldstakingaddress command.
func handleGetColdStakingAddress(s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*GetColdStakingAddressCmd)

	addr, err := address.NewAddressColdStakingFromAddresses(c.StakingAddress,
		c.SpendingAddress, s.cfg.ChainParams)
	if err != nil {
		return nil, err
	}
	return addr.EncodeAddress(), nil
}

// handleValidateAddress implements the validateaddress command.
func handleValidateAddress(s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*btcjson.ValidateAddressCmd)

	result := ValidateAddressResult{}
	addr, err := address.DecodeAddress(c.Address, s.cfg.ChainParams)
	if err != nil {
		// Use result zero value (IsValid=false).
		return result, nil
	}
	pkScript, err := stake.PayToAddrScript(addr)
	if err != nil {
		return result, nil
	}

	result.IsValid = true
	result.Address = addr.EncodeAddress()
	result.ScriptPubKey = hex.EncodeToString(pkScript)

	keys := s.cfg.Wallet.Keys()
	switch a := addr.(type) {
	case *address.AddressColdStaking:
		staking := a.StakingAddress(s.cfg.ChainParams)
		spending := a.SpendingAddress(s.cfg.ChainParams)
		result.IsColdStaking = true
		result.StakingAddress = staking.EncodeAddress()
		result.SpendingAddress = spending.EncodeAddress()
		result.IsMine = keys.HaveKey(staking.ScriptAddress()) ||
			keys.HaveKey(spending.ScriptAddress())

	case *btcutil.AddressPubKeyHash:
		result.IsMine = keys.HaveKey(a.ScriptAddress())

	case *btcutil.AddressScriptHash:
		result.IsScript = true
	}
	return result, nil
}

// handleGetStakingInfo implements the getstakinginfo command.  The weight is
// computed from a fresh snapshot of the wallet.
func handleGetStakingInfo(s *Server, cmd interface{}) (interface{}, error) {
	weight, height, err := s.cfg.Wallet.StakingWeight()
	if err != nil {
		return nil, err
	}

	result := GetStakingInfoResult{
		Enabled:       s.cfg.Staker != nil,
		CurrentHeight: height,
		Weight:        int64(weight),
	}
	if s.cfg.Staker != nil && s.cfg.Staker.IsStaking() && weight > 0 {
		result.Staking = true
		result.ExpectedTime = int64(s.cfg.Staker.Interval().Seconds())
	}
	return result, nil
}

// softForkStatus converts a ThresholdState state into a human readable string
// corresponding to the particular state.
func softForkStatus(state blockchain.ThresholdState) (string, error) {
	switch state {
	case blockchain.ThresholdDefined:
		return "defined", nil
	case blockchain.ThresholdStarted:
		return "started", nil
	case blockchain.ThresholdLockedIn:
		return "locked_in", nil
	case blockchain.ThresholdActive:
		return "active", nil
	case blockchain.ThresholdFailed:
		return "failed", nil
	default:
		return "", fmt.Errorf("unknown deployment state: %v", state)
	}
}

// handleGetBlockChainInfo implements the getblockchaininfo command.
func handleGetBlockChainInfo(s *Server, cmd interface{}) (interface{}, error) {
	chain := s.cfg.Chain
	best := chain.BestSnapshot()
	result := &GetBlockChainInfoResult{
		Chain:         s.cfg.ChainParams.Name,
		Blocks:        best.Height,
		Headers:       best.Height,
		BestBlockHash: best.Hash.String(),
		Bip9SoftForks: make(map[string]*Bip9SoftForkDescription),
	}

	for id := uint32(0); id < chaincfg.DefinedDeployments; id++ {
		state, err := chain.DeploymentState(id)
		if err != nil {
			return nil, &btcjson.RPCError{
				Code:    btcjson.ErrRPCInternal.Code,
				Message: fmt.Sprintf("Failed to obtain deployment "+
					"status: %v", err),
			}
		}
		status, err := softForkStatus(state.State)
		if err != nil {
			return nil, &btcjson.RPCError{
				Code:    btcjson.ErrRPCInternal.Code,
				Message: err.Error(),
			}
		}
		result.Bip9SoftForks[state.Name] = &Bip9SoftForkDescription{
			Status:        status,
			Bit:           state.Bit,
			StartHeight:   state.StartHeight,
			TimeoutHeight: state.ExpireHeight,
			Since:         state.Since,
		}
	}
	return result, nil
}

// handleGetBlockCount implements the getblockcount command.
func handleGetBlockCount(s *Server, cmd interface{}) (interface{}, error) {
	return int64(s.cfg.Chain.BestSnapshot().Height), nil
}

// handleGetNewAddress implements the getnewaddress command.
func handleGetNewAddress(s *Server, cmd interface{}) (interface{}, error) {
	addr, err := s.cfg.Wallet.Keys().NewAddress()
	if err != nil {
		return nil, err
	}
	return addr.EncodeAddress(), nil
}

// handleGetBalance implements the getbalance command.  Outputs the wallet may
// only stake are not part of the balance.
func handleGetBalance(s *Server, cmd interface{}) (interface{}, error) {
	balance, err := s.cfg.Wallet.Balance()
	if err != nil {
		return nil, err
	}
	return balance.ToBTC(), nil
}

// handleListUnspent implements the listunspent command.
func handleListUnspent(s *Server, cmd interface{}) (interface{}, error) {
	unspent, err := s.cfg.Wallet.ListUnspent()
	if err != nil {
		return nil, err
	}

	results := make([]ListUnspentResult, 0, len(unspent))
	for _, u := range unspent {
		results = append(results, ListUnspentResult{
			TxID:          u.OutPoint.Hash.String(),
			Vout:          u.OutPoint.Index,
			Address:       u.Address,
			ScriptPubKey:  hex.EncodeToString(u.PkScript),
			Amount:        u.Amount.ToBTC(),
			Confirmations: int64(u.Confirmations),
			Spendable:     u.Spendable,
			Stakeable:     u.Stakeable,
		})
	}
	return results, nil
}

// handleImportPrivKey implements the importprivkey command.
func handleImportPrivKey(s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*btcjson.ImportPrivKeyCmd)

	wif, err := btcutil.DecodeWIF(c.PrivKey)
	if err != nil {
		return nil, &btcjson.RPCError{
			Code:    btcjson.ErrRPCInvalidAddressOrKey,
			Message: "WIF decode failed: " + err.Error(),
		}
	}
	if _, err := s.cfg.Wallet.Keys().ImportWIF(wif); err != nil {
		if errors.Is(err, wallet.ErrWrongNet) {
			return nil, &btcjson.RPCError{
				Code: btcjson.ErrRPCInvalidAddressOrKey,
				Message: "Key is not intended for " +
					s.cfg.ChainParams.Name,
			}
		}
		return nil, err
	}

	// Return the value of the JSON null.
	return nil, nil
}

// handleSendToAddress implements the sendtoaddress command.
func handleSendToAddress(s *Server, cmd interface{}) (interface{}, error) {
	c := cmd.(*btcjson.SendToAddressCmd)

	amt, err := btcutil.NewAmount(c.Amount)
	if err != nil {
		return nil, &btcjson.RPCError{
			Code:    btcjson.ErrRPCType,
			Message: "Invalid amount",
		}
	}
	if amt <= 0 {
		return nil, &btcjson.RPCError{
			Code:    btcjson.ErrRPCType,
			Message: "Amount must be positive",
		}
	}

	addr, err := address.DecodeAddress(c.Address, s.cfg.ChainParams)
	if err != nil {
		return nil, ErrInvalidAddress
	}

	txHash, err := s.cfg.Wallet.SendToAddress(addr, amt)
	if err != nil {
		return nil, err
	}
	return txHash.String(), nil
}

// handleGenerate implements the generate command.
func handleGenerate(s *Server, cmd interface{}) (interface{}, error) {
	// Respond with an error if there's virtually 0 chance of producing a
	// block with the CPU.
	if !s.cfg.ChainParams.GenerateSupported {
		return nil, &btcjson.RPCError{
			Code: btcjson.ErrRPCDifficulty,
			Message: fmt.Sprintf("No support for `generate` on "+
				"the current network, %s, as blocks are only "+
				"produced on demand on test networks.",
				s.cfg.ChainParams.Name),
		}
	}

	c := cmd.(*btcjson.GenerateCmd)

	// Respond with an error if the client is requesting 0 blocks to be
	// generated.
	if c.NumBlocks == 0 {
		return nil, &btcjson.RPCError{
			Code:    btcjson.ErrRPCInternal.Code,
			Message: "Please request a nonzero number of blocks to generate.",
		}
	}

	blockHashes, err := s.cfg.Generator.GenerateNBlocks(c.NumBlocks)
	if err != nil {
		if errors.Is(err, mining.ErrNoMiningAddrs) {
			return nil, &btcjson.RPCError{
				Code: btcjson.ErrRPCInternal.Code,
				Message: "No payment addresses specified " +
					"via --miningaddr",
			}
		}
		return nil, &btcjson.RPCError{
			Code:    btcjson.ErrRPCInternal.Code,
			Message: err.Error(),
		}
	}

	// Mine the correct number of blocks, assigning the hex representation
	// of the hash of each one to its place in the reply.
	reply := make([]string, len(blockHashes))
	for i, hash := range blockHashes {
		reply[i] = hash.String()
	}
	return reply, nil
}
