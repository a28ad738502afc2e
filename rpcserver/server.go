// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/btcjson"
	"github.com/navcoin/coldstaked/blockchain"
	"github.com/navcoin/coldstaked/chaincfg"
	"github.com/navcoin/coldstaked/mining"
	"github.com/navcoin/coldstaked/wallet"
)

const (
	// rpcAuthTimeoutSeconds is the number of seconds a connection to the
	// RPC server is allowed to stay open without sending a full request.
	rpcAuthTimeoutSeconds = 10

	// maxRequestSize specifies the maximum number of bytes in the request
	// body that may be read from a client.
	maxRequestSize = 1024 * 1024 * 4

	// DefaultMaxClients is the default maximum number of concurrent HTTP
	// POST clients.
	DefaultMaxClients = 10
)

// Config is a descriptor containing the RPC server configuration.
type Config struct {
	// Listeners defines the listeners the RPC server accepts connections
	// on.
	Listeners []net.Listener

	// Username and Password are the HTTP basic auth credentials every
	// request must carry.
	Username string
	Password string

	// MaxClients is the maximum number of concurrent HTTP POST clients.
	// Zero selects DefaultMaxClients.
	MaxClients int64

	// ChainParams identifies the network the server answers for.
	ChainParams *chaincfg.Params

	// Chain is the block chain queried by the chain commands.
	Chain *blockchain.BlockChain

	// Generator produces blocks for the generate command.
	Generator *mining.Generator

	// Wallet serves the wallet commands.
	Wallet *wallet.Wallet

	// Staker is the background staker.  It is nil when staking is
	// disabled.
	Staker *mining.Staker
}

// Server provides a JSON-RPC server over HTTP POST for the chain and the
// wallet of the node.
type Server struct {
	started  int32
	shutdown int32
	cfg      Config
	authsha  [sha256.Size]byte

	httpServer http.Server
	wg         sync.WaitGroup
}

// New returns a new RPC server for the provided configuration.  Use Start to
// begin accepting connections.
func New(cfg *Config) *Server {
	s := &Server{
		cfg: *cfg,
		// A hash of the HTTP basic auth string is used for a constant
		// time comparison.
		authsha: sha256.Sum256(httpBasicAuth(cfg.Username, cfg.Password)),
	}
	if s.cfg.MaxClients == 0 {
		s.cfg.MaxClients = DefaultMaxClients
	}

	serveMux := http.NewServeMux()
	serveMux.Handle("/", s.Handler())
	s.httpServer = http.Server{
		Handler: serveMux,

		// Timeout connections which don't complete the initial
		// handshake within the allowed timeframe.
		ReadTimeout: time.Second * rpcAuthTimeoutSeconds,
	}
	return s
}

// Handler returns the HTTP handler serving authenticated JSON-RPC POST
// requests.
func (s *Server) Handler() http.Handler {
	return throttled(s.cfg.MaxClients, http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Connection", "close")
			w.Header().Set("Content-Type", "application/json")
			r.Close = true

			if err := s.checkAuthHeader(r); err != nil {
				log.Warnf("Unauthorized client connection attempt "+
					"from %s", r.RemoteAddr)
				jsonAuthFail(w)
				return
			}
			s.postClientRPC(w, r)
		}))
}

// Start begins serving RPC requests on every configured listener.  It does
// not block.
func (s *Server) Start() {
	if atomic.AddInt32(&s.started, 1) != 1 {
		return
	}

	for _, lis := range s.cfg.Listeners {
		s.wg.Add(1)
		go func(lis net.Listener) {
			log.Infof("RPC server listening on %s", lis.Addr())
			err := s.httpServer.Serve(lis)
			log.Tracef("Finished serving RPC: %v", err)
			s.wg.Done()
		}(lis)
	}
}

// Stop gracefully shuts down the RPC server by closing its listeners and
// waiting for them to finish.
func (s *Server) Stop() error {
	if atomic.AddInt32(&s.shutdown, 1) != 1 {
		log.Infof("RPC server is already in the process of shutting down")
		return nil
	}
	log.Warnf("RPC server shutting down")
	err := s.httpServer.Close()
	s.wg.Wait()
	log.Infof("RPC server shutdown complete")
	return err
}

// httpBasicAuth returns the UTF-8 bytes of the HTTP Basic authentication
// string:
//
//	"Basic " + base64(username + ":" + password)
func httpBasicAuth(username, password string) []byte {
	const header = "Basic "
	base64 := base64.StdEncoding

	b64InputLen := len(username) + len(":") + len(password)
	b64Input := make([]byte, 0, b64InputLen)
	b64Input = append(b64Input, username...)
	b64Input = append(b64Input, ':')
	b64Input = append(b64Input, password...)

	output := make([]byte, len(header)+base64.EncodedLen(b64InputLen))
	copy(output, header)
	base64.Encode(output[len(header):], b64Input)
	return output
}

// ErrNoAuth represents an error where authentication could not succeed
// due to a missing Authorization HTTP header.
var ErrNoAuth = errors.New("no auth")

// checkAuthHeader checks the HTTP Basic authentication supplied by a client
// in the HTTP request r.  It errors with ErrNoAuth if the request does not
// contain the Authorization header, or another non-nil error if the
// authentication was provided but incorrect.
//
// This check is time-constant.
func (s *Server) checkAuthHeader(r *http.Request) error {
	authhdr := r.Header["Authorization"]
	if len(authhdr) == 0 {
		return ErrNoAuth
	}

	authsha := sha256.Sum256([]byte(authhdr[0]))
	cmp := subtle.ConstantTimeCompare(authsha[:], s.authsha[:])
	if cmp != 1 {
		return errors.New("bad auth")
	}
	return nil
}

// jsonAuthFail sends a message back to the client if the http auth is rejected.
func jsonAuthFail(w http.ResponseWriter) {
	w.Header().Add("WWW-Authenticate", `Basic realm="coldstaked RPC"`)
	http.Error(w, "401 Unauthorized.", http.StatusUnauthorized)
}

// throttled wraps an http.Handler with throttling of concurrent active
// clients by responding with an HTTP 429 when the threshold is crossed.
func throttled(threshold int64, h http.Handler) http.Handler {
	var active int64

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := atomic.AddInt64(&active, 1)
		defer atomic.AddInt64(&active, -1)

		if current-1 >= threshold {
			log.Warnf("Reached threshold of %d concurrent active "+
				"clients", threshold)
			http.Error(w, "429 Too Many Requests", 429)
			return
		}

		h.ServeHTTP(w, r)
	})
}

// postClientRPC processes and replies to a JSON-RPC client request.
func (s *Server) postClientRPC(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxRequestSize)
	rpcRequest, err := io.ReadAll(body)
	if err != nil {
		http.Error(w, "413 Request Too Large.",
			http.StatusRequestEntityTooLarge)
		return
	}

	var req btcjson.Request
	if err := json.Unmarshal(rpcRequest, &req); err != nil {
		s.writeResponse(w, btcjson.RpcVersion1, nil, nil,
			btcjson.ErrRPCParse)
		return
	}

	// Requests without a valid version are answered as JSON-RPC 1.0.
	rpcVersion := req.Jsonrpc
	if !rpcVersion.IsValid() {
		rpcVersion = btcjson.RpcVersion1
	}
	if !btcjson.IsValidIDType(req.ID) {
		s.writeResponse(w, rpcVersion, nil, nil,
			btcjson.ErrRPCInvalidRequest)
		return
	}

	log.Debugf("Received command <%s> from %s", sanitizeRequest(&req),
		r.RemoteAddr)
	result, jsonErr := s.handleRequest(&req)
	s.writeResponse(w, rpcVersion, req.ID, result, jsonErr)
}

// writeResponse marshals and sends the response to the client.
func (s *Server) writeResponse(w http.ResponseWriter, rpcVersion btcjson.RPCVersion,
	id interface{}, result interface{}, jsonErr *btcjson.RPCError) {

	mresp, err := btcjson.MarshalResponse(rpcVersion, id, result, jsonErr)
	if err != nil {
		log.Errorf("Unable to marshal response: %v", err)
		http.Error(w, "500 Internal Server Error",
			http.StatusInternalServerError)
		return
	}
	if _, err := w.Write(mresp); err != nil {
		log.Warnf("Unable to respond to client: %v", err)
	}
}
