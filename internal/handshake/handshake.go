// Package handshake performs the MCP initialize/initialized exchange that
// must complete before any test request is sent, per spec §4.C.
package handshake

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mcpconductor/conductor/internal/conductorerr"
	"github.com/mcpconductor/conductor/internal/mcpschema"
	"github.com/mcpconductor/conductor/internal/process"
	"github.com/mcpconductor/conductor/internal/wire"
)

const initID = "init-1"

// Options configures a single handshake run.
type Options struct {
	ClientName          string
	ClientVersion       string
	PostInitializeDelay time.Duration
	RequestTimeout      time.Duration
}

// Result captures what the server reported during initialize, for the
// orchestrator to log and for a suite-level "setup time" diagnostic.
type Result struct {
	ServerInfo      mcpschema.Implementation
	ProtocolVersion string
	Capabilities    mcpschema.ServerCapabilities
	Elapsed         time.Duration
}

// Run executes the four-step handshake described in spec §4.C against comm,
// which must already be started.
func Run(ctx context.Context, comm *process.Communicator, logger *zap.Logger, opts Options) (*Result, error) {
	start := time.Now()
	if logger == nil {
		logger = zap.NewNop()
	}

	clientName := opts.ClientName
	if clientName == "" {
		clientName = "conductor"
	}
	clientVersion := opts.ClientVersion
	if clientVersion == "" {
		clientVersion = "dev"
	}

	params := mcpschema.InitializeParams{
		ProtocolVersion: mcpschema.ProtocolVersion,
		ClientInfo:      mcpschema.Implementation{Name: clientName, Version: clientVersion},
		Capabilities:    mcpschema.DefaultClientCapabilities(),
	}
	req, err := wire.NewRequest(wire.NewID(initID), mcpschema.MethodInitialize, params)
	if err != nil {
		return nil, conductorerr.Wrap(conductorerr.HandshakeFailed, err, "build initialize request")
	}
	if err := comm.Send(req); err != nil {
		return nil, conductorerr.Wrap(conductorerr.HandshakeFailed, err, "send initialize request")
	}

	reqTimeout := opts.RequestTimeout
	if reqTimeout <= 0 {
		reqTimeout = 10 * time.Second
	}
	recvCtx, cancel := context.WithTimeout(ctx, reqTimeout)
	defer cancel()

	resp, err := comm.Receive(recvCtx)
	if err != nil {
		return nil, conductorerr.Wrap(conductorerr.HandshakeFailed, err, "await initialize response")
	}
	if resp.Method != nil {
		return nil, conductorerr.New(conductorerr.HandshakeFailed, "server sent %q before replying to initialize, protocol violation", *resp.Method)
	}
	if !resp.ID.Equal(wire.NewID(initID)) {
		return nil, conductorerr.New(conductorerr.HandshakeFailed, "initialize response id %q does not match request id %q", resp.ID.String(), initID)
	}
	if resp.Error != nil {
		return nil, conductorerr.New(conductorerr.HandshakeFailed, "server rejected initialize: %s", resp.Error.Error())
	}
	if resp.Result == nil {
		return nil, conductorerr.New(conductorerr.HandshakeFailed, "initialize response has neither result nor error")
	}

	var result mcpschema.InitializeResult
	if err := resp.UnmarshalResult(&result); err != nil {
		return nil, conductorerr.Wrap(conductorerr.HandshakeFailed, err, "decode initialize result")
	}

	notif, err := wire.NewNotification(mcpschema.NotificationInitialized, nil)
	if err != nil {
		return nil, conductorerr.Wrap(conductorerr.HandshakeFailed, err, "build initialized notification")
	}
	if err := comm.Send(notif); err != nil {
		return nil, conductorerr.Wrap(conductorerr.HandshakeFailed, err, "send initialized notification")
	}

	delay := opts.PostInitializeDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, conductorerr.Wrap(conductorerr.HandshakeFailed, ctx.Err(), "post-initialize settle delay interrupted")
	}

	logger.Info("handshake complete",
		zap.String("serverName", result.ServerInfo.Name),
		zap.String("protocolVersion", result.ProtocolVersion),
	)

	return &Result{
		ServerInfo:      result.ServerInfo,
		ProtocolVersion: result.ProtocolVersion,
		Capabilities:    result.Capabilities,
		Elapsed:         time.Since(start),
	}, nil
}
