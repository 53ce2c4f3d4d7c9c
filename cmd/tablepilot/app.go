// Package main provides the tablepilot CLI entry point.
// This file assembles the backend: MCP connection, session store, LLM
// client, sandbox executor, and the agent on top.
package main

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"tablepilot/internal/agent"
	"tablepilot/internal/airtable"
	"tablepilot/internal/config"
	"tablepilot/internal/executor"
	"tablepilot/internal/llm"
	"tablepilot/internal/logging"
	"tablepilot/internal/mcp"
	"tablepilot/internal/session"
)

// app bundles the connected backend components.
type app struct {
	cfg   config.Config
	mcp   *mcp.Client
	store *session.Store
	agent *agent.Agent
}

func newMCPClient(cfg config.Config) *mcp.Client {
	protocol := mcp.ProtocolHTTP
	if cfg.MCPProtocol == "sse" {
		protocol = mcp.ProtocolSSE
	}
	return mcp.NewClient(cfg.MCPURL, protocol, cfg.MCPTimeout)
}

func newSessionStore(cfg config.Config) (*session.Store, error) {
	return session.NewStore(cfg.Workspace)
}

// newApp validates the config, connects to the MCP server and opens the
// session store concurrently, then wires the agent.
func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mcpClient := newMCPClient(cfg)
	var store *session.Store

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := mcpClient.Connect(gctx); err != nil {
			return fmt.Errorf("failed to connect to MCP server at %s: %w", cfg.MCPURL, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		store, err = newSessionStore(cfg)
		return err
	})
	if err := g.Wait(); err != nil {
		if mcpClient.IsConnected() {
			mcpClient.Close()
		}
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	llmClient, err := llm.New(cfg)
	if err != nil {
		mcpClient.Close()
		store.Close()
		return nil, err
	}

	at := airtable.NewClient(mcpClient)
	exec := executor.New(at, cfg.ExecutionTimeout)
	ag := agent.New(llmClient, exec,
		agent.WithMaxRetries(cfg.MaxRetries),
		agent.WithHistoryWindow(cfg.HistoryWindow),
	)

	logging.Boot("backend ready: mcp=%s provider=%s", cfg.MCPURL, cfg.Provider)
	return &app{
		cfg:   cfg,
		mcp:   mcpClient,
		store: store,
		agent: ag,
	}, nil
}

// Close releases the app's connections.
func (a *app) Close() {
	if a.mcp != nil {
		a.mcp.Close()
	}
	if a.store != nil {
		a.store.Close()
	}
}

// handleRequest runs one request through the agent and persists the
// conversation turn and execution record. Persistence failures are logged
// but do not fail the request.
func (a *app) handleRequest(ctx context.Context, sessionID, input string) agent.Result {
	if err := a.store.AppendMessage(sessionID, "user", input); err != nil {
		logging.Session("failed to persist user message: %v", err)
	}

	res := a.agent.Run(ctx, input)

	if err := a.store.RecordExecution(session.Execution{
		SessionID: sessionID,
		Code:      res.Code,
		Success:   res.Success,
		Output:    res.Output,
		Error:     res.Error,
		Attempts:  res.Attempts,
	}); err != nil {
		logging.Session("failed to record execution: %v", err)
	}

	if res.Success {
		reply := "Generated and executed code successfully. Output:\n" + res.Output
		if err := a.store.AppendMessage(sessionID, "assistant", reply); err != nil {
			logging.Session("failed to persist assistant message: %v", err)
		}
	}
	return res
}

// resumeSession reloads a stored conversation into the agent so a chat
// can continue where it left off.
func (a *app) resumeSession(sessionID string) error {
	messages, err := a.store.RecentMessages(sessionID, a.cfg.HistoryWindow)
	if err != nil {
		return err
	}
	a.agent.ReplaceHistory(messages)
	return nil
}
