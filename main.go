// Confluence MCP Server - A Model Context Protocol server for Confluence Cloud
// Provides tools for browsing spaces, reading and writing pages, searching with
// CQL and managing labels over either the legacy v1 or the typed v2 REST API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/olgasafonova/confluence-mcp-server/internal/config"
	"github.com/olgasafonova/confluence-mcp-server/internal/confluence"
	"github.com/olgasafonova/confluence-mcp-server/tools"
	"github.com/olgasafonova/confluence-mcp-server/tracing"
)

const (
	ServerName    = "confluence-mcp-server"
	ServerVersion = "1.0.0"
)

// Environment variables read by the server itself; Confluence settings live in internal/config.
const (
	envLogLevel  = "LOG_LEVEL"
	envAuthToken = "MCP_AUTH_TOKEN"
)

const serverInstructions = `Confluence MCP Server provides tools for working with Confluence Cloud content.

Spaces: confluence_list_spaces, confluence_get_space
Pages: confluence_list_pages, confluence_find_page_by_title, confluence_get_page,
       confluence_get_page_content, confluence_create_page, confluence_update_page
Search: confluence_search (free text or CQL)
Labels: confluence_list_labels, confluence_add_label, confluence_remove_label

Updates use optimistic concurrency: read the page first and pass its version number.
A VERSION_CONFLICT error means the page changed since it was read.

Configure via confluence-mcp.yaml or environment variables:
- CONFLUENCE_DOMAIN: Site host (e.g., example.atlassian.net)
- CONFLUENCE_EMAIL: Account email
- CONFLUENCE_API_TOKEN: API token
- CONFLUENCE_API_VERSION: v1 (default) or v2`

// recoverPanic logs a recovered panic instead of crashing the process
func recoverPanic(logger *slog.Logger, operation string) {
	if r := recover(); r != nil {
		logger.Error("Panic recovered",
			"operation", operation,
			"panic", r,
			"stack", string(debug.Stack()))
	}
}

type rootOptions struct {
	configPath string
	logLevel   string
	httpAddr   string
	skipVerify bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   ServerName,
		Short: "MCP server for Confluence Cloud",
		Long: `Serves Confluence spaces, pages, search and labels as MCP tools.

By default the server speaks MCP over stdio. With --http it serves streamable
HTTP at /mcp together with /metrics and /health.`,
		Example: `  confluence-mcp-server                          # stdio
  confluence-mcp-server --http :8080             # streamable HTTP
  confluence-mcp-server verify                   # check credentials and exit
  confluence-mcp-server configure                # write confluence-mcp.yaml`,
		Version:       ServerVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to configuration file (default "+config.DefaultPath+")")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", os.Getenv(envLogLevel), "log level: debug, info, warn, error")
	root.Flags().StringVar(&opts.httpAddr, "http", "", "serve streamable HTTP on this address instead of stdio (e.g. :8080)")
	root.Flags().BoolVar(&opts.skipVerify, "skip-verify", false, "start without checking the Confluence connection")

	root.AddCommand(newVerifyCmd(opts), newConfigureCmd(opts))
	return root
}

// newLogger writes to stderr; stdout carries the MCP protocol on stdio.
func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if level != "" {
		if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
}

// bootstrap loads configuration and builds the adapter.
func bootstrap(opts *rootOptions, logger *slog.Logger) (*config.Config, *confluence.Client, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	client, err := confluence.New(cfg, confluence.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}
	return cfg, client, nil
}

func runServe(ctx context.Context, opts *rootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := newLogger(opts.logLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	cfg, client, err := bootstrap(opts, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	tracingCfg := tracing.DefaultConfig()
	tracingCfg.ServiceVersion = ServerVersion
	shutdownTracing, err := tracing.Setup(ctx, tracingCfg)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("Tracing shutdown failed", "error", err)
		}
	}()

	if !opts.skipVerify {
		if err := client.VerifyConnection(ctx); err != nil {
			logger.Error("Connection verification failed", "error", err)
			return err
		}
	}

	server := newMCPServer(client, logger)

	logger.Info("Starting Confluence MCP Server",
		"name", ServerName,
		"version", ServerVersion,
		"site", cfg.BaseURL(),
		"api_version", cfg.Version(),
		"transport", transportName(opts.httpAddr),
	)

	if opts.httpAddr != "" {
		return serveHTTP(ctx, opts.httpAddr, server, client, logger)
	}
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

func newMCPServer(client *confluence.Client, logger *slog.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    ServerName,
		Version: ServerVersion,
	}, &mcp.ServerOptions{
		Logger:       logger,
		Instructions: serverInstructions,
	})
	tools.NewHandlerRegistry(client, logger).RegisterAll(server)
	return server
}

func transportName(httpAddr string) string {
	if httpAddr != "" {
		return "http"
	}
	return "stdio"
}

func serveHTTP(ctx context.Context, addr string, server *mcp.Server, client *confluence.Client, logger *slog.Logger) error {
	handler := newHTTPHandler(server, client, logger, SecurityConfig{
		RateLimit:   DefaultRateLimit,
		MaxBodySize: DefaultMaxBodySize,
		AuthToken:   os.Getenv(envAuthToken),
	})
	defer handler.Close()

	if handler.config.AuthToken == "" {
		logger.Warn("HTTP transport running without authentication; set " + envAuthToken + " to require a bearer token")
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		defer recoverPanic(logger, "http server")
		logger.Info("HTTP transport listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		logger.Info("Shutting down HTTP transport")
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}
