// Package main provides the entry point for eOVPN.
// eOVPN is an OpenVPN client for Linux that downloads configuration bundles
// from a remote URL and brings tunnels up and down through pkexec.
//
// Features:
//   - Remote ZIP bundles of .ovpn configs and certificates
//   - Secure credential storage using the system keyring
//   - Tunnel state tracked from the host's network interfaces
//   - Desktop notifications for session events
//
// Usage:
//
//	eovpn [command] [flags]
//
// Environment:
//
//	The application requires OpenVPN and a polkit agent for pkexec.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/albanobattistella/eOVPN/cli"
	"github.com/albanobattistella/eOVPN/common"
)

// Build-time variables injected via ldflags (-X main.appVersion=x.y.z)
var appVersion = "dev"

func main() {
	defer common.CloseLogger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandler(cancel)

	cli.SetVersion(appVersion)
	if err := cli.NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		common.CloseLogger()
		os.Exit(1)
	}
}

// setupSignalHandler cancels the context on SIGINT/SIGTERM so a pending
// connect, disconnect or watch can return.
func setupSignalHandler(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		common.LogInfo("Received signal %v, shutting down", sig)
		cancel()
	}()
}
