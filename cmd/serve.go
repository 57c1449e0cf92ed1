/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"log"
	"log/slog"

	"github.com/rotblauer/trajd/common"
	"github.com/rotblauer/trajd/daemon/webd"
	"github.com/rotblauer/trajd/params"
	"github.com/spf13/cobra"
)

var (
	optHTTPAddr     string
	optHTTPNetwork  string
	optServeWorkers int
	optServeStore   bool
	optCacheSize    int
	optMaxBodyBytes int64
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webserver",
	Long: `Serves trajectory reductions over HTTP.

  POST /compute      reducer columns as JSON
  POST /points       JSON lines, arrays or GeoJSON; ?element=float32&timestamp=us
  GET  /last         the last computed batch
  GET  /batches      stored batches (with --store)
  GET  /batches/{id} one stored batch's summaries
  GET  /socket       websocket feed of computed batches
`,
	Run: func(cmd *cobra.Command, args []string) {
		setDefaultSlog(cmd, args)
		config := params.DefaultWebDaemonConfig()
		config.DataDir = params.DatadirRoot
		config.ListenerConfig = params.ListenerConfig{
			Network: optHTTPNetwork,
			Address: optHTTPAddr,
		}
		config.Workers = optServeWorkers
		config.Store = optServeStore
		config.CacheSize = optCacheSize
		config.MaxBodyBytes = optMaxBodyBytes

		server, err := webd.NewWebDaemon(config)
		if err != nil {
			log.Fatalln(err)
		}
		defer func() {
			if err := server.Close(); err != nil {
				slog.Error("Failed to close web daemon", "error", err)
			}
		}()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		interrupt := common.Interrupted()
		go func() {
			sig := <-interrupt
			slog.Warn("Received signal", "signal", sig)
			cancel()
		}()

		if err := server.Run(ctx); err != nil {
			slog.Error("Web daemon failed", "error", err)
			return
		}
		slog.Info("Web daemon stopped")
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	defaults := params.DefaultWebDaemonConfig()
	flags := serveCmd.Flags()
	flags.StringVar(&optHTTPAddr, "address", defaults.Address, "HTTP address to listen on")
	flags.StringVar(&optHTTPNetwork, "network", defaults.Network, "Network to listen on: tcp, tcp4, tcp6 or unix")
	flags.IntVar(&optServeWorkers, "workers", defaults.Workers, "Number of reducer workers per request")
	flags.BoolVar(&optServeStore, "store", defaults.Store, "Save computed batches in the datadir results store")
	flags.IntVar(&optCacheSize, "cache-size", defaults.CacheSize, "Number of computed batches cached for repeat requests")
	flags.Int64Var(&optMaxBodyBytes, "max-body-bytes", defaults.MaxBodyBytes, "Request body size limit")
}
