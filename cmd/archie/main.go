package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"archie/internal/config"
	"archie/internal/server"
	"archie/internal/service"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("error: ")+err.Error())
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	var docsDir string

	rootCmd := &cobra.Command{
		Use:   "archie",
		Short: "Intent router and retrieval pipeline for governance documents",
		Long: fmt.Sprintf(`%s routes natural-language questions about ADRs, DARs,
principles and policies to the right retrieval strategy, refuses to answer
when confidence is too low, and emits machine-checkable response envelopes.`,
			bold("archie")),
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path")
	rootCmd.PersistentFlags().StringVarP(&docsDir, "docs", "D", "", "Directory of markdown governance documents")

	rootCmd.AddCommand(newServeCommand(&configPath, &docsDir))
	rootCmd.AddCommand(newQueryCommand(&configPath, &docsDir))
	rootCmd.AddCommand(newIndexCommand(&configPath, &docsDir))
	return rootCmd
}

func buildSystem(configPath, docsDir string) (*service.System, config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, config.Config{}, err
	}
	system, err := service.Build(cfg, docsDir, nil)
	if err != nil {
		return nil, config.Config{}, err
	}
	return system, cfg, nil
}

func newServeCommand(configPath, docsDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the query API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			system, cfg, err := buildSystem(*configPath, *docsDir)
			if err != nil {
				return err
			}
			fmt.Println(green("✓") + " catalog ready, " +
				gray(fmt.Sprintf("%d documents", len(system.Catalog.All()))))
			srv := server.New(cfg.Server, system.Pipeline, system.Breaker)
			return srv.Run()
		},
	}
}

func newQueryCommand(configPath, docsDir *string) *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "query <question>",
		Short: "Answer a single question from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			system, cfg, err := buildSystem(*configPath, *docsDir)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.RequestTimeout)
			defer cancel()

			resp := system.Pipeline.Handle(ctx, service.Request{
				RequestID:      fmt.Sprintf("cli-%d", time.Now().UnixNano()),
				ConversationID: conversationID,
				Query:          strings.Join(args, " "),
			})

			out, err := json.MarshalIndent(resp.Envelope, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation id for follow-up binding")
	return cmd
}

func newIndexCommand(configPath, docsDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Embed and index the document corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			if *docsDir == "" {
				return fmt.Errorf("--docs is required for indexing")
			}
			system, _, err := buildSystem(*configPath, *docsDir)
			if err != nil {
				return err
			}
			if err := system.IndexAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Println(green("✓") + fmt.Sprintf(" indexed %d chunks", system.Store.Count()))
			return nil
		},
	}
}
