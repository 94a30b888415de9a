// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	inMemory   bool

	treeWorkspace  string
	treeDimensions string
	treeSite       string
	treeDocument   string
	treeDepth      int
	treeToggled    []string
	treeFrontend   bool

	changesRepository string
	changesActor      string
	changesTargets    bool

	rootCmd = &cobra.Command{
		Use:   "nodetree",
		Short: "Neos UI node tree read model",
		Long: `nodetree serves the document tree, node records and workspace
changes the Neos content editing UI reads, backed by a badger projection.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	seedCmd = &cobra.Command{
		Use:   "seed <fixture.yaml>",
		Short: "Write a fixture into the projection store",
		Long: `Seeds workspaces, subgraphs and pending changes from a YAML fixture.
Existing entries with the same keys are overwritten.`,
		Args: cobra.ExactArgs(1),
		RunE: runSeed,
	}

	treeCmd = &cobra.Command{
		Use:   "tree",
		Short: "Print the document tree of a site",
		Long: `Materializes the document tree the UI would load and prints it.

--site and --document take a serialized node address or a node aggregate
id; ids are resolved in --workspace and --dimensions.`,
		Example: `  nodetree tree --site site --depth 2
  nodetree tree --site site --document d3 --workspace user-alice
  nodetree tree --site site --dimensions '{"language":"de"}'`,
		Args: cobra.NoArgs,
		RunE: runTree,
	}

	changesCmd = &cobra.Command{
		Use:   "changes <workspace>",
		Short: "List the unpublished changes of a workspace",
		Args:  cobra.ExactArgs(1),
		RunE:  runChanges,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run:   runVersion,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.nodetree/nodetree.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&inMemory, "in-memory", false, "use an in-memory store, seeded from storage.fixture")

	treeCmd.Flags().StringVar(&treeWorkspace, "workspace", "live", "workspace to read")
	treeCmd.Flags().StringVar(&treeDimensions, "dimensions", "", `dimension coordinates as JSON, e.g. '{"language":"en"}'`)
	treeCmd.Flags().StringVar(&treeSite, "site", "", "site node")
	treeCmd.Flags().StringVar(&treeDocument, "document", "", "focused document (default: the site)")
	treeCmd.Flags().IntVar(&treeDepth, "depth", 4, "loading depth below the site, 0 loads everything")
	treeCmd.Flags().StringSliceVar(&treeToggled, "toggle", nil, "additional nodes to expand")
	treeCmd.Flags().BoolVar(&treeFrontend, "frontend", false, "apply frontend visibility, hiding disabled nodes")
	_ = treeCmd.MarkFlagRequired("site")

	changesCmd.Flags().StringVar(&changesRepository, "repository", "", "content repository (default storage.repository_id)")
	changesCmd.Flags().StringVar(&changesActor, "actor", "", "actor for the publish target listing")
	changesCmd.Flags().BoolVar(&changesTargets, "targets", false, "also list the publish targets of --actor")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(changesCmd)
	rootCmd.AddCommand(versionCmd)
}
