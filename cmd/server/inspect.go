package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"signage-manifest/internal/platform/config"
	"signage-manifest/internal/platform/logger"
	"signage-manifest/internal/signage"

	"github.com/spf13/cobra"
)

func newPlayersCmd(loadConfig func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "players",
		Short: "List registered players and the size of their manifests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := loadConfig()
			registry, err := signage.NewFileRegistry(cfg.DataDir)
			if err != nil {
				return err
			}
			store, err := signage.NewFileStore(cfg.DataDir)
			if err != nil {
				return err
			}
			players, err := registry.List()
			if err != nil {
				return err
			}
			return printPlayers(cmd.OutOrStdout(), players, signage.NewRepository(store))
		},
	}
}

func printPlayers(w io.Writer, players []signage.Player, repo signage.Repository) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tITEMS")
	for _, p := range players {
		items, _, err := repo.Snapshot(p.ID)
		count := fmt.Sprint(len(items))
		if err != nil {
			count = "error: " + err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.ID, p.Name, count)
	}
	return tw.Flush()
}

func newManifestCmd(loadConfig func() config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "manifest <player-id>",
		Short: "Print a player's manifest as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()
			store, err := signage.NewFileStore(cfg.DataDir)
			if err != nil {
				return err
			}
			svc := signage.NewService(signage.NewRepository(store), nil, nil, nil, logger.Discard())
			items, err := svc.GetManifest(cmd.Context(), signage.PlayerID(args[0]))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		},
	}
}
