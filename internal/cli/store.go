package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/orbit/pkg/errors"
	"github.com/matzehuels/orbit/pkg/graph"
	"github.com/matzehuels/orbit/pkg/storage"
)

// storeCommand creates the snapshot store management command.
func (c *CLI) storeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "store",
		Short: "Manage stored author graph snapshots",
		Long: `Manage stored author graph snapshots.

Stored snapshots can be laid out with --snapshot and are what the HTTP
server builds views from. The backend (file or mongo) is set in the
config file.`,
	}

	cmd.AddCommand(c.storePutCommand())
	cmd.AddCommand(c.storeListCommand())
	cmd.AddCommand(c.storeGetCommand())
	cmd.AddCommand(c.storeDeleteCommand())

	return cmd
}

// withStore opens the configured store for the duration of fn.
func (c *CLI) withStore(ctx context.Context, fn func(storage.Store) error) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	s, err := cfg.OpenStore(ctx, c.Logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()
	return fn(s)
}

func (c *CLI) storePutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "put <name> <graph.json>",
		Short: "Store a graph file under a name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, path := args[0], args[1]
			if err := errors.ValidateSnapshotName(name); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return errors.Wrap(errors.ErrCodeNotFound, err, "read %s", path)
			}
			g, err := graph.UnmarshalGraph(data)
			if err != nil {
				return err
			}
			snap, st := graph.ToSnapshot(g)
			if snap.NodeCount() == 0 {
				return errors.New(errors.ErrCodeEmptyGraph, "%s contains no authors", path)
			}
			if err := c.withStore(cmd.Context(), func(s storage.Store) error {
				return s.Put(cmd.Context(), name, g)
			}); err != nil {
				return err
			}

			printSuccess("Stored %s", StyleHighlight.Render(name))
			printStats(st.Nodes, st.Nodes, st.Edges, false)
			if st.SkippedNodes > 0 || st.DroppedEdges > 0 {
				printDetail("skipped %d nodes, dropped %d links", st.SkippedNodes, st.DroppedEdges)
			}
			printNextStep("Lay out", appName+" layout --snapshot "+name)
			return nil
		},
	}
}

func (c *CLI) storeListCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored snapshots",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(s storage.Store) error {
				infos, err := s.List(cmd.Context())
				if err != nil {
					return err
				}
				if len(infos) == 0 {
					printInfo("No stored snapshots")
					return nil
				}
				fmt.Println(snapshotTable(infos).Render())
				return nil
			})
		},
	}
}

func snapshotTable(infos []storage.Info) *table.Table {
	rows := make([][]string, len(infos))
	for i, info := range infos {
		rows[i] = []string{info.Name, strconv.Itoa(info.Nodes), strconv.Itoa(info.Edges), formatRelativeTime(info.UpdatedAt)}
	}
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Name", "Authors", "Links", "Updated").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == -1:
				return tableHeaderStyle
			case col == 0:
				return StyleHighlight
			case col == 3:
				return StyleDim
			}
			return lipgloss.NewStyle()
		})
}

func (c *CLI) storeGetCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Write a stored snapshot as graph JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(s storage.Store) error {
				g, err := s.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(g, "", "  ")
				if err != nil {
					return errors.Wrap(errors.ErrCodeInternal, err, "encode snapshot %s", args[0])
				}
				if output == "" {
					_, err = cmd.OutOrStdout().Write(append(data, '\n'))
					return err
				}
				if err := os.WriteFile(output, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				printSuccess("Exported %s", args[0])
				printFile(output)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default: stdout)")
	return cmd
}

func (c *CLI) storeDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a stored snapshot",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd.Context(), func(s storage.Store) error {
				if err := s.Delete(cmd.Context(), args[0]); err != nil {
					return err
				}
				printSuccess("Deleted %s", args[0])
				return nil
			})
		},
	}
}
