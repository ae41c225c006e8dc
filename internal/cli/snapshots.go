package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var snapshotsJSON bool

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "List stored index snapshots",
	RunE:  runSnapshots,
}

var snapshotsDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored index snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSnapshotsDelete,
}

func init() {
	rootCmd.AddCommand(snapshotsCmd)
	snapshotsCmd.AddCommand(snapshotsDeleteCmd)
	snapshotsCmd.Flags().BoolVar(&snapshotsJSON, "json", false, "output as JSON")
}

func runSnapshots(cmd *cobra.Command, args []string) error {
	st, err := openStore(GetRootDir())
	if err != nil {
		return err
	}
	defer st.Close()

	infos, err := st.ListSnapshots()
	if err != nil {
		return fmt.Errorf("failed to list snapshots: %w", err)
	}

	if snapshotsJSON {
		return printJSON(os.Stdout, infos)
	}

	if len(infos) == 0 {
		fmt.Println("No snapshots. Run 'ragchat ingest' first.")
		return nil
	}

	active := GetConfig().Ingest.Snapshot
	for _, info := range infos {
		marker := " "
		if info.Name == active {
			marker = "*"
		}
		fmt.Printf("%s %-16s %6d docs  dim %-5d %-6s %-28s %s\n",
			marker, info.Name, info.Documents, info.Dimension, info.Metric, info.Model,
			info.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func runSnapshotsDelete(cmd *cobra.Command, args []string) error {
	st, err := openStore(GetRootDir())
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.DeleteSnapshot(args[0]); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	fmt.Printf("Deleted snapshot %s\n", args[0])
	return nil
}
