package cli

import (
	"fmt"
	"log"
	"sort"

	"github.com/spf13/cobra"

	"github.com/weftlab/weft/internal/ident"
	"github.com/weftlab/weft/internal/summary"
	"github.com/weftlab/weft/internal/textchange"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <store> [key]",
	Short: "List or print stored document snapshots",
	Long:  "With only a store path, lists every document key in the snapshot store. With a key, decodes that snapshot and prints its trunk and peer branches.",
	Args:  cobra.RangeArgs(1, 2),
	Run:   inspectCommand,
}

func inspectCommand(cmd *cobra.Command, args []string) {
	store, err := summary.OpenStore(args[0])
	if err != nil {
		log.Fatalf("inspect: open store: %v", err)
	}
	defer store.Close()

	if len(args) == 1 {
		keys, err := store.Keys()
		if err != nil {
			log.Fatalf("inspect: list keys: %v", err)
		}
		if len(keys) == 0 {
			fmt.Println("No snapshots stored.")
			return
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		return
	}

	blob, err := store.Load(args[1])
	if err != nil {
		log.Fatalf("inspect: %v", err)
	}
	data, err := summary.NewCodec[textchange.Change](textchange.Codec{}).Decode(blob)
	if err != nil {
		log.Fatalf("inspect: decode snapshot: %v", err)
	}

	fmt.Printf("Snapshot %q (%d bytes)\n", args[1], len(blob))
	fmt.Printf("Base revision: %s\n", data.Base.Short())
	fmt.Printf("Trunk (%d commits):\n", len(data.Trunk))
	for _, tc := range data.Trunk {
		fmt.Printf("  seq %-4d %s %-10s %s\n", tc.SequenceNumber, tc.Revision.Short(), tc.Session, describeChange(tc.Change))
	}

	sessions := make([]string, 0, len(data.Peers))
	for s := range data.Peers {
		sessions = append(sessions, string(s))
	}
	sort.Strings(sessions)
	fmt.Printf("Peers (%d tracked):\n", len(sessions))
	for _, s := range sessions {
		pb := data.Peers[ident.SessionID(s)]
		fmt.Printf("  %s based on %s, %d in-flight commits\n", s, pb.Base.Short(), len(pb.Commits))
		for _, pc := range pb.Commits {
			fmt.Printf("    %s %s\n", pc.Revision.Short(), describeChange(pc.Change))
		}
	}
}

func describeChange(change textchange.Change) string {
	if len(change) == 0 {
		return "(empty)"
	}
	out := ""
	for i, op := range change {
		if i > 0 {
			out += "; "
		}
		switch op.Kind {
		case textchange.OpInsert:
			out += fmt.Sprintf("insert %q at %d", op.Text, op.Pos)
		case textchange.OpDelete:
			out += fmt.Sprintf("delete %q at %d", op.Text, op.Pos)
		default:
			out += fmt.Sprintf("%s %q at %d", op.Kind, op.Text, op.Pos)
		}
	}
	return out
}
