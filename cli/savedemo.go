package cli

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/weftlab/weft/internal/summary"
	"github.com/weftlab/weft/internal/textchange"
)

var (
	saveDemoPeers  int
	saveDemoRounds int
)

var saveDemoCmd = &cobra.Command{
	Use:   "save-demo <store> <key>",
	Short: "Run the demo session and store its snapshot",
	Long:  "Runs the multi-peer simulation, extracts a snapshot from the first peer's state, and saves it in the store under the given key for later inspection.",
	Args:  cobra.ExactArgs(2),
	Run:   saveDemoCommand,
}

func init() {
	saveDemoCmd.Flags().IntVar(&saveDemoPeers, "peers", 3, "number of concurrent peers")
	saveDemoCmd.Flags().IntVar(&saveDemoRounds, "edits", 3, "concurrent edits per peer to simulate")
}

func saveDemoCommand(cmd *cobra.Command, args []string) {
	if saveDemoPeers < 1 || saveDemoRounds < 1 {
		log.Fatal("save-demo: --peers and --edits must be at least 1")
	}

	peers, lastSeq, err := runDemoSession(saveDemoPeers, saveDemoRounds)
	if err != nil {
		log.Fatalf("save-demo: %v", err)
	}

	data := peers[0].mgr.ExtractSummary()
	encoded, err := summary.NewCodec[textchange.Change](textchange.Codec{}).Encode(data)
	if err != nil {
		log.Fatalf("save-demo: encode snapshot: %v", err)
	}

	store, err := summary.OpenStore(args[0])
	if err != nil {
		log.Fatalf("save-demo: open store: %v", err)
	}
	defer store.Close()

	if err := store.Save(args[1], encoded); err != nil {
		log.Fatalf("save-demo: save snapshot: %v", err)
	}
	fmt.Printf("Saved snapshot %q: %d trunk commits through seq %d, %d bytes encoded.\n",
		args[1], len(data.Trunk), lastSeq, len(encoded))
}
