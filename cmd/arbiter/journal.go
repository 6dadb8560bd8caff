package main

import (
	"encoding/json"
	"fmt"

	"arbiter/internal/engine"
	"arbiter/internal/store"

	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Inspect the evaluation journal",
	RunE:  runJournalList,
}

var journalShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Reload a stored evaluation through the airlock and recompute it",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

func init() {
	journalCmd.AddCommand(journalShowCmd)
}

func runJournalList(cmd *cobra.Command, args []string) error {
	journal, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer journal.Close()

	entries, err := journal.List()
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("journal is empty")
		return nil
	}
	for _, e := range entries {
		robust := "robust"
		if !e.Robust {
			robust = "sensitive"
		}
		fmt.Printf("%-24s winner=%-16s %s  %s\n",
			e.Name, e.Winner, robust, e.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	journal, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer journal.Close()

	// Load re-validates the stored document; a journal entry that no longer
	// passes the airlock fails here rather than producing a stale report.
	ev, err := journal.Load(args[0])
	if err != nil {
		return err
	}
	report, err := engine.Evaluate(ev)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
