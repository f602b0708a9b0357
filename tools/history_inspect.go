package main

import (
	"context"
	"direct-chat/domain"
	"direct-chat/repositories"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

// Dumps stored direct messages as a table.
//
//	go run ./tools -db ./data/badger -a <aliceId> -b <bobId>
func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	userA := flag.String("a", "", "First user ID of the conversation, empty for all")
	userB := flag.String("b", "", "Second user ID of the conversation")
	width := flag.Int("width", 48, "Truncate texts longer than this")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"At", "ID", "Sender", "Receiver", "Lang", "Text", "File"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	repository := repositories.NewMessageRepository(db, slog.New(slog.DiscardHandler), nil)
	count := 0
	var prefix string
	if *userA != "" {
		prefix = domain.ConversationKey(*userA, *userB) + ":"
	}
	err = repository.Scan(context.Background(), prefix, func(_ string, m repositories.DiskMessage) error {
		count++
		table.Append([]string{
			m.At.Format("2006-01-02 15:04:05"),
			m.ID.String()[:8],
			m.SenderID,
			m.ReceiverID,
			m.Lang,
			truncate(m.Text, *width),
			m.StoredFilename,
		})
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	fmt.Printf("\n%d message(s)\n", count)
}

func truncate(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if width <= 0 || len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
