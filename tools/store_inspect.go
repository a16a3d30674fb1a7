// Dumps contact markers and mailbox documents from a relay database.
//
//	go run ./tools -db ./data -prefix "doc:+61400000001/"
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data", "Path to badger DB")
	// Document keys carry the "doc:" prefix; accounts live under "account:".
	prefix := flag.String("prefix", "doc:", "Prefix to scan")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Owner", "Kind", "Counterpart", "Doc ID", "Body"})
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

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := strings.TrimPrefix(string(item.Key()), "doc:")

			err := item.Value(func(v []byte) error {
				table.Append(toRow(key, v))
				rows++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Error while scanning: ", err)
	}

	table.Render()
	color.Green.Printf("\n%d documents under %q\n", rows, *prefix)
}

// toRow splits a document path into its layout parts:
// {owner}/contacts/contacts/{phone} or {owner}/messages/{phone}/{id}.
func toRow(key string, doc []byte) []string {
	parts := strings.Split(key, "/")
	if len(parts) == 4 && parts[1] == "contacts" {
		return []string{parts[0], "contact", parts[3], "", ""}
	}
	if len(parts) == 4 && parts[1] == "messages" {
		var msg struct {
			Body string `json:"message"`
		}
		_ = json.Unmarshal(doc, &msg)
		return []string{parts[0], "message", parts[2], parts[3], msg.Body}
	}
	return []string{key, "?", "", "", fmt.Sprintf("%d bytes", len(doc))}
}
