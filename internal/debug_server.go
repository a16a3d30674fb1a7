// Package internal hosts operator-facing plumbing that is not part of
// the relay contract: the store inspection endpoint.
package internal

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

type InspectRow struct {
	Key  string
	Size int
	Doc  string
}

type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// StartDebugServer serves a read-only view of the document store plus
// live relay counters on its own port. Never exposed publicly.
func StartDebugServer(db *badger.DB, port int, statsProvider StatsProvider, log *slog.Logger) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "doc:"
		}

		data := PageData{Prefix: prefix, Stats: map[string]any{}}
		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				doc, err := item.ValueCopy(nil)
				if err != nil {
					continue
				}
				preview := string(doc)
				if len(preview) > 120 {
					preview = preview[:120] + "…"
				}
				data.Items = append(data.Items, InspectRow{
					Key:  string(item.Key()),
					Size: len(doc),
					Doc:  preview,
				})
			}
			return nil
		})

		if err := tmpl.Execute(w, data); err != nil {
			log.Error("Inspect render failed", "error", err)
		}
	})

	go func() {
		addr := fmt.Sprintf("localhost:%d", port)
		log.Info(fmt.Sprintf("Debug server on http://%s/inspect", addr))
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Error("Debug server stopped", "error", err)
		}
	}()
}
