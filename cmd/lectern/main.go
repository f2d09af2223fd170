package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/csheth/lectern/internal/archive"
	"github.com/csheth/lectern/internal/document"
	"github.com/csheth/lectern/internal/explain"
	"github.com/csheth/lectern/internal/tui"
)

func main() {
	docID := flag.String("doc", "", "document id to fetch from the document store")
	recordsPath := flag.String("records", "", "path to a local records JSON file (skips the store)")
	pdfPath := flag.String("pdf", "", "path or URL of a PDF to import (skips the store)")
	watch := flag.Bool("watch", false, "reload when the records file changes (requires -records)")
	docEndpoint := flag.String("doc-endpoint", "", "document store base URL (eg. http://localhost:8787)")
	explainEndpoint := flag.String("explain-endpoint", "", "explanation endpoint base URL")
	archivePath := flag.String("archive", defaultArchivePath(), "path to the transcript archive file, empty to disable")
	showTranscripts := flag.Bool("transcripts", false, "print archived transcripts for the document and exit")
	noAltScreen := flag.Bool("no-alt-screen", false, "disable the alternate screen buffer")
	flag.Parse()

	config := tui.Config{
		DocumentID:  *docID,
		ArchivePath: *archivePath,
	}

	var watcher *document.Watcher
	switch {
	case *pdfPath != "":
		localPath := *pdfPath
		if strings.HasPrefix(localPath, "http://") || strings.HasPrefix(localPath, "https://") {
			cache, err := document.NewDownloadCache(nil)
			if err != nil {
				fmt.Println("failed to set up download cache:", err)
				os.Exit(1)
			}
			localPath, err = cache.Fetch(context.Background(), *pdfPath)
			if err != nil {
				fmt.Println("failed to download pdf:", err)
				os.Exit(1)
			}
		}
		records, err := document.ImportPDF(localPath)
		if err != nil {
			fmt.Println("failed to import pdf:", err)
			os.Exit(1)
		}
		config.Records = records
		config.DocumentID = documentIDFromPath(localPath, *docID)
	case *recordsPath != "":
		records, err := document.LoadFile(*recordsPath)
		if err != nil {
			fmt.Println("failed to load records:", err)
			os.Exit(1)
		}
		config.Records = records
		config.DocumentID = documentIDFromPath(*recordsPath, *docID)
		if *watch {
			watcher, err = document.NewWatcher(*recordsPath)
			if err != nil {
				fmt.Println("watch disabled:", err)
			} else {
				config.Watcher = watcher
			}
		}
	case *docID != "":
		store, err := document.NewClient(document.ClientConfig{Endpoint: *docEndpoint})
		if err != nil {
			fmt.Println("failed to configure document store:", err)
			os.Exit(1)
		}
		config.Store = store
	default:
		fmt.Println("nothing to read: pass -doc, -records, or -pdf")
		flag.Usage()
		os.Exit(2)
	}

	if *showTranscripts {
		if err := printTranscripts(config.ArchivePath, config.DocumentID); err != nil {
			fmt.Println("failed to read archive:", err)
			os.Exit(1)
		}
		return
	}

	explainClient, err := explain.NewFromEnv(explain.Config{Endpoint: *explainEndpoint})
	if err != nil {
		fmt.Println("explanations disabled:", err)
	} else {
		config.Explain = explainClient
	}

	if watcher != nil {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go watcher.Run(ctx)
	}

	opts := []tea.ProgramOption{tea.WithMouseCellMotion()}
	if !*noAltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	program := tea.NewProgram(tui.New(config), opts...)

	if _, err := program.Run(); err != nil {
		fmt.Println("program error:", err)
		os.Exit(1)
	}
}

// documentIDFromPath derives a stable id for locally loaded documents so
// archived transcripts survive restarts. An explicit -doc wins.
func documentIDFromPath(path, explicit string) string {
	if explicit != "" {
		return explicit
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func printTranscripts(path, documentID string) error {
	if path == "" {
		fmt.Println("archive disabled")
		return nil
	}
	transcripts, err := archive.ForDocument(path, documentID)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no transcripts archived yet")
			return nil
		}
		return err
	}
	if len(transcripts) == 0 {
		fmt.Printf("no transcripts for document %s\n", documentID)
		return nil
	}
	for _, t := range transcripts {
		fmt.Printf("## %s (%s, captured %s)\n", t.UnitID, t.Kind, t.CapturedAt.Format("2006-01-02 15:04"))
		fmt.Printf("> %s\n", t.Content)
		if t.Explanation != "" {
			fmt.Println(t.Explanation)
		}
		for _, turn := range t.Turns {
			fmt.Printf("[%s] %s\n", turn.Role, turn.Text)
		}
		fmt.Println()
	}
	return nil
}

func defaultArchivePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".lectern", "transcripts.json")
}
