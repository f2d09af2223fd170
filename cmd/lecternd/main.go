package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/csheth/lectern/internal/stubserver"
)

func main() {
	addr := flag.String("addr", "localhost:8787", "listen address")
	fixtures := flag.String("fixtures", "fixtures", "directory of <documentID>.json record files")
	delay := flag.Duration("delay", 10*time.Millisecond, "pause between streamed chunks")
	ollamaHost := flag.String("ollama-host", "http://localhost:11434", "Ollama-compatible host for generated explanations")
	ollamaModel := flag.String("ollama-model", "", "model to generate explanations with; empty uses the canned template")
	flag.Parse()

	opts := []stubserver.Option{stubserver.WithDelay(*delay)}
	if *ollamaModel != "" {
		opts = append(opts, stubserver.WithOllama(*ollamaHost, *ollamaModel))
	}
	server := stubserver.New(*fixtures, opts...)
	log.Printf("[lecternd] serving fixtures from %s on http://%s", *fixtures, *addr)
	if err := http.ListenAndServe(*addr, server.Router()); err != nil {
		log.Fatalf("[lecternd] %v", err)
	}
}
