package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/martingsewell/e-nor/internal/chat"
	"github.com/martingsewell/e-nor/internal/config"
	"github.com/martingsewell/e-nor/internal/extension"
	"github.com/martingsewell/e-nor/internal/server"
	"github.com/martingsewell/e-nor/internal/state"
	"github.com/martingsewell/e-nor/internal/store"

	// Bundled extensions register their handlers on import.
	_ "github.com/martingsewell/e-nor/extensions/cat_mode"
	_ "github.com/martingsewell/e-nor/extensions/dragon_mode"
)

func main() {
	fmt.Println("E-NOR - Companion Robot Server")

	configDir := findDir("config")
	if configDir == "" {
		configDir = "config"
		if err := os.MkdirAll(configDir, 0755); err != nil {
			log.Fatalf("Failed to create config directory: %v", err)
		}
	}

	st, err := store.New(filepath.Join(configDir, "enor.db"))
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer st.Close()

	robot := config.NewManager(filepath.Join(configDir, "config.json"))

	var llm chat.Completer
	if key := config.Secret(filepath.Join(configDir, "secrets.json"), "ANTHROPIC_API_KEY"); key != "" {
		llm = chat.NewClient(key)
	} else {
		log.Println("No ANTHROPIC_API_KEY configured; conversation fallback disabled")
	}

	hub := state.NewHub()
	stops := extension.NewStopFlags()

	extensionsDir := findDir("extensions")
	if extensionsDir == "" {
		extensionsDir = "extensions"
	}
	registry := extension.NewRegistry(extensionsDir, hub, stops, llm)
	loaded, err := registry.Scan()
	if err != nil {
		log.Fatalf("Failed to scan extensions: %v", err)
	}
	log.Printf("Loaded %d extensions from %s", loaded, extensionsDir)

	matcher := extension.NewMatcher(registry)
	dispatcher := extension.NewDispatcher(registry)

	chatService := &chat.Service{
		Matcher:    matcher,
		Dispatcher: dispatcher,
		LLM:        llm,
		Config:     robot,
		Store:      st,
	}

	webDir := findDir("web")
	if webDir != "" {
		fmt.Printf("Serving static files from: %s\n", webDir)
	}

	srv := server.New(server.Config{
		StaticDir:  webDir,
		Hub:        hub,
		Registry:   registry,
		Dispatcher: dispatcher,
		Stops:      stops,
		Chat:       chatService,
		Store:      st,
		Robot:      robot,
	})

	addr := ":8000"
	fmt.Printf("Starting server on %s\n", addr)
	if err := srv.ListenAndServe(addr); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// findDir searches for a directory in common locations relative to the
// working directory. Returns the first existing directory or empty string.
func findDir(name string) string {
	candidates := []string{name, filepath.Join("..", name), filepath.Join("..", "..", name)}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
