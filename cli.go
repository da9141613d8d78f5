package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"voxmix/internal/config"
	"voxmix/internal/store"
)

// Version is the server's release version, reported by the admin CLI
// and the HTTP status surface.
var Version = "0.1.0-dev"

// RunCLI handles subcommand execution, dispatched the same way the
// teacher's server checks os.Args before flag.Parse(). Returns true if
// a subcommand was handled.
func RunCLI(args []string, dbPath string) bool {
	if len(args) == 0 {
		return false
	}

	switch args[0] {
	case "version":
		fmt.Printf("voxmix %s\n", Version)
		return true
	case "status":
		return cliStatus(dbPath)
	case "settings":
		return cliSettings(args[1:], dbPath)
	case "sources":
		return cliSources(args[1:], dbPath)
	default:
		return false
	}
}

func openStoreOrExit(dbPath string) *store.Store {
	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %v\n", err)
		os.Exit(1)
	}
	return st
}

func cliStatus(dbPath string) bool {
	ctx := context.Background()
	st := openStoreOrExit(dbPath)
	defer st.Close()

	settings, err := st.GetAllSettings(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	presets, err := st.ListInjectorPresets(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	frameBytes := config.Default().SamplesPerFrame * 2 * 2 // stereo, 16-bit
	fmt.Printf("Version: %s\n", Version)
	fmt.Printf("Database: %s\n", dbPath)
	fmt.Printf("Settings persisted: %d\n", len(settings))
	fmt.Printf("Injector presets: %d\n", len(presets))
	fmt.Printf("Per-listener frame size: %s/frame\n", humanize.Bytes(uint64(frameBytes)))
	return true
}

func cliSettings(args []string, dbPath string) bool {
	ctx := context.Background()
	st := openStoreOrExit(dbPath)
	defer st.Close()

	if len(args) == 0 || args[0] == "list" {
		settings, err := st.GetAllSettings(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(settings, "", "  ")
		fmt.Println(string(out))
		return true
	}

	if args[0] == "set" && len(args) > 2 {
		key, value := args[1], args[2]
		if err := st.SetSetting(ctx, key, value); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Set %s = %s\n", key, value)
		return true
	}

	fmt.Fprintf(os.Stderr, "Usage: voxmix settings [list|set <key> <value>]\n")
	os.Exit(1)
	return true
}

func cliSources(args []string, dbPath string) bool {
	ctx := context.Background()
	st := openStoreOrExit(dbPath)
	defer st.Close()

	if len(args) == 0 || args[0] == "list" {
		presets, err := st.ListInjectorPresets(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if len(presets) == 0 {
			fmt.Println("No injector presets found.")
			return true
		}
		for _, p := range presets {
			fmt.Printf("  %s  %-20s stream=%s atten=%.2f pos=(%.1f,%.1f,%.1f) bearing=%.1f\n",
				p.ID, p.DisplayName, p.StreamID, p.AttenuationRatio, p.PosX, p.PosY, p.PosZ, p.BearingDeg)
		}
		return true
	}

	fmt.Fprintf(os.Stderr, "Usage: voxmix sources [list]\n")
	os.Exit(1)
	return true
}
