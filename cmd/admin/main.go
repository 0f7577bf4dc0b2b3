package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/tendant/simple-media/pkg/simplemedia"
	"github.com/tendant/simple-media/pkg/simplemedia/config"
	repopg "github.com/tendant/simple-media/pkg/simplemedia/repo/postgres"
)

const usage = `Simple Media Admin CLI

Operational commands against the configured database, cache and public root.

USAGE:
  admin <command> [options]

COMMANDS:
  list        List an owner's media in display order
  invalidate  Report a content change and evict the bound cache keys
  sitemap     Regenerate sitemap.xml in the public root
  rules       Print the cache rule table
  migrate     Create the media table (postgres only)

ENVIRONMENT VARIABLES:
  DATABASE_URL      memory or postgres://... (default: memory)
  STORAGE_URL       memory://, file://, s3://, minio:// or gs://
  CACHE_URL         memory:// or redis://...
  PUBLIC_ROOT       Web root receiving sitemap.xml
  SITE_BASE_URL     Base URL used in the sitemap
  SITE_DIVISIONS    Comma separated division slugs

  Configuration can be loaded from a .env file in the current directory.
  Command line environment variables override .env file values.

EXAMPLES:
  admin list --owner-type=division --owner-id=4
  admin invalidate --type=division --id=acme-co
  admin invalidate --type=media --id=home_slider --json
  admin sitemap
  admin rules
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}
	command := os.Args[1]
	if command == "help" || command == "--help" || command == "-h" {
		fmt.Println(usage)
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx := context.Background()
	comps, err := cfg.Build(ctx)
	if err != nil {
		log.Fatalf("Failed to build media stack: %v", err)
	}
	defer comps.Close()

	flags := parseFlags(os.Args[2:])
	_, useJSON := flags["json"]

	switch command {
	case "list":
		handleList(ctx, comps, flags, useJSON)
	case "invalidate":
		handleInvalidate(ctx, comps, flags, useJSON)
	case "sitemap":
		if err := comps.Sitemap.Regenerate(ctx); err != nil {
			log.Fatalf("Failed to regenerate sitemap: %v", err)
		}
		fmt.Printf("sitemap written to %s\n", cfg.PublicRoot)
	case "rules":
		handleRules(comps, useJSON)
	case "migrate":
		repo, ok := comps.Repository.(*repopg.Repository)
		if !ok {
			log.Fatalf("migrate requires DATABASE_URL=postgres://...")
		}
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("Failed to create schema: %v", err)
		}
		fmt.Println("schema is up to date")
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		fmt.Println(usage)
		os.Exit(1)
	}
}

// parseFlags reads --key=value and bare --key arguments.
func parseFlags(args []string) map[string]string {
	out := make(map[string]string)
	for _, arg := range args {
		if !strings.HasPrefix(arg, "--") {
			continue
		}
		key, value, found := strings.Cut(arg[2:], "=")
		if !found {
			value = "true"
		}
		out[key] = value
	}
	return out
}

func handleList(ctx context.Context, comps *config.Components, flags map[string]string, useJSON bool) {
	ownerType, err := simplemedia.ParseOwnerType(flags["owner-type"])
	if err != nil {
		log.Fatalf("--owner-type: %v", err)
	}
	ownerID, err := strconv.ParseInt(flags["owner-id"], 10, 64)
	if err != nil {
		log.Fatalf("--owner-id must be a number")
	}

	assets, err := comps.Service.ListMedia(ctx, simplemedia.Owner{Type: ownerType, ID: ownerID})
	if err != nil {
		log.Fatalf("Failed to list media: %v", err)
	}

	if useJSON {
		data, _ := json.MarshalIndent(assets, "", "  ")
		fmt.Println(string(data))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "ORDER\tID\tKIND\tSOURCE\tPATH\tFLAGS\tCREATED\n")
	for _, a := range assets {
		flagNames := make([]string, 0, len(a.Flags))
		for _, f := range a.Flags {
			flagNames = append(flagNames, string(f))
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.DisplayOrder,
			a.ID.String()[:8]+"...",
			a.Kind,
			a.Source,
			truncate(a.PrimaryPath, 60),
			strings.Join(flagNames, ","),
			a.CreatedAt.Format("2006-01-02 15:04:05"),
		)
	}
	w.Flush()
	fmt.Printf("\nTotal: %d\n", len(assets))
}

func handleInvalidate(ctx context.Context, comps *config.Components, flags map[string]string, useJSON bool) {
	contentType := flags["type"]
	if contentType == "" {
		log.Fatalf("--type is required")
	}

	keys, err := comps.Invalidator.OnContentChanged(ctx, contentType, flags["id"])
	if useJSON {
		out := map[string]any{"evicted": keys}
		if err != nil {
			out["error"] = err.Error()
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
	} else {
		for _, k := range keys {
			fmt.Printf("evicted %s\n", k)
		}
		fmt.Printf("\nTotal: %d\n", len(keys))
	}
	if err != nil {
		log.Fatalf("Invalidation incomplete: %v", err)
	}
}

func handleRules(comps *config.Components, useJSON bool) {
	rules := comps.Registry.Rules()
	if useJSON {
		out := make([]map[string]any, 0, len(rules))
		for _, r := range rules {
			triggers := make([]string, 0, len(r.Triggers))
			for _, t := range r.Triggers {
				triggers = append(triggers, t.String())
			}
			out = append(out, map[string]any{
				"key":         r.Key.String(),
				"ttl_minutes": int(r.TTL.Minutes()),
				"triggers":    triggers,
			})
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(data))
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "KEY\tTTL\tTRIGGERS\n")
	for _, r := range rules {
		triggers := make([]string, 0, len(r.Triggers))
		for _, t := range r.Triggers {
			triggers = append(triggers, t.String())
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", r.Key.String(), r.TTL, strings.Join(triggers, ", "))
	}
	w.Flush()
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
