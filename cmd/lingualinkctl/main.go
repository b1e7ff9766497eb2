// Command lingualinkctl is the operator's offline counterpart to the admin
// HTTP routes: it can mint and inspect credentials directly against the
// sqlite store without a running server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/Lingualink-VRChat/Lingualink-Server/internal/config"
	"github.com/Lingualink-VRChat/Lingualink-Server/internal/credential"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "lingualinkctl: config: %v\n", err)
		os.Exit(1)
	}

	store, err := credential.Open(cfg.CredentialDBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lingualinkctl: opening credential store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	ctx := context.Background()

	switch os.Args[1] {
	case "generate-key":
		runGenerateKey(ctx, store, os.Args[2:])
	case "list-keys":
		runListKeys(ctx, store)
	case "revoke-key":
		runRevokeKey(ctx, store, os.Args[2:])
	case "cleanup-expired":
		runCleanupExpired(ctx, store)
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: lingualinkctl <generate-key|list-keys|revoke-key|cleanup-expired> [flags]")
}

func runGenerateKey(ctx context.Context, store *credential.Store, args []string) {
	fs := flag.NewFlagSet("generate-key", flag.ExitOnError)
	name := fs.String("name", "", "display name for this credential")
	description := fs.String("description", "", "human-readable label for this credential")
	creator := fs.String("creator", "", "identity of whoever requested this credential")
	admin := fs.Bool("admin", false, "grant admin privileges")
	ttlDays := fs.Int("ttl-days", 0, "optional lifetime in days (0 = never expires)")
	expiresIn := fs.Duration("expires-in", 0, "optional lifetime, e.g. 720h (0 = never expires)")
	fs.Parse(args)

	params := credential.CreateParams{Name: *name, Description: *description, Creator: *creator, IsAdmin: *admin}
	switch {
	case *expiresIn > 0:
		expiry := time.Now().Add(*expiresIn)
		params.ExpiresAt = &expiry
	case *ttlDays > 0:
		expiry := time.Now().AddDate(0, 0, *ttlDays)
		params.ExpiresAt = &expiry
	}

	cred, err := store.Create(ctx, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lingualinkctl: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("credential created (id=%d)\n%s\n", cred.ID, cred.Secret)
}

func runListKeys(ctx context.Context, store *credential.Store) {
	creds, err := store.List(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lingualinkctl: %v\n", err)
		os.Exit(1)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tADMIN\tACTIVE\tUSAGE\tCREATED_BY\tDESCRIPTION")
	for _, c := range creds {
		fmt.Fprintf(tw, "%d\t%s\t%v\t%v\t%d\t%s\t%s\n", c.ID, c.Name, c.IsAdmin, c.IsActive, c.UsageCount, c.CreatedBy, c.Description)
	}
	tw.Flush()
}

func runRevokeKey(ctx context.Context, store *credential.Store, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: lingualinkctl revoke-key <secret>")
		os.Exit(2)
	}
	if err := store.Revoke(ctx, args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "lingualinkctl: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("revoked")
}

func runCleanupExpired(ctx context.Context, store *credential.Store) {
	n, err := store.CleanupExpired(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lingualinkctl: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("deactivated %d expired credential(s)\n", n)
}
