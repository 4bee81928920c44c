package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sagechat/sage/internal/store"
)

// sagectl issues and revokes API credentials against the server's database.
// The plaintext token is printed once and never recoverable afterwards.
func main() {
	dbPath := flag.String("db", envOr("SAGE_DB_PATH", "/data/sage.db"), "path to the sqlite database")
	user := flag.String("user", "", "user the credential belongs to")
	label := flag.String("label", "", "human-readable label for the credential")
	ttlDays := flag.Int("ttl-days", 0, "days until expiry (0 = never)")
	revoke := flag.String("revoke", "", "credential id to revoke instead of creating")
	flag.Parse()

	if *user == "" {
		fmt.Fprintln(os.Stderr, "sagectl: -user is required")
		flag.Usage()
		os.Exit(2)
	}

	db, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sagectl: open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	creds := store.NewCredentialStore(db)

	if *revoke != "" {
		ok, err := creds.Revoke(*user, *revoke)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sagectl: revoke: %v\n", err)
			os.Exit(1)
		}
		if !ok {
			fmt.Fprintln(os.Stderr, "sagectl: no matching credential")
			os.Exit(1)
		}
		fmt.Println("revoked", *revoke)
		return
	}

	ttl := time.Duration(*ttlDays) * 24 * time.Hour
	cred, token, err := creds.Create(*user, *label, ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sagectl: create: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("credential id:", cred.ID)
	fmt.Println("token:", token)
	if cred.ExpiresAt != nil {
		fmt.Println("expires:", time.Unix(*cred.ExpiresAt, 0).Format(time.RFC3339))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
