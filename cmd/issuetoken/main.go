// Command issuetoken signs an access token for local testing. Accounts are
// managed elsewhere; this only needs the shared JWT secret.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"galleryapi/internal/auth"
	"galleryapi/internal/config"
	"galleryapi/internal/model"
)

func main() {
	cfg := config.Load()

	userID := flag.String("user", "", "user id carried in the token subject")
	role := flag.String("role", string(model.RoleUser), "role: user or admin")
	ttl := flag.Duration("ttl", cfg.JWT.TTL, "token lifetime")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "issuetoken: -user is required")
		flag.Usage()
		os.Exit(2)
	}
	if !model.ValidRole(model.Role(*role)) {
		fmt.Fprintf(os.Stderr, "issuetoken: unknown role %q\n", *role)
		os.Exit(2)
	}

	m, err := auth.NewManager(cfg.JWT.Secret, *ttl)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issuetoken: %v\n", err)
		os.Exit(1)
	}
	token, exp, err := m.Issue(model.Identity{UserID: *userID, Role: model.Role(*role)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "issuetoken: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", exp.Format(time.RFC3339))
}
