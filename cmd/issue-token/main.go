// Command issue-token signs an identity token for local testing and bots.
//
// Usage:
//
//	issue-token --uid=player-1 --email=player@example.com [--name="Player One"]
//
// Requires AUTH_IDENTITY_SECRET to match the server.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/jonboulle/clockwork"

	"github.com/heartmarshall/labsim/internal/auth"
	"github.com/heartmarshall/labsim/internal/config"
)

func main() {
	uid := flag.String("uid", "", "user id (required)")
	email := flag.String("email", "", "email address")
	name := flag.String("name", "", "display name")
	flag.Parse()

	if *uid == "" {
		fmt.Fprintln(os.Stderr, "Usage: issue-token --uid=player-1 [--email=...] [--name=...]")
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	tokens := auth.NewJWTManager(cfg.Auth.IdentitySecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL, clockwork.NewRealClock())
	token, err := tokens.GenerateToken(auth.Identity{UID: *uid, Email: *email, DisplayName: *name})
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(token)
}
