// Command tokengen mints a bearer token for the internal HTTP endpoints,
// such as POST /whatsapp/send. It signs with the same SESSION_SECRET the
// server validates against, so run it with the server's environment.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/drivelink/drivelink-api/internal/service"
	"github.com/drivelink/drivelink-api/pkg/config"
)

func main() {
	subject := flag.String("subject", "ops", "token subject, e.g. the operator or system name")
	role := flag.String("role", "admin", "role claim embedded in the token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Auth.Secret == "" {
		fmt.Fprintln(os.Stderr, "SESSION_SECRET is not set")
		os.Exit(1)
	}

	token, err := service.NewTokenService(cfg.Auth).Issue(*subject, *role)
	if err != nil {
		fmt.Fprintf(os.Stderr, "issue token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
