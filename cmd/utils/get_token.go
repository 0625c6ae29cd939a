package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"outreach-service/internal/infrastructure/config"
	"outreach-service/internal/infrastructure/oauth"
	"outreach-service/pkg/logger"

	"github.com/google/uuid"
)

// Prints a Gmail refresh token for GMAIL_REFRESH_TOKEN. Reads GMAIL_CLIENT_ID
// and GMAIL_CLIENT_SECRET from the environment.
func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	appLogger := logger.NewLogger(cfg.LogLevel)
	defer appLogger.Sync()

	gmailOAuth := oauth.NewGmailOAuth(cfg.GmailClientID, cfg.GmailClientSecret, "", appLogger).
		WithRedirectURL("http://localhost:8090/oauth2callback")

	state := uuid.NewString()

	http.HandleFunc("/oauth2callback", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("state") != state {
			http.Error(w, "Invalid state parameter", http.StatusBadRequest)
			return
		}

		token, err := gmailOAuth.ExchangeCode(context.Background(), r.URL.Query().Get("code"))
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to exchange code: %v", err), http.StatusInternalServerError)
			return
		}

		fmt.Printf("\nRefresh Token: %s\n\n", token.RefreshToken)
		fmt.Fprintf(w, "Authentication successful! You can close this window.")
		os.Exit(0)
	})

	fmt.Printf("Open this URL in your browser:\n%s\n", gmailOAuth.GenerateAuthURL(state))

	log.Fatal(http.ListenAndServe(":8090", nil))
}
