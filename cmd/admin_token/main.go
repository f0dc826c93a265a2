package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"b24-sync/internal/config"
	"b24-sync/pkg/utils"
)

// Mints an operator JWT for the admin endpoints.
func main() {
	userID := flag.String("user", "operator", "subject for the token")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}
	utils.SetSecret(cfg.JWTSecret)

	token, err := utils.GenerateToken(*userID, []string{"operator"}, *ttl)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(token)
}
