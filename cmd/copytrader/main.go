package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"copytrader/internal/cli"
)

func main() {
	// Environment overrides such as COPYTRADER_STORE_BACKEND may live in .env.
	_ = godotenv.Load()

	if err := cli.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
