package main

import (
	"context"
	"log"

	"github.com/atlasmarkets/refdata/internal/app/api"
)

func main() {
	if err := api.Run(context.Background()); err != nil {
		log.Fatalf("refdata api exited: %v", err)
	}
}
