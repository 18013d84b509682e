// Package main is the entry point for the PropIntel Retrieval Service.
package main

import (
	retrieval "github.com/kart-io/propintel/internal/retrieval"
)

func main() {
	retrieval.NewApp().Run()
}
