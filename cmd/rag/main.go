package main

import (
	"fmt"
	"os"

	"bilingual-rag/internal/cli"
	"bilingual-rag/internal/domain"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "rag: %s: %v\n", domain.KindOf(err), err)
		os.Exit(1)
	}
}
