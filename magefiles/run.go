//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Serve builds the binary and starts the chat server.
func Serve() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "serve")
}

// Search queries PubMed Central and prints APA citations.
func Search(query string) error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "search", "--query", query)
}

// Ask runs one research question through the agent.
func Ask(question string) error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "ask", question)
}

func binPath() string {
	return "./" + binDir + "/" + binName
}
