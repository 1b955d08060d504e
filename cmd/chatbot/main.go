package main

import "github.com/boshilin123/chatbot-circuit-diagram/internal/cli"

func main() {
	cli.Execute()
}
