package main

import (
	"os"

	"github.com/ykvlv/f1-schedule-bot/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
