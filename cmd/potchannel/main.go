package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version kong.VersionFlag `short:"v" help:"Show version"`
	Relay   RelayCmd         `cmd:"" help:"Run the untrusted message relay"`
	Verify  VerifyCmd        `cmd:"" help:"Replay a transcript file and print the verdict"`
	Demo    DemoCmd          `cmd:"" help:"Drive a scripted hand through a local ledger"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("potchannel"),
		kong.Description("Trustless heads-up poker settlement over payment channels"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
