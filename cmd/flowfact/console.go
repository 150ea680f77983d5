package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/flowfact-console/internal/console"
)

func newConsoleCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Run an interactive session in the terminal",
		Long: `Prompts for an API key (input is hidden) until the backend accepts it, then
runs the pipeline. In auto mode every operation runs in order; in manual mode a
menu lets you trigger operations one at a time.`,
		RunE: c.runConsole,
	}
}

func (c *cli) runConsole(cmd *cobra.Command, _ []string) error {
	a := c.app
	out := cmd.OutOrStdout()
	con := console.New(a.GetConfig().Console, console.Deps{
		Verifier: a.GetGate(),
		Runner:   a.GetSequencer(),
		Reader:   console.NewTerminalReader(os.Stdin, out),
		Menu:     console.PromptMenu{},
		Output:   out,
		IDs:      a.GetIDGenerator(),
		Clock:    a.GetClock(),
		Emitter:  a.GetEmitter(),
		Logger:   a.GetLogger().Named("console"),
	})
	return con.Run(cmd.Context())
}
