package main

import (
	"github.com/urfave/cli"
)

// Nested commands are listed as "pipeline app" so the whole tree is
// visible from the top level help.
func init() {
	cli.AppHelpTemplate = `{{.Name}} - {{.Usage}}{{if .Description}}
  {{.Description}}{{end}}

Usage:
  {{.HelpName}} [global options] command [command options] [arguments...]{{if .Commands}}

Commands:{{range .VisibleCategories}}{{range $index, $cmd := .VisibleCommands}}{{if .Subcommands}}{{range .Subcommands}}
  {{$cmd.Name}} {{.Name}}{{ "\t" }}{{.Usage}}{{end}}{{else}}
  {{.Name}}{{ "\t" }}{{.Usage}}{{end}}{{end}}{{end}}{{end}}{{if .VisibleFlags}}

Global Options:
   {{range .VisibleFlags}}{{.}}
   {{end}}{{end}}{{if .Version}}
Version: {{.Version}}{{end}}
`

	cli.CommandHelpTemplate = `Usage:
   {{.HelpName}}{{if .VisibleFlags}} [command options]{{end}} {{if .ArgsUsage}}{{.ArgsUsage}}{{else}}[arguments...]{{end}}{{if .Usage}}

   {{.Usage}}{{end}}{{if .VisibleFlags}}

Options:
   {{range .VisibleFlags}}{{.}}
   {{end}}{{end}}
`

	cli.SubcommandHelpTemplate = `Usage:
   {{.HelpName}} command [command options] [arguments...]

Commands:{{range .VisibleCategories}}{{range .VisibleCommands}}
  {{.Name}}{{ "\t" }}{{.Usage}}{{end}}{{end}}
`
}
