package main

import (
	"os"

	"gimbaldac/internal/configpaths"

	"github.com/alecthomas/kong"
	kongtoml "github.com/alecthomas/kong-toml"
	kongyaml "github.com/alecthomas/kong-yaml"
)

const version = "1.0.0"

func main() {
	// Flag defaults may come from cli.{json,yaml,toml} in the config
	// directories; flags and env override them.
	jsonPaths, yamlPaths, tomlPaths := configpaths.CLICandidatePaths("cli")

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("gimbaldac"),
		kong.Description("Racing wheel / gamepad to RC transmitter gimbal DAC bridge"),
		kong.UsageOnError(),
		kong.Configuration(kong.JSON, jsonPaths...),
		kong.Configuration(kongyaml.Loader, yamlPaths...),
		kong.Configuration(kongtoml.Loader, tomlPaths...),
		kong.Vars{"version": version},
	)

	ctx.Bind(&cli.Globals)
	if err := ctx.Run(); err != nil {
		_, _ = os.Stderr.WriteString("error: " + err.Error() + "\n")
		os.Exit(1)
	}
}
