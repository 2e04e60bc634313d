/*
Copyright © 2019 the LandUnit authors.
This file is part of LandUnit.

LandUnit is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

LandUnit is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with LandUnit.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package landunitutil handles configuration and command-line parsing
// for the landunit command.
package landunitutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ctessum/gobra"
	"github.com/lnashier/viper"
	"github.com/skratchdot/open-golang/open"
	"github.com/spatialmodel/landunit"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to LandUnit.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "RasterData",
			usage: `
              RasterData is the path to the NetCDF file holding the simulation
              domain rasters: the cell mask, the optional cell areas, and the
              farm and land use class maps at sub-cell resolution.`,
			defaultVal: "${GOPATH}/src/github.com/spatialmodel/landunit/landunitutil/testdata/testRasterData.nc",
			flagsets:   []*pflag.FlagSet{buildCmd.Flags(), statsCmd.Flags(), renderCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "UnitData",
			usage: `
              UnitData is the path where the build command saves the land unit
              snapshot and the other commands read it back.`,
			defaultVal: "${GOPATH}/src/github.com/spatialmodel/landunit/landunitutil/testdata/testUnitData.gob",
			flagsets:   []*pflag.FlagSet{buildCmd.Flags(), statsCmd.Flags(), renderCmd.Flags(), splitCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "createunits",
			usage: `
              createunits specifies whether to create the land units from the
              rasters in RasterData instead of loading a previously saved
              snapshot from UnitData.`,
			shorthand:  "c",
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{statsCmd.Flags(), renderCmd.Flags(), serveCmd.Flags()},
		},
		{
			name: "OutputVariables",
			usage: `
              OutputVariables specifies which variables the render command
              should write when the output file is a shapefile or a NetCDF
              file, along with expressions specifying how they should be
              calculated. Shapefile variable names must be at most 10
              characters long.`,
			defaultVal: map[string]string{"area": "area", "landuse": "land_use_type", "owner": "owner"},
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "Render.Variable",
			usage: `
              Render.Variable is the variable name or expression to draw when
              the render output file is a PNG image.`,
			defaultVal: "area",
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "Render.Width",
			usage: `
              Render.Width is the width of rendered map images in pixels.`,
			defaultVal: 800,
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "Render.OutputFile",
			usage: `
              Render.OutputFile is the path where the render command saves its
              output. The extension selects the format: '.png' draws a map of
              Render.Variable together with a separate legend image, while
              '.shp' and '.nc' write the OutputVariables expressions.`,
			defaultVal: "landunit_map.png",
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "Stats.GroupBy",
			usage: `
              Stats.GroupBy lists the groupings reported by the stats command.
              Accepted values are 'land_use' and 'owner'.`,
			defaultVal: []string{"land_use", "owner"},
			flagsets:   []*pflag.FlagSet{statsCmd.Flags()},
		},
		{
			name: "LandUseLegend",
			usage: `
              LandUseLegend is the path to an Excel file mapping land use class
              numbers to descriptive names, with the numbers in the first
              column and the names in the second. If it is empty, built-in
              names are used.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{statsCmd.Flags()},
		},
		{
			name: "Split.Unit",
			usage: `
              Split.Unit is the index of the land unit to be refined by the
              split command.`,
			defaultVal: -1,
			flagsets:   []*pflag.FlagSet{splitCmd.Flags()},
		},
		{
			name: "Split.Fraction",
			usage: `
              Split.Fraction is the area fraction at which the split command
              divides the unit. It is renormalized to a whole number of
              sub-cells.`,
			defaultVal: landunit.DefaultSplitFraction,
			flagsets:   []*pflag.FlagSet{splitCmd.Flags()},
		},
		{
			name: "Split.OutputFile",
			usage: `
              Split.OutputFile is the path where the split command saves the
              refined snapshot. If it is empty, UnitData is overwritten.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{splitCmd.Flags()},
		},
		{
			name: "HTTPAddress",
			usage: `
              HTTPAddress is the address the serve command listens on.`,
			defaultVal: "localhost:8080",
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
		{
			name: "open_browser",
			usage: `
              open_browser specifies whether the serve command should open the
              map server in a web browser after starting it.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{serveCmd.Flags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("LANDUNIT")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case []string:
				if option.shorthand == "" {
					set.StringSlice(option.name, option.defaultVal.([]string), option.usage)
				} else {
					set.StringSliceP(option.name, option.shorthand, option.defaultVal.([]string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			case map[string]string:
				b := bytes.NewBuffer(nil)
				e := json.NewEncoder(b)
				e.Encode(option.defaultVal)
				s := string(b.Bytes())
				if option.shorthand == "" {
					set.String(option.name, s, option.usage)
				} else {
					set.StringP(option.name, option.shorthand, s, option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(buildCmd)
	Root.AddCommand(statsCmd)
	Root.AddCommand(renderCmd)
	Root.AddCommand(splitCmd)
	Root.AddCommand(serveCmd)
}

// outChan returns a channel printing to standard output.
func outChan() chan string {
	outChan := make(chan string)
	go func() {
		for {
			msg := <-outChan
			fmt.Printf(msg)
		}
	}()
	return outChan
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("landunit: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "landunit",
	Short: "A sub-grid land surface discretization engine.",
	Long: `LandUnit divides the cells of a gridded hydrological model into land
units: sub-cell regions that are homogeneous in land use class or belong
to a single farm. Use the subcommands specified below to build, inspect,
refine, and serve land unit datasets.

Refer to the subcommand documentation for configuration options and default
settings. Configuration can be changed by using a configuration file (and
providing the path to the file using the --config flag), by using command-line
arguments, or by setting environment variables in the format 'LANDUNIT_var'
where 'var' is the name of the variable to be set. Many configuration
variables are additionally allowed to contain environment variables within
them.
Refer to https://github.com/spf13/viper for additional configuration information.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of LandUnit.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("LandUnit v%s\n", landunit.Version)
	},
	DisableAutoGenTag: true,
}

// buildCmd is a command that creates and saves a new set of land units.
var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the land units",
	Long: `build creates the simulation grid and the land units from the rasters
specified in the configuration file and saves the result as a snapshot.
The saved data can then be loaded by the other commands and by future
simulations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()

		return Build(
			maybeDownload(context.TODO(), os.ExpandEnv(Cfg.GetString("RasterData")), outChan),
			os.ExpandEnv(Cfg.GetString("UnitData")),
		)
	},
	DisableAutoGenTag: true,
}

// statsCmd is a command that summarizes a land unit dataset.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize the land units",
	Long: `stats prints summary statistics for a land unit dataset: the cell and
unit counts and the unit areas, grouped by land use class and by farm
owner. Land use class names are taken from the LandUseLegend file if one
is specified.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()

		d, err := unitDomain(
			maybeDownload(context.TODO(), os.ExpandEnv(Cfg.GetString("RasterData")), outChan),
			maybeDownload(context.TODO(), os.ExpandEnv(Cfg.GetString("UnitData")), outChan),
			Cfg.GetBool("createunits"),
		)
		if err != nil {
			return err
		}
		legend, err := LandUseNames(context.TODO(),
			maybeDownload(context.TODO(), os.ExpandEnv(Cfg.GetString("LandUseLegend")), outChan))
		if err != nil {
			return err
		}
		return Stats(cmd.OutOrStdout(), d,
			expandStringSlice(Cfg.GetStringSlice("Stats.GroupBy")), legend)
	},
	DisableAutoGenTag: true,
}

// renderCmd is a command that draws or exports a land unit dataset.
var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Draw or export land unit maps",
	Long: `render evaluates output expressions for a land unit dataset and writes
the result to Render.OutputFile. A '.png' extension draws a map of the
Render.Variable expression along with a separate legend image; '.shp' and
'.nc' extensions write the OutputVariables expressions as a shapefile of
unit regions or a NetCDF file at sub-cell resolution.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()

		d, err := unitDomain(
			maybeDownload(context.TODO(), os.ExpandEnv(Cfg.GetString("RasterData")), outChan),
			maybeDownload(context.TODO(), os.ExpandEnv(Cfg.GetString("UnitData")), outChan),
			Cfg.GetBool("createunits"),
		)
		if err != nil {
			return err
		}
		outputFile, err := checkOutputFile(Cfg.GetString("Render.OutputFile"))
		if err != nil {
			return err
		}
		var outputVars map[string]string
		if filepath.Ext(outputFile) != ".png" {
			if outputVars, err = checkOutputVars(GetStringMapString("OutputVariables", Cfg)); err != nil {
				return err
			}
		}
		return Render(d, outputFile,
			os.ExpandEnv(Cfg.GetString("Render.Variable")),
			Cfg.GetInt("Render.Width"), outputVars)
	},
	DisableAutoGenTag: true,
}

// splitCmd is a command that refines one land unit in a saved snapshot.
var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Refine a land unit",
	Long: `split divides the land unit with index Split.Unit in two at
Split.Fraction of its sub-cells and saves the refined snapshot. The
fraction is renormalized to a whole number of sub-cells, so the areas of
the two new units may not match the requested fraction exactly.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()

		unitFile := maybeDownload(context.TODO(), os.ExpandEnv(Cfg.GetString("UnitData")), outChan)
		outFile := os.ExpandEnv(Cfg.GetString("Split.OutputFile"))
		if outFile == "" {
			outFile = os.ExpandEnv(Cfg.GetString("UnitData"))
		}
		return Split(cmd.OutOrStdout(), unitFile, outFile,
			Cfg.GetInt("Split.Unit"), Cfg.GetFloat64("Split.Fraction"))
	},
	DisableAutoGenTag: true,
}

// serveCmd is a command that serves land unit maps over HTTP.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve land unit maps over HTTP",
	Long: `serve starts a web server providing maps of a land unit dataset. The
server lists the available variables at /variables and draws maps and
legends for them at /map/{variable} and /legend/{variable}.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()

		d, err := unitDomain(
			maybeDownload(context.TODO(), os.ExpandEnv(Cfg.GetString("RasterData")), outChan),
			maybeDownload(context.TODO(), os.ExpandEnv(Cfg.GetString("UnitData")), outChan),
			Cfg.GetBool("createunits"),
		)
		if err != nil {
			return err
		}
		return Serve(d, Cfg.GetString("HTTPAddress"), Cfg.GetBool("open_browser"))
	},
	DisableAutoGenTag: true,
}

// StartWebServer starts the web server.
func StartWebServer() {
	setConfig() // Ignore any errors for now.

	http.HandleFunc("/setConfig", func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		configFile := r.Form["config"][0]
		Root.Flags().Set("config", configFile)
		err := setConfig()
		if err != nil {
			http.Error(w, err.Error(), 204)
			return
		}
		config := make(map[string]interface{})
		for _, option := range options {
			config[option.name] = Cfg.Get(option.name)
		}
		e := json.NewEncoder(w)
		if err := e.Encode(config); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
	})

	log.Println("Loading front-end...")

	for _, cmd := range []*cobra.Command{Root, versionCmd, buildCmd, statsCmd,
		renderCmd, splitCmd, serveCmd} {
		cmd.SilenceUsage = true // We don't want the usage messages in the GUI.
	}

	const address = "localhost:7171"
	const tmpl = `
<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>LandUnit</title>
	<style>
		html, body {padding: 0; margin: 2% 0; font-family: sans-serif;}
		.container { max-width: 700px; margin: 0 auto; padding: 10px; }
		div[id^="gobra-"] blockquote { border-left: 3px solid #bbb; margin: .3em; color: #333; padding-left: 5px; font-size: 75%; }
		div[id^="gobra-"] code { font-weight: bold; }
		div[id^="gobra-"] input { font-family: monospace; margin-left: .2em; width: 50%; outline:none; }
		.red-border{ border: 1px solid #c35; }
		.green-border{ border: 1px solid #3c5; }
		.blue-border{ border: 1px solid #35c; }
	</style>
</head>
<body>
<div class="container">
	<h1>LandUnit</h1>
	<p>Configure the land unit dataset below.</p>
	<p>
		Color key: black=default;
		<font color="red">red</font>=error;
		<font color="green">green</font>=value from config file;
		<font color="blue">blue</font>=user entered
	</p>
	<div>
		{{.}}
	</div>
	<footer>
		© 2019 LandUnit Authors
	</footer>
</div>

<script>
// If the configuration file is changed, send the new file path
// to the server and update fields

let allFlags = [...document.querySelectorAll('[data-name]')];
allFlags.forEach(x => {
	let inputField = x.children[0];
	inputField.addEventListener("input", e => {
		inputField.classList.remove("green-border");
		inputField.classList.add("blue-border");
	})
})

let configInput = allFlags.filter(x => x.dataset.name == "config")[0].children[0];
configInput.addEventListener("input", e => {
	fetch("http://` + address + `/setConfig?config="+configInput.value)
		.then( res => {
			if (res.status !== 200) {
				if (res.status == 204) {
					configInput.classList.remove("blue-border");
					configInput.classList.remove("green-border");
					configInput.classList.add("red-border");
				} else {
					console.log("Error fetching /setConfig: ", response.text());
				}
			} else {
				res.json().then( data => {
					configInput.classList.remove("red-border");
					for (let key in data)
						for(let f of allFlags)
							if (f.dataset.name == key) {
								let input = f.children[0];
								var newValue = JSON.stringify(data[key]).replace(/^"+|"+$/g,'');
								if (input.value != newValue) {
									input.value = newValue
									input.classList.remove("blue-border");
									input.classList.add("green-border");
								}
							}
				})
			}
		})
		.catch( err => {
			console.log("Error fetching /setConfig", err)
		})
})
</script>
</body>
</html>`

	output := template.Must(template.New("").Parse(tmpl))
	server := gobra.Server{Root: Root, ServerAddress: address, AllowCORS: false, HTML: output}
	log.Println("Server starting... ")
	open.Run("http://" + address)
	fmt.Println("If not opened automatically, please visit http://localhost:7171")
	server.Start()
}
