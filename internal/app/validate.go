package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"horse.fit/clipper/internal/extconfig"
)

func runValidate(args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	sourcesPath := fs.String("sources", "config/sources.json", "Path to sources JSON")
	taxonomyPath := fs.String("taxonomy", "config/taxonomy.json", "Path to taxonomy JSON")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "validate does not accept positional arguments")
		return 2
	}

	return validateConfigFiles(strings.TrimSpace(*sourcesPath), strings.TrimSpace(*taxonomyPath))
}

func validateConfigFiles(sourcesPath, taxonomyPath string) int {
	invalid := 0

	sources, err := extconfig.LoadSources(sourcesPath)
	if err != nil {
		invalid++
		fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", sourcesPath, err)
	} else {
		fmt.Printf("ok: %s sources=%d\n", sourcesPath, len(sources))
	}

	taxonomy, err := extconfig.LoadTaxonomy(taxonomyPath)
	if err != nil {
		invalid++
		fmt.Fprintf(os.Stderr, "INVALID %s: %v\n", taxonomyPath, err)
	} else {
		fmt.Printf(
			"ok: %s categories=%d negative_hints=%d\n",
			taxonomyPath,
			len(taxonomy.Categories()),
			len(taxonomy.NegativeHints()),
		)
	}

	if invalid > 0 {
		return 1
	}
	return 0
}
