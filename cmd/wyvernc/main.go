// Command wyvernc compiles a serialized wyvern Program (JSON) to a SPIR-V
// compute module.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dariost/wyvern"
	"github.com/dariost/wyvern/spirv"
	"github.com/dariost/wyvern/vulkan"
)

var (
	output        string
	target        string
	printBindings bool
	skipValidate  bool
	verbose       bool
)

func main() {
	root := &cobra.Command{
		Use:   "wyvernc <program.json>",
		Short: "Compile a serialized wyvern program to SPIR-V",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
		SilenceUsage: true,
	}
	root.Flags().StringVarP(&output, "output", "o", "out.spv", "output file")
	root.Flags().StringVar(&target, "target", "1.1", "target Vulkan version (1.0 or 1.1)")
	root.Flags().BoolVar(&printBindings, "print-bindings", false, "list the binding table")
	root.Flags().BoolVar(&skipValidate, "skip-validate", false, "skip external spirv-val")
	root.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	version := spirv.Vulkan11
	switch target {
	case "1.0":
		version = spirv.Vulkan10
	case "1.1":
	default:
		return fmt.Errorf("unknown target %q", target)
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	program, err := wyvern.ParseProgram(data)
	if err != nil {
		return err
	}
	words, bindings, err := wyvern.CompileSPIRV(program, version)
	if err != nil {
		return err
	}
	code, err := vulkan.PostProcess(words, vulkan.Config{SkipValidate: skipValidate})
	if err != nil {
		return err
	}
	if err := os.WriteFile(output, code, 0o644); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{
		"words":    len(words),
		"bindings": len(bindings),
		"target":   version.String(),
	}).Info("compiled")

	if printBindings {
		for _, b := range bindings {
			switch b.Kind {
			case spirv.Public:
				fmt.Printf("binding %d: %s %q (%s", b.Index, b.IO, b.Name, b.Elem)
				if b.RuntimeArray {
					fmt.Printf(" array")
				}
				fmt.Println(")")
			default:
				fmt.Printf("binding %d: private scratch (%s x %d)\n", b.Index, b.Elem, b.MaxSize)
			}
		}
	}
	return nil
}
