package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/tikzstudio/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export <preview.svg>",
	Short: "Rasterize an SVG preview to PNG on a white background",
	Long:  `Converts a saved preview to PNG locally, without calling the model. The size comes from the SVG's width and height, then its viewBox, then the configured fallback.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, _ := cmd.Flags().GetString("out")
		scale, _ := cmd.Flags().GetFloat64("scale")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		opts := exportOptions(cfg)
		if cmd.Flags().Changed("scale") {
			opts.Scale = scale
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading preview: %w", err)
		}

		var buf bytes.Buffer
		if err := export.PNG(&buf, string(data), opts); err != nil {
			return err
		}

		if out == "" {
			out = strings.TrimSuffix(args[0], ".svg") + ".png"
		}
		if err := os.WriteFile(out, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("writing png: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Wrote %s\n", out)
		return nil
	},
}

func init() {
	exportCmd.Flags().String("out", "", "output path (default: input with .png extension)")
	exportCmd.Flags().Float64("scale", 1, "multiply the output size")
	rootCmd.AddCommand(exportCmd)
}
