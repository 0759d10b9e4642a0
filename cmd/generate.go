package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/tikzstudio/internal/batch"
	"github.com/ziadkadry99/tikzstudio/internal/gateway"
	"github.com/ziadkadry99/tikzstudio/internal/llm"
	"github.com/ziadkadry99/tikzstudio/internal/prompts"
)

// cliSessionID tags history entries written by one-shot commands.
const cliSessionID = "cli"

var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Generate a TikZ figure from a description, an image or existing code",
	Long: `Makes a single model call and prints the resulting TikZ code.

  tikzstudio generate "a right triangle ABC with the right angle at C"
  tikzstudio generate --mode variation_table "y = x^3 - 3x"
  tikzstudio generate --image sketch.png "make the lines thicker"
  tikzstudio generate --prior figure.tex "colour the hypotenuse red"
  tikzstudio generate --markup figure.tex --out figure --png`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().String("mode", string(prompts.ModeFigure), "figure, variation_table or function_graph")
	generateCmd.Flags().String("image", "", "image of a diagram to reconstruct; the prompt becomes an optional instruction")
	generateCmd.Flags().String("markup", "", "TikZ file to preview; the prompt becomes an optional refinement")
	generateCmd.Flags().String("prior", "", "TikZ file to refine with the prompt")
	generateCmd.Flags().String("out", "", "write <out>.tex and <out>.svg instead of printing the code")
	generateCmd.Flags().Bool("png", false, "also write <out>.png (requires --out)")
	generateCmd.Flags().Bool("json", false, "print the full result as JSON")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	start := time.Now()

	modeStr, _ := cmd.Flags().GetString("mode")
	imagePath, _ := cmd.Flags().GetString("image")
	markupPath, _ := cmd.Flags().GetString("markup")
	priorPath, _ := cmd.Flags().GetString("prior")
	out, _ := cmd.Flags().GetString("out")
	withPNG, _ := cmd.Flags().GetBool("png")
	asJSON, _ := cmd.Flags().GetBool("json")

	if imagePath != "" && markupPath != "" {
		return errors.New("--image and --markup cannot be combined")
	}
	if withPNG && out == "" {
		return errors.New("--png requires --out")
	}
	mode, err := prompts.ParseMode(modeStr)
	if err != nil {
		return err
	}
	if !mode.TakesText() {
		return fmt.Errorf("--mode %s is not a text mode; use --image or --markup instead", mode)
	}
	prompt := strings.TrimSpace(strings.Join(args, " "))

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	gw := newGateway(cfg, newResolver(cfg), store)
	ctx := gateway.WithSessionID(context.Background(), cliSessionID)

	var res *gateway.Result
	switch {
	case imagePath != "":
		img, err := llm.ReadImageFile(imagePath)
		if err != nil {
			return err
		}
		res, err = gw.GenerateFromImage(ctx, img, prompt)
		if err != nil {
			return err
		}
	case markupPath != "":
		markup, err := readMarkup(markupPath)
		if err != nil {
			return err
		}
		res, err = gw.RenderMarkup(ctx, markup, prompt)
		if err != nil {
			return err
		}
	default:
		if prompt == "" {
			return errors.New("a prompt is required")
		}
		var prior string
		if priorPath != "" {
			if prior, err = readMarkup(priorPath); err != nil {
				return err
			}
		}
		res, err = gw.GenerateFromText(ctx, prompt, prior, mode)
		if err != nil {
			return err
		}
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Generated with %s in %s\n", gw.Model(), time.Since(start).Round(time.Millisecond))
	}

	if out != "" {
		files, err := batch.WriteOutputs(out, res, withPNG, exportOptions(cfg), markupPath, priorPath, imagePath)
		for _, f := range files {
			fmt.Fprintf(os.Stderr, "Wrote %s\n", f)
		}
		if err != nil {
			return err
		}
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	if out == "" {
		fmt.Println(res.Markup)
	}
	if verbose && res.Explanation != "" {
		fmt.Fprintf(os.Stderr, "\n%s\n", res.Explanation)
	}
	return nil
}

func readMarkup(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading markup: %w", err)
	}
	markup := strings.TrimSpace(string(data))
	if markup == "" {
		return "", fmt.Errorf("%s is empty", path)
	}
	return markup, nil
}
