package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/godetect/internal/models"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List or download model assets",
	}

	list := &cobra.Command{
		Use:          "list",
		Short:        "Show the resolved model and label paths",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Name", "Type", "Present", "Path"})
			for _, m := range models.ListAvailableModels(a.cfg.ModelsDir) {
				present := "no"
				if m.Present {
					present = "yes"
				}
				tw.AppendRow(table.Row{m.Name, m.Type, present, m.Path})
			}
			tw.SetStyle(table.StyleLight)
			tw.Render()
			return nil
		},
	}

	fetch := &cobra.Command{
		Use:   "fetch",
		Short: "Download the detection model into the models directory",
		Long: `Download the detection model with go-getter. Any go-getter source works,
for example https URLs, S3 or GCS buckets and local files.

Examples:
  godetect models fetch --url https://example.com/ssdlite_mobilenet_v2.onnx
  godetect models fetch --url ./ssd.onnx --force`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			force, _ := cmd.Flags().GetBool("force")
			filename, _ := cmd.Flags().GetString("filename")
			path, err := models.Fetch(cmd.Context(), models.FetchOptions{
				URL:       a.cfg.Detector.ModelURL,
				ModelsDir: a.cfg.ModelsDir,
				Filename:  filename,
				Force:     force,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Model available at %s\n", path)
			return err
		},
	}
	fetch.Flags().String("url", "", "model source URL (go-getter syntax)")
	fetch.Flags().String("filename", models.DetectionSSDLite, "destination file name")
	fetch.Flags().Bool("force", false, "overwrite an existing model")
	a.bind(fetch.Flags(), map[string]string{"url": "detector.model_url"})

	cmd.AddCommand(list, fetch)
	return cmd
}
