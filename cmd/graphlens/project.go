package main

import (
	"github.com/aretw0/graphlens"
	"github.com/aretw0/graphlens/internal/cli"
	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:   "project FILE",
	Short: "Print the render-ready graph of a workflow file",
	Long: `Extracts and projects FILE into the JSON graph consumed by the viewer.
With --save the file is also recorded in history.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, _, app, err := loadSnapshot(cmd, args[0])
		if err != nil {
			return err
		}
		defer app.Close()

		pretty, _ := cmd.Flags().GetBool("pretty")
		return cli.WriteJSON(cmd.OutOrStdout(), snap.Graph, pretty)
	},
}

// loadSnapshot reads, extracts and projects path with the viewport flags.
// It also returns the raw file bytes. The caller closes the returned app.
func loadSnapshot(cmd *cobra.Command, path string) (*graphlens.Snapshot, []byte, *cli.App, error) {
	ctx := cmd.Context()
	app, err := newApp(ctx, cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	name, _ := cmd.Flags().GetString("name")
	filename, data, err := cli.ReadInput(path, name, cmd.InOrStdin())
	if err != nil {
		app.Close()
		return nil, nil, nil, err
	}

	snap, err := projectFile(cmd, app, filename, data)
	if err != nil {
		app.Close()
		return nil, nil, nil, err
	}
	return snap, data, app, nil
}

func projectFile(cmd *cobra.Command, app *cli.App, filename string, data []byte) (*graphlens.Snapshot, error) {
	ctx := cmd.Context()
	waitNicknames(ctx, app)

	vp := app.Config.ViewportValue()
	if w, _ := cmd.Flags().GetFloat64("width"); w > 0 {
		vp.Width = w
	}
	if h, _ := cmd.Flags().GetFloat64("height"); h > 0 {
		vp.Height = h
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		loaded, err := app.Viewer.Load(ctx, filename, data)
		if err != nil {
			return nil, err
		}
		g, err := app.Viewer.ProjectCurrent(vp)
		if err != nil {
			return nil, err
		}
		snap := *loaded
		snap.Graph = g
		return &snap, nil
	}

	res, err := app.Viewer.Extractor().ExtractFile(filename, data)
	if err != nil {
		return nil, err
	}
	return &graphlens.Snapshot{
		Filename: filename,
		Source:   res.Source,
		Digest:   graphlens.Digest(res.Content),
		Workflow: res.Workflow,
		Graph:    app.Viewer.Projector().Project(res.Workflow, vp),
	}, nil
}

func addProjectFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Filename to use when reading stdin")
	cmd.Flags().Float64("width", 0, "Viewport width (default from config)")
	cmd.Flags().Float64("height", 0, "Viewport height (default from config)")
	cmd.Flags().Bool("save", false, "Record the file in history")
}

func init() {
	rootCmd.AddCommand(projectCmd)
	addProjectFlags(projectCmd)
	projectCmd.Flags().Bool("pretty", false, "Indent the output")
}
