package attend

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/classroll/rollcall/internal/app"
	"github.com/classroll/rollcall/internal/capture"
	"github.com/classroll/rollcall/internal/conf"
	"github.com/classroll/rollcall/internal/terminal"
)

// Command creates the attend command, which runs one attendance session.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attend",
		Short: "Run an attendance session",
		Long: "Verify the teacher by face, choose an offered class and record students " +
			"as they face the camera. The teacher verifies again to close the session.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, settings)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

func run(cmd *cobra.Command, settings *conf.Settings) error {
	ctx := cmd.Context()
	console := terminal.New(os.Stdin, cmd.OutOrStdout())

	rt, err := app.Start(ctx, settings, console)
	if err != nil {
		return err
	}
	defer rt.Close()

	pipeline, closeModels, err := rt.LoadPipeline()
	if err != nil {
		return err
	}
	defer closeModels()

	teacher := capture.Sampler{Pipeline: pipeline, Count: settings.Capture.AuthImages}
	students := capture.Sampler{Pipeline: pipeline, Count: settings.Capture.RoundImages}

	return rt.Serve(ctx, func(ctx context.Context) error {
		return rt.Attend(ctx, teacher, students)
	})
}

// setupFlags configures flags specific to the attend command.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("device", "", "Camera device passed to ffmpeg")
	cmd.Flags().Float64("threshold", 0, "Maximum face distance for a match")
	cmd.Flags().Int("max-attempts", 0, "Teacher verification attempts")
	cmd.Flags().Int("round-images", 0, "Images aggregated per student capture")

	bindings := map[string]string{
		"device":       "camera.device",
		"threshold":    "match.threshold",
		"max-attempts": "auth.maxattempts",
		"round-images": "capture.roundimages",
	}
	for flag, key := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}
