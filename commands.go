package main

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/letter-snap/internal/config"
	"github.com/example/letter-snap/internal/logging"
	"github.com/example/letter-snap/internal/notify"
	"github.com/example/letter-snap/internal/prediction"
	"github.com/example/letter-snap/internal/workflow"
)

type app struct {
	configPath    string
	envFile       string
	predictionURL string
	cameraType    string
	logLevel      string

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "letter-snap",
		Short:        "Capture a hand-sign photo and ask the classifier which letter it is",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	root.PersistentFlags().StringVar(&a.predictionURL, "prediction-url", "", "classifier base URL (e.g. http://localhost:8000)")
	root.PersistentFlags().StringVar(&a.cameraType, "camera", "", "camera type: opencv, still or none")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(serveCmd(a), predictCmd(a), snapCmd(a))
	return root
}

func (a *app) init() error {
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.predictionURL != "" {
		cfg.Prediction.BaseURL = a.predictionURL
	}
	if a.cameraType != "" {
		cfg.Camera.Type = a.cameraType
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.NewLogger(logging.Options{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// newWorkflow builds a workflow for one-shot CLI use.
func (a *app) newWorkflow() (*workflow.Workflow, error) {
	source, err := a.cfg.CameraSource()
	if err != nil {
		return nil, err
	}
	client := prediction.NewHTTPClient(a.cfg.Prediction.BaseURL, nil, a.logger)
	return workflow.New(source, client, a.logger, workflow.Options{
		Constraints: a.cfg.Constraints(),
		Notifier:    notify.NewLogNotifier(a.logger),
	}), nil
}

func predictCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "predict <image>",
		Short: "Send an image file to the classifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			wf, err := a.newWorkflow()
			if err != nil {
				return err
			}
			defer wf.Close()

			contentType := mime.TypeByExtension(filepath.Ext(args[0]))
			state, err := wf.SelectFile(cmd.Context(), filepath.Base(args[0]), contentType, data)
			if errors.Is(err, workflow.ErrInvalidFileType) {
				return fmt.Errorf("%s is not an image", args[0])
			}
			if err != nil {
				return err
			}
			return printOutcome(cmd.OutOrStdout(), state)
		},
	}
}

func snapCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "snap",
		Short: "Capture one frame from the camera and classify it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			wf, err := a.newWorkflow()
			if err != nil {
				return err
			}
			defer wf.Close()

			if err := wf.StartCapture(cmd.Context()); err != nil {
				if errors.Is(err, workflow.ErrCameraUnavailable) {
					fmt.Fprintln(cmd.OutOrStdout(), "No camera available. Pick a file instead: letter-snap predict <image>")
					return nil
				}
				return err
			}
			state, err := wf.CaptureFrame(cmd.Context())
			if err != nil {
				return err
			}
			return printOutcome(cmd.OutOrStdout(), state)
		},
	}
}

// errPredictionFailed makes the process exit non-zero after the failure has
// been printed.
var errPredictionFailed = errors.New("prediction failed")

func printOutcome(out io.Writer, state workflow.State) error {
	switch s := state.(type) {
	case workflow.Succeeded:
		reliability := "low"
		if s.Result.HighConfidence() {
			reliability = "high"
		}
		fmt.Fprintf(out, "Detected letter: %s\n", s.Result.Label())
		fmt.Fprintf(out, "Confidence: %d%% (%s)\n", s.Result.Percent(), reliability)
		return nil
	case workflow.Failed:
		fmt.Fprintf(out, "Analysis failed: %s\n", s.Message)
		return errPredictionFailed
	default:
		return fmt.Errorf("unexpected state %s", state.Kind())
	}
}
