package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/specialistvlad/dripflow/internal/app"
)

// Process exit codes.
const (
	ExitOK          = 0
	ExitRuntime     = 1
	ExitUsage       = 2
	ExitFlowInvalid = 3
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// ExitCode maps an error returned by the application to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	if errors.Is(err, app.ErrFlowInvalid) {
		return ExitFlowInvalid
	}
	return ExitRuntime
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("dripflow", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
dripflow - validates, converts and submits drip email campaign flows.

Usage:
  dripflow [options] [FLOW_PATH]

Arguments:
  FLOW_PATH
    Path to a .json flow snapshot, a single .hcl file, or a directory
    containing .hcl files.

Exit codes:
  0 valid flow, 1 runtime error, 2 usage error, 3 invalid flow.

Options:
`)
		flagSet.PrintDefaults()
	}

	flowFlag := flagSet.String("flow", "", "Path to the flow file or directory.")
	fFlag := flagSet.String("f", "", "Path to the flow file or directory (shorthand).")
	dataFlag := flagSet.String("data", "", "Path to the recipient CSV file to attach.")
	convertFlag := flagSet.String("convert-to", "", "Write the flow to stdout in another format. Options: 'json' or 'hcl'.")
	reportFlag := flagSet.String("report", "text", "Validation report format. Options: 'text' or 'json'.")
	feedersFlag := flagSet.String("condition-feeders", "chained", "Which steps may feed a condition. Options: 'chained' or 'strict'.")
	submitURLFlag := flagSet.String("submit-url", "", "Base URL of the campaign backend. Valid flows are submitted when set.")
	submitTimeoutFlag := flagSet.Duration("submit-timeout", 30*time.Second, "Timeout for the campaign submission.")
	campaignFlag := flagSet.String("campaign-name", "", "Name of the submitted campaign.")
	editorURLFlag := flagSet.String("editor-url", "", "socket.io URL of a live editor canvas to serve until interrupted.")
	editorNSFlag := flagSet.String("editor-namespace", "/", "socket.io namespace of the editor canvas.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check and metrics server. 0 is disabled.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "warn", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	path := ""
	if *flowFlag != "" {
		path = *flowFlag
	} else if *fFlag != "" {
		path = *fFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}
	slog.Debug("Flow path determined.", "path", path)

	if path == "" {
		slog.Debug("No flow path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	config, err := app.NewConfig(app.Config{
		FlowPath:         path,
		DataPath:         *dataFlag,
		ConvertTo:        strings.ToLower(*convertFlag),
		ReportFormat:     strings.ToLower(*reportFlag),
		ConditionFeeders: strings.ToLower(*feedersFlag),
		SubmitURL:        *submitURLFlag,
		SubmitTimeout:    *submitTimeoutFlag,
		CampaignName:     *campaignFlag,
		EditorURL:        *editorURLFlag,
		EditorNamespace:  *editorNSFlag,
		LogFormat:        strings.ToLower(*logFormatFlag),
		LogLevel:         strings.ToLower(*logLevelFlag),
		HealthcheckPort:  *healthPortFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
