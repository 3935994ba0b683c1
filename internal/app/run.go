package app

import (
	"context"
	"fmt"
	"os"

	"github.com/specialistvlad/dripflow/internal/ctxlog"
	"github.com/specialistvlad/dripflow/internal/editorlink"
	"github.com/specialistvlad/dripflow/internal/session"
	"github.com/specialistvlad/dripflow/internal/submit"
)

// Run loads the flow, reports its validation result and drives the
// configured outer surfaces. It returns ErrFlowInvalid when the final
// validation result is not valid.
func (a *App) Run(ctx context.Context) error {
	ctx = a.withLogger(ctx)
	a.logger.Debug("App.Run method started.")

	if err := a.startHealthCheckServer(ctx); err != nil {
		return err
	}
	defer a.closeHealthCheckServer(ctx)

	g, desc, err := loadFlow(ctx, a.config.FlowPath)
	if err != nil {
		return fmt.Errorf("failed to load flow: %w", err)
	}
	a.logger.Info("Flow loaded.", "path", a.config.FlowPath, "nodes", g.Len())

	sess := session.New(ctx, g, a.engine, a.metrics)
	if a.config.DataPath != "" {
		d, err := describeData(a.config.DataPath)
		if err != nil {
			return err
		}
		sess.AttachData(ctx, d)
	} else if desc != nil {
		sess.AttachData(ctx, *desc)
	}

	reportW := a.outW
	if a.config.ConvertTo != "" {
		reportW = a.logW
	}
	if err := writeReport(reportW, a.config.ReportFormat, sess.Validation()); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if a.config.ConvertTo != "" {
		if err := a.convert(sess.Graph(), sess.Descriptor()); err != nil {
			return fmt.Errorf("failed to convert flow: %w", err)
		}
	}

	if a.config.SubmitURL != "" {
		if err := a.submit(ctx, sess); err != nil {
			return err
		}
	}

	if a.config.EditorURL != "" {
		if err := a.runEditor(ctx, sess); err != nil {
			return err
		}
	}

	a.logger.Debug("App.Run method finished.")
	if !sess.Validation().IsValid {
		return ErrFlowInvalid
	}
	return nil
}

// submit posts a valid flow to the campaign backend. Invalid flows are
// skipped; Run reports them through ErrFlowInvalid.
func (a *App) submit(ctx context.Context, sess *session.Session) error {
	logger := ctxlog.FromContext(ctx).With("url", a.config.SubmitURL)
	if !sess.Validation().IsValid {
		logger.Warn("Submission skipped: flow is invalid.")
		return nil
	}
	if a.config.DataPath == "" {
		return fmt.Errorf("submission needs the recipient data file")
	}
	desc := sess.Descriptor()
	content, err := os.ReadFile(a.config.DataPath)
	if err != nil {
		return fmt.Errorf("failed to read recipient data: %w", err)
	}

	req, err := submit.Build(sess.Graph(), sess.Validation(), submit.NewContactFile(*desc, content), submit.Options{
		Name: a.config.CampaignName,
	})
	if err != nil {
		a.metrics.RecordSubmission(false)
		return fmt.Errorf("failed to build campaign request: %w", err)
	}

	client := submit.NewClient(a.config.SubmitURL, submit.NewHTTPClient(a.config.SubmitTimeout))
	defer client.Close()

	resp, err := client.Submit(ctx, req)
	a.metrics.RecordSubmission(err == nil)
	if err != nil {
		logger.Error("Campaign submission failed.", "error", err)
		return fmt.Errorf("failed to submit campaign: %w", err)
	}
	logger.Info("Campaign submitted.", "campaign_id", resp.CampaignID, "message", resp.Message)
	fmt.Fprintf(a.outW, "Campaign %s submitted: %s\n", resp.CampaignID, resp.Message)
	return nil
}

// runEditor serves the live editor until ctx is cancelled.
func (a *App) runEditor(ctx context.Context, sess *session.Session) error {
	tr, err := editorlink.Dial(ctx, editorlink.Options{
		URL:       a.config.EditorURL,
		Namespace: a.config.EditorNamespace,
	})
	if err != nil {
		ctxlog.FromContext(ctx).Error("Editor link failed.", "error", err)
		return fmt.Errorf("failed to connect to editor: %w", err)
	}
	link := editorlink.New(ctx, sess, tr, a.metrics)
	return editorlink.Serve(ctx, link, tr)
}
