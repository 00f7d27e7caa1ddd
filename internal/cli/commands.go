package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/fieldsync/internal/apiclient"
	"github.com/dmitrijs2005/fieldsync/internal/app"
	"github.com/dmitrijs2005/fieldsync/internal/fields"
)

func newSyncCmd(streams IO) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch members and update the field configuration",
		Long: `Fetch all members from the API, extract their fields, merge them into
the field configuration file and print a JSON summary with the analysis
report.`,
		DisableFlagParsing: true,
		RunE:               withApp(streams, runSync),
	}
}

func runSync(ctx context.Context, a *app.App, streams IO) error {
	res, err := a.Service.Sync(ctx)
	if err != nil {
		return err
	}
	return writeJSON(streams.Out, res)
}

func newReportCmd(streams IO) *cobra.Command {
	return &cobra.Command{
		Use:                "report",
		Short:              "Analyze the stored field configuration",
		DisableFlagParsing: true,
		RunE:               withApp(streams, runReport),
	}
}

func runReport(ctx context.Context, a *app.App, streams IO) error {
	r, err := a.Service.Report(ctx)
	if err != nil {
		return err
	}
	return writeJSON(streams.Out, r)
}

func newLabelsCmd(streams IO) *cobra.Command {
	return &cobra.Command{
		Use:                "labels",
		Short:              "List every configured field with its display label",
		DisableFlagParsing: true,
		RunE:               withApp(streams, runLabels),
	}
}

func runLabels(ctx context.Context, a *app.App, streams IO) error {
	c, labels, err := a.Service.Labels(ctx)
	if err != nil {
		return err
	}
	return renderLabels(streams.Out, c, labels)
}

// renderLabels prints one row per field. Source is "configured" for labels
// set by the user and "generated" otherwise.
func renderLabels(w io.Writer, c fields.Catalogue, labels map[string]string) error {
	table := tablewriter.NewWriter(w)
	table.Header("ID", "Type", "Area", "Label", "Source")
	for _, id := range c.IDs() {
		e := c[id]
		e.ID = id
		source := "generated"
		if e.HasRealLabel() {
			source = "configured"
		}
		if err := table.Append([]string{id, string(e.Type), string(e.Area), labels[id], source}); err != nil {
			return err
		}
	}
	return table.Render()
}

func newTokenSetCmd(streams IO) *cobra.Command {
	return &cobra.Command{
		Use:   "set",
		Short: "Store the API token encrypted in the key/value store",
		Long: `Read the API token without echo when run in a terminal, or from the
first line of standard input otherwise, and store it encrypted.`,
		DisableFlagParsing: true,
		RunE:               withApp(streams, runTokenSet),
	}
}

func runTokenSet(ctx context.Context, a *app.App, streams IO) error {
	token, err := ReadToken(streams.In, streams.Err)
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	if err := a.Tokens.Save(ctx, token); err != nil {
		return err
	}
	_, err = fmt.Fprintln(streams.Out, "token stored")
	return err
}

func newTokenCheckCmd(streams IO) *cobra.Command {
	return &cobra.Command{
		Use:                "check",
		Short:              "Verify the stored API token against the API",
		DisableFlagParsing: true,
		RunE:               withApp(streams, runTokenCheck),
	}
}

func runTokenCheck(ctx context.Context, a *app.App, streams IO) error {
	status, err := a.Service.CheckToken(ctx)
	if err != nil {
		return err
	}
	if !apiclient.IsSuccess(status) {
		return fmt.Errorf("token rejected: HTTP %d %s", status, http.StatusText(status))
	}
	_, err = fmt.Fprintf(streams.Out, "token ok (HTTP %d)\n", status)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
