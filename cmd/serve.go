package cmd

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/ohler55/ojg/oj"
	"github.com/spf13/cobra"

	"github.com/roadsight/vannot/internal/session"
	"github.com/roadsight/vannot/internal/store"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose the review session as MCP tools over stdio",
	Long: `Serve runs a Model Context Protocol server so an agent can drive the
same session controller the interactive TUI uses: navigate samples, edit
attributes, and verify records. One session, one tool call at a time.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := newStore(cfg)
		if err != nil {
			return err
		}
		sess, err := session.New(st, newLogger())
		if err != nil {
			return err
		}

		srv := newToolServer(sess, st)
		if err := server.ServeStdio(srv); err != nil {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	},
}

// toolServer serializes tool calls onto the single-threaded session.
type toolServer struct {
	mu   sync.Mutex
	sess *session.Session
	st   *store.Store
}

func newToolServer(sess *session.Session, st *store.Store) *server.MCPServer {
	ts := &toolServer{sess: sess, st: st}

	srv := server.NewMCPServer("vannot", version,
		server.WithToolCapabilities(false),
		server.WithInstructions("Vehicle attribute annotation session. Use list_samples to see the corpus, goto_sample to select, set_attribute to annotate, and verify_sample to finalize."),
	)

	srv.AddTool(mcp.NewTool("list_samples",
		mcp.WithDescription("List sample identifiers with their verification state."),
		mcp.WithString("filter", mcp.Description("Partition to list: all, verified, or pending. Defaults to all.")),
	), ts.listSamples)

	srv.AddTool(mcp.NewTool("get_current",
		mcp.WithDescription("Return the selected sample's working copy, diagnostics, and verification state."),
	), ts.getCurrent)

	srv.AddTool(mcp.NewTool("goto_sample",
		mcp.WithDescription("Select a sample by 1-based index; pending edits on the previous sample are saved first."),
		mcp.WithNumber("index", mcp.Required(), mcp.Description("1-based index into the active sample list.")),
	), ts.gotoSample)

	srv.AddTool(mcp.NewTool("set_attribute",
		mcp.WithDescription("Set an attribute on the working copy. Non-standard values are accepted with an advisory warning; an empty value removes the attribute (metadata keys excepted)."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Attribute name, e.g. brand_name.")),
		mcp.WithString("value", mcp.Description("New value; empty removes the attribute.")),
	), ts.setAttribute)

	srv.AddTool(mcp.NewTool("save_changes",
		mcp.WithDescription("Record pending edits for the selected sample."),
	), ts.simple(func(s *session.Session) (string, error) { return s.Save() }))

	srv.AddTool(mcp.NewTool("undo_changes",
		mcp.WithDescription("Restore the selected sample from its pre-edit snapshot."),
	), ts.simple(func(s *session.Session) (string, error) { return s.Undo() }))

	srv.AddTool(mcp.NewTool("reset_changes",
		mcp.WithDescription("Discard unsaved edits and reload the on-disk original."),
	), ts.simple(func(s *session.Session) (string, error) { return s.Reset() }))

	srv.AddTool(mcp.NewTool("verify_sample",
		mcp.WithDescription("Mark the selected sample verified and write its output document."),
	), ts.simple(func(s *session.Session) (string, error) { return s.Verify() }))

	srv.AddTool(mcp.NewTool("unverify_sample",
		mcp.WithDescription("Revoke verification and delete the sample's output document."),
	), ts.simple(func(s *session.Session) (string, error) { return s.Unverify() }))

	srv.AddTool(mcp.NewTool("filter_samples",
		mcp.WithDescription("Restrict the active list to a ledger partition: all, verified, or pending."),
		mcp.WithString("mode", mcp.Required(), mcp.Description("all, verified, or pending.")),
	), ts.filterSamples)

	srv.AddTool(mcp.NewTool("get_stats",
		mcp.WithDescription("Return verification progress counts."),
	), ts.getStats)

	return srv
}

func (ts *toolServer) listSamples(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	mode, err := parseFilter(req.GetString("filter", "all"))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ids, err := ts.st.List()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ledger, err := ts.st.LoadLedger()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var b strings.Builder
	for _, id := range ids {
		verified := ledger.IsVerified(id)
		switch {
		case mode == session.FilterVerified && !verified:
			continue
		case mode == session.FilterPending && verified:
			continue
		}
		state := "pending"
		if verified {
			state = "verified"
		}
		fmt.Fprintf(&b, "%s\t%s\n", id, state)
	}
	if b.Len() == 0 {
		return mcp.NewToolResultText("no samples in partition " + mode.String()), nil
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (ts *toolServer) getCurrent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if _, ok := ts.sess.CurrentID(); !ok {
		return mcp.NewToolResultError(session.ErrNoSelection.Error()), nil
	}

	var b strings.Builder
	b.WriteString(ts.sess.StatusLine())
	fmt.Fprintf(&b, "\nverified: %v\ndirty: %v\n", ts.sess.Verified(), ts.sess.Dirty())
	b.WriteString("\nattributes:\n")
	b.WriteString(oj.JSON(ts.sess.Working(), &oj.Options{Indent: 2, Sort: true}))
	b.WriteString("\n")
	if issues := ts.sess.Issues(); len(issues) > 0 {
		b.WriteString("\nissues:\n")
		for _, issue := range issues {
			fmt.Fprintf(&b, "- %s\n", issue)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}

func (ts *toolServer) gotoSample(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	idx, err := req.RequireInt("index")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, err := ts.sess.Select(idx - 1)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(status), nil
}

func (ts *toolServer) setAttribute(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	name, err := req.RequireString("name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, err := ts.sess.Edit(name, req.GetString("value", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(status), nil
}

func (ts *toolServer) filterSamples(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	modeStr, err := req.RequireString("mode")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	mode, err := parseFilter(modeStr)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	status, err := ts.sess.Filter(mode)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(status), nil
}

func (ts *toolServer) getStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	stats, err := ts.sess.Stats()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("total: %d\nverified: %d (%.2f%%)\npending: %d",
		stats.Total, stats.Verified, stats.Percent, stats.Pending)), nil
}

// simple wraps a session operation that takes no arguments.
func (ts *toolServer) simple(op func(*session.Session) (string, error)) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ts.mu.Lock()
		defer ts.mu.Unlock()

		status, err := op(ts.sess)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(status), nil
	}
}

func parseFilter(s string) (session.FilterMode, error) {
	switch s {
	case "all", "":
		return session.FilterAll, nil
	case "verified":
		return session.FilterVerified, nil
	case "pending":
		return session.FilterPending, nil
	default:
		return session.FilterAll, fmt.Errorf("unknown filter %q (want all, verified, or pending)", s)
	}
}
