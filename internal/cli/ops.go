package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/weave/internal/engine"
)

// OpsOptions holds flags for the ops command.
type OpsOptions struct {
	*RootOptions
	Engine EngineFlags
}

// OperationInfo describes a registered operation and the rules that
// apply to it, in dispatch order.
type OperationInfo struct {
	Name      string     `json:"name"`
	Group     string     `json:"group"`
	Signature string     `json:"signature"`
	Tags      []string   `json:"tags,omitempty"`
	Rules     []RuleInfo `json:"rules"`
}

// RuleInfo describes one matching rule.
type RuleInfo struct {
	ID       string   `json:"id"`
	Priority int      `json:"priority"`
	Pointcut string   `json:"pointcut"`
	Policy   string   `json:"policy,omitempty"`
	Advice   []string `json:"advice"` // kind:name
}

// NewOpsCommand creates the ops command.
func NewOpsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OpsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ops",
		Short: "List operations and the rules matching each",
		Long: `List every registered operation with its signature and the rules whose
pointcut matches it, ordered by priority then registration.

Examples:
  weave ops
  weave ops --aspects ./aspects --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOps(opts, cmd)
		},
	}

	opts.Engine.register(cmd)

	return cmd
}

func runOps(opts *OpsOptions, cmd *cobra.Command) error {
	if err := opts.ensure(cmd); err != nil {
		return err
	}

	d, err := buildDemo(opts.RootOptions, &opts.Engine)
	if err != nil {
		return err
	}

	infos := describeOperations(d.Engine)

	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
		return formatter.Success(infos)
	}
	writeOpsText(cmd.OutOrStdout(), infos)
	return nil
}

func describeOperations(e *engine.Engine) []OperationInfo {
	snap := e.Rules().Snapshot()
	ops := e.Registry().Operations()

	infos := make([]OperationInfo, 0, len(ops))
	for _, op := range ops {
		info := OperationInfo{
			Name:      op.Name,
			Group:     op.Group,
			Signature: op.Signature(),
			Tags:      op.Tags,
			Rules:     []RuleInfo{},
		}
		for r := range snap.Matching(op) {
			ri := RuleInfo{
				ID:       r.ID,
				Priority: r.Priority,
				Pointcut: r.PointcutString(),
				Policy:   string(r.Policy),
				Advice:   make([]string, len(r.Advice)),
			}
			for i, a := range r.Advice {
				ri.Advice[i] = string(a.Kind) + ":" + a.Name
			}
			info.Rules = append(info.Rules, ri)
		}
		infos = append(infos, info)
	}
	return infos
}

func writeOpsText(w io.Writer, infos []OperationInfo) {
	for _, info := range infos {
		fmt.Fprintf(w, "%s", info.Signature)
		if len(info.Tags) > 0 {
			fmt.Fprintf(w, " [%s]", strings.Join(info.Tags, ", "))
		}
		fmt.Fprintln(w)
		if len(info.Rules) == 0 {
			fmt.Fprintln(w, "  (no rules)")
		}
		for _, r := range info.Rules {
			fmt.Fprintf(w, "  %d %s %s", r.Priority, r.ID, r.Pointcut)
			if r.Policy != "" {
				fmt.Fprintf(w, " policy=%s", r.Policy)
			}
			fmt.Fprintf(w, " -> %s\n", strings.Join(r.Advice, ", "))
		}
	}
}
