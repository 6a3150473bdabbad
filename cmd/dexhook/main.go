package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zboralski/dexhook/internal/bridge"
	"github.com/zboralski/dexhook/internal/dex"
	"github.com/zboralski/dexhook/internal/finder"
	"github.com/zboralski/dexhook/internal/hook"
	"github.com/zboralski/dexhook/internal/jvm"
	dlog "github.com/zboralski/dexhook/internal/log"
	"github.com/zboralski/dexhook/internal/plan"
	"github.com/zboralski/dexhook/internal/trace"
	"github.com/zboralski/dexhook/internal/ui/colorize"
)

var (
	verbose  bool
	quiet    bool
	dexFiles []string
	timeout  time.Duration

	loader *jvm.Loader
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "dexhook",
		Short: "Declare, install and exercise method hooks over DEX class tables",
		Long: `dexhook loads the class tables of one or more DEX files and hooks their
members through an in-process interception runtime.

Members are located with the same queries hook entries use: name, parameter
types, return type, modifiers, index and superclass depth. A YAML plan
declares hooks with JavaScript bodies, gives members implementations and
invokes them so before/after/replace behavior can be observed.

Examples:
  dexhook --dex classes.dex classes 'com.example.**'
  dexhook --dex classes.dex find com.example.Foo --name foo --params int
  dexhook --dex classes.dex run --plan hooks.yaml -v`,
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringArrayVar(&dexFiles, "dex", nil, "DEX file to load (repeatable)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose debug output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "quiet mode (summary only)")

	rootCmd.AddCommand(classesCmd(), findCmd(), runCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, colorize.Error(err.Error()))
		os.Exit(1)
	}
}

// setup initializes logging and loads every --dex file into one loader.
func setup(cmd *cobra.Command, args []string) error {
	dlog.Init(verbose)

	loader = jvm.NewLoader(nil)
	g, _ := errgroup.WithContext(cmd.Context())
	for _, path := range dexFiles {
		g.Go(func() error {
			f, err := dex.ReadFile(path, loader)
			if err != nil {
				return err
			}
			dlog.L.Debug("dex loaded",
				zap.String("file", f.Name),
				zap.String("version", f.Version),
				zap.Int("classes", len(f.Classes)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// Superclasses may live in a file read later.
	loader.Link()
	return nil
}

func classesCmd() *cobra.Command {
	var members bool
	cmd := &cobra.Command{
		Use:   "classes [pattern]",
		Short: "List loaded classes matching a glob",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern := ""
			if len(args) == 1 {
				pattern = args[0]
			}
			filter, err := newClassFilter(pattern)
			if err != nil {
				return err
			}
			classes := filter.Select(loader.Classes())
			for _, c := range classes {
				if quiet {
					continue
				}
				fmt.Println(colorize.Signature(c.String()))
				if members {
					printMembers(c)
				}
			}
			fmt.Printf("%s %s\n", colorize.Number(len(classes)), colorize.Detail("classes"))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&members, "members", "m", false, "list declared members")
	return cmd
}

func printMembers(c *jvm.Class) {
	for _, k := range c.Constructors() {
		fmt.Printf("  %s\n", colorize.Signature(k.String()))
	}
	for _, m := range c.Methods() {
		fmt.Printf("  %s\n", colorize.Signature(m.String()))
	}
	for _, f := range c.Fields() {
		fmt.Printf("  %s\n", colorize.Signature(f.String()))
	}
}

func findCmd() *cobra.Command {
	var (
		kind       string
		spec       plan.QuerySpec
		paramCount int
		index      int
		depth      int
	)
	cmd := &cobra.Command{
		Use:   "find <class>",
		Short: "Find members of a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("param-count") {
				spec.ParamCount = &paramCount
			}
			if cmd.Flags().Changed("index") {
				spec.Index = &index
			}
			if cmd.Flags().Changed("depth") {
				spec.Depth = &depth
			}

			var k jvm.MemberKind
			switch kind {
			case "method":
				k = jvm.KindMethod
			case "constructor":
				k = jvm.KindConstructor
			case "field":
				k = jvm.KindField
			default:
				return fmt.Errorf("unknown member kind %q", kind)
			}
			q, err := spec.Build(k)
			if err != nil {
				return err
			}

			res := finder.Default.Find(jvm.NewRef(args[0], loader), q)
			if err := res.Err(); err != nil {
				return err
			}
			for _, m := range res.Members() {
				fmt.Println(colorize.Signature(m.String()))
			}
			if !quiet {
				fmt.Printf("%s %s  %s\n",
					colorize.Number(res.Len()),
					colorize.Detail("members"),
					colorize.Detail(q.String()))
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVarP(&kind, "kind", "k", "method", "member kind: method, constructor or field")
	f.StringVar(&spec.Name, "name", "", "member name")
	f.StringSliceVar(&spec.Params, "params", nil, "parameter types, '*' matches any")
	f.BoolVar(&spec.EmptyParam, "empty-param", false, "match members without parameters")
	f.IntVar(&paramCount, "param-count", 0, "parameter count")
	f.StringVar(&spec.ReturnType, "return", "", "return or field type")
	f.StringSliceVar(&spec.Modifiers, "modifiers", nil, "required modifiers (public, static, ...)")
	f.IntVar(&index, "index", 0, "select the n-th match")
	f.BoolVar(&spec.Superclass, "superclass", false, "search superclasses when the class has no match")
	f.IntVar(&depth, "depth", 0, "superclass search depth")
	f.BoolVar(&spec.AllLevels, "all-levels", false, "collect matches from every superclass level")
	return cmd
}

func runCmd() *cobra.Command {
	var planPath string
	cmd := &cobra.Command{
		Use:   "run --plan <plan.yaml>",
		Short: "Install the hooks of a plan and perform its invocations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.Load(planPath)
			if err != nil {
				return err
			}
			return runPlan(cmd.Context(), p)
		},
	}
	cmd.Flags().StringVarP(&planPath, "plan", "p", "", "YAML hook plan")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "install and invoke deadline")
	_ = cmd.MarkFlagRequired("plan")
	return cmd
}

func runPlan(ctx context.Context, p *plan.Plan) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	hook.Configure(hook.Config{Debug: p.Debug || verbose})

	rec := trace.NewRecorder(trace.DefaultEnricher)
	rt := bridge.NewRuntime()
	rt.SetLogger(dlog.L)
	opts := []hook.Option{hook.WithLogger(eventLogger(dlog.L, rec))}
	if p.Host != "" {
		opts = append(opts, hook.WithHost(p.Host, 0))
	}
	reg := hook.NewRegistry(rt, opts...)

	if err := p.Implementations(rt, reg.Finder(), loader); err != nil {
		return err
	}
	if _, err := p.Apply(reg, loader); err != nil {
		return err
	}
	if err := reg.Wait(ctx); err != nil {
		return err
	}

	calls, err := p.Run(ctx, rt, reg.Finder(), loader)
	if !quiet {
		printEvents(rec.Events())
		printCalls(calls)
	}
	printSummary(reg, rec)
	return err
}

func printEvents(events []*trace.Event) {
	for _, e := range events {
		var b strings.Builder
		b.WriteString(colorize.Badge(string(e.Tags.Primary())))
		b.WriteString(" ")
		b.WriteString(colorize.Signature(e.Name))
		if e.Detail != "" {
			b.WriteString("  ")
			b.WriteString(colorize.Tag(e.Detail))
		}
		if len(e.Tags) > 1 {
			b.WriteString(" ")
			b.WriteString(colorize.Tag(strings.Join(e.Tags[1:].Strings(), " ")))
		}
		fmt.Println(b.String())
	}
}

func printCalls(calls []plan.Call) {
	if len(calls) == 0 {
		return
	}
	fmt.Println(colorize.Border("─────────────────────────────────────────"))
	for _, c := range calls {
		name := c.Invocation.Class + "." + c.Invocation.Method
		if c.Member != nil {
			name = c.Member.String()
		}
		if c.Err != nil {
			fmt.Printf("%s %s  %s\n", colorize.Badge("failed"), colorize.Signature(name), colorize.Error(c.Err.Error()))
			continue
		}
		fmt.Printf("%s %s %s %s\n",
			colorize.Badge("ok"),
			colorize.Signature(name),
			colorize.Detail("="),
			colorize.String(fmt.Sprintf("%#v", c.Result)))
	}
}

// eventLogger returns the hook category logger feeding rec.
func eventLogger(base *dlog.Logger, rec *trace.Recorder) *dlog.Logger {
	l := base.WithCategory("hook")
	l.SetOnEvent(rec.Record)
	return l
}

func printSummary(reg *hook.Registry, rec *trace.Recorder) {
	fmt.Print(colorize.Border("───────────────────────────────────────── "))
	fmt.Printf("%s %s  %s %s  %s %s\n",
		colorize.Number(reg.Count()), colorize.Detail("installed"),
		colorize.Number(rec.Count(trace.Failure)), colorize.Detail("failures"),
		colorize.Number(rec.Count(trace.Advisory)), colorize.Detail("advisories"))
}
