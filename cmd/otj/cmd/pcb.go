package cmd

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceSplit/internal/config"
	"github.com/OpenTraceLab/OpenTraceSplit/pkg/bus"
	"github.com/OpenTraceLab/OpenTraceSplit/pkg/kicad/pcb"
	"github.com/OpenTraceLab/OpenTraceSplit/pkg/kicad/sexp"
	"github.com/OpenTraceLab/OpenTraceSplit/pkg/units"
)

func newPCBCmd() *cobra.Command {
	pcbCmd := &cobra.Command{
		Use:   "pcb",
		Short: "KiCad PCB file operations",
		Long:  `Commands for working with KiCad PCB files (.kicad_pcb)`,
	}
	pcbCmd.AddCommand(newPCBNetsCmd())
	pcbCmd.AddCommand(newPCBSplitCmd())
	return pcbCmd
}

func newPCBNetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "nets <board_file> [net_name]",
		Short: "Show PCB net information",
		Long: `Display information about nets in a PCB file.

Without net_name: Lists all nets with pad/track/via counts
With net_name: Shows detailed information for that specific net`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runPCBNets,
	}
}

func runPCBNets(cmd *cobra.Command, args []string) error {
	board, err := pcb.ParseFile(args[0])
	if err != nil {
		return fmt.Errorf("error parsing board: %w", err)
	}

	if len(args) >= 2 {
		return showNetDetails(cmd.OutOrStdout(), board, args[1])
	}

	listAllNets(cmd.OutOrStdout(), board)
	return nil
}

func listAllNets(w io.Writer, board *pcb.Board) {
	stats := board.NetStats()
	printTitle(w, "Board: %d nets", len(stats))
	printInfo(w, "Copper layers: %s", strings.Join(board.CopperLayers(), ", "))

	rows := make([][]string, len(stats))
	for i, st := range stats {
		rows[i] = []string{
			st.Name,
			strconv.Itoa(st.Pads),
			strconv.Itoa(st.Tracks),
			strconv.Itoa(st.Vias),
		}
	}

	fmt.Fprintln(w, renderTable([]string{"Net Name", "Pads", "Tracks", "Vias"}, rows))
	if board.Arcs > 0 {
		printInfo(w, "%d arc tracks are not listed and are never split", board.Arcs)
	}
}

func showNetDetails(w io.Writer, board *pcb.Board, netName string) error {
	info := board.GetNetInfo(netName)
	if info == nil {
		return fmt.Errorf("net '%s' not found", netName)
	}

	printTitle(w, "Net: %s (number %d)", info.Net.Name, info.Net.Number)

	fmt.Fprintf(w, "\nPads (%d):\n", len(info.Pads))
	for _, ref := range info.Pads {
		fmt.Fprintf(w, "  %s pad %s: %s %s\n", ref.Reference, ref.Pad.Number, ref.Pad.Type, ref.Pad.Shape)
	}

	fmt.Fprintf(w, "\nTracks (%d):\n", len(info.Tracks))
	if len(info.Tracks) > 0 {
		rows := make([][]string, len(info.Tracks))
		for i, track := range info.Tracks {
			rows[i] = []string{
				strconv.Itoa(i + 1),
				track.Layer,
				sexp.FormatMM(track.Width),
				fmt.Sprintf("(%s, %s)", sexp.FormatMM(track.Start.X), sexp.FormatMM(track.Start.Y)),
				fmt.Sprintf("(%s, %s)", sexp.FormatMM(track.End.X), sexp.FormatMM(track.End.Y)),
			}
		}
		fmt.Fprintln(w, renderTable([]string{"#", "Layer", "Width mm", "Start mm", "End mm"}, rows))
	}

	fmt.Fprintf(w, "\nVias (%d):\n", len(info.Vias))
	for i, via := range info.Vias {
		fmt.Fprintf(w, "  Via %d: %s mm diameter, %s mm drill at (%s, %s)\n",
			i+1, sexp.FormatMM(via.Size), sexp.FormatMM(via.Drill),
			sexp.FormatMM(via.Position.X), sexp.FormatMM(via.Position.Y))
	}

	return nil
}

type splitOptions struct {
	net        string
	width      units.Length
	separation units.Length
	count      int
	groupName  string
	output     string
	inPlace    bool
	backup     bool
	dryRun     bool
	configPath string
}

func newPCBSplitCmd() *cobra.Command {
	defaults := config.DefaultConfig()
	opts := &splitOptions{
		width:      defaults.Split.Width,
		separation: defaults.Split.Separation,
		count:      defaults.Split.Count,
		groupName:  defaults.Split.GroupName,
	}

	cmd := &cobra.Command{
		Use:   "split <board_file>",
		Short: "Split the straight tracks of a net into parallel buses",
		Long: `Replaces every straight track segment of a net by --count parallel
segments of --width, spaced --separation apart and centred on the original
path. Each new set of segments is grouped.

Lengths accept a unit suffix (mm, mil, in, um, nm); bare numbers are
millimetres. Arc tracks and vias are left alone, and corners, junctions and
via connections are not adjusted: review them after splitting.

Settings may also come from a TOML file (--config); flags take precedence.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPCBSplit(cmd, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.net, "net", "n", "", "net whose tracks are split (required)")
	flags.VarP(&opts.width, "width", "w", "width of each new track")
	flags.VarP(&opts.separation, "separation", "s", "gap between neighbouring new tracks")
	flags.IntVarP(&opts.count, "count", "c", opts.count, "number of tracks per split")
	flags.StringVar(&opts.groupName, "group-name", opts.groupName, `name of each created group; "{net}" expands to the net name`)
	flags.StringVarP(&opts.output, "output", "o", "", "write the edited board to this file")
	flags.BoolVar(&opts.inPlace, "in-place", false, "overwrite the input board")
	flags.BoolVar(&opts.backup, "backup", false, "copy the input board aside before overwriting it")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "report what would change without writing anything")
	flags.StringVar(&opts.configPath, "config", "", "TOML settings file")
	_ = cmd.MarkFlagRequired("net")

	return cmd
}

func runPCBSplit(cmd *cobra.Command, opts *splitOptions, boardPath string) error {
	logger := loggerFromContext(cmd.Context())
	out := cmd.OutOrStdout()

	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	opts.override(cmd, cfg)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	if f := cmd.Flag("verbose"); f == nil || !f.Changed {
		logger.SetLevel(cfg.LogLevel())
	}

	target, err := outputPath(boardPath, opts, cfg)
	if err != nil {
		return err
	}

	board, err := pcb.ParseFile(boardPath)
	if err != nil {
		return fmt.Errorf("error parsing board: %w", err)
	}

	driver := bus.NewDriver(
		bus.WithLogger(logger),
		bus.WithDryRun(opts.dryRun),
		bus.WithGroupName(cfg.Split.GroupName),
	)
	summary, runErr := driver.Run(cmd.Context(), board, opts.net, cfg.Split.Bus())
	if summary == nil {
		return runErr
	}

	if summary.NoMatch() {
		printInfo(out, "No straight tracks found on net %q. Nothing to do.", opts.net)
		if board.GetNet(opts.net) == nil {
			printWarning(out, "net %q is not defined on this board; see 'otj pcb nets %s'", opts.net, boardPath)
		}
		if names := bus.NetNames(board.Segments()); len(names) > 0 {
			printInfo(out, "Nets with straight tracks: %s", strings.Join(names, ", "))
		}
		return nil
	}

	printSummary(out, summary)

	if opts.dryRun {
		printInfo(out, "Dry run: %s was not modified", boardPath)
		return runErr
	}
	if summary.Processed == 0 {
		printWarning(out, "No track was split; %s was not written", target)
		return runErr
	}

	if target == boardPath && cfg.Output.Backup {
		backup := boardPath + cfg.Output.BackupSuffix
		if err := pcb.CopyFile(boardPath, backup); err != nil {
			return fmt.Errorf("backup failed, board not written: %w", err)
		}
		printFile(out, backup)
	}
	if err := board.WriteFile(target); err != nil {
		return err
	}
	printSuccess(out, "Wrote %s", target)

	return runErr
}

// override copies explicitly set flags over cfg.
func (o *splitOptions) override(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("width") {
		cfg.Split.Width = o.width
	}
	if flags.Changed("separation") {
		cfg.Split.Separation = o.separation
	}
	if flags.Changed("count") {
		cfg.Split.Count = o.count
	}
	if flags.Changed("group-name") {
		cfg.Split.GroupName = o.groupName
	}
	if flags.Changed("in-place") {
		cfg.Output.InPlace = o.inPlace
	}
	if flags.Changed("backup") {
		cfg.Output.Backup = o.backup
	}
}

// outputPath decides where the edited board goes. A dry run writes nothing.
func outputPath(boardPath string, opts *splitOptions, cfg *config.Config) (string, error) {
	switch {
	case opts.dryRun:
		return "", nil
	case opts.output != "":
		return opts.output, nil
	case cfg.Output.InPlace:
		return boardPath, nil
	}
	return "", fmt.Errorf("no output selected: pass -o FILE, --in-place or --dry-run")
}

func printSummary(w io.Writer, s *bus.Summary) {
	printTitle(w, "Net %s: %d x %s tracks, %s apart",
		s.Net, s.Config.Count,
		units.Length(s.Config.Width), units.Length(s.Config.Separation))

	rows := [][]string{
		{"Segments selected", strconv.Itoa(s.Selected)},
		{"Processed", strconv.Itoa(s.Processed)},
		{"Created", strconv.Itoa(s.Created)},
		{"Failed", strconv.Itoa(s.Failed)},
	}
	codes := make([]string, 0, len(s.Failures))
	for code := range s.Failures {
		codes = append(codes, string(code))
	}
	sort.Strings(codes)
	for _, code := range codes {
		rows = append(rows, []string{"  " + code, strconv.Itoa(s.Failures[bus.Code(code)])})
	}
	fmt.Fprintln(w, renderTable([]string{"", "Count"}, rows))

	for _, r := range s.Results {
		if r.Err != nil {
			printError(w, "%v", r.Err)
		}
	}

	if s.Aborted {
		printWarning(w, "Interrupted after %d of %d segments; the rest were left unchanged", len(s.Results), s.Selected)
	}
	if s.Processed > 0 && !s.DryRun {
		printInfo(w, "Each new set of tracks has been grouped; select a group to edit it as one")
	}
	printWarning(w, "%s", bus.ContinuityWarning)
}
