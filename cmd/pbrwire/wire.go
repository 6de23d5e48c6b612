package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pbr-autowire/internal/autowire"
	"pbr-autowire/internal/graph"
	"pbr-autowire/internal/metrics"
	"pbr-autowire/internal/pbr"
	"pbr-autowire/internal/texture"
)

// docFlags are shared by every command that edits one graph document.
type docFlags struct {
	shader string
	output string
	dryRun bool
	asJSON bool
}

func (f *docFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.shader, "shader", "", "target shader node ID (default: first target shader in the graph)")
	cmd.Flags().StringVarP(&f.output, "output", "o", "", "write the result here instead of over the input")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "do not write the document")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the summary as JSON")
}

// session is one loaded document ready to be wired.
type session struct {
	path  string
	doc   *graph.Document
	host  *graph.Memory
	wirer *autowire.Wirer
}

func (a *app) open(path string) (*session, error) {
	w, err := a.wirer(nil)
	if err != nil {
		return nil, err
	}
	doc, err := graph.ReadDocument(path)
	if err != nil {
		return nil, err
	}
	host, err := graph.LoadMemory(doc, w.Profile().Catalog(), a.logger)
	if err != nil {
		return nil, err
	}
	return &session{path: path, doc: doc, host: host, wirer: w}, nil
}

// target returns the shader named by the flag, the first target shader in
// the graph, or a newly created one when create is set.
func (s *session) target(id string, create bool) (graph.NodeID, error) {
	if id != "" {
		return graph.NodeID(id), nil
	}
	snap, err := s.host.Snapshot()
	if err != nil {
		return "", err
	}
	if found, ok := s.wirer.FindTarget(snap); ok {
		return found, nil
	}
	if !create {
		return "", fmt.Errorf("%s: no %s shader in the graph", s.path, s.wirer.Profile().Shader.Name)
	}
	return s.wirer.CreateTarget(s.host)
}

func (s *session) finish(cmd *cobra.Command, f *docFlags, sum *autowire.Summary) error {
	if !f.dryRun && sum.Changed() {
		out := f.output
		if out == "" {
			out = s.path
		}
		if err := graph.WriteDocument(out, s.host.Document(s.doc.Material)); err != nil {
			return err
		}
	}
	return printSummary(cmd.OutOrStdout(), sum, f.asJSON)
}

func newBuildCmd(a *app) *cobra.Command {
	var (
		f   docFlags
		dir string
	)
	cmd := &cobra.Command{
		Use:   "build DOC [IMAGE...]",
		Short: "Create texture nodes for image files and wire them into the shader",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(args[0])
			if err != nil {
				return err
			}
			sources := a.describe(dir, args[1:])
			if len(sources) == 0 {
				return fmt.Errorf("no textures given; pass image paths or --dir")
			}
			target, err := s.target(f.shader, true)
			if err != nil {
				return err
			}
			sum, err := s.wirer.BuildFromTextures(s.host, target, sources)
			if err != nil {
				return err
			}
			return s.finish(cmd, &f, sum)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&dir, "dir", "", "use every image under this directory")
	return cmd
}

// describe probes the given images and the images under dir. Unreadable
// files are still offered by name.
func (a *app) describe(dir string, paths []string) []texture.Source {
	cache := texture.NewCache()
	var sources []texture.Source
	if dir != "" {
		found, errs := texture.Scan(cache, dir)
		for _, err := range errs {
			a.logger.Warn("Texture header unreadable", zap.Error(err))
		}
		sources = append(sources, found...)
	}
	for _, p := range paths {
		src, err := texture.Describe(cache, p)
		if err != nil {
			a.logger.Warn("Texture header unreadable", zap.String("path", p), zap.Error(err))
		}
		sources = append(sources, src)
	}
	a.logger.Debug("Textures probed", zap.Int("sources", len(sources)), zap.Int("headers", cache.Len()))
	return sources
}

func newConnectCmd(a *app) *cobra.Command {
	var (
		f          docFlags
		channel    string
		textureDir string
	)
	cmd := &cobra.Command{
		Use:   "connect DOC IMAGE",
		Short: "Wire a single texture, optionally forcing its channel",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			force := pbr.Unknown
			if channel != "" {
				var err error
				if force, err = pbr.Parse(channel); err != nil {
					return err
				}
			}
			image := args[1]
			if textureDir != "" {
				if _, err := os.Stat(image); err != nil {
					idx := texture.BuildIndex(textureDir)
					resolved, ok := idx.ResolvePath(image)
					if !ok {
						return fmt.Errorf("texture %q not found under %s (%d textures indexed)", image, textureDir, idx.Len())
					}
					image = resolved
				}
			}

			s, err := a.open(args[0])
			if err != nil {
				return err
			}
			target, err := s.target(f.shader, true)
			if err != nil {
				return err
			}
			src := a.describe("", []string{image})[0]
			sum, err := s.wirer.ConnectOne(s.host, target, src, force)
			if err != nil {
				return err
			}
			return s.finish(cmd, &f, sum)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&channel, "channel", "", "force the channel instead of classifying the name")
	cmd.Flags().StringVar(&textureDir, "texture-dir", "", "look IMAGE up by name under this directory")
	return cmd
}

func newConvertCmd(a *app) *cobra.Command {
	var (
		f      docFlags
		source string
	)
	cmd := &cobra.Command{
		Use:   "convert DOC",
		Short: "Rewire the textures of an existing material into the target shader",
		Long: "Reuses the texture nodes feeding the source shader and wires them into the\n" +
			"target shader, creating one when the graph has none. Without --source, every\n" +
			"texture node in the graph is connected to the target shader.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(args[0])
			if err != nil {
				return err
			}
			target, err := s.target(f.shader, true)
			if err != nil {
				return err
			}
			var sum *autowire.Summary
			if source == "" {
				sum, err = s.wirer.ConnectExisting(s.host, target)
			} else {
				sum, err = s.wirer.ConvertExistingMaterial(s.host, graph.NodeID(source), target)
			}
			if err != nil {
				return err
			}
			return s.finish(cmd, &f, sum)
		},
	}
	f.register(cmd)
	cmd.Flags().StringVar(&source, "source", "", "node ID of the shader to convert from")
	return cmd
}

type textureView struct {
	Node     graph.NodeID `json:"node"`
	Image    string       `json:"image,omitempty"`
	Channel  pbr.Channel  `json:"channel"`
	Keyed    bool         `json:"keyed"`
	Upstream bool         `json:"upstream"`
	Linked   bool         `json:"linked"`
}

type inspectionView struct {
	Shader        graph.NodeID            `json:"shader"`
	Textures      []textureView           `json:"textures"`
	Intermediates map[string]graph.NodeID `json:"intermediates"`
}

func newInspectCmd(a *app) *cobra.Command {
	var (
		shaderID string
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "inspect DOC",
		Short: "Show what the wiring core sees in a graph document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(args[0])
			if err != nil {
				return err
			}
			target, err := s.target(shaderID, false)
			if err != nil {
				return err
			}
			in, err := s.wirer.Inspect(s.host, target)
			if err != nil {
				return err
			}

			view := inspectionView{Shader: in.Shader.ID, Intermediates: map[string]graph.NodeID{}}
			for _, t := range in.Textures {
				view.Textures = append(view.Textures, textureView{
					Node:     t.Node.ID,
					Image:    t.Node.Image,
					Channel:  t.Channel,
					Keyed:    t.Keyed,
					Upstream: t.Upstream,
					Linked:   t.Linked,
				})
			}
			for purpose, n := range in.Intermediates {
				view.Intermediates[purpose] = n.ID
			}

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			fmt.Fprintf(w, "Shader: %s (%s)\n", in.Shader.ID, in.Shader.Type)
			tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NODE\tIMAGE\tCHANNEL\tKEYED\tUPSTREAM\tLINKED")
			for _, t := range view.Textures {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%v\t%v\n", t.Node, t.Image, t.Channel, t.Keyed, t.Upstream, t.Linked)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			purposes := make([]string, 0, len(view.Intermediates))
			for p := range view.Intermediates {
				purposes = append(purposes, p)
			}
			sort.Strings(purposes)
			for _, p := range purposes {
				fmt.Fprintf(w, "Reusable %s: %s\n", p, view.Intermediates[p])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&shaderID, "shader", "", "target shader node ID (default: first target shader in the graph)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printSummary(w io.Writer, sum *autowire.Summary, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	fmt.Fprintf(w, "Shader: %s\n", sum.Target)
	fmt.Fprintf(w, "Operations: %d planned, %d applied, %d already in place\n", sum.Planned, sum.Applied, sum.NoOps)
	keys := make([]string, 0, len(sum.Created))
	for k := range sum.Created {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "  created %-18s %s\n", k, sum.Created[k])
	}
	for _, wd := range sum.Wired {
		fmt.Fprintf(w, "  wired   %-18s %s\n", wd.Channel, wd.Source.Name())
	}
	for _, input := range sum.Transferred {
		fmt.Fprintf(w, "  value   %s\n", input)
	}
	for _, sk := range sum.Skipped {
		line := fmt.Sprintf("  skipped %-18s %s", sk.Source.Name(), sk.Reason)
		if sk.Detail != "" {
			line += " (" + sk.Detail + ")"
		}
		fmt.Fprintln(w, line)
	}
	for _, f := range sum.Failures {
		fmt.Fprintf(w, "  failed  %s: %s\n", f.Op, f.Error)
	}
	if !sum.Changed() {
		fmt.Fprintln(w, "Nothing to change.")
	}
	return nil
}

// metricsFor returns a recorder when metrics are to be written.
func metricsFor(path string) *metrics.Recorder {
	if path == "" {
		return nil
	}
	return metrics.NewRecorder()
}
