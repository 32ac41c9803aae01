package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/ayusman/handsign/internal/app"
	"github.com/ayusman/handsign/internal/detector"
	"github.com/ayusman/handsign/internal/gesture"
	"github.com/ayusman/handsign/internal/plugin"
	"github.com/ayusman/handsign/internal/server/api"
	"github.com/ayusman/handsign/internal/store"
)

// exitUnclassified is the exit status of classify when a hand was missing
// landmarks.
const exitUnclassified = 2

func (e *env) classifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "classify landmark JSON without a camera",
		ArgsUsage: "[FILE|-]",
		Description: `Reads {"points": [{"x":..,"y":..}, ...]} or {"hands": [{"points": [...]}, ...]}
from FILE or standard input and prints the classification of every hand.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  flagSchema,
				Usage: "landmark schema `VERSION` (overrides the document)",
			},
		},
		Action: func(c *cli.Context) error {
			var in io.Reader = c.App.Reader
			if name := c.Args().First(); name != "" && name != "-" {
				f, err := os.Open(name)
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			var req api.ClassifyRequest
			dec := json.NewDecoder(in)
			dec.DisallowUnknownFields()
			if err := dec.Decode(&req); err != nil {
				return fmt.Errorf("parse landmarks: %w", err)
			}
			switch {
			case c.IsSet(flagSchema):
				req.Schema = c.String(flagSchema)
			case req.Schema == "":
				req.Schema = e.cfg.Schema
			}

			schema, err := detector.LookupSchema(req.Schema)
			if err != nil {
				return err
			}
			poses := req.Poses()
			if len(poses) == 0 {
				return errors.New("no hands in input")
			}

			hands := app.ClassifyHands(gesture.NewClassifier(schema), poses, e.logger)

			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			err = enc.Encode(struct {
				Schema string           `json:"schema"`
				Hands  []app.HandResult `json:"hands"`
			}{schema.Version(), hands})
			if err != nil {
				return err
			}

			for _, h := range hands {
				if h.Err != nil {
					return cli.Exit(fmt.Sprintf("hand %d: %v", h.Hand, h.Err), exitUnclassified)
				}
			}
			return nil
		},
	}
}

func (e *env) gesturesCommand() *cli.Command {
	return &cli.Command{
		Name:  "gestures",
		Usage: "list the gesture vocabulary in rule order",
		Action: func(c *cli.Context) error {
			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RULE\tID\tLABEL\tCONDITION")
			for i, r := range gesture.Rules() {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", i+1, r.Gesture.ID(), r.Gesture, r.Name)
			}
			fmt.Fprintf(w, "-\t%s\t%s\t%s\n", gesture.Unknown.ID(), gesture.Unknown, "no rule matched")
			return w.Flush()
		},
	}
}

func (e *env) sessionsCommand() *cli.Command {
	return &cli.Command{
		Name:      "sessions",
		Usage:     "list recorded sessions, or summarize one",
		ArgsUsage: "[ID]",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  flagLimit,
				Value: 20,
				Usage: "show at most `N` sessions",
			},
		},
		Action: func(c *cli.Context) error {
			st, err := openStore(e.cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			if id := c.Args().First(); id != "" {
				return printSummary(c.App.Writer, st, id)
			}

			sessions, err := st.Sessions().List(c.Int(flagLimit))
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tMODE\tSCHEMA\tSTARTED\tDURATION")
			for _, s := range sessions {
				duration := "running"
				if s.EndedAt != nil {
					duration = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					s.ID, s.Mode, s.Schema, s.StartedAt.Local().Format(time.DateTime), duration)
			}
			return w.Flush()
		},
	}
}

func printSummary(out io.Writer, st *store.Store, id string) error {
	sess, err := st.Sessions().GetByID(id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("session %s not found", id)
	}
	if err != nil {
		return err
	}

	counts, err := st.Detections().CountByGesture(id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "session %s (%s, %s)\n", sess.ID, sess.Mode, sess.Schema)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GESTURE\tCOUNT")
	total := 0
	for _, gc := range counts {
		fmt.Fprintf(w, "%s\t%d\n", gc.Gesture, gc.Count)
		total += gc.Count
	}
	fmt.Fprintf(w, "total\t%d\n", total)
	return w.Flush()
}

func (e *env) pluginsCommand() *cli.Command {
	return &cli.Command{
		Name:  "plugins",
		Usage: "list installed plugins and their gesture bindings",
		Action: func(c *cli.Context) error {
			m := plugin.NewManager(e.cfg.Plugins.Dir)
			discoverErr := m.Discover()

			w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "PLUGIN\tVERSION\tGESTURE\tACTION")
			for _, p := range m.List() {
				for _, b := range p.Manifest.Bindings {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Manifest.Name, p.Manifest.Version, b.Gesture, b.Action)
				}
			}
			if err := w.Flush(); err != nil {
				return err
			}
			return discoverErr
		},
	}
}
