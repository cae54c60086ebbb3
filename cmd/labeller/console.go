package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kinetrace/labeller/internal/cursor"
	"github.com/kinetrace/labeller/internal/session"
)

// runConsole is the default runner: a line-oriented console for working a
// session without the graphical frontend. One command per line; the key
// bindings mirror the annotation UI.
func runConsole(sess *session.Session) error {
	return consoleLoop(sess, os.Stdin, os.Stdout)
}

func consoleLoop(sess *session.Session, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "commands: a/d landmark, z/c event, -/+ frame, * camera, mark X Y, sib, ls, q")
	printPosition(sess, out)

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "q" || line == "quit" {
			return nil
		}

		if err := runCommand(sess, out, line); err != nil {
			switch {
			case errors.Is(err, session.ErrBusy):
				fmt.Fprintln(out, "busy, try again")
			case errors.Is(err, cursor.ErrExhausted):
				fmt.Fprintln(out, "no further labelable position")
			default:
				return err
			}
		}
		printPosition(sess, out)
	}
	return scanner.Err()
}

// axis key bindings, matching the annotation UI
var navKeys = map[string]struct {
	axis  cursor.Axis
	delta int
}{
	"a": {cursor.AxisLandmark, -1},
	"d": {cursor.AxisLandmark, +1},
	"z": {cursor.AxisEvent, -1},
	"c": {cursor.AxisEvent, +1},
	"-": {cursor.AxisFrame, -1},
	"+": {cursor.AxisFrame, +1},
	"*": {cursor.AxisCamera, +1},
}

func runCommand(sess *session.Session, out io.Writer, line string) error {
	if nav, ok := navKeys[line]; ok {
		return sess.Navigate(nav.axis, nav.delta)
	}

	fields := strings.Fields(line)
	switch fields[0] {
	case "mark":
		if len(fields) != 3 {
			fmt.Fprintln(out, "usage: mark X Y")
			return nil
		}
		x, errX := strconv.ParseFloat(fields[1], 64)
		y, errY := strconv.ParseFloat(fields[2], 64)
		if errX != nil || errY != nil {
			fmt.Fprintln(out, "usage: mark X Y")
			return nil
		}
		marker, err := sess.Commit(x, y)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "saved %s at (%.2f, %.2f)\n", marker.Landmark, marker.X, marker.Y)
		return nil

	case "sib":
		siblings, err := sess.Siblings()
		if err != nil {
			return err
		}
		for _, dir := range []string{"prev", "next"} {
			if m, ok := siblings[dir]; ok {
				fmt.Fprintf(out, "%s: %s frame %d at (%.2f, %.2f)\n", dir, m.Event, m.RelativeFrame, m.X, m.Y)
			} else {
				fmt.Fprintf(out, "%s: none\n", dir)
			}
		}
		return nil

	case "ls":
		for landmark, m := range sess.FrameMarkers() {
			fmt.Fprintf(out, "%s: (%.2f, %.2f)\n", landmark, m.X, m.Y)
		}
		return nil
	}

	fmt.Fprintf(out, "unknown command %q\n", line)
	return nil
}

func printPosition(sess *session.Session, out io.Writer) {
	pos, err := sess.Position()
	if err != nil {
		fmt.Fprintf(out, "position unavailable: %s\n", err)
		return
	}
	marked := " "
	if _, ok := sess.CurrentMarker(); ok {
		marked = "*"
	}
	fmt.Fprintf(out, "[%s] %s/%d %s frame %+d cam %s landmark %s\n",
		marked, pos.SubjectID, pos.TrialID, pos.Event, pos.RelativeFrame, pos.CamID, pos.Landmark)
}
