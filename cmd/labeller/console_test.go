package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinetrace/labeller/internal/catalog"
	"github.com/kinetrace/labeller/internal/database"
	"github.com/kinetrace/labeller/internal/logging"
	"github.com/kinetrace/labeller/internal/session"
	"github.com/kinetrace/labeller/internal/store"
)

func newConsoleSession(t *testing.T) *session.Session {
	t.Helper()

	csv := "input_file;frame_file;subject_id;throw_id;cam_id;event_name;rel_frame;frame\n" +
		"in.mp4;f.png;S101;1;oe;bltd0;-8;22\n" +
		"in.mp4;f.png;S101;1;ot;bltd0;-8;22\n" +
		"in.mp4;f.png;S101;1;oe;bltd0;-7;23\n" +
		"in.mp4;f.png;S101;1;ot;bltd0;-7;23\n"
	path := filepath.Join(t.TempDir(), "framelog.csv")
	require.NoError(t, os.WriteFile(path, []byte(csv), 0644))
	cat, err := catalog.Load(path)
	require.NoError(t, err)

	db, err := database.GetSqliteDB("")
	require.NoError(t, err)
	manager := database.NewManager(logging.NewZerolog(io.Discard, "error"))
	manager.DB = db
	require.NoError(t, manager.Setup())

	sess, err := session.New(session.Config{
		Subject: "S101",
		Trial:   1,
		Store:   store.New(db),
		Catalog: cat,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return sess
}

func TestConsoleLoop_MarkAndNavigate(t *testing.T) {
	sess := newConsoleSession(t)

	in := strings.NewReader("mark 101.56 90.2\n-\nsib\nq\n")
	var out strings.Builder
	require.NoError(t, consoleLoop(sess, in, &out))

	assert.Contains(t, out.String(), "saved RElbow at (101.56, 90.20)")
	assert.Contains(t, out.String(), "frame -8")
	// after "-" the cursor is back on the committed frame
	assert.Contains(t, out.String(), "[*] S101/1 bltd0 frame -8")
	assert.Contains(t, out.String(), "next: none")
}

func TestConsoleLoop_UnknownCommand(t *testing.T) {
	sess := newConsoleSession(t)

	in := strings.NewReader("bogus\nq\n")
	var out strings.Builder
	require.NoError(t, consoleLoop(sess, in, &out))
	assert.Contains(t, out.String(), `unknown command "bogus"`)
}

func TestConsoleLoop_EOFEndsSession(t *testing.T) {
	sess := newConsoleSession(t)
	var out strings.Builder
	require.NoError(t, consoleLoop(sess, strings.NewReader(""), &out))
}
