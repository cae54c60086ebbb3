package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const logHeader = "input_file;frame_file;subject_id;throw_id;cam_id;event_name;rel_frame;frame\n"

type logRow struct {
	subject  string
	trial    int
	cam      string
	event    string
	relFrame int
	absFrame uint
}

func writeLog(t *testing.T, rows []logRow) string {
	t.Helper()

	content := logHeader
	for _, r := range rows {
		content += fmt.Sprintf("in.mp4;f.png;%s;%d;%s;%s;%d;%d\n",
			r.subject, r.trial, r.cam, r.event, r.relFrame, r.absFrame)
	}

	path := filepath.Join(t.TempDir(), "framelog.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func loadFixture(t *testing.T, rows []logRow) *Catalog {
	t.Helper()
	c, err := Load(writeLog(t, rows))
	require.NoError(t, err)
	return c
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.csv"))
	require.Error(t, err)
}

func TestLoad_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(path, []byte("subject_id;throw_id\nS1;1\n"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cam_id")
}

func TestLoad_BadRelFrame(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	content := logHeader + "in.mp4;f.png;S101;1;oe;rltd;abc;10\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rel_frame")
}

func TestEvents_CanonicalOrder(t *testing.T) {
	c := loadFixture(t, []logRow{
		{"S101", 1, "oe", "release", 0, 40},
		{"S101", 1, "oe", "unknownX", 0, 50},
		{"S101", 1, "oe", "rltd", 0, 10},
		{"S101", 1, "oe", "bltd", 0, 30},
	})

	events, err := c.Events("S101", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"rltd", "bltd", "release", "unknownX"}, events)
}

func TestEvents_UnknownEventsKeepSourceOrder(t *testing.T) {
	c := loadFixture(t, []logRow{
		{"S101", 1, "oe", "zebra", 0, 10},
		{"S101", 1, "oe", "alpha", 0, 20},
		{"S101", 1, "oe", "rltd", 0, 5},
	})

	events, err := c.Events("S101", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"rltd", "zebra", "alpha"}, events)
}

func TestEvents_UnknownSubject(t *testing.T) {
	c := loadFixture(t, []logRow{{"S101", 1, "oe", "rltd", 0, 10}})

	_, err := c.Events("S999", 1)
	require.ErrorIs(t, err, ErrUnknownSubject)

	_, err = c.Events("S101", 99)
	require.ErrorIs(t, err, ErrUnknownTrial)
}

func TestRelativeFrames_SortedAndFilteredByCamera(t *testing.T) {
	c := loadFixture(t, []logRow{
		{"S101", 1, "oe", "rltd", 2, 12},
		{"S101", 1, "oe", "rltd", -3, 7},
		{"S101", 1, "oe", "rltd", 0, 10},
		{"S101", 1, "ot", "rltd", 5, 15},
	})

	frames, err := c.RelativeFrames("S101", 1, "rltd", "oe")
	require.NoError(t, err)
	assert.Equal(t, []int{-3, 0, 2}, frames)

	frames, err = c.RelativeFrames("S101", 1, "rltd", "ot")
	require.NoError(t, err)
	assert.Equal(t, []int{5}, frames)
}

func TestRelativeFrames_DefaultCameraIsFirstInSourceOrder(t *testing.T) {
	c := loadFixture(t, []logRow{
		{"S101", 1, "ot", "rltd", 1, 11},
		{"S101", 1, "oe", "rltd", 2, 12},
	})

	// first row of the event is camera ot, so that is the default
	frames, err := c.RelativeFrames("S101", 1, "rltd", "")
	require.NoError(t, err)
	assert.Equal(t, []int{1}, frames)
}

func TestRelativeFrames_UnknownEventIsEmpty(t *testing.T) {
	c := loadFixture(t, []logRow{{"S101", 1, "oe", "rltd", 0, 10}})

	frames, err := c.RelativeFrames("S101", 1, "bltd", "oe")
	require.NoError(t, err)
	assert.Empty(t, frames)
}

func TestCameras_FirstAppearanceOrder(t *testing.T) {
	c := loadFixture(t, []logRow{
		{"S101", 1, "ot", "rltd", 0, 10},
		{"S101", 1, "oe", "rltd", 0, 10},
		{"S101", 1, "ot", "bltd", 0, 20},
	})
	assert.Equal(t, []string{"ot", "oe"}, c.Cameras())
}

func TestSubjectsAndTrials(t *testing.T) {
	c := loadFixture(t, []logRow{
		{"S102", 3, "oe", "rltd", 0, 10},
		{"S101", 2, "oe", "rltd", 0, 10},
		{"S101", 1, "oe", "rltd", 0, 10},
	})

	assert.Equal(t, []string{"S101", "S102"}, c.Subjects())

	trials, err := c.Trials("S101")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, trials)
}

func TestResolveFrame_PathsPerCamera(t *testing.T) {
	path := writeLog(t, []logRow{
		{"S101", 1, "oe", "bltd0", -8, 22},
		{"S101", 1, "ot", "bltd0", -8, 22},
		{"S101", 1, "oe", "bltd0", 3, 33},
	})
	c, err := Load(path)
	require.NoError(t, err)

	img, ok := c.ResolveFrame("S101", 1, "bltd0", -8)
	require.True(t, ok)
	assert.Equal(t, -8, img.RelativeFrame)

	base := filepath.Join(filepath.Dir(path), "frames")
	assert.Equal(t, filepath.Join(base, "S101_1_oe_bltd0_-8.png"), img.PathsByCam["oe"])
	assert.Equal(t, filepath.Join(base, "S101_1_ot_bltd0_-8.png"), img.PathsByCam["ot"])

	// positive offsets carry an explicit plus sign
	img, ok = c.ResolveFrame("S101", 1, "bltd0", 3)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(base, "S101_1_oe_bltd0_+3.png"), img.PathsByCam["oe"])
}

func TestResolveFrame_Missing(t *testing.T) {
	c := loadFixture(t, []logRow{{"S101", 1, "oe", "rltd", 0, 10}})

	_, ok := c.ResolveFrame("S101", 1, "rltd", 99)
	assert.False(t, ok)
	assert.False(t, c.HasFrame("S101", 1, "release", 0))
	assert.True(t, c.HasFrame("S101", 1, "rltd", 0))
}

func TestResolveFrame_MemoizedMissAndHit(t *testing.T) {
	c := loadFixture(t, []logRow{{"S101", 1, "oe", "rltd", 0, 10}})

	// repeated probes hit the cache for both outcomes
	for i := 0; i < 3; i++ {
		assert.True(t, c.HasFrame("S101", 1, "rltd", 0))
		assert.False(t, c.HasFrame("S101", 1, "rltd", 7))
	}
}

func TestFormatRelFrame(t *testing.T) {
	assert.Equal(t, "-8", formatRelFrame(-8))
	assert.Equal(t, "0", formatRelFrame(0))
	assert.Equal(t, "+12", formatRelFrame(12))
}
