// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/l2m/internal/ledger"
	"github.com/pdiddy/l2m/internal/rules"
	"github.com/pdiddy/l2m/internal/transform"
	"github.com/pdiddy/l2m/pkg/types"
)

// fakeConverter prefixes the source with a fixed header and counts calls.
type fakeConverter struct {
	header string
	calls  atomic.Int32
}

func (f *fakeConverter) Convert(raw string) transform.Result {
	f.calls.Add(1)
	return transform.Result{Text: f.header + raw}
}

// writeTree creates files relative to root; a trailing slash makes a
// directory.
func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, name)
		if name[len(name)-1] == '/' {
			require.NoError(t, os.MkdirAll(path, 0o755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		source, suffix, ext, want string
	}{
		{"limits.tex", DefaultSuffix, DefaultExtension, "limits_converted.md"},
		{"dir/limits.tex", DefaultSuffix, DefaultExtension, "limits_converted.md"},
		{"limits.tex", "", ".myst.md", "limits.myst.md"},
		{"no_ext", "_x", ".md", "no_ext_x.md"},
	}
	for _, tt := range tests {
		t.Run(tt.source+tt.ext, func(t *testing.T) {
			assert.Equal(t, tt.want, OutputName(tt.source, tt.suffix, tt.ext))
		})
	}
}

func TestConvertFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.tex")
	require.NoError(t, os.WriteFile(src, []byte("body"), 0o644))

	dst := filepath.Join(dir, "out", "nested", "a_converted.md")
	res, err := ConvertFile(&fakeConverter{header: "# "}, src, dst)
	require.NoError(t, err)
	assert.Equal(t, "# body", res.Text)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "# body", string(data))

	_, err = ConvertFile(&fakeConverter{}, filepath.Join(dir, "missing.tex"), dst)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading")
}

func TestConvertFile_WithEngine(t *testing.T) {
	rs, err := rules.Parse([]byte(`
substitutions:
  - name: chapter
    start: '\chapter{'
    end: '}'
    generate_front_matter: true
    directive:
      type: inline
remove_commands: [noindent]
`))
	require.NoError(t, err)
	engine, err := transform.New(rules.Compile(rs, &bytes.Buffer{}), rs,
		transform.WithClock(func() time.Time { return time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC) }))
	require.NoError(t, err)

	dir := t.TempDir()
	src := filepath.Join(dir, "ch.tex")
	require.NoError(t, os.WriteFile(src, []byte("\\chapter{Limits}\n\\noindent Text."), 0o644))

	dst := filepath.Join(dir, "ch_converted.md")
	_, err = ConvertFile(engine, src, dst)
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "---\ntitle: \"Limits\"\ndate: 2025-03-14\n---\n\n\n Text.", string(data))
}

func TestConvertTree_MirrorsChapters(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeTree(t, in, map[string]string{
		"01 Intro/intro.tex":   "intro",
		"01 Intro/notes.txt":   "ignored",
		"01 Intro/figs/":       "",
		"02_Limits/limits.TEX": "limits",
		"03-Sums/sums.tex":     "sums",
		"misc/other.tex":       "not a chapter",
		"4 Short/short.tex":    "not a chapter",
		"05/bare.tex":          "not a chapter",
	})

	conv := &fakeConverter{header: "md:"}
	var log bytes.Buffer
	result, err := ConvertTree(context.Background(), conv,
		types.ConversionConfig{InputDir: in, OutputDir: out, Workers: 2}, &log)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Converted)
	assert.Equal(t, 3, result.Total())
	assert.False(t, result.HasFailures())
	assert.Empty(t, result.RunID)
	assert.EqualValues(t, 3, conv.calls.Load())

	for name, want := range map[string]string{
		"01 Intro/intro_converted.md":   "md:intro",
		"02_Limits/limits_converted.md": "md:limits",
		"03-Sums/sums_converted.md":     "md:sums",
	} {
		data, err := os.ReadFile(filepath.Join(out, name))
		require.NoError(t, err, name)
		assert.Equal(t, want, string(data))
	}
	assert.NoDirExists(t, filepath.Join(out, "misc"))
	assert.NoDirExists(t, filepath.Join(out, "4 Short"))

	output := log.String()
	assert.Contains(t, output, "chapter: 01 Intro\n")
	assert.Contains(t, output, "converted: "+filepath.Join("02_Limits", "limits.TEX"))
	assert.Contains(t, output, "Batch summary: 3 converted, 0 skipped, 0 failed (total: 3)")
}

func TestConvertTree_DefaultsOutputToInput(t *testing.T) {
	in := t.TempDir()
	writeTree(t, in, map[string]string{"01 Intro/a.tex": "a"})

	_, err := ConvertTree(context.Background(), &fakeConverter{}, types.ConversionConfig{InputDir: in}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(in, "01 Intro", "a_converted.md"))
}

func TestConvertTree_Errors(t *testing.T) {
	t.Run("no chapters", func(t *testing.T) {
		in := t.TempDir()
		writeTree(t, in, map[string]string{"misc/a.tex": "a"})
		_, err := ConvertTree(context.Background(), &fakeConverter{}, types.ConversionConfig{InputDir: in}, &bytes.Buffer{})
		assert.ErrorIs(t, err, ErrNoChapters)
	})
	t.Run("missing input directory", func(t *testing.T) {
		_, err := ConvertTree(context.Background(), &fakeConverter{},
			types.ConversionConfig{InputDir: filepath.Join(t.TempDir(), "nope")}, &bytes.Buffer{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "reading input directory")
	})
}

func TestConvertTree_FailureDoesNotAbort(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeTree(t, in, map[string]string{
		"01 Intro/a.tex": "a",
		"01 Intro/b.tex": "b",
	})
	// A directory where the output file belongs makes the write fail.
	writeTree(t, out, map[string]string{"01 Intro/a_converted.md/": ""})

	var log bytes.Buffer
	result, err := ConvertTree(context.Background(), &fakeConverter{},
		types.ConversionConfig{InputDir: in, OutputDir: out, Workers: 1}, &log)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Converted)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, result.HasFailures())
	assert.Contains(t, log.String(), "failed:  "+filepath.Join("01 Intro", "a.tex"))
	assert.FileExists(t, filepath.Join(out, "01 Intro", "b_converted.md"))
}

func TestConvertTree_LedgerSkipsUnchanged(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeTree(t, in, map[string]string{
		"01 Intro/a.tex": "a",
		"01 Intro/b.tex": "b",
	})

	store, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ruleBytes := []byte("substitutions: []")
	cfg := types.ConversionConfig{InputDir: in, OutputDir: out}
	conv := &fakeConverter{}
	run := func(cfg types.ConversionConfig, rules []byte) (BatchResult, string) {
		t.Helper()
		var log bytes.Buffer
		result, err := ConvertTree(context.Background(), conv, cfg, &log, WithLedger(store, rules))
		require.NoError(t, err)
		return result, log.String()
	}

	first, _ := run(cfg, ruleBytes)
	assert.Equal(t, 2, first.Converted)
	assert.NotEmpty(t, first.RunID)

	second, log := run(cfg, ruleBytes)
	assert.Equal(t, 0, second.Converted)
	assert.Equal(t, 2, second.Skipped)
	assert.Contains(t, log, "skipped: "+filepath.Join("01 Intro", "a.tex")+" (unchanged)")
	assert.EqualValues(t, 2, conv.calls.Load())

	writeTree(t, in, map[string]string{"01 Intro/a.tex": "a changed"})
	third, _ := run(cfg, ruleBytes)
	assert.Equal(t, 1, third.Converted)
	assert.Equal(t, 1, third.Skipped)

	changedRules, _ := run(cfg, []byte("substitutions: [x]"))
	assert.Equal(t, 2, changedRules.Converted)

	forced := cfg
	forced.Force = true
	fifth, _ := run(forced, []byte("substitutions: [x]"))
	assert.Equal(t, 2, fifth.Converted)

	records, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, fifth.RunID, records[0].RunID)
	assert.Equal(t, types.ConversionDone, records[0].Status)

	runs, err := store.Runs(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 5)
}

func TestConvertTree_LedgerReconvertsForNewDestination(t *testing.T) {
	in := t.TempDir()
	writeTree(t, in, map[string]string{"01 Intro/a.tex": "a"})

	store, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ruleBytes := []byte("substitutions: []")
	conv := &fakeConverter{}
	run := func(cfg types.ConversionConfig) BatchResult {
		t.Helper()
		var log bytes.Buffer
		result, err := ConvertTree(context.Background(), conv, cfg, &log, WithLedger(store, ruleBytes))
		require.NoError(t, err)
		return result
	}

	out1 := t.TempDir()
	out2 := t.TempDir()
	first := run(types.ConversionConfig{InputDir: in, OutputDir: out1})
	assert.Equal(t, 1, first.Converted)

	tests := []struct {
		name string
		cfg  types.ConversionConfig
		want string
	}{
		{"other output dir", types.ConversionConfig{InputDir: in, OutputDir: out2},
			filepath.Join(out2, "01 Intro", "a_converted.md")},
		{"other suffix", types.ConversionConfig{InputDir: in, OutputDir: out2, Suffix: "_myst"},
			filepath.Join(out2, "01 Intro", "a_myst.md")},
		{"other extension", types.ConversionConfig{InputDir: in, OutputDir: out2, Suffix: "_myst", Extension: ".txt"},
			filepath.Join(out2, "01 Intro", "a_myst.txt")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := run(tt.cfg)
			assert.Equal(t, 1, result.Converted)
			assert.Equal(t, 0, result.Skipped)
			assert.FileExists(t, tt.want)

			again := run(tt.cfg)
			assert.Equal(t, 1, again.Skipped)
		})
	}
}

func TestConvertTree_Verify(t *testing.T) {
	in := t.TempDir()
	writeTree(t, in, map[string]string{"01 Intro/a.tex": "Text[^zzzzz]."})

	var log bytes.Buffer
	result, err := ConvertTree(context.Background(), &fakeConverter{},
		types.ConversionConfig{InputDir: in, Verify: true}, &log)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Converted)
	assert.Contains(t, log.String(), "warning: ")
	assert.Contains(t, log.String(), "footnote [^zzzzz] has no definition")
}

func TestConvertTree_ManyFilesConcurrently(t *testing.T) {
	in := t.TempDir()
	files := map[string]string{}
	for i := range 40 {
		files[fmt.Sprintf("%02d Chapter/part%d.tex", i%4+1, i)] = fmt.Sprintf("part %d", i)
	}
	writeTree(t, in, files)

	conv := &fakeConverter{}
	result, err := ConvertTree(context.Background(), conv,
		types.ConversionConfig{InputDir: in, Workers: 8}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 40, result.Converted)
	assert.EqualValues(t, 40, conv.calls.Load())
}

func TestConvertTree_Cancelled(t *testing.T) {
	in := t.TempDir()
	writeTree(t, in, map[string]string{"01 Intro/a.tex": "a"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var log bytes.Buffer
	result, err := ConvertTree(ctx, &fakeConverter{}, types.ConversionConfig{InputDir: in}, &log)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, result.Total())
	assert.Contains(t, log.String(), "Batch summary: 0 converted")
}
