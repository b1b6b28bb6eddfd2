package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fyrsmithlabs/qrepair/internal/knowledge"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with fresh flag values.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	configPath = ""
	inspectAll = false
	mergeTags = nil
	resetValue = 0

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeKnowledge(t *testing.T, name string, fill func(kb *knowledge.KnowledgeBase)) string {
	t.Helper()
	kb := knowledge.New()
	fill(kb)
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, kb.Save(path))
	return path
}

func readKnowledge(t *testing.T, path string) *knowledge.KnowledgeBase {
	t.Helper()
	kb := knowledge.New()
	_, err := kb.Load(path)
	require.NoError(t, err)
	return kb
}

func TestInspect(t *testing.T) {
	path := writeKnowledge(t, "kb.xml", func(kb *knowledge.KnowledgeBase) {
		kb.Set(7, 2, 3, knowledge.NewScoreEntry(42).WithTag(1, 5))
		kb.Set(7, 2, 4, knowledge.NewScoreEntry(10))
		kb.Set(9, 1, 1, knowledge.NewScoreEntry(-2))
	})

	out, _, err := execute(t, "inspect", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"ERROR", "CONTEXT", "ACTION", "SCORE", "TAGS"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"7", "2", "3", "42", "1=5"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"9", "1", "1", "-2", "-"}, strings.Fields(lines[2]))
}

func TestInspect_All(t *testing.T) {
	path := writeKnowledge(t, "kb.yaml", func(kb *knowledge.KnowledgeBase) {
		kb.Set(7, 2, 3, knowledge.NewScoreEntry(42))
		kb.Set(7, 2, 4, knowledge.NewScoreEntry(10.5))
	})

	out, _, err := execute(t, "inspect", "--all", path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"7", "2", "4", "10.5", "-"}, strings.Fields(lines[2]))
}

func TestInspect_MissingFile(t *testing.T) {
	_, _, err := execute(t, "inspect", filepath.Join(t.TempDir(), "absent.xml"))

	assert.ErrorContains(t, err, "opening knowledge file")
}

func TestInspect_DefaultPathFromConfig(t *testing.T) {
	path := writeKnowledge(t, "configured.xml", func(kb *knowledge.KnowledgeBase) {
		kb.Set(1, 1, 1, knowledge.NewScoreEntry(1))
	})
	t.Setenv("QREPAIR_KNOWLEDGE_PATH", path)

	out, _, err := execute(t, "inspect")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, []string{"1", "1", "1", "1", "-"}, strings.Fields(lines[1]))
}

func TestMerge(t *testing.T) {
	path := writeKnowledge(t, "kb.xml", func(kb *knowledge.KnowledgeBase) {
		kb.Set(1, 1, 1, knowledge.NewScoreEntry(10))
		kb.Set(2, 1, 1, knowledge.NewScoreEntry(5))
	})
	prefs := writeKnowledge(t, "prefs.xml", func(kb *knowledge.KnowledgeBase) {
		kb.Set(1, 1, 1, knowledge.NewScoreEntry(75).WithTag(7, 75).WithTag(0, 500))
		kb.Set(3, 1, 1, knowledge.NewScoreEntry(20).WithTag(7, 20))
	})

	out, stderr, err := execute(t, "merge", path, prefs)
	require.NoError(t, err)

	assert.Equal(t, "blended 1 entries into "+path+"\n", out)
	assert.Contains(t, stderr, "knowledge merged")

	kb := readKnowledge(t, path)
	entry := kb.Get(1, 1, 1)
	assert.Equal(t, 85.0, entry.Score())
	assert.False(t, entry.HasTag(0))
	assert.Equal(t, 5.0, kb.Get(2, 1, 1).Score())
	assert.False(t, kb.ContainsError(3))
}

func TestMerge_Tags(t *testing.T) {
	path := writeKnowledge(t, "kb.yaml", func(kb *knowledge.KnowledgeBase) {
		kb.Set(1, 1, 1, knowledge.NewScoreEntry(10))
	})
	prefs := writeKnowledge(t, "prefs.yaml", func(kb *knowledge.KnowledgeBase) {
		kb.Set(1, 1, 1, knowledge.NewScoreEntry(0).WithTag(7, 75).WithTag(0, 500))
	})

	_, _, err := execute(t, "merge", path, prefs, "--tags", "0,7")
	require.NoError(t, err)

	assert.Equal(t, 585.0, readKnowledge(t, path).Get(1, 1, 1).Score())
}

func TestMerge_DefaultTagsFromConfig(t *testing.T) {
	path := writeKnowledge(t, "kb.xml", func(kb *knowledge.KnowledgeBase) {
		kb.Set(1, 1, 1, knowledge.NewScoreEntry(10))
	})
	prefs := writeKnowledge(t, "prefs.xml", func(kb *knowledge.KnowledgeBase) {
		kb.Set(1, 1, 1, knowledge.NewScoreEntry(0).WithTag(7, 75).WithTag(0, 500).WithTag(4, 9))
	})
	cfgFile := filepath.Join(t.TempDir(), "qrepair.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("preferences:\n  active: [0]\n"), 0600))

	_, _, err := execute(t, "--config", cfgFile, "merge", path, prefs)
	require.NoError(t, err)

	entry := readKnowledge(t, path).Get(1, 1, 1)
	assert.Equal(t, 510.0, entry.Score())
	assert.True(t, entry.HasTag(0))
	assert.False(t, entry.HasTag(7))
}

func TestMerge_UnknownTag(t *testing.T) {
	_, _, err := execute(t, "merge", "a.xml", "b.xml", "--tags", "12")

	assert.ErrorContains(t, err, "unknown preference tag 12")
}

func TestReset(t *testing.T) {
	path := writeKnowledge(t, "kb.xml", func(kb *knowledge.KnowledgeBase) {
		kb.Set(1, 1, 1, knowledge.NewScoreEntry(10).WithTag(4, -100))
		kb.Set(1, 2, 5, knowledge.NewScoreEntry(-3))
	})

	out, _, err := execute(t, "reset", path, "--value", "-5")
	require.NoError(t, err)

	assert.Contains(t, out, "reset 2 entries")
	kb := readKnowledge(t, path)
	for _, loc := range []knowledge.Location{{Context: 1, Action: 1}, {Context: 2, Action: 5}} {
		entry := kb.Get(1, loc.Context, loc.Action)
		assert.Equal(t, -5.0, entry.Score())
		assert.Empty(t, entry.Tags())
	}
}

func TestConvert(t *testing.T) {
	in := writeKnowledge(t, "kb.xml", func(kb *knowledge.KnowledgeBase) {
		kb.Set(7, 2, 3, knowledge.NewScoreEntry(42).WithTag(1, 5))
	})
	out := filepath.Join(t.TempDir(), "kb.yaml")

	stdout, _, err := execute(t, "convert", in, out)
	require.NoError(t, err)

	assert.Equal(t, "wrote 1 errors to "+out+"\n", stdout)
	entry := readKnowledge(t, out).Get(7, 2, 3)
	assert.True(t, entry.Equal(knowledge.NewScoreEntry(42).WithTag(1, 5)))
}

func TestConvert_UnknownOutputFormat(t *testing.T) {
	in := writeKnowledge(t, "kb.xml", func(kb *knowledge.KnowledgeBase) {})

	_, _, err := execute(t, "convert", in, filepath.Join(t.TempDir(), "kb.json"))

	assert.ErrorIs(t, err, knowledge.ErrUnknownFormat)
}

func TestConfigFlag(t *testing.T) {
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "qrepair.yaml")
	require.NoError(t, os.WriteFile(cfgFile, []byte("preferences:\n  active: [42]\n"), 0600))

	_, _, err := execute(t, "--config", cfgFile, "inspect", "kb.xml")

	assert.ErrorContains(t, err, "unknown preference 42")
}
