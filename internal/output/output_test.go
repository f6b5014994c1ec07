package output_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"passfuse/internal/generator"
	"passfuse/internal/identity"
	"passfuse/internal/output"
	"passfuse/internal/pipeline"
	"passfuse/internal/selector"
	"passfuse/internal/services"
)

func result(t *testing.T, line string, index int, selections ...selector.Selection) pipeline.Result {
	t.Helper()
	rec, err := identity.ParseLine(line, index+1)
	require.NoError(t, err)
	status := pipeline.StatusOK
	if len(selections) == 0 {
		status = pipeline.StatusEmpty
	}
	return pipeline.Result{Identity: rec, Index: index, Output: selector.Output{Selections: selections}, Status: status}
}

func janeResults(t *testing.T) []pipeline.Result {
	return []pipeline.Result{
		result(t, "name:Jane Doe", 0,
			selector.Selection{Password: "janedoe1990", Rank: 1, Sources: []string{"model", "rules"}, FusedRank: 0.6666666666666666, Strength: 21.5},
			selector.Selection{Password: "jane\t1990!", Rank: 2, Sources: []string{"model"}, FusedRank: 1, Strength: 30.25},
			selector.Selection{Password: ` "quoted"`, Rank: 3, Sources: []string{"rules"}, FusedRank: 1.3333333333333333, Strength: 12},
		),
		result(t, "name:Bob", 1),
	}
}

func TestTSVRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, output.WriteTSV(&buf, janeResults(t)))
	assert.True(t, strings.HasPrefix(buf.String(), "identity\trank\tpassword\tsources\tfused_rank\tstrength\n"))

	rows, err := output.ReadTSV(&buf)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, output.Row{Identity: "1", Rank: 1, Password: "janedoe1990", Sources: []string{"model", "rules"}, FusedRank: 0.6666666666666666, Strength: 21.5}, rows[0])
	assert.Equal(t, "jane\t1990!", rows[1].Password)
	assert.Equal(t, ` "quoted"`, rows[2].Password)
	assert.InDelta(t, 1.3333333333333333, rows[2].FusedRank, 0)

	assert.Equal(t, "2", rows[3].Identity)
	assert.True(t, rows[3].Empty())
	assert.Empty(t, rows[3].Password)
	assert.Nil(t, rows[3].Sources)
}

func TestWriteTSVWithoutResultsHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, output.WriteTSV(&buf, nil))
	assert.Equal(t, strings.Join(output.Header, "\t")+"\n", buf.String())

	rows, err := output.ReadTSV(&buf)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadTSVRejectsMalformedInput(t *testing.T) {
	header := strings.Join(output.Header, "\t") + "\n"
	tests := map[string]string{
		"empty":       "",
		"header":      "id\trank\n",
		"field count": header + "1\t1\tpw\n",
		"rank":        header + "1\tfirst\tpw\trules\t1\t2\n",
		"fused rank":  header + "1\t1\tpw\trules\tx\t2\n",
		"strength":    header + "1\t1\tpw\trules\t1\t?\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := output.ReadTSV(strings.NewReader(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, services.ErrValidation)
		})
	}
}

func TestAnswersFormat(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, output.WriteAnswers(&buf, [][]string{{"janedoe1990", "jane1990!"}, {}, {"bob123"}}))
	assert.Equal(t, "janedoe1990\njane1990!\n<END>\n<END>\nbob123\n", buf.String())

	blocks, err := output.ReadAnswers(&buf)
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.Equal(t, []string{"janedoe1990", "jane1990!"}, blocks[0])
	assert.Empty(t, blocks[1])
	assert.Equal(t, []string{"bob123"}, blocks[2])
}

func TestReadAnswersTrailingSeparator(t *testing.T) {
	blocks, err := output.ReadAnswers(strings.NewReader("a1\r\n<END>\nb2\n<END>\n"))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a1"}, {"b2"}}, blocks)
}

func TestAnswerWriterSkipsMultilinePasswords(t *testing.T) {
	var buf bytes.Buffer
	aw := output.NewAnswerWriter(&buf)
	require.NoError(t, aw.WriteBlock([]string{"ok-one", "bad\nline", "<END>", "ok-two"}))
	require.NoError(t, aw.Flush())
	assert.Equal(t, "ok-one\nok-two\n", buf.String())
	assert.Equal(t, 2, aw.Skipped())
}

func TestSinkWritesArtifactsReadableByFileGenerator(t *testing.T) {
	dir := t.TempDir()
	sink, err := output.Create(dir, true)
	require.NoError(t, err)
	for _, res := range janeResults(t) {
		require.NoError(t, sink.Write(context.Background(), res))
	}
	require.NoError(t, sink.Close())
	assert.Zero(t, sink.SkippedAnswers())

	tsv, err := os.Open(filepath.Join(dir, output.TSVFileName))
	require.NoError(t, err)
	defer tsv.Close()
	rows, err := output.ReadTSV(tsv)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	gen, err := generator.NewFile("replay", filepath.Join(dir, output.AnswersFileName))
	require.NoError(t, err)
	assert.Equal(t, 1, gen.Segments())

	rec, err := identity.ParseLine("name:Jane Doe", 1)
	require.NoError(t, err)
	s, err := gen.Generate(context.Background(), rec)
	require.NoError(t, err)
	defer s.Close()
	c, ok, err := s.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "janedoe1990", c.Password)
}

func TestSinkWithoutAnswers(t *testing.T) {
	dir := t.TempDir()
	sink, err := output.Create(dir, false)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	_, err = os.Stat(filepath.Join(dir, output.AnswersFileName))
	assert.True(t, os.IsNotExist(err))
}
