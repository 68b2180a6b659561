package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGradeFromScore(t *testing.T) {
	cases := []struct {
		score float64
		want  Grade
	}{
		{96, GradeAPlus},
		{95, GradeAPlus},
		{92, GradeA},
		{86, GradeAMin},
		{81, GradeBPlus},
		{76, GradeB},
		{71, GradeBMin},
		{65, GradeC},
		{55, GradeD},
		{10, GradeF},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, GradeFromScore(c.score), "score=%v", c.score)
	}
}

func TestGEOScoreOf(t *testing.T) {
	r := &PageReport{
		Structure: StructureReport{Score: 100},
		Content:   ContentReport{Score: 100},
		EEAT:      EEATReport{Score: 100},
		Schema:    SchemaReport{Score: 100},
		Technical: TechnicalReport{Score: 100},
		Citation:  CitationSignalsReport{Score: 100},
	}
	assert.InDelta(t, 100.0, GEOScoreOf(r), 0.5)

	r2 := &PageReport{
		Structure: StructureReport{Score: 50},
		Content:   ContentReport{Score: 50},
		EEAT:      EEATReport{Score: 50},
		Schema:    SchemaReport{Score: 0},
		Technical: TechnicalReport{Score: 0},
		Citation:  CitationSignalsReport{Score: 0},
	}
	// 0.20*50 + 0.20*50 + 0.25*50 = 10 + 10 + 12.5 = 32.5
	assert.InDelta(t, 32.5, GEOScoreOf(r2), 0.5)
}

func TestAuditSetProgressMonotonic(t *testing.T) {
	a := &Audit{Status: StatusRunning}
	a.SetProgress("crawl", 35)
	assert.Equal(t, 35, a.Progress)
	a.SetProgress("classifier", 20) // would regress; must be ignored
	assert.Equal(t, 35, a.Progress)
	a.SetProgress("classifier", 45)
	assert.Equal(t, 45, a.Progress)
}

func TestPriorityRank(t *testing.T) {
	assert.True(t, PriorityCritical.Rank() < PriorityHigh.Rank())
	assert.True(t, PriorityHigh.Rank() < PriorityMedium.Rank())
	assert.True(t, PriorityMedium.Rank() < PriorityLow.Rank())
}
