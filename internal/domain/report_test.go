package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderReport(t *testing.T) {
	text := RenderReport(Month{Year: 2024, Month: time.May}, Narrative{
		PastComparison:  "전체 소비는 10000원(5%) 증가했습니다.",
		ClusterInfo:     "당신은 소비구간 10만원~30만원 구간에 속해 있습니다.",
		GroupComparison: "식비 지출이 그룹 평균보다 많습니다.",
	})

	want := "[4월 소비 vs 5월 소비]\n" +
		"전체 소비는 10000원(5%) 증가했습니다.\n" +
		"\n" +
		"----------------------------------------\n" +
		"[속한 그룹과의 비교]\n" +
		"당신은 소비구간 10만원~30만원 구간에 속해 있습니다.\n" +
		"식비 지출이 그룹 평균보다 많습니다."
	assert.Equal(t, want, text)
}

func TestRenderReport_MissingSectionsUsePlaceholder(t *testing.T) {
	text := RenderReport(Month{Year: 2024, Month: time.January}, Narrative{ClusterInfo: "  "})

	want := "[12월 소비 vs 1월 소비]\n" +
		"데이터 부족\n" +
		"\n" +
		"----------------------------------------\n" +
		"[속한 그룹과의 비교]\n" +
		"데이터 부족\n" +
		"데이터 부족"
	assert.Equal(t, want, text)
}

func TestRangeText(t *testing.T) {
	assert.Equal(t, "정보 없음", RangeText(nil))

	bounded := &Cohort{
		MinAmount: decimal.NewFromInt(150000),
		MaxAmount: decimal.NewNullDecimal(decimal.NewFromInt(500000)),
	}
	assert.Equal(t, "15만원~50만원", RangeText(bounded))

	open := &Cohort{MinAmount: decimal.NewFromInt(1234567)}
	assert.Equal(t, "123만원 이상", RangeText(open))

	lowest := &Cohort{
		MinAmount: decimal.Zero,
		MaxAmount: decimal.NewNullDecimal(decimal.NewFromFloat(99999.99)),
	}
	assert.Equal(t, "0만원~9만원", RangeText(lowest))
}

func TestCohortContains(t *testing.T) {
	c := Cohort{
		MinAmount: decimal.NewFromInt(100),
		MaxAmount: decimal.NewNullDecimal(decimal.NewFromInt(200)),
	}
	assert.True(t, c.Contains(decimal.NewFromInt(100)))
	assert.False(t, c.Contains(decimal.NewFromInt(200)))
	assert.False(t, c.Contains(decimal.NewFromInt(99)))

	top := Cohort{MinAmount: decimal.NewFromInt(200)}
	assert.True(t, top.Contains(decimal.NewFromInt(1000000)))
}

func TestMonthlySummary(t *testing.T) {
	empty := EmptySummary()
	body, err := json.Marshal(empty)
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":{},"total":"0"}`, string(body))
	assert.True(t, empty.IsEmpty())

	s := NewMonthlySummary(map[Category]decimal.Decimal{
		CategoryFood:      decimal.NewFromInt(50000),
		CategoryTransport: decimal.NewFromInt(30000),
	})
	assert.True(t, s.Total.Equal(decimal.NewFromInt(80000)))
	assert.False(t, s.IsEmpty())
}

func TestParseCategory(t *testing.T) {
	c, ok := ParseCategory("편의점/마트")
	assert.True(t, ok)
	assert.Equal(t, CategoryConvenience, c)

	_, ok = ParseCategory("유흥")
	assert.False(t, ok)
	assert.Len(t, Categories(), 9)
}
