package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"finmate/internal/domain"
)

var categoryExamples = map[domain.Category]string{
	domain.CategoryFood:        "식당, 카페, 배달, 주점, 베이커리",
	domain.CategoryTransport:   "지하철, 택시, 버스, 기차, 주유소",
	domain.CategoryShopping:    "의류, 쿠팡, 백화점, 잡화, 미용실",
	domain.CategoryHealth:      "병원, 약국, 헬스장, 필라테스",
	domain.CategoryLeisure:     "영화, OTT, 게임, 여행, 숙박",
	domain.CategoryUtilities:   "월세, 관리비, 통신비, 보험료",
	domain.CategoryTransfer:    "친구송금, 회비, 적금",
	domain.CategoryConvenience: "편의점, 대형마트, 슈퍼마켓",
	domain.CategoryOther:       "위 분류에 속하지 않는 것",
}

func buildClassificationPrompt(description string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "소비처: %q\n", description)
	b.WriteString("위 소비처를 아래 [분류 기준]에 맞춰 가장 적절한 카테고리 하나로 분류하세요.\n")
	b.WriteString("설명 없이 오직 카테고리 명만 단답형으로 출력하세요.\n\n")
	b.WriteString("[분류 기준]\n")
	for _, c := range domain.Categories() {
		fmt.Fprintf(&b, "- %s: %s\n", c, categoryExamples[c])
	}
	return b.String()
}

func buildNarrativePrompt(input domain.NarrativeInput) (string, error) {
	twoMonthsAgo, err := json.Marshal(input.TwoMonthsAgo)
	if err != nil {
		return "", fmt.Errorf("marshal two_months_ago: %w", err)
	}
	lastMonth, err := json.Marshal(input.LastMonth)
	if err != nil {
		return "", fmt.Errorf("marshal last_month: %w", err)
	}
	cohortAverage, err := json.Marshal(input.CohortAverage)
	if err != nil {
		return "", fmt.Errorf("marshal cohort_average: %w", err)
	}

	var b strings.Builder
	b.WriteString("당신은 금융 데이터 분석가입니다. 조언은 하지 말고 주어진 데이터에서 확인되는 사실만 서술하세요.\n\n")
	b.WriteString("[데이터]\n")
	fmt.Fprintf(&b, "1. two_months_ago (저저번 달 내 소비): %s\n", twoMonthsAgo)
	fmt.Fprintf(&b, "2. last_month (저번 달 내 소비): %s\n", lastMonth)
	fmt.Fprintf(&b, "3. cohort_average (저번 달 그룹 평균): %s\n", cohortAverage)
	fmt.Fprintf(&b, "4. cohort_range (내 소비구간): %s\n\n", input.CohortRange)
	b.WriteString("[작성 항목]\n")
	b.WriteString("- section_past_comparison: 저저번 달 대비 저번 달 소비 변화. \"전체 소비는 X원(Y%) 증가/감소했습니다.\"를 포함하고 카테고리별 변화를 서술.\n")
	fmt.Fprintf(&b, "- section_cluster_info: 정확히 \"당신은 소비구간 %s 구간에 속해 있습니다.\" 라고만 작성.\n", input.CohortRange)
	b.WriteString("- section_group_comparison: 저번 달 내 소비와 그룹 평균을 비교하여 더 많이 또는 덜 쓴 카테고리를 명시.\n\n")
	b.WriteString("위 세 항목을 키로 가진 JSON 객체 하나만 출력하세요. 코드 블록이나 마크다운을 쓰지 마세요.\n")
	return b.String(), nil
}

func buildChatSystemPrompt(prompt domain.ChatPrompt) (string, error) {
	if !prompt.TargetBudget.IsPositive() {
		return budgetSetupPrompt, nil
	}

	current, err := json.Marshal(prompt.CurrentMonth)
	if err != nil {
		return "", fmt.Errorf("marshal current month: %w", err)
	}
	last, err := json.Marshal(prompt.LastMonth)
	if err != nil {
		return "", fmt.Errorf("marshal last month: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "당신은 사용자가 설정한 목표 소비 금액(%s원) 달성을 돕는 AI 자산 관리 비서입니다.\n", prompt.TargetBudget.StringFixed(0))
	b.WriteString("이번 달 소비와 지난달 소비를 비교하여 현실적인 조언을 제공하세요.\n\n")
	fmt.Fprintf(&b, "[이번 달 현황]: %s\n", current)
	fmt.Fprintf(&b, "[지난달 내역]: %s\n\n", last)
	b.WriteString("[조언 원칙]\n")
	b.WriteString("1. 증가했거나 비중이 큰 변동 지출(문화/여가, 교통, 쇼핑)을 먼저 짚으세요.\n")
	b.WriteString("2. 월세, 공과금, 보험료 같은 고정비는 줄이라고 하지 마세요.\n")
	b.WriteString("3. \"지난달보다 10만원 증가\"처럼 구체적인 수치를 근거로 말하세요.\n")
	b.WriteString("4. 금지 대신 \"줄여볼까요?\" 같은 단계적 제안이나 대체재를 제시하세요.\n")
	return b.String(), nil
}

const budgetSetupPrompt = `당신은 사용자의 자산 관리를 돕기 위해 초기 설정을 진행하는 AI 비서입니다.
사용자는 아직 목표 소비 금액을 설정하지 않았습니다.

[행동 지침]
1. 메시지가 "시작", "안녕" 같은 인사이거나 대화의 시작이라면 "당신의 목표 소비 금액은 얼마인가요?"로 답변을 시작하세요.
2. 목표 금액 없이 다른 질문을 하면 목표 설정이 필요함을 알리고 다음 문장을 사용하세요: "당신의 소비 습관 증진을 위해 조언해줄 수 있도록 목표 소비 금액을 제시해주면 감사하겠습니다."
3. 사용자가 금액을 말하면(예: "50만원", "300000") "목표 금액이 설정되었습니다. 이제 소비 내역을 분석해드릴까요?"라고 답하세요.
`
