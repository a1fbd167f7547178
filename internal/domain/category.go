package domain

// Category is the closed set of spending labels a transaction can carry.
type Category string

const (
	CategoryFood        Category = "식비"
	CategoryTransport   Category = "교통"
	CategoryShopping    Category = "쇼핑"
	CategoryHealth      Category = "의료/건강"
	CategoryLeisure     Category = "문화/여가"
	CategoryUtilities   Category = "공과금/고정비"
	CategoryTransfer    Category = "이체"
	CategoryConvenience Category = "편의점/마트"
	CategoryOther       Category = "기타"
)

var allCategories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryShopping,
	CategoryHealth,
	CategoryLeisure,
	CategoryUtilities,
	CategoryTransfer,
	CategoryConvenience,
	CategoryOther,
}

// Categories returns every label in display order.
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

func ParseCategory(s string) (Category, bool) {
	for _, c := range allCategories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

func (c Category) Valid() bool {
	_, ok := ParseCategory(string(c))
	return ok
}
