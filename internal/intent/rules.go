package intent

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// keyword maps a phrase found in the request to the value stored on the filter.
type keyword struct {
	phrase string
	value  string
}

// Lists are ordered: the first phrase found wins, so longer phrases precede their prefixes.
var brandKeywords = []keyword{
	{"new balance", "new balance"},
	{"louis vuitton", "louis vuitton"},
	{"nike", "nike"},
	{"adidas", "adidas"},
	{"puma", "puma"},
	{"converse", "converse"},
	{"vans", "vans"},
	{"reebok", "reebok"},
	{"asics", "asics"},
	{"fila", "fila"},
	{"mlb", "mlb"},
	{"gucci", "gucci"},
	{"chanel", "chanel"},
	{"dior", "dior"},
	{"balenciaga", "balenciaga"},
	{"zara", "zara"},
	{"uniqlo", "uniqlo"},
	{"h&m", "h&m"},
	{"levi's", "levi's"},
	{"levis", "levi's"},
}

var colorKeywords = []keyword{
	{"xanh dương", "xanh dương"},
	{"xanh lá", "xanh lá"},
	{"xanh navy", "navy"},
	{"màu be", "be"},
	{"trắng", "trắng"},
	{"đen", "đen"},
	{"đỏ", "đỏ"},
	{"xanh", "xanh"},
	{"vàng", "vàng"},
	{"hồng", "hồng"},
	{"tím", "tím"},
	{"xám", "xám"},
	{"ghi", "xám"},
	{"nâu", "nâu"},
	{"cam", "cam"},
	{"kem", "kem"},
	{"white", "white"},
	{"black", "black"},
	{"navy", "navy"},
	{"red", "red"},
	{"blue", "blue"},
	{"green", "green"},
	{"yellow", "yellow"},
	{"pink", "pink"},
	{"purple", "purple"},
	{"grey", "grey"},
	{"gray", "gray"},
	{"brown", "brown"},
	{"orange", "orange"},
	{"beige", "beige"},
}

var styleKeywords = []keyword{
	{"thể thao", "thể thao"},
	{"công sở", "công sở"},
	{"dạo phố", "dạo phố"},
	{"năng động", "năng động"},
	{"thanh lịch", "thanh lịch"},
	{"cổ điển", "cổ điển"},
	{"vintage", "vintage"},
	{"streetwear", "streetwear"},
	{"sporty", "sporty"},
	{"sport", "sport"},
	{"office", "office"},
	{"casual", "casual"},
	{"basic", "basic"},
	{"elegant", "elegant"},
	{"classic", "classic"},
}

// tagCategories map phrases to canonical tag values, checked in this order.
var tagCategories = []struct {
	tag     string
	phrases []string
}{
	{"bestseller", []string{"best seller", "bestseller", "best-seller", "bán chạy", "phổ biến"}},
	{"hot", []string{"hot", "trending", "xu hướng"}},
	{"new", []string{"new arrival", "hàng mới", "mới về", "mới", "new"}},
}

const (
	amountPattern = `(\d+(?:[.,]\d+)*)`
	// hundred, unit, then any letters glued to the unit.
	unitPattern = `\s*(trăm\s*)?(triệu|million|nghìn|ngàn|tr|m|k)?(\pL*)`
)

var (
	rangeRe = regexp.MustCompile(`(?:từ|from|khoảng|between)\s*` + amountPattern + unitPattern +
		`\s*(?:đến|tới|to|and|-)\s*` + amountPattern + unitPattern)
	underRe = regexp.MustCompile(`(?:dưới|under|below|less than|nhỏ hơn|không quá|tối đa|max)\s*` + amountPattern + unitPattern)
	overRe  = regexp.MustCompile(`(?:trên|over|above|more than|lớn hơn|từ|tối thiểu|min)\s*` + amountPattern + unitPattern)
)

var currencySuffixes = map[string]bool{"đ": true, "d": true, "vnd": true, "vnđ": true, "đồng": true, "dong": true}

// ExtractRules derives a Filter from text with keyword rules. Dimensions are
// checked in a fixed order: brand, color, price, style, then tag. Category is
// never set on this path.
func ExtractRules(text string) Filter {
	t := strings.ToLower(norm.NFC.String(text))
	var f Filter

	if kw, ok := firstKeyword(t, brandKeywords); ok {
		f.Brand = kw.value
		// "new balance" must not also read as the "new" tag.
		t = strings.Replace(t, kw.phrase, " ", 1)
	}
	if kw, ok := firstKeyword(t, colorKeywords); ok {
		f.Color = kw.value
	}
	f.MinPrice, f.MaxPrice = extractPrice(t)
	if kw, ok := firstKeyword(t, styleKeywords); ok {
		f.Style = kw.value
	}
	for _, cat := range tagCategories {
		if f.Tag != "" {
			break
		}
		for _, phrase := range cat.phrases {
			if strings.Contains(t, phrase) {
				f.Tag = cat.tag
				break
			}
		}
	}
	return f
}

func firstKeyword(text string, list []keyword) (keyword, bool) {
	for _, kw := range list {
		if strings.Contains(text, kw.phrase) {
			return kw, true
		}
	}
	return keyword{}, false
}

// extractPrice tries a two-sided range first, then an upper bound, then a lower bound.
func extractPrice(t string) (lo, hi *decimal.Decimal) {
	if m := rangeRe.FindStringSubmatch(t); m != nil {
		low, high := amountAt(m, 1), amountAt(m, 5)
		if low.unit == "" && low.hundred == "" {
			low.unit = high.unit
		}
		lv, lok := low.value()
		hv, hok := high.value()
		if lok && hok {
			if lv.GreaterThan(hv) {
				lv, hv = hv, lv
			}
			return price(lv), price(hv)
		}
	}
	if m := underRe.FindStringSubmatch(t); m != nil {
		if v, ok := amountAt(m, 1).value(); ok {
			return nil, price(v)
		}
	}
	if m := overRe.FindStringSubmatch(t); m != nil {
		if v, ok := amountAt(m, 1).value(); ok {
			return price(v), nil
		}
	}
	return nil, nil
}

type amount struct {
	num     string
	hundred string
	unit    string
}

// amountAt reads the amount whose number is submatch i. A unit followed by more
// letters is the start of a word ("mẫu", "trăm"), not a unit.
func amountAt(m []string, i int) amount {
	a := amount{num: m[i], hundred: strings.TrimSpace(m[i+1]), unit: m[i+2]}
	if trail := m[i+3]; trail != "" && !currencySuffixes[trail] {
		a.unit = ""
	}
	return a
}

func unitMultiplier(unit string) decimal.Decimal {
	switch unit {
	case "triệu", "tr", "million", "m":
		return decimal.NewFromInt(1_000_000)
	case "nghìn", "ngàn", "k":
		return decimal.NewFromInt(1_000)
	default:
		return decimal.NewFromInt(1)
	}
}

// value reads "4", "1.5", "1,5" or "1.500.000". With a unit, a single
// separator is a decimal point; otherwise separators group thousands.
func (a amount) value() (decimal.Decimal, bool) {
	scaled := a.unit != "" || a.hundred != ""
	separators := strings.Count(a.num, ".") + strings.Count(a.num, ",")
	var cleaned string
	if scaled && separators == 1 {
		cleaned = strings.Replace(a.num, ",", ".", 1)
	} else {
		cleaned = strings.NewReplacer(".", "", ",", "").Replace(a.num)
	}
	v, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	v = v.Mul(unitMultiplier(a.unit))
	if a.hundred != "" {
		v = v.Mul(decimal.NewFromInt(100))
	}
	return v, true
}
