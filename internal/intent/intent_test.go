package intent

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/shopmate/internal/catalog"
	"github.com/noah-isme/shopmate/internal/genai"
)

func d(v int64) *decimal.Decimal {
	x := decimal.NewFromInt(v)
	return &x
}

func requireFilter(t *testing.T, want, got Filter) {
	t.Helper()
	require.Equal(t, want.Brand, got.Brand, "brand")
	require.Equal(t, want.Color, got.Color, "color")
	require.Equal(t, want.Style, got.Style, "style")
	require.Equal(t, want.Category, got.Category, "category")
	require.Equal(t, want.Tag, got.Tag, "tag")
	requirePrice(t, "minPrice", want.MinPrice, got.MinPrice)
	requirePrice(t, "maxPrice", want.MaxPrice, got.MaxPrice)
}

func requirePrice(t *testing.T, name string, want, got *decimal.Decimal) {
	t.Helper()
	if want == nil {
		require.Nil(t, got, name)
		return
	}
	require.NotNil(t, got, name)
	require.True(t, want.Equal(*got), "%s: want %s got %s", name, want, got)
}

func TestExtractRules(t *testing.T) {
	cases := []struct {
		text string
		want Filter
	}{
		{"Nike giày màu đen dưới 4 triệu", Filter{Brand: "nike", Color: "đen", MaxPrice: d(4_000_000)}},
		{"ADIDAS trắng từ 1,5 đến 3 triệu", Filter{Brand: "adidas", Color: "trắng", MinPrice: d(1_500_000), MaxPrice: d(3_000_000)}},
		{"shoes from 1 to 2 million, sporty", Filter{MinPrice: d(1_000_000), MaxPrice: d(2_000_000), Style: "sporty"}},
		{"áo thể thao trên 500k", Filter{Style: "thể thao", MinPrice: d(500_000)}},
		{"đồ bán chạy hot nhất", Filter{Tag: "bestseller"}},
		{"hàng mới về", Filter{Tag: "new"}},
		{"New Balance 550", Filter{Brand: "new balance"}},
		{"dưới 1.500.000đ", Filter{MaxPrice: d(1_500_000)}},
		{"dưới 4 mẫu", Filter{MaxPrice: d(4)}},
		{"dưới 5 trăm nghìn", Filter{MaxPrice: d(500_000)}},
		{"giá trên 2tr", Filter{MinPrice: d(2_000_000)}},
		{"từ 1tr-2tr", Filter{MinPrice: d(1_000_000), MaxPrice: d(2_000_000)}},
		{"quần màu be", Filter{Color: "be"}},
		{"xanh dương hay xanh lá", Filter{Color: "xanh dương"}},
		{"xin chào shop", Filter{}},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			requireFilter(t, tc.want, ExtractRules(tc.text))
		})
	}
}

func TestExtractRulesNormalisesCombiningMarks(t *testing.T) {
	decomposed := norm.NFD.String("giày màu đen dưới 4 triệu")
	f := ExtractRules(decomposed)
	require.Equal(t, "đen", f.Color)
	requirePrice(t, "maxPrice", d(4_000_000), f.MaxPrice)
}

func TestExtractRulesNeverSetsCategory(t *testing.T) {
	require.Empty(t, ExtractRules("tìm giày sneaker category shoes").Category)
}

func TestParseModelOutput(t *testing.T) {
	f, err := ParseModelOutput("Here you go:\n```json\n{\"brand\":\"Nike\",\"color\":\"đen\",\"category\":\"giày\",\"maxPrice\":\"4.000.000\",\"minPrice\":0,\"tag\":null}\n```")
	require.NoError(t, err)
	requireFilter(t, Filter{Brand: "nike", Color: "đen", Category: "giày", MaxPrice: d(4_000_000)}, f)

	f, err = ParseModelOutput(`{"brand":"","color":"none","minPrice":1500000}`)
	require.NoError(t, err)
	requireFilter(t, Filter{MinPrice: d(1_500_000)}, f)

	_, err = ParseModelOutput("I could not understand")
	require.ErrorIs(t, err, ErrNoObject)

	_, err = ParseModelOutput("{brand: nike}")
	require.Error(t, err)
}

func TestExtractorPaths(t *testing.T) {
	text := "Nike giày màu đen dưới 4 triệu"
	rules := ExtractRules(text)

	t.Run("no model uses rules", func(t *testing.T) {
		f, src := (&Extractor{}).Extract(context.Background(), text)
		require.Equal(t, SourceRules, src)
		requireFilter(t, rules, f)
	})

	t.Run("model succeeds", func(t *testing.T) {
		model := genai.Func(func(ctx context.Context, prompt string) (string, error) {
			require.Contains(t, prompt, text)
			return `{"brand":"nike","category":"giày","maxPrice":4000000}`, nil
		})
		f, src := (&Extractor{Model: model}).Extract(context.Background(), text)
		require.Equal(t, SourceModel, src)
		requireFilter(t, Filter{Brand: "nike", Category: "giày", MaxPrice: d(4_000_000)}, f)
	})

	t.Run("model error falls back", func(t *testing.T) {
		model := genai.Func(func(context.Context, string) (string, error) {
			return "", errors.New("quota exceeded")
		})
		f, src := (&Extractor{Model: model}).Extract(context.Background(), text)
		require.Equal(t, SourceFallback, src)
		requireFilter(t, rules, f)
	})

	t.Run("unparseable output falls back", func(t *testing.T) {
		model := genai.Func(func(context.Context, string) (string, error) {
			return "Sure! Nike black shoes.", nil
		})
		f, src := (&Extractor{Model: model}).Extract(context.Background(), text)
		require.Equal(t, SourceFallback, src)
		requireFilter(t, rules, f)
	})

	t.Run("timeout falls back", func(t *testing.T) {
		model := genai.Func(func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
		start := time.Now()
		f, src := (&Extractor{Model: model, Timeout: 20 * time.Millisecond}).Extract(context.Background(), text)
		require.Equal(t, SourceFallback, src)
		require.Less(t, time.Since(start), time.Second)
		requireFilter(t, rules, f)
	})
}

func testCatalog() []catalog.Product {
	return []catalog.Product{
		{ID: "1", Name: "Nike Air Force 1 đen", Brand: "Nike", Category: "Giày", Price: decimal.NewFromInt(2_900_000), Tag: "bestseller"},
		{ID: "2", Name: "Nike Pegasus", Brand: "Nike", Category: "Giày", Color: "Đen", Price: decimal.NewFromInt(4_000_000)},
		{ID: "3", Name: "Nike Jordan", Brand: "Nike", Category: "Giày", Description: "phối màu đen đỏ", Price: decimal.NewFromInt(5_500_000)},
		{ID: "4", Name: "Adidas Samba đen", Brand: "Adidas", Category: "Giày", Price: decimal.NewFromInt(2_500_000)},
		{ID: "5", Name: "Nike Dunk", Brand: "Nike", Category: "Giày", Color: "trắng", Price: decimal.NewFromInt(3_000_000)},
		{ID: "6", Name: "Nike Cortez đen", Brand: "Nike", Category: "Giày", Style: "Cổ điển", Price: decimal.Zero},
	}
}

func ids(products []catalog.Product) []string {
	out := make([]string, 0, len(products))
	for _, p := range products {
		out = append(out, p.ID)
	}
	return out
}

func TestMatchScenario(t *testing.T) {
	f := ExtractRules("Nike giày màu đen dưới 4 triệu")
	got := Match(f, testCatalog())
	require.Equal(t, []string{"1", "2", "6"}, ids(got))
}

func TestMatchPriceEdges(t *testing.T) {
	products := testCatalog()
	require.Equal(t, []string{"1", "2", "3", "4", "5"}, ids(Match(Filter{MinPrice: d(1)}, products)),
		"a zero price fails any minimum")
	require.Equal(t, []string{"2", "3"}, ids(Match(Filter{MinPrice: d(4_000_000)}, products)))
	require.Contains(t, ids(Match(Filter{MaxPrice: d(100)}, products)), "6", "a zero price passes any maximum")
}

func TestMatchFields(t *testing.T) {
	products := testCatalog()
	require.Equal(t, []string{"1"}, ids(Match(Filter{Tag: "BEST"}, products)))
	require.Equal(t, []string{"6"}, ids(Match(Filter{Style: "cổ điển"}, products)))
	require.Equal(t, []string{"4"}, ids(Match(Filter{Brand: "adidas", Category: "giày"}, products)))
	require.Empty(t, Match(Filter{Brand: "puma"}, products))
}

func TestMatchEmptyFilterShortCircuits(t *testing.T) {
	require.Nil(t, Match(Filter{}, testCatalog()))
}

func TestMatchIsIdempotent(t *testing.T) {
	products := testCatalog()
	f := Filter{Brand: "nike", MaxPrice: d(5_000_000)}
	first := Match(f, products)
	second := Match(f, products)
	require.True(t, reflect.DeepEqual(first, second))
	require.Equal(t, testCatalog(), products, "catalog must not be modified")
}

func TestTop(t *testing.T) {
	products := testCatalog()
	require.Len(t, Top(products, 5), 5)
	require.Len(t, Top(products[:2], 5), 2)
	require.Equal(t, "1", Top(products, 1)[0].ID)
}
