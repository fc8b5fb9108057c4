package intent

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/shopmate/internal/genai"
	"github.com/noah-isme/shopmate/internal/obs"
)

const defaultExtractTimeout = 8 * time.Second

const extractPrompt = `Bạn là bộ phân tích yêu cầu mua sắm. Đọc câu của khách và trả về DUY NHẤT một đối tượng JSON
với các khóa: brand, color, style, category, tag, minPrice, maxPrice.
Để chuỗi rỗng hoặc null cho khóa không được nhắc tới. Giá là số nguyên VND (ví dụ "dưới 4 triệu" -> maxPrice 4000000).
tag chỉ nhận một trong: bestseller, hot, new.
Câu của khách: %q`

// Extractor produces filters with the model when one is configured and falls
// back to the keyword rules on any model failure. It never returns an error.
type Extractor struct {
	Model   genai.Generator
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Extract returns the filter for text and the path that produced it.
func (e *Extractor) Extract(ctx context.Context, text string) (Filter, Source) {
	if e == nil || e.Model == nil {
		f := ExtractRules(text)
		obs.CountIntent(string(SourceRules), resultLabel(f))
		return f, SourceRules
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = defaultExtractTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := e.Model.Generate(callCtx, fmt.Sprintf(extractPrompt, text))
	if err != nil {
		return e.extractFallback(text, err)
	}
	f, err := ParseModelOutput(out)
	if err != nil {
		return e.extractFallback(text, err)
	}
	obs.CountIntent(string(SourceModel), resultLabel(f))
	return f, SourceModel
}

// extractFallback is the keyword path taken when the model call or its parsing fails.
func (e *Extractor) extractFallback(text string, cause error) (Filter, Source) {
	e.Logger.Warn().Err(cause).Msg("intent_model_fallback")
	f := ExtractRules(text)
	obs.CountIntent(string(SourceFallback), resultLabel(f))
	return f, SourceFallback
}

func resultLabel(f Filter) string {
	if f.IsEmpty() {
		return "empty"
	}
	return "matched"
}
