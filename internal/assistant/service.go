// Package assistant answers chat messages by extracting a product filter from
// the text, searching the catalog, and phrasing a reply.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/noah-isme/shopmate/internal/catalog"
	"github.com/noah-isme/shopmate/internal/genai"
	"github.com/noah-isme/shopmate/internal/intent"
	"github.com/noah-isme/shopmate/internal/obs"
)

// ErrEmptyMessage is returned for blank input.
var ErrEmptyMessage = errors.New("assistant: message is empty")

const (
	defaultMaxResults   = 5
	defaultWriteTimeout = 8 * time.Second
)

// ReplySource records how the reply text was produced.
type ReplySource string

const (
	ReplyModel    ReplySource = "model"
	ReplyTemplate ReplySource = "template"
	ReplyStatic   ReplySource = "static"
)

// CatalogSource loads the full product list.
type CatalogSource interface {
	List(ctx context.Context) ([]catalog.Product, error)
}

// Reply is the assistant's answer to one message.
type Reply struct {
	Message      string            `json:"message"`
	Products     []catalog.Product `json:"products"`
	Filter       intent.Filter     `json:"filter"`
	FilterSource intent.Source     `json:"filterSource"`
	ReplySource  ReplySource       `json:"replySource"`
}

// Service wires the extractor, catalog and reply writer together.
type Service struct {
	Extractor    *intent.Extractor
	Catalog      CatalogSource
	Writer       genai.Generator
	MaxResults   int
	WriteTimeout time.Duration
	Logger       zerolog.Logger
}

// Reply answers text. Only an empty message or a catalog read failure is an error;
// model failures degrade to the keyword rules and the reply template.
func (s *Service) Reply(ctx context.Context, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyMessage
	}
	f, src := s.Extractor.Extract(ctx, text)
	if f.IsEmpty() {
		obs.CountAssistantReply("no_intent")
		return Reply{
			Message:      staticReply(text),
			Products:     []catalog.Product{},
			FilterSource: src,
			ReplySource:  ReplyStatic,
		}, nil
	}

	if s.Catalog == nil {
		return Reply{}, errors.New("assistant: catalog not configured")
	}
	products, err := s.Catalog.List(ctx)
	if err != nil {
		obs.CountAssistantReply("error")
		return Reply{}, fmt.Errorf("load catalog: %w", err)
	}
	matches := intent.Top(intent.Match(f, products), s.maxResults())

	message, replySrc := s.write(ctx, text, f, matches)
	outcome := "matched"
	if len(matches) == 0 {
		outcome = "no_match"
	}
	obs.CountAssistantReply(outcome)
	return Reply{
		Message:      message,
		Products:     matches,
		Filter:       f,
		FilterSource: src,
		ReplySource:  replySrc,
	}, nil
}

func (s *Service) write(ctx context.Context, text string, f intent.Filter, matches []catalog.Product) (string, ReplySource) {
	if s.Writer == nil {
		return templateReply(f, matches), ReplyTemplate
	}
	timeout := s.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := s.Writer.Generate(callCtx, replyPrompt(text, matches))
	if err == nil {
		out = strings.TrimSpace(genai.StripFence(out))
	}
	if err != nil || out == "" {
		if err == nil {
			err = genai.ErrEmptyResponse
		}
		s.Logger.Warn().Err(err).Msg("reply_model_fallback")
		return templateReply(f, matches), ReplyTemplate
	}
	return out, ReplyModel
}

func (s *Service) maxResults() int {
	if s.MaxResults <= 0 {
		return defaultMaxResults
	}
	return s.MaxResults
}

func replyPrompt(text string, matches []catalog.Product) string {
	var sb strings.Builder
	sb.WriteString("Bạn là trợ lý bán hàng thân thiện của một ứng dụng mua sắm. Trả lời ngắn gọn bằng tiếng Việt.\n")
	fmt.Fprintf(&sb, "Khách hỏi: %q\n", text)
	if len(matches) == 0 {
		sb.WriteString("Không có sản phẩm phù hợp. Hãy xin lỗi và gợi ý khách mô tả lại nhu cầu.\n")
		return sb.String()
	}
	sb.WriteString("Các sản phẩm phù hợp:\n")
	for _, p := range matches {
		fmt.Fprintf(&sb, "- %s (%s) giá %s đ\n", p.Name, p.Brand, formatPrice(p))
	}
	sb.WriteString("Giới thiệu các sản phẩm trên, không bịa thêm sản phẩm khác.\n")
	return sb.String()
}

// templateReply is the canned reply used when no writer is configured or it fails.
func templateReply(f intent.Filter, matches []catalog.Product) string {
	if len(matches) == 0 {
		return "Xin lỗi, hiện chưa có sản phẩm phù hợp với yêu cầu của bạn. Bạn thử mô tả khác đi một chút nhé!"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Mình tìm thấy %d sản phẩm phù hợp", len(matches))
	if desc := describe(f); desc != "" {
		sb.WriteString(" (" + desc + ")")
	}
	sb.WriteString(":")
	for _, p := range matches {
		fmt.Fprintf(&sb, "\n• %s - %s đ", p.Name, formatPrice(p))
	}
	return sb.String()
}

func describe(f intent.Filter) string {
	var parts []string
	for _, v := range []string{f.Brand, f.Category, f.Color, f.Style} {
		if v != "" {
			parts = append(parts, v)
		}
	}
	if f.MinPrice != nil {
		parts = append(parts, "từ "+f.MinPrice.StringFixed(0)+" đ")
	}
	if f.MaxPrice != nil {
		parts = append(parts, "dưới "+f.MaxPrice.StringFixed(0)+" đ")
	}
	return strings.Join(parts, ", ")
}

func formatPrice(p catalog.Product) string {
	return p.Price.StringFixed(0)
}

// staticReply answers messages without a product intent.
func staticReply(text string) string {
	t := strings.ToLower(norm.NFC.String(text))
	switch {
	case containsAny(t, "xin chào", "chào", "hello", "hi ", "hey"):
		return "Xin chào! Mình là trợ lý mua sắm. Bạn đang tìm sản phẩm gì, thương hiệu, màu sắc hay tầm giá nào?"
	case containsAny(t, "voucher", "mã giảm", "khuyến mãi", "giảm giá", "coupon"):
		return "Bạn có thể xem các voucher đang có trong mục Voucher và lưu lại để dùng khi thanh toán nhé."
	case containsAny(t, "đơn hàng", "giao hàng", "vận chuyển", "order", "shipping", "ship"):
		return "Bạn có thể theo dõi đơn hàng trong mục Đơn hàng. Phí giao hàng được tính cố định cho mỗi đơn."
	default:
		return "Bạn có thể cho mình biết thêm về thương hiệu, màu sắc, kiểu dáng hoặc tầm giá mong muốn không?"
	}
}

func containsAny(text string, phrases ...string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) || strings.TrimSpace(p) == text {
			return true
		}
	}
	return false
}
