package ports

import "github.com/bnema/powertrack-cli/internal/domain"

type StreamMetrics interface {
	SessionStarted(product domain.Product)
	SessionEnded(product domain.Product)
	ActivityDecoded(product domain.Product, bytes int)
	Emitted(product domain.Product, kind domain.ChannelKind)
	StreamError(product domain.Product, err error)
}

type RuleMetrics interface {
	RuleBatch(op string, size int, err error)
}

// NopMetrics discards everything.
type NopMetrics struct{}

var (
	_ StreamMetrics = NopMetrics{}
	_ RuleMetrics   = NopMetrics{}
)

func (NopMetrics) SessionStarted(domain.Product) {}
func (NopMetrics) SessionEnded(domain.Product) {}
func (NopMetrics) ActivityDecoded(domain.Product, int) {}
func (NopMetrics) Emitted(domain.Product, domain.ChannelKind) {}
func (NopMetrics) StreamError(domain.Product, error) {}
func (NopMetrics) RuleBatch(string, int, error) {}
