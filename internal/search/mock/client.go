package mock

import (
	"context"
	"sync"
	"time"

	"github.com/kitbuilder587/askweb/internal/search"
)

type Provider struct {
	ProviderName string
	Results      []search.SearchResult
	Error        error
	Delay        time.Duration
	// ByQuery перекрывает Results для конкретного запроса.
	ByQuery map[string][]search.SearchResult

	CallCount   int
	LastRequest search.SearchRequest
	AllRequests []search.SearchRequest

	mu sync.Mutex
}

func New(name string) *Provider {
	return &Provider{ProviderName: name}
}

func (p *Provider) WithResults(results []search.SearchResult) *Provider {
	p.Results = results
	return p
}

func (p *Provider) WithQueryResults(query string, results []search.SearchResult) *Provider {
	if p.ByQuery == nil {
		p.ByQuery = make(map[string][]search.SearchResult)
	}
	p.ByQuery[query] = results
	return p
}

func (p *Provider) WithError(err error) *Provider {
	p.Error = err
	return p
}

func (p *Provider) WithDelay(delay time.Duration) *Provider {
	p.Delay = delay
	return p
}

func (p *Provider) Name() string {
	return p.ProviderName
}

func (p *Provider) Search(ctx context.Context, req search.SearchRequest) ([]search.SearchResult, error) {
	p.mu.Lock()
	p.CallCount++
	p.LastRequest = req
	p.AllRequests = append(p.AllRequests, req)
	delay := p.Delay
	err := p.Error
	results := p.Results
	if r, ok := p.ByQuery[req.Query]; ok {
		results = r
	}
	p.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	if err != nil {
		return nil, err
	}

	if req.MaxResults > 0 && len(results) > req.MaxResults {
		results = results[:req.MaxResults]
	}
	return results, nil
}

func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CallCount
}

func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCount = 0
	p.LastRequest = search.SearchRequest{}
	p.AllRequests = nil
}

var _ search.Provider = (*Provider)(nil)
