package browser

import (
	"math/rand"
	"sync"
)

// IdentityPool rotates the user agents presented to the origin so
// consecutive sessions do not share an obvious fingerprint.
type IdentityPool struct {
	userAgents []string
	mu         sync.Mutex
	index      int
}

func NewIdentityPool() *IdentityPool {
	// In production, load these from config or a remote service
	return &IdentityPool{
		userAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
	}
}

// UserAgent returns the next user agent, rotating sequentially with a
// random starting offset per pool.
func (p *IdentityPool) UserAgent() string {
	if len(p.userAgents) == 0 {
		return ""
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.index == 0 {
		p.index = rand.Intn(len(p.userAgents))
	}
	ua := p.userAgents[p.index%len(p.userAgents)]
	p.index++
	return ua
}
