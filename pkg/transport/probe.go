package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/meta-node-blockchain/benor/pkg/readiness"
)

const probeTimeout = 500 * time.Millisecond

// ProbePeers returns a readiness predicate that holds once every peer answers
// its status route. Any HTTP answer counts, a faulty peer's 500 included.
// Peers found ready are not probed again.
func ProbePeers(client *http.Client, n int, resolve Resolver) readiness.Predicate {
	if client == nil {
		client = &http.Client{Timeout: probeTimeout}
	}
	registry := readiness.NewRegistry(n)
	var mu sync.Mutex
	return func() bool {
		mu.Lock()
		defer mu.Unlock()
		for i := 0; i < n; i++ {
			if registry.IsReady(i) {
				continue
			}
			if !probe(client, resolve(i)+RouteStatus) {
				return false
			}
			registry.MarkReady(i)
		}
		return true
	}
}

func probe(client *http.Client, url string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
