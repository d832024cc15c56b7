package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/meta-node-blockchain/benor/pkg/benor"
	"github.com/meta-node-blockchain/benor/pkg/codec"
)

const DefaultClientTimeout = 5 * time.Second

// Resolver maps a node index to its base URL, e.g. "http://localhost:3002".
type Resolver func(index int) string

// HTTPSender posts round messages to peers' /message route.
type HTTPSender struct {
	client  *http.Client
	resolve Resolver
	codec   codec.Codec
}

func NewHTTPSender(client *http.Client, resolve Resolver, c codec.Codec) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: DefaultClientTimeout}
	}
	if c == nil {
		c = codec.JSON{}
	}
	return &HTTPSender{client: client, resolve: resolve, codec: c}
}

func (s *HTTPSender) Send(ctx context.Context, target int, msg benor.Message) error {
	body, err := s.codec.Marshal(msg)
	if err != nil {
		return err
	}
	url := s.resolve(target) + RouteMessage
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request for %s: %w", url, err)
	}
	req.Header.Set("Content-Type", s.codec.ContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s answered %s", url, resp.Status)
	}
	return nil
}
