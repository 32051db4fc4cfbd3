package router

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// Sender delivers one encoded event to a destination. A nil error means the
// destination accepted it.
type Sender interface {
	Send(ctx context.Context, conn Connection, body []byte, ev map[string]interface{}) error
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL    string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("POST %s: unexpected status %d: %s", e.URL, e.Status, e.Body)
}

// HTTPSender posts JSON with the configured headers. With Auth set, a
// non-empty auth_scheme adds "Authorization: <scheme> <api_key>".
type HTTPSender struct {
	Client *http.Client
	Auth   bool
}

// NewHTTPSender builds a sender with the given request timeout.
func NewHTTPSender(timeout time.Duration, auth bool) *HTTPSender {
	return &HTTPSender{Client: &http.Client{Timeout: timeout}, Auth: auth}
}

func (s *HTTPSender) Send(ctx context.Context, conn Connection, body []byte, _ map[string]interface{}) error {
	req, err := newRequest(ctx, conn, body)
	if err != nil {
		return err
	}
	if s.Auth && conn.AuthScheme != "" {
		req.Header.Set("Authorization", conn.AuthScheme+" "+conn.APIKey)
	}
	return do(s.client(), req)
}

func (s *HTTPSender) client() *http.Client {
	if s.Client == nil {
		return http.DefaultClient
	}
	return s.Client
}

// LRSSender posts xAPI statements to a learning record store using basic
// auth. Username/password take precedence over api_key used as a username
// with an empty secret.
type LRSSender struct {
	Client  *http.Client
	Version string
}

// NewLRSSender builds an LRS sender with the given request timeout.
func NewLRSSender(timeout time.Duration) *LRSSender {
	return &LRSSender{Client: &http.Client{Timeout: timeout}, Version: "1.0.3"}
}

func (s *LRSSender) Send(ctx context.Context, conn Connection, body []byte, _ map[string]interface{}) error {
	req, err := newRequest(ctx, conn, body)
	if err != nil {
		return err
	}
	user, pass := conn.Username, conn.Password
	if user == "" {
		user = conn.APIKey
	}
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	version := s.Version
	if version == "" {
		version = "1.0.3"
	}
	req.Header.Set("X-Experience-API-Version", version)
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	return do(client, req)
}

// Producer is the subset of *kgo.Client the Kafka sender uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// KafkaSender produces the event to conn.Topic keyed by the event id.
type KafkaSender struct {
	Producer Producer
	Timeout  time.Duration
}

// NewKafkaClient creates the franz-go client shared by Kafka destinations.
func NewKafkaClient(brokers []string, clientID string) (*kgo.Client, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ClientID(clientID),
		kgo.ProducerLinger(10*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return client, nil
}

func (s *KafkaSender) Send(ctx context.Context, conn Connection, body []byte, ev map[string]interface{}) error {
	if s.Producer == nil {
		return fmt.Errorf("kafka producer is not configured")
	}
	record := &kgo.Record{Topic: conn.Topic, Value: body}
	if id := eventID(ev); id != "" {
		record.Key = []byte(id)
	}
	for k, v := range conn.Headers {
		record.Headers = append(record.Headers, kgo.RecordHeader{Key: k, Value: []byte(v)})
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}
	if err := s.Producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce to %s: %w", conn.Topic, err)
	}
	return nil
}

// eventID finds the id of a Caliper event, an enveloped Caliper event or an
// xAPI statement.
func eventID(ev map[string]interface{}) string {
	if id, ok := ev["id"].(string); ok {
		return id
	}
	if data, ok := ev["data"].(map[string]interface{}); ok {
		if id, ok := data["id"].(string); ok {
			return id
		}
	}
	return ""
}

func newRequest(ctx context.Context, conn Connection, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, conn.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range conn.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func do(client *http.Client, req *http.Request) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{URL: req.URL.String(), Status: resp.StatusCode, Body: string(snippet)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Strategies maps a router type to its sender.
type Strategies map[string]Sender

// DefaultStrategies returns the HTTP based strategies. Kafka is added by the
// caller when a producer is configured.
func DefaultStrategies(timeout time.Duration) Strategies {
	return Strategies{
		StrategyHTTP:        NewHTTPSender(timeout, false),
		StrategyAuthHeaders: NewHTTPSender(timeout, true),
		StrategyLRS:         NewLRSSender(timeout),
	}
}

// Names returns the set of registered strategy names.
func (s Strategies) Names() map[string]bool {
	out := make(map[string]bool, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}
