package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"nludevops/internal/domain"
)

type HubConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	TestTimeout time.Duration
}

type Tester interface {
	Test(ctx context.Context, query json.RawMessage) (domain.Result, error)
}

type Hub struct {
	cfg    HubConfig
	client paho.Client
	tester Tester
	logger *slog.Logger
	ctx    context.Context
}

// TestReply is published on the result topic for each remote test request.
type TestReply struct {
	RequestID string        `json:"request_id"`
	OK        bool          `json:"ok"`
	Result    domain.Result `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// NewHub builds a hub. tester may be nil for a publish-only hub.
func NewHub(cfg HubConfig, tester Tester, logger *slog.Logger) *Hub {
	if cfg.TestTimeout <= 0 {
		cfg.TestTimeout = 20 * time.Second
	}
	return &Hub{
		cfg:    cfg,
		tester: tester,
		logger: logger,
		ctx:    context.Background(),
	}
}

func (h *Hub) Start(ctx context.Context) error {
	opts := paho.NewClientOptions().
		AddBroker(h.cfg.BrokerURL).
		SetClientID(h.cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	if h.cfg.Username != "" {
		opts.SetUsername(h.cfg.Username)
		opts.SetPassword(h.cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		h.logger.Error("mqtt connection lost", "error", err)
	})

	h.ctx = ctx
	h.client = paho.NewClient(opts)
	if token := h.client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	if h.tester != nil {
		if token := h.client.Subscribe(TopicTestRequests(h.cfg.TopicPrefix), 1, h.handleTestRequest); token.Wait() && token.Error() != nil {
			return token.Error()
		}
	}

	go func() {
		<-ctx.Done()
		h.client.Disconnect(100)
	}()

	return nil
}

func (h *Hub) handleTestRequest(_ paho.Client, msg paho.Message) {
	requestID, err := ParseRequestID(msg.Topic(), h.cfg.TopicPrefix)
	if err != nil {
		h.logger.Warn("skip invalid test topic", "topic", msg.Topic(), "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, h.cfg.TestTimeout)
	defer cancel()
	reply := h.runTest(ctx, requestID, msg.Payload())

	if err := h.publishJSON(TopicTestResult(h.cfg.TopicPrefix, requestID), reply); err != nil {
		h.logger.Warn("publish test reply failed", "request_id", requestID, "error", err)
		return
	}
	h.logger.Info("test request handled", "request_id", requestID, "ok", reply.OK)
}

func (h *Hub) runTest(ctx context.Context, requestID string, payload []byte) TestReply {
	res, err := h.tester.Test(ctx, json.RawMessage(payload))
	if err != nil {
		return TestReply{RequestID: requestID, OK: false, Error: err.Error()}
	}
	return TestReply{RequestID: requestID, OK: true, Result: res}
}

func (h *Hub) PublishOutcome(_ context.Context, runID string, outcome domain.Outcome) error {
	return h.publishJSON(TopicRunOutcome(h.cfg.TopicPrefix, runID), outcome)
}

func (h *Hub) publishJSON(topic string, v any) error {
	if h.client == nil {
		return fmt.Errorf("mqtt hub is not started")
	}
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if token := h.client.Publish(topic, 1, false, body); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	return nil
}
