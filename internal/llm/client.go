// Package llm is the generative text adapter used by every pipeline stage.
// It walks the configured providers in preference order and cools down the
// ones that report quota or rate-limit errors.
package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"lexiflow/internal/providers"

	"github.com/rs/zerolog"
)

const systemPrompt = "You produce study material from documents. Follow the requested output format exactly."

var ErrProvidersExhausted = errors.New("all llm providers exhausted")

// CallRecord describes one provider attempt.
type CallRecord struct {
	Operation string
	Provider  string
	Model     string
	Status    string
	ErrorType string
	Took      time.Duration
}

// Auditor receives a record for every provider attempt. Errors are logged
// and never fail the call.
type Auditor interface {
	RecordCall(ctx context.Context, rec CallRecord) error
}

type Client struct {
	manager  *providers.Manager
	cooldown time.Duration
	log      zerolog.Logger
	audit    Auditor

	mu            sync.Mutex
	disabledUntil map[int]time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(manager *providers.Manager, cooldown time.Duration, log zerolog.Logger) *Client {
	if cooldown <= 0 {
		cooldown = 2 * time.Minute
	}
	return &Client{
		manager:       manager,
		cooldown:      cooldown,
		log:           log.With().Str("component", "llm").Logger(),
		disabledUntil: map[int]time.Time{},
		now:           time.Now,
		sleep:         sleepCtx,
	}
}

// WithAuditor attaches a per-call audit sink.
func (c *Client) WithAuditor(a Auditor) *Client {
	c.audit = a
	return c
}

// GenerateText returns the raw text of the first provider that answers.
func (c *Client) GenerateText(ctx context.Context, op, prompt string) (string, error) {
	resp, err := c.generate(ctx, providers.GenerateRequest{Operation: op, System: systemPrompt, Prompt: prompt})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// GenerateJSON decodes the response into out. Output that is not valid JSON
// is retried once against the first balanced object found in it.
func (c *Client) GenerateJSON(ctx context.Context, op, prompt string, out any) error {
	resp, err := c.generate(ctx, providers.GenerateRequest{Operation: op, System: systemPrompt, Prompt: prompt, JSON: true})
	if err != nil {
		return err
	}
	if err := DecodeJSON(resp.Text, out); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) generate(ctx context.Context, req providers.GenerateRequest) (providers.GenerateResponse, error) {
	order := c.manager.PreferredLLMOrder()
	if len(order) == 0 {
		return providers.GenerateResponse{}, ErrProvidersExhausted
	}
	retries := map[int]int{}
	var lastErr error
	for attempt := 0; attempt < len(order)*3; attempt++ {
		idx := order[attempt%len(order)]
		if c.isDisabled(idx) {
			continue
		}
		provider, ref := c.manager.LLMProviderByIndex(idx)
		started := c.now()
		resp, info, err := provider.Generate(ctx, req)
		c.record(ctx, req.Operation, info, ref, err, c.now().Sub(started))
		if err == nil {
			c.log.Debug().Str("operation", req.Operation).Str("provider", info.Name).Str("model", info.Model).
				Dur("took", c.now().Sub(started)).Msg("llm call ok")
			return resp, nil
		}
		if ctx.Err() != nil {
			return providers.GenerateResponse{}, ctx.Err()
		}
		lastErr = fmt.Errorf("llm generate via %s failed: %w", ref.Raw, err)
		errType := providers.ClassifyError(err)
		retries[idx]++
		c.log.Warn().Err(err).Str("operation", req.Operation).Str("provider", ref.Raw).
			Str("error_type", string(errType)).Bool("retryable", errType.Retryable()).Int("attempt", attempt).Msg("llm call failed")
		switch errType {
		case providers.ErrorQuota:
			c.disable(idx, c.cooldown)
		case providers.ErrorRate:
			if retries[idx] <= 2 {
				if err := c.sleep(ctx, time.Duration(retries[idx]*2)*time.Second); err != nil {
					return providers.GenerateResponse{}, err
				}
			} else {
				c.disable(idx, c.cooldown)
			}
		case providers.ErrorTransient:
			if retries[idx] <= 2 {
				if err := c.sleep(ctx, time.Duration(retries[idx])*time.Second); err != nil {
					return providers.GenerateResponse{}, err
				}
			}
		case providers.ErrorContext:
			return providers.GenerateResponse{}, lastErr
		default:
			c.disable(idx, time.Minute)
		}
	}
	if lastErr == nil {
		lastErr = ErrProvidersExhausted
	}
	return providers.GenerateResponse{}, lastErr
}

func (c *Client) record(ctx context.Context, op string, info providers.ProviderInfo, ref providers.ProviderRef, err error, took time.Duration) {
	if c.audit == nil {
		return
	}
	rec := CallRecord{Operation: op, Provider: info.Name, Model: info.Model, Status: "ok", Took: took}
	if rec.Provider == "" {
		rec.Provider = ref.Name
	}
	if err != nil {
		rec.Status = "error"
		rec.ErrorType = string(providers.ClassifyError(err))
	}
	if aerr := c.audit.RecordCall(context.WithoutCancel(ctx), rec); aerr != nil {
		c.log.Warn().Err(aerr).Str("operation", op).Msg("llm audit write failed")
	}
}

func (c *Client) isDisabled(idx int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	until, ok := c.disabledUntil[idx]
	return ok && c.now().Before(until)
}

func (c *Client) disable(idx int, d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disabledUntil[idx] = c.now().Add(d)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
