package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const (
	responsesPath = "/responses"
	chatPath      = "/chat/completions"
	imagesPath    = "/images/generations"

	DefaultTemperature     = 0.9
	DefaultMaxOutputTokens = 900

	// Minimum spacing between calls of the same category. The image
	// interval adapts at runtime; these are the starting points.
	defaultTextInterval  = time.Second
	defaultImageInterval = 5 * time.Second

	// Backoff window applied to text calls when the server rate-limits
	// without supplying a retry hint.
	defaultTextBackoff = 8 * time.Second

	// Bounds for the adaptive image interval: grows 1.5x per limit
	// hit up to the cap, decays 0.9x toward the floor per success.
	imageIntervalCap    = 30 * time.Second
	imageIntervalGrowth = 1.5
	imageIntervalDecay  = 0.9
)

// Status is a coarse progress signal emitted to the presentation
// layer as tasks move through the scheduler.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusActive     Status = "active"
	StatusError      Status = "error"
)

// CredentialSource resolves the bearer credential for outbound calls.
// The client memoizes the resolved value and re-resolves only after an
// authentication failure invalidates the cache.
type CredentialSource interface {
	Resolve(ctx context.Context) (string, error)
}

// StaticCredential is a fixed API key.
type StaticCredential string

func (s StaticCredential) Resolve(ctx context.Context) (string, error) {
	if s == "" {
		return "", errors.New("no api key configured")
	}
	return string(s), nil
}

// task is one pending unit of work in the scheduler queue.
type task struct {
	ctx      context.Context
	id       string
	category category
	run      func(ctx context.Context) (string, error)
	done     chan taskResult
}

type taskResult struct {
	text string
	err  error
}

type category int

const (
	categoryText category = iota
	categoryImage
)

// Client serializes all generation calls against the provider. A
// single worker goroutine drains a FIFO task queue, so at most one
// network call is in flight per client and callers resolve in
// submission order. Rate-limit backoff and the credential cache are
// owned here and shared across all call categories.
type Client struct {
	baseURL    string
	textModel  string
	imageModel string
	imageSize  string
	httpClient *http.Client
	creds      CredentialSource
	notifier   func(Status)
	logger     *slog.Logger

	tasks chan *task
	stop  chan struct{}
	once  sync.Once

	textLimiter  *rate.Limiter
	imageLimiter *rate.Limiter

	mu            sync.Mutex
	token         string
	blockedUntil  time.Time
	imageInterval time.Duration
	imageFloor    time.Duration
	textBackoff   time.Duration

	usage atomic.Int64
	now   func() time.Time
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

func WithModels(textModel, imageModel string) Option {
	return func(c *Client) {
		c.textModel = textModel
		c.imageModel = imageModel
	}
}

// WithNotifier registers the status hook wired to the presentation
// layer.
func WithNotifier(fn func(Status)) Option {
	return func(c *Client) {
		c.notifier = fn
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTextInterval overrides the minimum spacing between text calls.
func WithTextInterval(d time.Duration) Option {
	return func(c *Client) {
		c.textLimiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithImageInterval overrides the starting (and floor) spacing between
// image calls.
func WithImageInterval(d time.Duration) Option {
	return func(c *Client) {
		c.imageInterval = d
		c.imageFloor = d
		c.imageLimiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithTextBackoff overrides the fallback backoff window used when a
// rate-limit response carries no retry hint.
func WithTextBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.textBackoff = d
	}
}

// NewClient builds a client and starts its worker goroutine. Call
// Close to stop it.
func NewClient(baseURL string, creds CredentialSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		textModel:  "gpt-4o-mini",
		imageModel: "gpt-image-1",
		imageSize:  "1024x1024",
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
		creds:         creds,
		logger:        slog.Default(),
		tasks:         make(chan *task, 64),
		stop:          make(chan struct{}),
		textLimiter:   rate.NewLimiter(rate.Every(defaultTextInterval), 1),
		imageLimiter:  rate.NewLimiter(rate.Every(defaultImageInterval), 1),
		imageInterval: defaultImageInterval,
		imageFloor:    defaultImageInterval,
		textBackoff:   defaultTextBackoff,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	go c.worker()
	return c
}

// Close stops the worker. Tasks already queued fail with a shutdown
// error when the worker exits before reaching them.
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.stop)
	})
}

// TokensUsed returns the best-effort running total of tokens consumed.
func (c *Client) TokensUsed() int64 {
	return c.usage.Load()
}

// GenerateText produces narrative text for a prompt. The call is
// queued behind any in-flight work and resolves in submission order.
func (c *Client) GenerateText(ctx context.Context, system, prompt string) (string, error) {
	return c.enqueue(ctx, categoryText, func(ctx context.Context) (string, error) {
		return c.generateText(ctx, system, prompt)
	})
}

// GenerateImage produces a displayable image reference (URL or data
// URI) for a prompt.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (string, error) {
	return c.enqueue(ctx, categoryImage, func(ctx context.Context) (string, error) {
		return c.generateImage(ctx, prompt)
	})
}

// enqueue appends a task to the queue and blocks until the worker has
// run it to completion.
func (c *Client) enqueue(ctx context.Context, cat category, run func(ctx context.Context) (string, error)) (string, error) {
	t := &task{
		ctx:      ctx,
		id:       uuid.New().String()[:8],
		category: cat,
		run:      run,
		done:     make(chan taskResult, 1),
	}

	select {
	case c.tasks <- t:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.stop:
		return "", errors.New("client closed")
	}

	select {
	case res := <-t.done:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-c.stop:
		return "", errors.New("client closed")
	}
}

// worker drains the queue one task at a time. This loop is the only
// place network calls are dispatched, which is what enforces the
// FIFO and single-flight invariants.
func (c *Client) worker() {
	for {
		select {
		case <-c.stop:
			return
		case t := <-c.tasks:
			c.notify(StatusProcessing)

			if err := c.gate(t.ctx, t.category); err != nil {
				c.notify(StatusError)
				t.done <- taskResult{err: err}
				continue
			}

			text, err := t.run(t.ctx)
			if err != nil {
				c.logger.Warn("Generation task failed", "task_id", t.id, "error", err)
				c.notify(StatusError)
			} else {
				c.notify(StatusActive)
			}
			t.done <- taskResult{text: text, err: err}
		}
	}
}

// gate holds a task until the shared backoff window has passed and
// the category's minimum interval allows another call. Tasks wait
// here rather than being abandoned, so a caller-visible operation is
// submitted exactly once.
func (c *Client) gate(ctx context.Context, cat category) error {
	for {
		c.mu.Lock()
		wait := c.blockedUntil.Sub(c.now())
		c.mu.Unlock()
		if wait <= 0 {
			break
		}

		c.logger.Debug("Waiting out backoff window", "wait_ms", wait.Milliseconds())
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	limiter := c.textLimiter
	if cat == categoryImage {
		limiter = c.imageLimiter
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("interval wait failed: %w", err)
	}
	return nil
}

// credential returns the memoized bearer token, resolving it on first
// use or after an auth failure cleared the cache.
func (c *Client) credential(ctx context.Context) (string, error) {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()
	if token != "" {
		return token, nil
	}

	token, err := c.creds.Resolve(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAuth, err)
	}

	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	return token, nil
}

// invalidateAuth drops the cached credential so the next task must
// re-resolve before calling out.
func (c *Client) invalidateAuth() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	c.logger.Warn("Credential rejected, cleared auth cache")
}

// noteRateLimit arms the shared backoff window from the server's
// retry hint, or a category-appropriate fallback when no hint was
// supplied. Image limits also grow the adaptive interval.
func (c *Client) noteRateLimit(cat category, hint time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cat == categoryImage {
		c.imageInterval = time.Duration(float64(c.imageInterval) * imageIntervalGrowth)
		if c.imageInterval > imageIntervalCap {
			c.imageInterval = imageIntervalCap
		}
		c.imageLimiter.SetLimit(rate.Every(c.imageInterval))
	}

	window := hint
	if window <= 0 {
		if cat == categoryImage {
			window = c.imageInterval
		} else {
			window = c.textBackoff
		}
	}

	until := c.now().Add(window)
	if until.After(c.blockedUntil) {
		c.blockedUntil = until
	}
	c.logger.Info("Rate limited, backing off", "window_ms", window.Milliseconds())
}

// noteSuccess decays the adaptive image interval toward its floor.
func (c *Client) noteSuccess(cat category) {
	if cat != categoryImage {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.imageInterval = time.Duration(float64(c.imageInterval) * imageIntervalDecay)
	if c.imageInterval < c.imageFloor {
		c.imageInterval = c.imageFloor
	}
	c.imageLimiter.SetLimit(rate.Every(c.imageInterval))
}

func (c *Client) notify(s Status) {
	if c.notifier != nil {
		c.notifier(s)
	}
}

// checkStatus maps expected failure statuses to the error taxonomy.
// It returns nil for a 200; any other well-formed response is
// terminal for this attempt.
func (c *Client) checkStatus(cat category, res *callResult) error {
	switch {
	case res.ok():
		return nil
	case res.rateLimited():
		c.noteRateLimit(cat, res.retryAfter)
		return fmt.Errorf("%w (status %d)", ErrRateLimited, res.status)
	case res.authFailed():
		c.invalidateAuth()
		return fmt.Errorf("%w (status %d)", ErrAuth, res.status)
	default:
		return &APIError{Status: res.status, Message: apiMessage(res.body)}
	}
}

// generateText runs the dual-endpoint text call: the structured
// responses endpoint first, falling back to the legacy chat endpoint
// only on a network failure or an undecodable 200 body. A well-formed
// error response is terminal and is never retried against the
// fallback.
func (c *Client) generateText(ctx context.Context, system, prompt string) (string, error) {
	token, err := c.credential(ctx)
	if err != nil {
		return "", err
	}

	res, netErr := c.post(ctx, responsesPath, token, responsesRequest{
		Model:           c.textModel,
		Input:           joinInput(system, prompt),
		Temperature:     DefaultTemperature,
		MaxOutputTokens: DefaultMaxOutputTokens,
	})
	if netErr == nil {
		if err := c.checkStatus(categoryText, res); err != nil {
			return "", err
		}
		gen, decodeErr := decodeResponses(res.body)
		if decodeErr == nil {
			c.noteSuccess(categoryText)
			c.usage.Add(int64(gen.Tokens))
			return gen.Text, nil
		}
		c.logger.Warn("Structured endpoint returned malformed output, trying legacy endpoint",
			"error", decodeErr)
	} else {
		c.logger.Warn("Structured endpoint unreachable, trying legacy endpoint", "error", netErr)
	}

	res, err = c.post(ctx, chatPath, token, chatRequest{
		Model: c.textModel,
		Messages: []chatMessage{
			{Role: chatRoleSystem, Content: system},
			{Role: chatRoleUser, Content: prompt},
		},
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxOutputTokens,
	})
	if err != nil {
		if netErr != nil {
			return "", fmt.Errorf("both endpoints unreachable: %w", err)
		}
		return "", err
	}
	if err := c.checkStatus(categoryText, res); err != nil {
		return "", err
	}

	gen, err := decodeChat(res.body)
	if err != nil {
		return "", err
	}
	c.usage.Add(int64(gen.Tokens))
	return gen.Text, nil
}

func joinInput(system, prompt string) string {
	if system == "" {
		return prompt
	}
	return system + "\n\n" + prompt
}

// apiMessage pulls a human-readable message out of a well-formed
// error body, best-effort.
func apiMessage(body []byte) string {
	var wrapped struct {
		Error *apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error != nil {
		return wrapped.Error.Message
	}
	return ""
}
