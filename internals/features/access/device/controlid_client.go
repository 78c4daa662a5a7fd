package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

/* =========================================================
   Control iD style REST controller
   POST /login.fcgi                 {login,password} -> {session}
   POST /create_objects.fcgi?session=  {object,values} -> {ids}
   POST /destroy_objects.fcgi?session= {object,where}  -> {changes}
========================================================= */

type ClientOptions struct {
	BaseURL       string
	Login         string
	Password      string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	Logger        *zap.Logger
}

type ControlIDClient struct {
	baseURL  string
	login    string
	password string
	timeout  time.Duration
	limiter  *rate.Limiter
	log      *zap.Logger

	mu      sync.Mutex
	session string
}

func NewControlIDClient(o ClientOptions) *ControlIDClient {
	if o.Timeout <= 0 {
		o.Timeout = 5 * time.Second
	}
	if o.RatePerSecond <= 0 {
		o.RatePerSecond = 5
	}
	if o.Burst <= 0 {
		o.Burst = 1
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &ControlIDClient{
		baseURL:  strings.TrimRight(o.BaseURL, "/"),
		login:    o.Login,
		password: o.Password,
		timeout:  o.Timeout,
		limiter:  rate.NewLimiter(rate.Limit(o.RatePerSecond), o.Burst),
		log:      o.Logger.Named("device"),
	}
}

type objectValues struct {
	Object string           `json:"object"`
	Values []map[string]any `json:"values"`
}

type objectWhere struct {
	Object string                    `json:"object"`
	Where  map[string]map[string]any `json:"where"`
}

func (c *ControlIDClient) Enroll(ctx context.Context, label, externalCode string) (int64, error) {
	var out struct {
		IDs []int64 `json:"ids"`
	}
	err := c.call(ctx, "/create_objects.fcgi", objectValues{
		Object: "users",
		Values: []map[string]any{{"name": label, "registration": externalCode}},
	}, &out)
	if err != nil {
		return 0, err
	}
	if len(out.IDs) == 0 {
		return 0, errors.New("device enroll: no id returned")
	}
	return out.IDs[0], nil
}

// GrantAccess replaces the user's group links with groupID, so repeating it is harmless.
func (c *ControlIDClient) GrantAccess(ctx context.Context, deviceUserID, groupID int64) error {
	if err := c.unlinkGroups(ctx, deviceUserID); err != nil {
		return err
	}
	return c.call(ctx, "/create_objects.fcgi", objectValues{
		Object: "user_groups",
		Values: []map[string]any{{"user_id": deviceUserID, "group_id": groupID}},
	}, nil)
}

// DenyAccess drops every group link; a user in no group is refused at the turnstile.
func (c *ControlIDClient) DenyAccess(ctx context.Context, deviceUserID int64) error {
	return c.unlinkGroups(ctx, deviceUserID)
}

func (c *ControlIDClient) unlinkGroups(ctx context.Context, deviceUserID int64) error {
	return c.call(ctx, "/destroy_objects.fcgi", objectWhere{
		Object: "user_groups",
		Where:  map[string]map[string]any{"user_groups": {"user_id": deviceUserID}},
	}, nil)
}

/* =========================================================
   Transport
========================================================= */

type statusError struct {
	path string
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("device %s: http %d: %s", e.path, e.code, e.body)
}

// call posts with a session, logging in again once if the session expired.
func (c *ControlIDClient) call(ctx context.Context, path string, body, out any) error {
	for attempt := 0; ; attempt++ {
		sess, err := c.sessionFor(ctx)
		if err != nil {
			return err
		}
		code, resp, err := c.post(ctx, path+"?session="+sess, body)
		if err != nil {
			return fmt.Errorf("device %s: %w", path, err)
		}
		if code == fiber.StatusUnauthorized && attempt == 0 {
			c.dropSession(sess)
			continue
		}
		if code < 200 || code >= 300 {
			return &statusError{path: path, code: code, body: truncate(string(resp), 200)}
		}
		if out == nil {
			return nil
		}
		if err := sonic.Unmarshal(resp, out); err != nil {
			return fmt.Errorf("device %s: decode: %w", path, err)
		}
		return nil
	}
}

func (c *ControlIDClient) sessionFor(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != "" {
		return c.session, nil
	}

	code, resp, err := c.post(ctx, "/login.fcgi", map[string]string{"login": c.login, "password": c.password})
	if err != nil {
		return "", fmt.Errorf("device login: %w", err)
	}
	if code != fiber.StatusOK {
		return "", &statusError{path: "/login.fcgi", code: code, body: truncate(string(resp), 200)}
	}
	var out struct {
		Session string `json:"session"`
	}
	if err := sonic.Unmarshal(resp, &out); err != nil || out.Session == "" {
		return "", errors.New("device login: no session in response")
	}
	c.session = out.Session
	c.log.Debug("device session opened")
	return c.session, nil
}

func (c *ControlIDClient) dropSession(sess string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == sess {
		c.session = ""
	}
}

func (c *ControlIDClient) post(ctx context.Context, pathAndQuery string, body any) (int, []byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}
	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return 0, nil, context.DeadlineExceeded
	}

	a := fiber.Post(c.baseURL + pathAndQuery)
	a.JSONEncoder(sonic.Marshal)
	a.JSON(body)
	a.Timeout(timeout)
	code, resp, errs := a.Bytes()
	if len(errs) > 0 {
		return 0, nil, errors.Join(errs...)
	}
	return code, resp, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
