package odoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kolo/xmlrpc"
)

// Client represents an Odoo XML-RPC client
type Client struct {
	URL      string
	Database string
	Username string
	Password string

	commonURL string
	objectURL string
	transport http.RoundTripper

	mu  sync.Mutex
	uid int
}

// NewClient creates a new Odoo client
func NewClient(url, db, username, password string) *Client {
	url = strings.TrimRight(url, "/")
	return &Client{
		URL:       url,
		Database:  db,
		Username:  username,
		Password:  password,
		commonURL: fmt.Sprintf("%s/xmlrpc/2/common", url),
		objectURL: fmt.Sprintf("%s/xmlrpc/2/object", url),
		transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 60 * time.Second,
			MaxIdleConns:          10,
			IdleConnTimeout:       90 * time.Second,
		},
	}
}

// call runs one XML-RPC request. The reply is decoded into a generic value
// and converted to result through JSON, so result can use json tags and
// the Odoo aware types of the models package.
func (c *Client) call(ctx context.Context, endpoint, method string, args []interface{}, result interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	client, err := xmlrpc.NewClient(endpoint, c.transport)
	if err != nil {
		return fmt.Errorf("failed to create XML-RPC client: %w", err)
	}

	type reply struct {
		raw interface{}
		err error
	}
	done := make(chan reply, 1)
	go func() {
		defer client.Close()
		var raw interface{}
		err := client.Call(method, args, &raw)
		done <- reply{raw: raw, err: err}
	}()

	var r reply
	select {
	case r = <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if r.err != nil {
		return r.err
	}
	if result == nil {
		return nil
	}

	jsonData, err := json.Marshal(r.raw)
	if err != nil {
		return fmt.Errorf("failed to marshal raw result: %w", err)
	}
	if err := json.Unmarshal(jsonData, result); err != nil {
		return fmt.Errorf("failed to unmarshal into target: %w", err)
	}
	return nil
}

// Authenticate authenticates with Odoo and returns the user ID
func (c *Client) Authenticate(ctx context.Context) (int, error) {
	args := []interface{}{c.Database, c.Username, c.Password, map[string]interface{}{}}
	var uid interface{}
	if err := c.call(ctx, c.commonURL, "authenticate", args, &uid); err != nil {
		return 0, fmt.Errorf("authentication failed: %w", err)
	}
	// A failed login answers false instead of an id
	id, ok := uid.(float64)
	if !ok || id <= 0 {
		return 0, fmt.Errorf("authentication failed: invalid credentials for %s", c.Username)
	}

	c.mu.Lock()
	c.uid = int(id)
	c.mu.Unlock()
	return int(id), nil
}

func (c *Client) session(ctx context.Context) (int, error) {
	c.mu.Lock()
	uid := c.uid
	c.mu.Unlock()
	if uid != 0 {
		return uid, nil
	}
	return c.Authenticate(ctx)
}

// execute calls execute_kw on a model
func (c *Client) execute(ctx context.Context, model, method string, args []interface{}, kwargs map[string]interface{}, result interface{}) error {
	uid, err := c.session(ctx)
	if err != nil {
		return err
	}
	params := []interface{}{c.Database, uid, c.Password, model, method, args}
	if kwargs != nil {
		params = append(params, kwargs)
	}
	return c.call(ctx, c.objectURL, "execute_kw", params, result)
}

// SearchRead performs a generic search_read operation
// model: Odoo model name (e.g., "stock.picking")
// domain: search criteria
// fields: fields to fetch
// result: pointer to slice of structs with json tags
func (c *Client) SearchRead(ctx context.Context, model string, domain []interface{}, fields []string, limit, offset int, result interface{}) error {
	kwargs := map[string]interface{}{
		"fields": fields,
		"limit":  limit,
		"offset": offset,
		"order":  "id asc",
	}
	if err := c.execute(ctx, model, "search_read", []interface{}{domain}, kwargs, result); err != nil {
		return fmt.Errorf("failed to execute search_read on %s: %w", model, err)
	}
	return nil
}

// Read reads records by IDs
func (c *Client) Read(ctx context.Context, model string, ids []int64, fields []string, result interface{}) error {
	kwargs := map[string]interface{}{"fields": fields}
	if err := c.execute(ctx, model, "read", []interface{}{ids}, kwargs, result); err != nil {
		return fmt.Errorf("failed to execute read on %s: %w", model, err)
	}
	return nil
}

// Write updates existing record(s)
func (c *Client) Write(ctx context.Context, model string, ids []int64, values map[string]interface{}) error {
	var success bool
	if err := c.execute(ctx, model, "write", []interface{}{ids, values}, nil, &success); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if !success {
		return fmt.Errorf("write operation returned false")
	}
	return nil
}

// CallMethod calls a public method on a record set. Methods returning a
// window action give back its dictionary.
func (c *Client) CallMethod(ctx context.Context, model string, method string, ids []int64, kwargs map[string]interface{}) (interface{}, error) {
	var result interface{}
	if err := c.execute(ctx, model, method, []interface{}{ids}, kwargs, &result); err != nil {
		return nil, fmt.Errorf("failed to call method %s: %w", method, err)
	}
	return result, nil
}
