package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
)

// Data returns the "data" member of an envelope response, or the whole body when
// the upstream answered without an envelope.
func (r *Response) Data() gjson.Result {
	if r == nil {
		return gjson.Result{}
	}
	root := gjson.ParseBytes(r.Body)
	if root.IsObject() {
		if data := root.Get("data"); data.Exists() {
			return data
		}
	}
	return root
}

// Message returns the envelope "message", if any.
func (r *Response) Message() string {
	if r == nil {
		return ""
	}
	return gjson.GetBytes(r.Body, "message").String()
}

// DecodeData unmarshals the envelope data into out.
func (r *Response) DecodeData(out any) error {
	if out == nil {
		return nil
	}
	data := r.Data()
	if !data.Exists() || data.Type == gjson.Null {
		return nil
	}
	if err := json.Unmarshal([]byte(data.Raw), out); err != nil {
		return newError(KindUnknown, r.StatusCode, "malformed response body", err)
	}
	return nil
}

// GetJSON issues a GET and decodes the envelope data into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	resp, err := c.Do(ctx, &Call{Method: http.MethodGet, Path: path, Query: query})
	if err != nil {
		return err
	}
	return resp.DecodeData(out)
}

// PostJSON marshals in, issues a POST and decodes the envelope data into out.
func (c *Client) PostJSON(ctx context.Context, path string, in, out any) error {
	return c.sendJSON(ctx, http.MethodPost, path, in, out)
}

// PutJSON marshals in, issues a PUT and decodes the envelope data into out.
func (c *Client) PutJSON(ctx context.Context, path string, in, out any) error {
	return c.sendJSON(ctx, http.MethodPut, path, in, out)
}

// Delete issues a DELETE and discards the response body.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.Do(ctx, &Call{Method: http.MethodDelete, Path: path})
	return err
}

func (c *Client) sendJSON(ctx context.Context, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return newError(KindUnknown, 0, fmt.Sprintf("encode %s body", method), err)
		}
		body = raw
	}
	resp, err := c.Do(ctx, &Call{Method: method, Path: path, Body: body})
	if err != nil {
		return err
	}
	return resp.DecodeData(out)
}

func validationFields(body []byte) []FieldError {
	errs := gjson.GetBytes(body, "errors")
	if !errs.IsArray() {
		return nil
	}
	var fields []FieldError
	errs.ForEach(func(_, value gjson.Result) bool {
		field := strings.TrimSpace(value.Get("field").String())
		message := strings.TrimSpace(value.Get("message").String())
		if field != "" || message != "" {
			fields = append(fields, FieldError{Field: field, Message: message})
		}
		return true
	})
	return fields
}

func serverMessage(body []byte) string {
	if !gjson.ValidBytes(body) {
		return ""
	}
	return strings.TrimSpace(gjson.GetBytes(body, "message").String())
}
