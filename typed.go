package everytriv

import (
	"context"
	"net/http"
	"time"
)

// Decode converts a raw response into a typed one. Callers sharing a
// deduplicated response each decode their own copy.
func Decode[T any](resp *Response) (*APIResponse[T], error) {
	if resp == nil {
		return nil, &APIError{Kind: KindMalformed, Message: "nil response", Timestamp: time.Now()}
	}

	out := &APIResponse[T]{
		Success:    resp.Success,
		StatusCode: resp.StatusCode,
		Timestamp:  resp.Timestamp,
		Header:     resp.Header,
	}
	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return out, nil
	}
	if err := codec.Unmarshal(resp.Data, &out.Data); err != nil {
		return nil, &APIError{
			Kind:       KindMalformed,
			Message:    "response data does not match the expected type",
			StatusCode: resp.StatusCode,
			Timestamp:  time.Now(),
			Cause:      err,
		}
	}
	return out, nil
}

// Do executes desc and decodes the result into T.
func Do[T any](ctx context.Context, c *Client, desc RequestDescriptor) (*APIResponse[T], error) {
	resp, err := c.Execute(ctx, desc)
	if err != nil {
		return nil, err
	}
	return Decode[T](resp)
}

// Get performs a typed GET.
func Get[T any](ctx context.Context, c *Client, url string, opts ...RequestOption) (*APIResponse[T], error) {
	return Do[T](ctx, c, newDescriptor(http.MethodGet, url, nil, opts))
}

// Post performs a typed POST.
func Post[T any](ctx context.Context, c *Client, url string, body any, opts ...RequestOption) (*APIResponse[T], error) {
	return Do[T](ctx, c, newDescriptor(http.MethodPost, url, body, opts))
}

// Put performs a typed PUT.
func Put[T any](ctx context.Context, c *Client, url string, body any, opts ...RequestOption) (*APIResponse[T], error) {
	return Do[T](ctx, c, newDescriptor(http.MethodPut, url, body, opts))
}

// Patch performs a typed PATCH.
func Patch[T any](ctx context.Context, c *Client, url string, body any, opts ...RequestOption) (*APIResponse[T], error) {
	return Do[T](ctx, c, newDescriptor(http.MethodPatch, url, body, opts))
}

// Delete performs a typed DELETE.
func Delete[T any](ctx context.Context, c *Client, url string, opts ...RequestOption) (*APIResponse[T], error) {
	return Do[T](ctx, c, newDescriptor(http.MethodDelete, url, nil, opts))
}
